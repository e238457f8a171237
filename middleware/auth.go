package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"study-companion/services"
)

// SessionCookie carries the session token set by POST /login.
const SessionCookie = "session_token"

// Locals keys set by the auth middlewares.
const (
	LocalUserID   = "user_id"
	LocalUsername = "username"
)

// TokenAuthenticator resolves a token to its claims.
type TokenAuthenticator func(token string) (*services.Claims, error)

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// UserContextMiddleware requires a valid session token, from the session
// cookie or a Bearer header, and attaches the user to the request.
func UserContextMiddleware(authenticate TokenAuthenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(SessionCookie)
		if token == "" {
			token = bearerToken(c)
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "login required",
			})
		}

		claims, err := authenticate(token)
		if err != nil {
			log.Printf("🚫 [USER_CTX] rejected token on %s: %v", c.Path(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or expired session",
			})
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalUsername, claims.Username)
		return c.Next()
	}
}

// UserID returns the authenticated user of the request, or "".
func UserID(c *fiber.Ctx) string {
	uid, _ := c.Locals(LocalUserID).(string)
	return uid
}

// Username returns the display name carried by the session, or "".
func Username(c *fiber.Ctx) string {
	name, _ := c.Locals(LocalUsername).(string)
	return name
}
