package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RealtimeAuthMiddleware validates the short-lived `token` query parameter of
// a websocket upgrade and attaches the user like UserContextMiddleware does.
//
// Usage:
//
//	app.Get("/ws", middleware.RealtimeAuthMiddleware(authService.AuthenticateRealtime), handler)
func RealtimeAuthMiddleware(authenticate TokenAuthenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := strings.TrimSpace(c.Query("token"))
		if token == "" {
			log.Printf("[WS] ❌ upgrade from %s without token", c.IP())
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing token in query",
			})
		}

		claims, err := authenticate(token)
		if err != nil {
			log.Printf("[WS] ❌ token rejected for %s: %v", c.IP(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalUsername, claims.Username)
		return c.Next()
	}
}
