package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"study-companion/middleware"
	"study-companion/services"
)

func sessionCookie(value string, expires time.Time, secure bool) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
}

// SetupAuthRoutes registers account and session endpoints. secured must
// already carry UserContextMiddleware.
func SetupAuthRoutes(app fiber.Router, secured fiber.Router, authService *services.AuthService, cookieSecure bool) {
	app.Post("/register", func(c *fiber.Ctx) error {
		var req services.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body", err)
		}
		uid, err := authService.Register(c.UserContext(), req)
		if err != nil {
			return respondError(c, "registration failed", err)
		}
		log.Printf("✅ [AUTH] registered %s", uid)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"status":  "registered",
			"user_id": uid,
		})
	})

	app.Post("/login", func(c *fiber.Ctx) error {
		var req services.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body", err)
		}
		session, err := authService.Login(c.UserContext(), req)
		if err != nil {
			return respondError(c, "login failed", err)
		}
		c.Cookie(sessionCookie(session.Token, session.ExpiresAt, cookieSecure))
		return c.JSON(session)
	})

	app.Post("/logout", func(c *fiber.Ctx) error {
		c.Cookie(sessionCookie("", time.Unix(0, 0), cookieSecure))
		return c.JSON(fiber.Map{"status": "logged out"})
	})

	secured.Get("/realtime_token", func(c *fiber.Ctx) error {
		token, expires, err := authService.RealtimeToken(middleware.UserID(c), middleware.Username(c))
		if err != nil {
			return respondError(c, "failed to issue realtime token", err)
		}
		return c.JSON(fiber.Map{
			"token":      token,
			"expires_at": expires,
		})
	})

	secured.Get("/video_identity", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"video_uid": services.DeriveVideoUID(middleware.UserID(c)),
		})
	})
}
