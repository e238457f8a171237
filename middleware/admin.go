package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"
)

// AdminOnly lets through only the configured admin uid. Must run after
// UserContextMiddleware. An empty adminUID disables the admin routes.
func AdminOnly(adminUID string) fiber.Handler {
	if adminUID == "" {
		log.Println("⚠️  ADMIN_UID is not set, admin routes are disabled")
	}
	return func(c *fiber.Ctx) error {
		uid := UserID(c)
		if adminUID == "" || uid != adminUID {
			log.Printf("🚫 [ADMIN] %q denied on %s", uid, c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "admin access required",
			})
		}
		return c.Next()
	}
}
