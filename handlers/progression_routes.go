// handlers/progression_routes.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"study-companion/middleware"
	"study-companion/services"
)

// SetupProgressionRoutes registers the progress sync, leaderboard and badge
// endpoints under secured, and the settings seed under admin.
func SetupProgressionRoutes(secured, admin fiber.Router, progressionService *services.ProgressionService, badgeService *services.BadgeService, settingsService *services.SettingsService) {
	secured.Get("/user_data", func(c *fiber.Ctx) error {
		data, err := progressionService.GetUserData(c.UserContext(), middleware.UserID(c), middleware.Username(c))
		if err != nil {
			return respondError(c, "failed to load user data", err)
		}
		return c.JSON(data)
	})

	secured.Post("/user_data", func(c *fiber.Ctx) error {
		var req services.SyncRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		resp, err := progressionService.SyncUserData(c.UserContext(), middleware.UserID(c), req)
		if err != nil {
			return respondError(c, "failed to sync user data", err)
		}
		return c.JSON(resp)
	})

	secured.Get("/leaderboard/:type", func(c *fiber.Ctx) error {
		entries, err := progressionService.Leaderboard(c.UserContext(), c.Params("type"))
		if err != nil {
			return respondError(c, "failed to load leaderboard", err)
		}
		return c.JSON(entries)
	})

	secured.Get("/badges", func(c *fiber.Ctx) error {
		badges, err := badgeService.Catalog(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, "failed to load badges", err)
		}
		return c.JSON(badges)
	})

	admin.Post("/gamification/seed", func(c *fiber.Ctx) error {
		settings, err := settingsService.Seed(c.UserContext())
		if err != nil {
			return respondError(c, "failed to seed gamification settings", err)
		}
		return c.JSON(fiber.Map{
			"status":        "seeded",
			"badges":        len(settings.Badges),
			"daily_quests":  len(settings.Quests.Daily),
			"weekly_quests": len(settings.Quests.Weekly),
		})
	})
}
