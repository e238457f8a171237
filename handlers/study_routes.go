package handlers

import (
	"github.com/gofiber/fiber/v2"

	"study-companion/middleware"
	"study-companion/models"
	"study-companion/services"
)

// SetupStudyRoutes registers the per-user documents: to-do list, tutor chat
// history and avatar.
func SetupStudyRoutes(secured fiber.Router, todoService *services.TodoService, chatService *services.ChatHistoryService, avatarService *services.AvatarService) {
	secured.Get("/todo_list", func(c *fiber.Ctx) error {
		todos, err := todoService.List(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, "failed to load todo list", err)
		}
		return c.JSON(todos)
	})

	secured.Post("/todo_list", func(c *fiber.Ctx) error {
		var todos []models.TodoItem
		if err := c.BodyParser(&todos); err != nil {
			return badRequest(c, "todo list must be a JSON array", err)
		}
		if err := todoService.Save(c.UserContext(), middleware.UserID(c), todos); err != nil {
			return respondError(c, "failed to save todo list", err)
		}
		return c.JSON(fiber.Map{"status": "success"})
	})

	secured.Get("/chat_history", func(c *fiber.Ctx) error {
		msgs, err := chatService.Get(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, "failed to load chat history", err)
		}
		return c.JSON(msgs)
	})

	secured.Post("/chat_history", func(c *fiber.Ctx) error {
		var msgs []models.ChatMessage
		if err := c.BodyParser(&msgs); err != nil {
			return badRequest(c, "chat history must be a JSON array", err)
		}
		if err := chatService.Save(c.UserContext(), middleware.UserID(c), msgs); err != nil {
			return respondError(c, "failed to save chat history", err)
		}
		return c.JSON(fiber.Map{"status": "success"})
	})

	secured.Post("/avatar", func(c *fiber.Ctx) error {
		fh, err := c.FormFile("avatar")
		if err != nil {
			return badRequest(c, "avatar file is required", err)
		}
		url, err := avatarService.Upload(c.UserContext(), middleware.UserID(c), fh)
		if err != nil {
			return respondError(c, "failed to upload avatar", err)
		}
		return c.JSON(fiber.Map{"avatarUrl": url})
	})
}
