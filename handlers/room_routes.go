package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"study-companion/middleware"
	"study-companion/models"
	"study-companion/services"
)

type createRoomRequest struct {
	Name string `json:"name" form:"name"`
}

// SetupRoomRoutes registers the study room REST endpoints under secured.
func SetupRoomRoutes(secured fiber.Router, roomService *services.RoomService) {
	secured.Post("/rooms", func(c *fiber.Ctx) error {
		var req createRoomRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body", err)
		}
		room, err := roomService.CreateRoom(c.UserContext(), middleware.UserID(c), middleware.Username(c), req.Name)
		if err != nil {
			return respondError(c, "failed to create room", err)
		}
		return c.Status(fiber.StatusCreated).JSON(room)
	})

	// Registered before /rooms/:id so "search" is not taken for an id.
	secured.Get("/rooms/search", func(c *fiber.Ctx) error {
		rooms, err := roomService.Search(c.UserContext(), c.Query("q"))
		if err != nil {
			return respondError(c, "failed to search rooms", err)
		}
		return c.JSON(rooms)
	})

	secured.Get("/rooms/:id", func(c *fiber.Ctx) error {
		room, err := roomService.View(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, "failed to load room", err)
		}
		return c.JSON(room)
	})

	secured.Get("/room_participants/:id", func(c *fiber.Ctx) error {
		resp, err := roomService.Participants(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, "failed to load participants", err)
		}
		return c.JSON(resp)
	})

	// Unknown rooms report the default timer so a client can render before
	// the room exists.
	secured.Get("/room_timer_state/:id", func(c *fiber.Ctx) error {
		timer, err := roomService.TimerState(c.UserContext(), c.Params("id"))
		if errors.Is(err, services.ErrNotFound) {
			return c.JSON(models.DefaultTimerState())
		}
		if err != nil {
			return respondError(c, "failed to load timer state", err)
		}
		return c.JSON(timer)
	})

	secured.Get("/room_chat_history/:id", func(c *fiber.Ctx) error {
		msgs, err := roomService.ChatHistory(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, "failed to load room chat", err)
		}
		return c.JSON(msgs)
	})
}
