package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"study-companion/services"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, services.ErrUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes {"error": summary, "cause": err} with the status the
// service error maps to. Server-side failures are logged.
func respondError(c *fiber.Ctx, summary string, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		log.Printf("❌ [%s %s] %s: %v", c.Method(), c.Path(), summary, err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": summary,
		"cause": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, summary string, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": summary,
		"cause": err.Error(),
	})
}
