package watching

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// Handler is the handler for the watching feature.
type Handler struct {
	service *Service
}

// NewHandler creates a new handler for the watching feature.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Start(c *fiber.Ctx) error {
	err := h.service.Start()
	switch {
	case errors.Is(err, ErrAlreadyRunning), errors.Is(err, ErrRootLocked):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		slog.Error("Failed to start watcher", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(h.service.Status())
}

func (h *Handler) Stop(c *fiber.Ctx) error {
	if err := h.service.Stop(); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(h.service.Status())
}

func (h *Handler) Status(c *fiber.Ctx) error {
	return c.JSON(h.service.Status())
}
