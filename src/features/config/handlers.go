package config

import (
	"github.com/gofiber/fiber/v2"
)

// Handler is the handler for the config feature.
type Handler struct {
	configManager *Manager
}

// NewHandler creates a new handler for the config feature.
func NewHandler(configManager *Manager) *Handler {
	return &Handler{
		configManager: configManager,
	}
}

// GetConfig returns the redacted configuration, YAML by default or JSON with ?format=json.
func (h *Handler) GetConfig(c *fiber.Ctx) error {
	if c.Query("format") == "json" {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendString(h.configManager.GetJSON())
	}
	c.Set(fiber.HeaderContentType, "application/yaml")
	return c.SendString(h.configManager.GetYAML())
}
