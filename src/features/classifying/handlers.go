package classifying

import (
	"errors"
	"log/slog"

	"github.com/contre95/dropsort/src/features/reporting"
	"github.com/gofiber/fiber/v2"
)

// Handler is the handler for the classifying feature.
type Handler struct {
	service *Service
}

// NewHandler creates a new handler for the classifying feature.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// StartSweep starts a sweep job over the requested directory, or the root.
func (h *Handler) StartSweep(c *fiber.Ctx) error {
	var req struct {
		Path string `json:"path"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot parse request body"})
		}
	}
	jobID, err := h.service.Sweep(req.Path)
	if err != nil {
		slog.Error("Error starting sweep", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	slog.Info("Directory sweep started", "jobID", jobID)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": jobID})
}

// ResolvePaths reports the category each path would get, without moving anything.
func (h *Handler) ResolvePaths(c *fiber.Ctx) error {
	var req struct {
		Paths []string `json:"paths"`
	}
	if err := c.BodyParser(&req); err != nil || len(req.Paths) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "expected a non-empty paths list"})
	}
	type item struct {
		Path string `json:"path"`
		Resolution
		Error string `json:"error,omitempty"`
	}
	items := make([]item, 0, len(req.Paths))
	for _, path := range req.Paths {
		res, err := h.service.Resolve(c.Context(), path)
		it := item{Path: path, Resolution: res}
		if err != nil {
			it.Error = err.Error()
		}
		items = append(items, it)
	}
	return c.JSON(items)
}

// ListResults returns recent move results, newest first.
func (h *Handler) ListResults(c *fiber.Ctx) error {
	return c.JSON(h.service.Results())
}

// GetResult returns one recent result.
func (h *Handler) GetResult(c *fiber.Ctx) error {
	result, err := h.service.Result(c.Params("id"))
	if errors.Is(err, reporting.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(result)
}

// ClearResults forgets the recent results.
func (h *Handler) ClearResults(c *fiber.Ctx) error {
	h.service.ClearResults()
	return c.SendStatus(fiber.StatusNoContent)
}
