package jobs

import (
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) HandleJobList(c *fiber.Ctx) error {
	return c.JSON(h.service.GetJobs())
}

func (h *Handler) HandleJobStatus(c *fiber.Ctx) error {
	job, ok := h.service.GetJob(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": ErrJobNotFound.Error()})
	}
	return c.JSON(job)
}

func (h *Handler) HandleJobLogs(c *fiber.Ctx) error {
	job, ok := h.service.GetJob(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": ErrJobNotFound.Error()})
	}
	if job.LogPath == "" {
		return c.SendString("No logs for this job.")
	}
	content, err := os.ReadFile(job.LogPath)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read log file"})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Send(content)
}

func (h *Handler) HandleCancelJob(c *fiber.Ctx) error {
	err := h.service.CancelJob(c.Params("id"))
	if errors.Is(err, ErrJobNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "cancelling"})
}

func (h *Handler) HandleClearFinishedJobs(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"cleared": h.service.ClearFinished()})
}
