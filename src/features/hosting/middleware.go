package hosting

import (
	"log/slog"
	"slices"
	"time"

	"github.com/gofiber/fiber/v2"
)

// quietPaths are polled often and only logged at debug level, even on errors.
var quietPaths = []string{"/health", "/metrics", "/watcher/status"}

// LogAllRequestsMiddleware logs every request with its status and duration.
func LogAllRequestsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		attrs := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration", time.Since(start).String(),
		}
		switch {
		case slices.Contains(quietPaths, c.Path()):
			slog.Debug("HTTP request", attrs...)
		case status >= 500:
			slog.Error("HTTP request", append(attrs, "error", err)...)
		case status >= 400:
			slog.Warn("HTTP request", attrs...)
		default:
			slog.Debug("HTTP request", attrs...)
		}
		return err
	}
}
