package hosting

import (
	"fmt"
	"log/slog"

	"github.com/contre95/dropsort/src/features/classifying"
	"github.com/contre95/dropsort/src/features/config"
	"github.com/contre95/dropsort/src/features/jobs"
	"github.com/contre95/dropsort/src/features/metrics"
	"github.com/contre95/dropsort/src/features/watching"
	"github.com/gofiber/fiber/v2"
)

// Server is the HTTP control API for the application.
type Server struct {
	app  *fiber.App
	port uint32
}

// NewServer creates a new HTTP server with every feature's routes.
func NewServer(cfg *config.Manager, classifyingService *classifying.Service, watchingService *watching.Service, jobService *jobs.Service, collector *metrics.Collector) *Server {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			}
			if code >= fiber.StatusInternalServerError {
				slog.Error("Internal Server Error", "error", err)
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
		AppName:               "dropsort",
		DisableStartupMessage: true,
		EnablePrintRoutes:     cfg.Get().Server.PrintRoutes,
	})

	app.Use(LogAllRequestsMiddleware())
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	config.RegisterRoutes(app, cfg)
	jobs.RegisterRoutes(app, jobService)
	classifying.RegisterRoutes(app, classifyingService)
	watching.RegisterRoutes(app, watchingService)
	metrics.RegisterRoutes(app, collector)

	return &Server{app: app, port: cfg.Get().Server.Port}
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured port and blocks until Shutdown.
func (s *Server) Start() error {
	return s.app.Listen(":" + fmt.Sprint(s.port))
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
