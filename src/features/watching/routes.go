package watching

import "github.com/gofiber/fiber/v2"

// RegisterRoutes registers the routes for the watching feature.
func RegisterRoutes(app *fiber.App, service *Service) {
	handler := NewHandler(service)
	watcher := app.Group("/watcher")
	watcher.Post("/start", handler.Start)
	watcher.Post("/stop", handler.Stop)
	watcher.Get("/status", handler.Status)
}
