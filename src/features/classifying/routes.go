package classifying

import "github.com/gofiber/fiber/v2"

// RegisterRoutes registers the routes for the classifying feature.
func RegisterRoutes(app *fiber.App, service *Service) {
	handler := NewHandler(service)

	app.Post("/sweep", handler.StartSweep)
	app.Post("/resolve", handler.ResolvePaths)

	results := app.Group("/results")
	results.Get("/", handler.ListResults)
	results.Get("/:id", handler.GetResult)
	results.Delete("/", handler.ClearResults)
}
