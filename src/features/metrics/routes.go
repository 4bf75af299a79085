package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes exposes the collector in the Prometheus text format.
func RegisterRoutes(app *fiber.App, collector *Collector) {
	handler := promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{})
	app.Get("/metrics", adaptor.HTTPHandler(handler))
}
