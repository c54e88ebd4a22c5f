package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lob-engine/src/config"
	"lob-engine/src/handlers"
	"lob-engine/src/middleware"
)

// SetupRoutes registers the middleware chain and every endpoint. gatherer may
// be nil, in which case /metrics/prometheus is not served.
func SetupRoutes(app *fiber.App, orderHandler *handlers.OrderHandler, cfg *config.Config, availability *middleware.ServiceAvailability, gatherer prometheus.Gatherer) {
	app.Use(availability.Middleware())
	app.Use(middleware.RequestLogger(cfg.HTTP.RequestLogging))

	api := app.Group("/api/v1")

	if !cfg.RateLimit.Disabled {
		rateLimiter := middleware.NewRateLimiterFromConfig(cfg.RateLimit)
		api.Use(rateLimiter.Middleware())
	}

	api.Post("/orders", orderHandler.SubmitOrder)
	api.Put("/orders/:id", orderHandler.ModifyOrder)
	api.Delete("/orders/:id", orderHandler.CancelOrder)
	api.Get("/orders/:id", orderHandler.GetOrderStatus)
	api.Get("/orderbook", orderHandler.GetOrderBook)
	api.Post("/commands", orderHandler.SubmitCommands)

	app.Get("/health", orderHandler.HealthCheck)
	app.Get("/metrics", orderHandler.Metrics)
	if gatherer != nil {
		app.Get("/metrics/prometheus", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

// Endpoints lists the registered routes for the startup log.
func Endpoints() []string {
	return []string{
		"POST   /api/v1/orders",
		"PUT    /api/v1/orders/:id",
		"DELETE /api/v1/orders/:id",
		"GET    /api/v1/orders/:id",
		"GET    /api/v1/orderbook",
		"POST   /api/v1/commands",
		"GET    /health",
		"GET    /metrics",
		"GET    /metrics/prometheus",
	}
}
