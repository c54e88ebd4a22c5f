package middleware

import (
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"lob-engine/src/config"
)

type ServiceAvailability struct {
	maintenanceMode       atomic.Bool
	maxConcurrentRequests atomic.Int64
	inFlightRequests      atomic.Int64
	halted                func() bool
}

// NewServiceAvailability builds the gate. halted may be nil; when it reports
// true every request except /health gets a 503.
func NewServiceAvailability(cfg config.HTTPConfig, halted func() bool) *ServiceAvailability {
	sa := &ServiceAvailability{halted: halted}
	sa.Apply(cfg)
	return sa
}

// Apply picks up maintenance mode and the concurrency limit from cfg.
func (sa *ServiceAvailability) Apply(cfg config.HTTPConfig) {
	if cfg.MaintenanceMode != sa.maintenanceMode.Load() {
		sa.SetMaintenanceMode(cfg.MaintenanceMode)
	}

	limit := cfg.MaxConcurrentRequests
	if limit < 0 {
		limit = 0
	}
	if old := sa.maxConcurrentRequests.Swap(limit); old != limit && limit > 0 {
		log.Info().
			Int64("max_concurrent_requests", limit).
			Msg("Server overload detection enabled")
	}
}

func (sa *ServiceAvailability) SetMaintenanceMode(enabled bool) {
	sa.maintenanceMode.Store(enabled)
	if enabled {
		log.Warn().Msg("Service maintenance mode enabled - all requests will return 503")
	} else {
		log.Info().Msg("Service maintenance mode disabled")
	}
}

func (sa *ServiceAvailability) IsMaintenanceMode() bool {
	return sa.maintenanceMode.Load()
}

func (sa *ServiceAvailability) GetInFlightRequests() int64 {
	return sa.inFlightRequests.Load()
}

func (sa *ServiceAvailability) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// edge case: health check always available
		if c.Path() == "/health" {
			return c.Next()
		}

		if sa.maintenanceMode.Load() {
			log.Warn().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Str("ip", c.IP()).
				Msg("Request rejected: service in maintenance mode")
			return unavailable(c, "The service is currently undergoing maintenance. Please try again later.")
		}

		if sa.halted != nil && sa.halted() {
			log.Warn().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Msg("Request rejected: matching engine halted")
			return unavailable(c, "The matching engine has halted.")
		}

		// edge case: check server overload if limit is set
		if limit := sa.maxConcurrentRequests.Load(); limit > 0 {
			currentRequests := sa.inFlightRequests.Load()
			if currentRequests >= limit {
				log.Warn().
					Str("path", c.Path()).
					Str("method", c.Method()).
					Int64("current_requests", currentRequests).
					Int64("max_requests", limit).
					Msg("Request rejected: server overload")
				return unavailable(c, "The service is currently overloaded. Please try again later.")
			}
		}

		sa.inFlightRequests.Add(1)
		defer sa.inFlightRequests.Add(-1)

		return c.Next()
	}
}

func unavailable(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error":   "Service unavailable",
		"message": message,
		"code":    fiber.StatusServiceUnavailable,
	})
}
