package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"lob-engine/src/config"
	"lob-engine/src/engine"
	"lob-engine/src/feed"
	"lob-engine/src/handlers"
	"lob-engine/src/logger"
	"lob-engine/src/metrics"
	"lob-engine/src/middleware"
	"lob-engine/src/routes"
	"lob-engine/src/sequencer"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, v, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.InitLogger(config.LogConfig{Level: "info"})
		log := logger.GetLogger()
		log.Error().Err(err).Msg("Failed to load configuration")
		return 2
	}
	// `lob-engine http` overrides the configured mode
	if len(os.Args) > 1 {
		cfg.Mode = os.Args[1]
	}

	logger.InitLogger(cfg.Log)
	defer logger.CloseLogger()
	log := logger.GetLogger()

	log.Info().
		Str("mode", cfg.Mode).
		Str("config_file", v.ConfigFileUsed()).
		Msg("Initializing Order Matching Engine")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New()
	m.MustRegister(reg)

	matcher := engine.NewMatcher(cfg.Engine.ArenaBlockSize)
	seq := sequencer.New(matcher, cfg.Engine.QueueSize, m)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	availability := middleware.NewServiceAvailability(cfg.HTTP, seq.Halted)
	config.Watch(v, func(next *config.Config) {
		logger.SetLevel(next.Log.Level)
		availability.Apply(next.HTTP)
		log.Info().
			Str("log_level", zerolog.GlobalLevel().String()).
			Msg("Configuration reloaded")
	})

	switch cfg.Mode {
	case config.ModeStdin:
		return runStdin(ctx, matcher, seq, log)
	case config.ModeHTTP:
		return runHTTP(ctx, cfg, seq, availability, reg, log)
	}

	log.Error().Str("mode", cfg.Mode).Msg("Unknown mode, expected stdin or http")
	return 2
}

func runStdin(ctx context.Context, matcher *engine.Matcher, seq *sequencer.Sequencer, log zerolog.Logger) int {
	reporter := engine.NewTextReporter(os.Stdout)
	matcher.SetReporter(reporter)
	seq.Start(ctx)

	// the reporter belongs to the sequencer goroutine
	flush := func() error {
		return seq.Query(context.Background(), func(*engine.Matcher) error {
			return reporter.Flush()
		})
	}

	summary, err := feed.Run(ctx, os.Stdin, seq, flush)
	stopErr := seq.Stop()

	log.Info().
		Int("lines", summary.Lines).
		Int("rejected", summary.Rejected).
		Int("malformed", summary.Malformed).
		Msg("Input feed finished")

	switch {
	case engine.IsFatal(err), engine.IsFatal(stopErr):
		log.Error().Err(errors.Join(err, stopErr)).Msg("Matching engine halted")
		return 1
	case err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, sequencer.ErrStopped):
		log.Error().Err(err).Msg("Input feed failed")
		return 1
	}
	// edge case: output written after the last feed flush
	if err := reporter.Flush(); err != nil {
		log.Error().Err(err).Msg("Failed to write output")
		return 1
	}
	return 0
}

func runHTTP(ctx context.Context, cfg *config.Config, seq *sequencer.Sequencer, availability *middleware.ServiceAvailability, reg *prometheus.Registry, log zerolog.Logger) int {
	seq.Start(ctx)
	orderHandler := handlers.NewOrderHandler(seq, cfg.OrderBook)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}

			log.Error().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("status", code).
				Str("error", err.Error()).
				Msg("Request error")

			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	routes.SetupRoutes(app, orderHandler, cfg, availability, reg)

	port := ":" + cfg.HTTP.Port
	serverError := make(chan error, 1)

	go func() {
		if err := app.Listen(port); err != nil {
			serverError <- err
		}
	}()

	log.Info().
		Str("port", port).
		Strs("endpoints", routes.Endpoints()).
		Msg("Order Matching Engine started")

	exitCode := 0
	select {
	case err := <-serverError:
		log.Error().
			Err(err).
			Str("port", port).
			Str("hint", "Port may be already in use. Try: PORT=3000").
			Msg("Server failed to start")
		exitCode = 1
	case <-seq.Dead():
		if seq.Halted() {
			log.Error().Msg("Matching engine halted, shutting down server")
			exitCode = 1
		}
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal, shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		// edge case: timeout during shutdown is acceptable
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().
				Dur("timeout", cfg.HTTP.ShutdownTimeout).
				Msg("Timeout exceeded, shutting down...")
		} else {
			log.Error().
				Err(err).
				Msg("Error during shutdown")
		}
	}

	if err := seq.Stop(); err != nil {
		log.Error().Err(err).Msg("Matching engine halted")
		exitCode = 1
	}

	log.Info().Msg("Shutdown complete")
	return exitCode
}
