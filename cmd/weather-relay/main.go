package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-relay/internal/api/http"
	"github.com/i474232898/weather-relay/internal/config"
	"github.com/i474232898/weather-relay/internal/controller"
	"github.com/i474232898/weather-relay/internal/scheduler"
	"github.com/i474232898/weather-relay/internal/scope"
	"github.com/i474232898/weather-relay/internal/state"
	"github.com/i474232898/weather-relay/internal/store"
	"github.com/i474232898/weather-relay/internal/weather/providers"
)

func main() {
	if err := run(); err != nil {
		slog.Error("weather-relay stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The owner token bounds every fetch; tearing it down cancels them all.
	owner := scope.NewOwner(ctx, "weather-relay")
	defer owner.Teardown()

	// Simulated source guarded by a circuit breaker.
	simOpts := []providers.SimulatedOption{
		providers.WithLatency(cfg.SimulatedLatency),
		providers.WithLogger(log),
	}
	if cfg.SimulatedSeed != 0 {
		simOpts = append(simOpts, providers.WithRand(rand.New(rand.NewPCG(cfg.SimulatedSeed, cfg.SimulatedSeed))))
	}
	source := providers.NewGuardedSource(
		providers.NewSimulatedSource(simOpts...),
		providers.BreakerConfig{
			MaxFailures: cfg.BreakerMaxFailures,
			OpenTimeout: cfg.BreakerOpenTimeout,
		},
		log,
	)

	// In-memory history of published packets with configured retention. The
	// recorder runs inside every publish so back-to-back packets are all kept.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	recorder := store.NewRecorder(memStore, log)

	cell := state.NewCell()
	ctrl := controller.New(source, cell, owner, controller.Options{
		DefaultLocation: cfg.DefaultLocation,
		Logger:          log,
		OnPublish:       recorder.Record,
	})

	// Observers live under the owner too and stop with it.
	observers := scope.Bind(owner).Child("observers")
	if _, err := observers.Go("log-state", func(ctx context.Context) {
		for st := range ctrl.Cell().Subscribe(ctx) {
			log.Debug("state observed", "scope", observers.Name(), "state", st.Kind().String(), "location", st.Location())
		}
	}); err != nil {
		return fmt.Errorf("start observer: %w", err)
	}

	// Scheduler that periodically re-triggers a fetch.
	sched := scheduler.New(cfg.ActivationLocation, cfg.RefreshInterval, ctrl, log)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()
	log.Info("scheduler started", "jobs", sched.Jobs(), "interval", cfg.RefreshInterval)

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-relay",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"service":     "weather-relay",
			"breaker":     source.State().String(),
			"owner":       owner.ID(),
			"ownerName":   owner.Name(),
			"ownerAlive":  owner.Alive(),
			"subscribers": cell.Subscribers(),
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, ctrl, memStore)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
		}
	}()

	// Activation: one fetch for the configured location.
	ctrl.OnActivate(cfg.ActivationLocation)

	<-ctx.Done()

	ctrl.OnTeardown()
	ctrl.Wait()
	observers.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
