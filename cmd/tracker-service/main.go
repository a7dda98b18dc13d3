package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/genjob-notify/internal/backend"
	"github.com/cuongbtq/genjob-notify/internal/bootstrap"
	"github.com/cuongbtq/genjob-notify/internal/config"
	"github.com/cuongbtq/genjob-notify/internal/gateway"
	"github.com/cuongbtq/genjob-notify/internal/tracker"
	"github.com/cuongbtq/genjob-notify/internal/tracker/scheduler"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	bootstrap.LoadEnv()

	configFlag := flag.String("config", "", "Path to configuration file")
	flag.Parse()
	configPath := bootstrap.ConfigPath(*configFlag, "TRACKER_SERVICE_CONFIG_PATH", "configs/tracker-service/config.yaml")

	cfg, err := bootstrap.LoadConfig(configPath, (*config.Config).ValidateTrackerConfig)
	if err != nil {
		return err
	}

	appLogger, err := bootstrap.Logger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting tracker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("backend", cfg.Backend.BaseURL),
	)

	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, appLogger.WithComponent("backend").Logger)

	g := gateway.New(gateway.Config{
		Tracker: tracker.Config{
			Scheduler: scheduler.Config{
				MinInterval:    cfg.Tracker.MinInterval,
				PollInterval:   cfg.Tracker.PollInterval,
				SubmitFollowUp: cfg.Tracker.SubmitFollowUp,
				MaxBackoff:     cfg.Tracker.MaxBackoff,
			},
			PageSize: cfg.Tracker.PageSize,
		},
		SurfaceRoot: cfg.Tracker.SurfaceRoot,
	}, func(userID string) gateway.UserBackend {
		return client.ForUser(userID)
	}, appLogger.WithComponent("gateway").Logger)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     gateway.SetupRouter(g, appLogger.Logger),
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout is left unset: it would cut long-lived websocket streams
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	appLogger.Info("Tracker service is running",
		slog.String("address", addr),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errChan:
		g.Shutdown()
		return fmt.Errorf("server failed: %w", err)
	}

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop trackers first so websocket clients are released before the listener closes
	g.Shutdown()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}
