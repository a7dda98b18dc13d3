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

	"github.com/cuongbtq/genjob-notify/internal/api/handler"
	"github.com/cuongbtq/genjob-notify/internal/api/router"
	"github.com/cuongbtq/genjob-notify/internal/api/storage"
	"github.com/cuongbtq/genjob-notify/internal/bootstrap"
	"github.com/cuongbtq/genjob-notify/internal/config"
	"github.com/cuongbtq/genjob-notify/shared/postgresql"
	"github.com/cuongbtq/genjob-notify/shared/rabbitmq"
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
	configPath := bootstrap.ConfigPath(*configFlag, "API_SERVICE_CONFIG_PATH", "configs/api-service/config.yaml")

	cfg, err := bootstrap.LoadConfig(configPath, (*config.Config).ValidateAPIConfig)
	if err != nil {
		return err
	}

	appLogger, err := bootstrap.Logger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := bootstrap.Postgres(&cfg.Database, appLogger.WithComponent("postgres").Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	rabbitClient, err := bootstrap.RabbitMQ(&cfg.RabbitMQ, appLogger.WithComponent("rabbitmq").Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      initRouter(cfg, appLogger.Logger, dbClient, rabbitClient),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	}

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, dbClient *postgresql.Client, rabbitClient *rabbitmq.Client) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(&handler.Dependencies{
		Logger:         logger,
		Storage:        storage.NewStorage(dbClient),
		Publisher:      rabbitClient,
		MaxRetries:     cfg.Generation.MaxRetries,
		TimeoutSeconds: cfg.Generation.TimeoutSeconds,
		HealthCheck:    dbClient.HealthCheck,
	})
}
