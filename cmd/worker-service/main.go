package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/genjob-notify/internal/bootstrap"
	"github.com/cuongbtq/genjob-notify/internal/config"
	"github.com/cuongbtq/genjob-notify/internal/worker"
	"github.com/cuongbtq/genjob-notify/internal/worker/storage"
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
	configPath := bootstrap.ConfigPath(*configFlag, "WORKER_SERVICE_CONFIG_PATH", "configs/worker-service/config.yaml")

	cfg, err := bootstrap.LoadConfig(configPath, (*config.Config).ValidateWorkerConfig)
	if err != nil {
		return err
	}

	appLogger, err := bootstrap.Logger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
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

	workerID := newWorkerID()
	workerInstance := worker.NewWorker(&worker.Config{
		Logger:            appLogger.WithComponent("worker").With(slog.String("worker_id", workerID)).Logger,
		Storage:           storage.NewStorage(dbClient.GetDB(), appLogger.WithComponent("storage").Logger),
		Source:            rabbitClient,
		Executor:          &worker.SimulatedExecutor{Duration: cfg.Worker.ExecutionTime, Steps: 4},
		WorkerID:          workerID,
		QueueName:         cfg.RabbitMQ.Queue.Name,
		Concurrency:       cfg.Worker.Concurrency,
		PrefetchCount:     cfg.RabbitMQ.Consumer.PrefetchCount,
		JobTimeout:        cfg.Worker.JobTimeout,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start returns once every in-flight job has been settled
	errChan := make(chan error, 1)
	go func() {
		errChan <- workerInstance.Start(ctx)
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
		workerInstance.Stop()

		select {
		case err := <-errChan:
			if err != nil {
				appLogger.Error("Worker error", slog.Any("error", err))
			} else {
				appLogger.Info("Worker stopped gracefully")
			}
		case <-time.After(cfg.Worker.ShutdownTimeout):
			appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
		}

	case runErr = <-errChan:
		if runErr != nil {
			appLogger.Error("Worker error", slog.Any("error", runErr))
		} else {
			appLogger.Warn("Worker stopped: delivery channel closed")
		}
	}

	appLogger.Info("Worker service shutdown complete")
	return runErr
}

// newWorkerID combines the hostname with a random suffix so replicas on one
// host stay distinguishable
func newWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
