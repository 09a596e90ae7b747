package main

import (
	"context"
	"errors"
	"os"
	"time"

	"cobros/internal/amqp"
	"cobros/internal/backend"
	"cobros/internal/cli"
	"cobros/internal/config"
	"cobros/internal/log"
	"cobros/internal/services"
	"cobros/internal/storage"
	"cobros/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.InfoContext(context.Background(), "Starting cobros-worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.ErrorContext(context.Background(), "Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.ErrorContext(context.Background(), "Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	ledger, err := backend.NewFactory(logger.Logger).CreateLedger(context.Background(), backendCfg)
	if err != nil {
		logger.ErrorContext(context.Background(), "Failed to initialize ledger", log.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.ErrorContext(context.Background(), "Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	processor := services.NewSyncProcessor(repo, ledger, cfg.VoucherBuilder(), services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
		BatchSize:    cfg.SyncBatchSize,
	})
	syncWorker := worker.NewSyncWorker(processor, cfg.SyncBatchSize)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.WarnContext(ctx, "Sync processor did not stop cleanly", log.FieldError, err)
		}
	})

	// Payments registered while the worker was down have no message left.
	logger.InfoContext(ctx, "Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.ErrorContext(ctx, "Failed startup sync check", log.FieldError, err)
	}
	processor.RetryFailed(ctx)

	if err := processor.Start(ctx); err != nil {
		logger.ErrorContext(ctx, "Failed to start sync processor", log.FieldError, err)
		os.Exit(1)
	}

	go func() {
		err := amqpClient.ConsumePaymentRegistered(ctx, syncWorker.HandlePaymentRegistered)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.ErrorContext(ctx, "Message consumption failed", log.FieldError, err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.InfoContext(context.Background(), "Worker stopped")
}
