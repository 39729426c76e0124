package main

import (
	"context"
	"errors"
	"os"

	"talky/internal/amqp"
	"talky/internal/analytics"
	"talky/internal/cli"
	"talky/internal/config"
	applog "talky/internal/log"
	gsheet "talky/internal/records/google"
	"talky/internal/storage"
	"talky/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	logger.Info("Starting talky-worker", "queue", cfg.AMQPQueue, "db_path", cfg.SQLiteDBPath)
	if err := run(cfg, logger); err != nil {
		logger.Error("Worker exited with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, stop := cli.SignalContext()
	defer stop()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPUploadRoutingKey)
	if err != nil {
		return err
	}
	defer client.Close()

	var opts []worker.Option
	if cfg.GoogleSpreadsheetID != "" {
		sheets, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			return err
		}
		opts = append(opts, worker.WithMirror(sheets))
		logger.Info("Mirroring extracted records to Google Sheets", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets mirror disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	engine := analytics.New(analytics.WithLocation(cfg.Location()))
	ingest := worker.NewIngestWorker(repo, engine, opts...)

	// Blocks until the signal context ends; reconnects internally.
	err = client.ConsumeRecordsExtracted(ctx, ingest.HandleRecordsExtracted)
	if errors.Is(err, context.Canceled) {
		logger.Info("Shutdown signal received")
		return nil
	}
	return err
}
