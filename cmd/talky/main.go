package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"talky/internal/amqp"
	"talky/internal/analytics"
	"talky/internal/backend"
	"talky/internal/cache"
	"talky/internal/cli"
	"talky/internal/config"
	"talky/internal/documents"
	apphttp "talky/internal/http"
	applog "talky/internal/log"
	"talky/internal/middleware/ratelimit"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, stop := cli.SignalContext()
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger).Create(ctx, bcfg)
	if err != nil {
		return err
	}
	defer res.Close()

	engine := analytics.New(analytics.WithLocation(cfg.Location()))
	snapshots := cache.NewSnapshotCache(cfg.ReportCacheSize, cfg.ReportCacheTTL, engine, res.Records.ListRecords)

	janitor := cache.NewJanitor(snapshots)
	go janitor.Run(ctx, time.Minute)

	deps := apphttp.Deps{
		Engine:    engine,
		Snapshots: snapshots,
		Documents: res.Documents,
		Ready:     res.Ping,
		Logger:    logger,
	}

	if cfg.GCSBucket != "" {
		uploader, cleanup, err := newUploader(ctx, cfg, res.Documents, logger)
		if err != nil {
			return err
		}
		defer cleanup()
		deps.Uploader = uploader
	} else {
		logger.Info("Document uploads disabled - no GCS_BUCKET provided")
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, deps, serverOptions(cfg))
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting talky server", "port", cfg.Port, "backend", cfg.DataBackend, "timezone", cfg.ReportTimezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-janitor.Done()
	return nil
}

func serverOptions(cfg *config.Config) apphttp.Options {
	return apphttp.Options{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		TrustedProxies:     cfg.TrustedProxies,
		MaxUploadBytes:     cfg.UploadMaxBytes,
		UploadRateLimit: ratelimit.Config{
			Requests: cfg.UploadRateLimit,
			Window:   cfg.UploadRateWindow,
		},
	}
}

// newUploader wires GCS storage, the optional document registry and, when
// AMQP is configured, the upload notifier.
func newUploader(ctx context.Context, cfg *config.Config, registry documents.Registry, logger *applog.Logger) (*documents.Uploader, func(), error) {
	writer, closeGCS, err := documents.NewGCSWriter(ctx, cfg.GCSBucket)
	if err != nil {
		return nil, nil, err
	}
	closers := []func() error{closeGCS}

	opts := []documents.Option{documents.WithMaxBytes(cfg.UploadMaxBytes)}
	if registry != nil {
		opts = append(opts, documents.WithRegistry(registry))
	}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPUploadRoutingKey)
		if err != nil {
			// Uploads still work; extraction picks the objects up later.
			logger.Warn("Failed to initialize AMQP client, uploads will not be announced", applog.FieldError, err)
		} else {
			opts = append(opts, documents.WithNotifier(client))
			closers = append(closers, client.Close)
		}
	}
	logger.Info("Document uploads enabled", "bucket", cfg.GCSBucket, "notify", len(closers) > 1)

	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("Cleanup failed", applog.FieldError, err)
			}
		}
	}
	return documents.NewUploader(writer, opts...), cleanup, nil
}
