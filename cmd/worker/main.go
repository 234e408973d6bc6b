package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/mealplanner/internal/app"
	"github.com/geocoder89/mealplanner/internal/config"
	"github.com/geocoder89/mealplanner/internal/export"
	"github.com/geocoder89/mealplanner/internal/observability"
	"github.com/geocoder89/mealplanner/internal/worker"
)

func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Env).With("component", "export-worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	sink, err := newSink(ctx, cfg)
	if err != nil {
		log.Error("export sink failed", "err", err)
		os.Exit(1)
	}

	w := worker.New(worker.Config{
		Interval:    cfg.ExportInterval,
		MaxAttempts: cfg.ExportAttempts,
	}, export.NewExporter(a.Planner, sink, log), observability.NewExportMetrics(), a.Prom, log)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerPort),
		Handler:           w.HealthHandler(a.Ready["sheet"]),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("health server failed", "err", err)
		}
	}()

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	shutdownCtx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	log.Info("worker shutdown complete")
}

func newSink(ctx context.Context, cfg config.Config) (export.Sink, error) {
	if cfg.UseS3Export() {
		return export.NewS3Sink(ctx, export.S3Config{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	}
	return export.NewFileSink(cfg.ExportDir)
}
