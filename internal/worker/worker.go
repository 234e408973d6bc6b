// Package worker runs the periodic export of the meal plan.
package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/geocoder89/mealplanner/internal/export"
	"github.com/geocoder89/mealplanner/internal/observability"
)

type Exporter interface {
	Run(ctx context.Context) (export.Result, error)
	SinkName() string
}

type Config struct {
	Interval    time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
}

type Worker struct {
	cfg     Config
	exp     Exporter
	metrics *observability.ExportMetrics
	prom    *observability.Prom
	log     *slog.Logger

	ready atomic.Bool
	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config, exp Exporter, metrics *observability.ExportMetrics, prom *observability.Prom, log *slog.Logger) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if metrics == nil {
		metrics = observability.NewExportMetrics()
	}
	return &Worker{
		cfg:     cfg,
		exp:     exp,
		metrics: metrics,
		prom:    prom,
		log:     log,
		sleep:   sleepCtx,
	}
}

// Run exports once at start and then every Interval until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.ready.Store(true)
	defer w.ready.Store(false)

	w.log.InfoContext(ctx, "export worker started", "interval", w.cfg.Interval, "sink", w.exp.SinkName())

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		_ = w.RunOnce(ctx)

		select {
		case <-ctx.Done():
			w.log.Info("export worker received shutdown signal")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce makes up to MaxAttempts tries with exponential backoff between them.
func (w *Worker) RunOnce(ctx context.Context) error {
	w.metrics.IncRuns()
	start := time.Now()

	var err error
	for attempt := 0; attempt < w.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			w.metrics.IncRetried()
			delay := Backoff(attempt-1, w.cfg.BaseBackoff)
			w.log.WarnContext(ctx, "export failed, retrying", "attempt", attempt, "delay", delay, "err", err)
			if serr := w.sleep(ctx, delay); serr != nil {
				err = serr
				break
			}
		}

		var res export.Result
		res, err = w.exp.Run(ctx)
		if err == nil {
			elapsed := time.Since(start)
			w.metrics.ObserveDuration(elapsed)
			w.metrics.MarkDone(time.Now())
			w.prom.ObserveExport(w.exp.SinkName(), "ok", elapsed)
			w.log.InfoContext(ctx, "export done", "plan", res.PlanKey, "attempts", attempt+1)
			return nil
		}
	}

	w.metrics.IncFailed()
	w.prom.ObserveExport(w.exp.SinkName(), "failed", time.Since(start))
	w.log.ErrorContext(ctx, "export gave up", "attempts", w.cfg.MaxAttempts, "err", err)
	return err
}

func (w *Worker) Ready() bool { return w.ready.Load() }

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
