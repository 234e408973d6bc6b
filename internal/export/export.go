// Package export copies the meal plan and its change log to a sink outside
// the data directory.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/mealplanner/internal/report"
	"github.com/geocoder89/mealplanner/internal/sheet"
)

type Sink interface {
	Name() string
	Put(ctx context.Context, key, contentType string, body []byte) error
}

type Source interface {
	Snapshot(ctx context.Context) (*sheet.Grid, error)
	AuditLog(ctx context.Context) (string, error)
}

type Exporter struct {
	src  Source
	sink Sink
	log  *slog.Logger
	now  func() time.Time
}

func NewExporter(src Source, sink Sink, log *slog.Logger) *Exporter {
	return &Exporter{src: src, sink: sink, log: log, now: time.Now}
}

func (e *Exporter) SinkName() string { return e.sink.Name() }

// Result names the objects written by one run.
type Result struct {
	PlanKey  string
	AuditKey string
}

// Run writes a timestamped CSV of the plan and the matching change log.
func (e *Exporter) Run(ctx context.Context) (Result, error) {
	g, err := e.src.Snapshot(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("export: snapshot: %w", err)
	}

	body, err := report.CSV(g.Records())
	if err != nil {
		return Result{}, fmt.Errorf("export: encode: %w", err)
	}

	log, err := e.src.AuditLog(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("export: audit log: %w", err)
	}

	res := Result{PlanKey: report.ExportName(e.now())}
	res.AuditKey = strings.TrimSuffix(res.PlanKey, ".csv") + "-" + report.AuditDocName

	if err := e.sink.Put(ctx, res.PlanKey, "text/csv", body); err != nil {
		return Result{}, fmt.Errorf("export: put %s: %w", res.PlanKey, err)
	}
	if err := e.sink.Put(ctx, res.AuditKey, "text/plain; charset=utf-8", []byte(log)); err != nil {
		return Result{}, fmt.Errorf("export: put %s: %w", res.AuditKey, err)
	}

	e.log.InfoContext(ctx, "export written", "sink", e.sink.Name(), "plan", res.PlanKey, "rows", g.Len())
	return res, nil
}
