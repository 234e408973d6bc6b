package observability

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/jackc/pgx/v5/pgconn"
)

// ObserveStore times fn and counts its failures. Safe on a nil receiver.
func (p *Prom) ObserveStore(op string, fn func() error) error {
	if p == nil {
		return fn()
	}

	start := time.Now()
	err := fn()

	status := "ok"

	if err != nil {
		status = "error"
		p.StoreErrorsTotal.WithLabelValues(op, classifyStoreErr(err)).Inc()
	}
	p.StoreOpDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return err
}

func (p *Prom) ObserveLockWait(backend string, d time.Duration) {
	if p == nil {
		return
	}
	p.LockWait.WithLabelValues(backend).Observe(d.Seconds())
}

func (p *Prom) CountChatEvent(flow, outcome string) {
	if p == nil {
		return
	}
	if flow == "" {
		flow = "none"
	}
	p.ChatEvents.WithLabelValues(flow, outcome).Inc()
}

func classifyStoreErr(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return "unique_violation"
		case "40001":
			return "serialization_failure"
		case "40P01":
			return "deadlock"
		case "57014":
			return "query_canceled"
		default:
			return "pg_" + pgErr.Code
		}
	}

	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Kind != apperr.KindStorage {
		return string(ae.Kind)
	}

	if errors.Is(err, fs.ErrPermission) {
		return "permission"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "connection"):
		return "connection"
	case strings.Contains(msg, "seal"):
		return "tampered"
	default:
		return "unknown"
	}
}

func (p *Prom) SetActiveSessions(n int) {
	if p == nil {
		return
	}
	p.ActiveSessions.Set(float64(n))
}

func (p *Prom) ObserveExport(sink, result string, d time.Duration) {
	if p == nil {
		return
	}
	p.ExportDuration.WithLabelValues(sink, result).Observe(d.Seconds())
	p.ExportResults.WithLabelValues(sink, result).Inc()
}
