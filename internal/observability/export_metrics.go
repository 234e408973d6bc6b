package observability

import (
	"sync/atomic"
	"time"
)

// ExportMetrics keeps in-process counters for the export worker's readiness page.
type ExportMetrics struct {
	runs    atomic.Uint64
	done    atomic.Uint64
	failed  atomic.Uint64
	retried atomic.Uint64

	// duration stats (nanoseconds)
	durationCount atomic.Uint64
	durationTotal atomic.Int64
	durationMax   atomic.Int64

	lastSuccess atomic.Int64 // unix nanos
}

func NewExportMetrics() *ExportMetrics {
	return &ExportMetrics{}
}

func (m *ExportMetrics) IncRuns()    { m.runs.Add(1) }
func (m *ExportMetrics) IncFailed()  { m.failed.Add(1) }
func (m *ExportMetrics) IncRetried() { m.retried.Add(1) }

func (m *ExportMetrics) MarkDone(at time.Time) {
	m.done.Add(1)
	m.lastSuccess.Store(at.UnixNano())
}

func (m *ExportMetrics) ObserveDuration(d time.Duration) {
	ns := d.Nanoseconds()
	m.durationCount.Add(1)
	m.durationTotal.Add(ns)

	for {
		curr := m.durationMax.Load()

		if ns <= curr {
			return
		}

		if m.durationMax.CompareAndSwap(curr, ns) {
			return
		}
	}
}

type ExportMetricsSnapshot struct {
	Runs            uint64        `json:"runs"`
	Done            uint64        `json:"done"`
	Failed          uint64        `json:"failed"`
	Retried         uint64        `json:"retried"`
	AverageDuration time.Duration `json:"averageDurationNs"`
	MaxDuration     time.Duration `json:"maxDurationNs"`
	LastSuccess     *time.Time    `json:"lastSuccess,omitempty"`
}

func (m *ExportMetrics) Snapshot() ExportMetricsSnapshot {
	count := m.durationCount.Load()
	total := m.durationTotal.Load()

	var avg time.Duration
	if count > 0 {
		avg = time.Duration(total / int64(count))
	}

	s := ExportMetricsSnapshot{
		Runs:            m.runs.Load(),
		Done:            m.done.Load(),
		Failed:          m.failed.Load(),
		Retried:         m.retried.Load(),
		AverageDuration: avg,
		MaxDuration:     time.Duration(m.durationMax.Load()),
	}

	if ns := m.lastSuccess.Load(); ns > 0 {
		t := time.Unix(0, ns).UTC()
		s.LastSuccess = &t
	}
	return s
}
