// Package audit keeps the append-only change log of assignment writes.
package audit

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/geocoder89/mealplanner/internal/domain/plan"
	"github.com/geocoder89/mealplanner/internal/observability"
)

const (
	timeLayout = "2006/01/02 - 15:04:05"
	separator  = "----------------------------------------"
)

// Log is a human readable text file that only ever grows.
type Log struct {
	path string
	mu   sync.Mutex
	prom *observability.Prom
	now  func() time.Time
}

func Open(path string, prom *observability.Prom) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperr.Storage("audit.open", err)
	}

	l := &Log{path: path, prom: prom, now: time.Now}

	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		header := fmt.Sprintf("Meal plan change log\nCreated: %s\n%s\n\n",
			l.now().Format(timeLayout), strings.Repeat("=", len(separator)))
		if err := l.write(header); err != nil {
			return nil, apperr.Storage("audit.create", err)
		}
	} else if err != nil {
		return nil, apperr.Storage("audit.open", err)
	}

	return l, nil
}

func (l *Log) Path() string { return l.path }

// Append writes one entry. The entry time defaults to now.
func (l *Log) Append(ctx context.Context, e plan.AuditEntry) error {
	if e.At.IsZero() {
		e.At = l.now()
	}

	err := l.prom.ObserveStore("audit.append", func() error {
		return l.write(Format(e))
	})
	return apperr.Storage("audit.append", err)
}

// Read returns the whole log.
func (l *Log) Read(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := os.ReadFile(l.path)
	if err != nil {
		return "", apperr.Storage("audit.read", err)
	}
	return string(b), nil
}

func (l *Log) write(s string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	if _, err := f.WriteString(s); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Format renders one entry the way it appears in the file.
func Format(e plan.AuditEntry) string {
	who := e.Actor
	if e.OnBehalfOf != "" && e.OnBehalfOf != e.Actor {
		who = fmt.Sprintf("%s (edit for %s)", e.Actor, e.OnBehalfOf)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "User: %s\n", who)
	if e.Kind != "" {
		fmt.Fprintf(&b, "Change: %s, %s = %s\n", e.Slot, e.Kind, e.Value)
	}
	fmt.Fprintf(&b, "Time: %s\n", e.At.Format(timeLayout))
	b.WriteString(separator)
	b.WriteString("\n")
	return b.String()
}
