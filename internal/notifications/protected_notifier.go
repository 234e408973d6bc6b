package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("notifier: push endpoint unavailable")

type BreakerState int

const (
	Closed BreakerState = iota
	Open
	Probing
)

func (s BreakerState) String() string {
	switch s {
	case Open:
		return "open"
	case Probing:
		return "probing"
	default:
		return "closed"
	}
}

type ProtectedNotifierConfig struct {
	Timeout   time.Duration
	Threshold int
	Cooldown  time.Duration
	Log       *slog.Logger
}

// ProtectedNotifier stops calling a failing push endpoint for Cooldown after
// Threshold consecutive failures, then lets a single probe through.
type ProtectedNotifier struct {
	inner Notifier
	cfg   ProtectedNotifierConfig
	now   func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	retryAt  time.Time
}

func NewProtectedNotifier(inner Notifier, cfg ProtectedNotifierConfig) *ProtectedNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &ProtectedNotifier{inner: inner, cfg: cfg, now: time.Now}
}

func (n *ProtectedNotifier) State() BreakerState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *ProtectedNotifier) Send(ctx context.Context, msg Message) error {
	if !n.admit() {
		return ErrCircuitOpen
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	err := n.inner.Send(ctx, msg)
	cancel()

	n.record(err)
	return err
}

func (n *ProtectedNotifier) admit() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case Open:
		if n.now().Before(n.retryAt) {
			return false
		}
		n.state = Probing
		return true
	case Probing:
		// one probe at a time
		return false
	default:
		return true
	}
}

func (n *ProtectedNotifier) record(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err == nil {
		if n.state != Closed {
			n.cfg.Log.Info("push endpoint recovered")
		}
		n.state, n.failures = Closed, 0
		return
	}

	n.failures++
	if n.state == Probing || n.failures >= n.cfg.Threshold {
		if n.state != Open {
			n.cfg.Log.Warn("push endpoint failing, pausing sends", "failures", n.failures, "cooldown", n.cfg.Cooldown, "err", err)
		}
		n.state = Open
		n.retryAt = n.now().Add(n.cfg.Cooldown)
	}
}
