package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeNotifier struct {
	fail  bool
	calls []Message
}

func (f *fakeNotifier) Send(ctx context.Context, msg Message) error {
	f.calls = append(f.calls, msg)
	if f.fail {
		return errors.New("boom")
	}
	return nil
}

func TestProtectedNotifier_OpensAndRecovers(t *testing.T) {
	inner := &fakeNotifier{fail: true}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{Threshold: 2, Cooldown: time.Minute})
	n.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := n.Send(ctx, Message{ChatID: 1, Text: "x"}); err == nil {
			t.Fatalf("send %d: expected error", i)
		}
	}

	if err := n.Send(ctx, Message{ChatID: 1}); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if n.State() != Open {
		t.Fatalf("state = %s, want open", n.State())
	}
	if len(inner.calls) != 2 {
		t.Fatalf("open circuit must not reach inner notifier, calls=%d", len(inner.calls))
	}

	now = now.Add(2 * time.Minute)
	inner.fail = false
	if err := n.Send(ctx, Message{ChatID: 1}); err != nil {
		t.Fatalf("half-open trial: %v", err)
	}
	if n.State() != Closed {
		t.Fatalf("state = %s, want closed", n.State())
	}
}

func TestProtectedNotifier_FailedProbeReopens(t *testing.T) {
	inner := &fakeNotifier{fail: true}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{Threshold: 1, Cooldown: time.Minute})
	n.now = func() time.Time { return now }

	_ = n.Send(context.Background(), Message{ChatID: 1})
	now = now.Add(time.Minute)
	_ = n.Send(context.Background(), Message{ChatID: 1})

	if n.State() != Open || len(inner.calls) != 2 {
		t.Fatalf("state=%s calls=%d", n.State(), len(inner.calls))
	}
	if err := n.Send(context.Background(), Message{ChatID: 1}); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected cooldown to restart, got %v", err)
	}
}

func TestBroadcast_CountsFailures(t *testing.T) {
	ok := &fakeNotifier{}
	res := Broadcast(context.Background(), ok, []int64{1, 2, 3}, "hello")
	if res.Sent != 3 || res.Failed != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	bad := &fakeNotifier{fail: true}
	res = Broadcast(context.Background(), bad, []int64{1, 2}, "hello")
	if res.Sent != 0 || res.Failed != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestWebhookNotifier(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		if got.ChatID == 500 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second)

	if err := n.Send(context.Background(), Message{ChatID: 42, Text: "lunch is served"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.ChatID != 42 || got.Text != "lunch is served" {
		t.Fatalf("unexpected payload %+v", got)
	}

	if err := n.Send(context.Background(), Message{ChatID: 500}); err == nil {
		t.Fatalf("expected error on 502")
	}
}
