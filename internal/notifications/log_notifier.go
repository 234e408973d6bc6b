package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier only logs. Used when no push endpoint is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier { return &LogNotifier{log: log} }

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.log.InfoContext(ctx, "notification.push", "chat_id", msg.ChatID, "text_len", len(msg.Text))
	return nil
}
