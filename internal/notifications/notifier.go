package notifications

import "context"

// Message is one outbound push to a linked chat.
type Message struct {
	ChatID int64
	Text   string
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Result summarises a fan-out.
type Result struct {
	Sent   int
	Failed int
}

// Broadcast sends text to every chat, one at a time. Individual failures are
// counted, never returned, so one dead chat does not stop the rest.
func Broadcast(ctx context.Context, n Notifier, chatIDs []int64, text string) Result {
	var res Result
	for _, id := range chatIDs {
		if ctx.Err() != nil {
			res.Failed += len(chatIDs) - res.Sent - res.Failed
			break
		}
		if err := n.Send(ctx, Message{ChatID: id, Text: text}); err != nil {
			res.Failed++
			continue
		}
		res.Sent++
	}
	return res
}
