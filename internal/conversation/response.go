package conversation

import "github.com/geocoder89/mealplanner/internal/report"

// Event is one inbound message or button press from a chat.
type Event struct {
	ChatID    int64
	Text      string
	Selection *Selection
}

// Choice is one selectable button of a menu.
type Choice struct {
	Label string `json:"label"`
	Token string `json:"token"`
}

// Response is what the transport should render back to the chat.
type Response struct {
	Text          string           `json:"text"`
	Keyboard      [][]string       `json:"keyboard,omitempty"`
	Options       []Choice         `json:"options,omitempty"`
	DeleteInbound bool             `json:"deleteInbound,omitempty"`
	Document      *report.Document `json:"document,omitempty"`
	// Ignored is set for stale or out-of-set presses; nothing needs rendering.
	Ignored bool `json:"ignored,omitempty"`
}

func choice(label string, s Selection) Choice {
	return Choice{Label: label, Token: s.Token()}
}

func ignored() Response { return Response{Ignored: true} }
