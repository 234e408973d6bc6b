package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/mealplanner/internal/conversation"
	"github.com/geocoder89/mealplanner/internal/domain/menu"
	"github.com/geocoder89/mealplanner/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

type fakeEngine struct {
	got  []conversation.Event
	resp conversation.Response
}

func (f *fakeEngine) Handle(_ context.Context, ev conversation.Event) conversation.Response {
	f.got = append(f.got, ev)
	return f.resp
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	return do(r, http.MethodPost, path, "", body)
}

func chatRouter(engine handlers.ChatEngine) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/chat/events", handlers.NewChatHandler(engine).PostEvent)
	return r
}

func TestChat_TextEventIsForwarded(t *testing.T) {
	engine := &fakeEngine{resp: conversation.Response{
		Text:     "Welcome",
		Keyboard: [][]string{{"Login"}},
	}}

	w := postJSON(chatRouter(engine), "/chat/events", `{"chatId":42,"text":"/start"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if len(engine.got) != 1 {
		t.Fatalf("expected one event, got %d", len(engine.got))
	}
	ev := engine.got[0]
	if ev.ChatID != 42 || ev.Text != "/start" || ev.Selection != nil {
		t.Fatalf("unexpected event: %+v", ev)
	}

	var resp conversation.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Text != "Welcome" || len(resp.Keyboard) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestChat_TokenIsParsedAtTheBoundary(t *testing.T) {
	engine := &fakeEngine{}
	sel := conversation.Selection{Kind: conversation.SelectDay, Week: 2, Day: 3, Item: menu.KindMeal}

	w := postJSON(chatRouter(engine), "/chat/events", `{"chatId":7,"token":"`+sel.Token()+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	got := engine.got[0].Selection
	if got == nil || *got != sel {
		t.Fatalf("selection mismatch: got %+v want %+v", got, sel)
	}
}

func TestChat_RejectsMalformedEvents(t *testing.T) {
	cases := map[string]string{
		"missing chat":  `{"text":"hi"}`,
		"neither":       `{"chatId":1}`,
		"both":          `{"chatId":1,"text":"hi","token":"day|1|1|||"}`,
		"garbage token": `{"chatId":1,"token":"nope"}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			engine := &fakeEngine{}
			w := postJSON(chatRouter(engine), "/chat/events", body)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("got status %d, want 400, body=%s", w.Code, w.Body.String())
			}
			if len(engine.got) != 0 {
				t.Fatalf("engine must not see malformed events")
			}
		})
	}
}
