package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/mealplanner/internal/conversation"
	"github.com/geocoder89/mealplanner/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type ChatEngine interface {
	Handle(ctx context.Context, ev conversation.Event) conversation.Response
}

type ChatHandler struct {
	engine ChatEngine
}

func NewChatHandler(engine ChatEngine) *ChatHandler {
	return &ChatHandler{engine: engine}
}

// ChatEventRequest carries either a typed message or the token of a pressed
// button, never both.
type ChatEventRequest struct {
	ChatID int64  `json:"chatId" binding:"required"`
	Text   string `json:"text" binding:"max=4096"`
	Token  string `json:"token" binding:"max=256"`
}

func (h *ChatHandler) PostEvent(ctx *gin.Context) {
	var req ChatEventRequest
	if !BindJSON(ctx, &req) {
		return
	}
	ctx.Set(middlewares.CtxChatID, req.ChatID)

	if (req.Text == "") == (req.Token == "") {
		RespondBadRequest(ctx, "Exactly one of text or token is required", nil)
		return
	}

	ev := conversation.Event{ChatID: req.ChatID, Text: req.Text}
	if req.Token != "" {
		sel, err := conversation.ParseSelection(req.Token)
		if err != nil {
			RespondAppError(ctx, err)
			return
		}
		ev.Selection = &sel
	}

	ctx.JSON(http.StatusOK, h.engine.Handle(ctx.Request.Context(), ev))
}
