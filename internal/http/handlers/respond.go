package handlers

import (
	"net/http"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/geocoder89/mealplanner/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	if id := ctx.GetString(middlewares.CtxRequestID); id != "" {
		return id
	}
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondUnauthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

// RespondAppError maps a classified domain error onto the envelope. Storage
// failures never leak their text to the client.
func RespondAppError(ctx *gin.Context, err error) {
	msg := apperr.Message(err)

	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		RespondBadRequest(ctx, msg, nil)
	case apperr.KindNotFound:
		RespondNotFound(ctx, msg)
	case apperr.KindConflict:
		RespondConflict(ctx, "conflict", msg)
	case apperr.KindAuth:
		RespondError(ctx, http.StatusForbidden, "forbidden", msg, nil)
	default:
		_ = ctx.Error(err)
		RespondInternal(ctx, "Something went wrong, please try again later.")
	}
}
