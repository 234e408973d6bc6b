package middlewares

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ChatSecretHeader carries the secret shared with the chat gateway, the same
// way Telegram sends X-Telegram-Bot-Api-Secret-Token on webhook calls.
const ChatSecretHeader = "X-Chat-Secret-Token"

// RequireSharedSecret rejects requests whose header does not match secret.
// An empty secret rejects everything.
func RequireSharedSecret(header, secret string) gin.HandlerFunc {
	want := []byte(secret)

	return func(c *gin.Context) {
		got := []byte(c.GetHeader(header))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			abort(c, http.StatusUnauthorized, "unauthorized", "Missing or invalid "+header)
			return
		}
		c.Next()
	}
}
