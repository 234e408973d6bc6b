package middlewares

import (
	"github.com/gin-gonic/gin"
)

// abort writes the same error envelope handlers.RespondError uses. The
// handlers package imports this one, so the shape is repeated here.
func abort(c *gin.Context, status int, code, message string) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if id := c.GetString(CtxRequestID); id != "" {
		body["requestId"] = id
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}
