package middlewares

// gin context keys
const (
	CtxRequestID = "request_id"
	CtxChatID    = "chat_id"

	ctxUserIDKey   = "auth.userID"
	ctxUsernameKey = "auth.username"
	ctxRoleKey     = "auth.role"
)
