package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/geocoder89/mealplanner/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type Authenticator interface {
	Login(ctx context.Context, username, password string) (user.User, error)
}

type TokenIssuer interface {
	GenerateAccessToken(userID, username, role string) (string, error)
	AccessTTL() time.Duration
}

type AuthHandler struct {
	users Authenticator
	jwt   TokenIssuer
}

func NewAuthHandler(users Authenticator, jwt TokenIssuer) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwt}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required,max=32"`
	Password string `json:"password" binding:"required,max=128"`
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.users.Login(cctx, req.Username, req.Password)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindAuth {
			RespondUnauthorized(ctx, "invalid_credentials", apperr.Message(err))
			return
		}
		RespondAppError(ctx, err)
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(u.ID, u.Username, string(u.Role))
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken": accessToken,
		"tokenType":   "Bearer",
		"expiresIn":   int(h.jwt.AccessTTL().Seconds()),
	})
}
