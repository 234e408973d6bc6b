package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/mealplanner/internal/domain/user"
	"github.com/geocoder89/mealplanner/internal/report"
	"github.com/geocoder89/mealplanner/internal/sheet"
	"github.com/gin-gonic/gin"
)

type UserAdmin interface {
	CreateUser(ctx context.Context, req user.CreateUserRequest) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	SetActive(ctx context.Context, username string, active bool) error
}

type PlanAdmin interface {
	Snapshot(ctx context.Context) (*sheet.Grid, error)
	AddRow(ctx context.Context, name string) (bool, error)
	AuditLog(ctx context.Context) (string, error)
}

type AdminHandler struct {
	users UserAdmin
	plan  PlanAdmin
	log   *slog.Logger
	now   func() time.Time
}

func NewAdminHandler(users UserAdmin, plan PlanAdmin, log *slog.Logger) *AdminHandler {
	return &AdminHandler{users: users, plan: plan, log: log, now: time.Now}
}

type UserView struct {
	Username  string    `json:"username"`
	FullName  string    `json:"fullName"`
	Role      user.Role `json:"role"`
	Active    bool      `json:"active"`
	Connected bool      `json:"connected"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserView(u user.User) UserView {
	return UserView{
		Username:  u.Username,
		FullName:  u.FullName,
		Role:      u.Role,
		Active:    u.Active,
		Connected: u.Linked(),
		CreatedAt: u.CreatedAt,
	}
}

func (h *AdminHandler) ListUsers(ctx *gin.Context) {
	users, err := h.users.ListUsers(ctx.Request.Context())
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	out := make([]UserView, 0, len(users))
	for _, u := range users {
		out = append(out, toUserView(u))
	}
	ctx.JSON(http.StatusOK, gin.H{"items": out, "count": len(out)})
}

// CreateUser registers the account and gives it a row in the plan.
func (h *AdminHandler) CreateUser(ctx *gin.Context) {
	var req user.CreateUserRequest
	if !BindJSON(ctx, &req) {
		return
	}

	u, err := h.users.CreateUser(ctx.Request.Context(), req)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	if _, err := h.plan.AddRow(ctx.Request.Context(), u.FullName); err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "user created without plan row", "username", u.Username, "err", err)
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, toUserView(u))
}

type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (h *AdminHandler) SetActive(ctx *gin.Context) {
	var req SetActiveRequest
	if !BindJSON(ctx, &req) {
		return
	}

	if err := h.users.SetActive(ctx.Request.Context(), ctx.Param("username"), *req.Active); err != nil {
		RespondAppError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *AdminHandler) AuditLog(ctx *gin.Context) {
	text, err := h.plan.AuditLog(ctx.Request.Context())
	if err != nil {
		RespondAppError(ctx, err)
		return
	}
	ctx.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

func (h *AdminHandler) ExportCSV(ctx *gin.Context) {
	g, err := h.plan.Snapshot(ctx.Request.Context())
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	body, err := report.CSV(g.Records())
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.Header("Content-Disposition", `attachment; filename="`+report.ExportName(h.now())+`"`)
	ctx.Data(http.StatusOK, "text/csv; charset=utf-8", body)
}
