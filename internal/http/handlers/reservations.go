package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/mealplanner/internal/domain/plan"
	"github.com/geocoder89/mealplanner/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type ReservationService interface {
	Reserve(ctx context.Context, userID string, date time.Time, req plan.ReserveRequest) (plan.Reservation, error)
	Get(ctx context.Context, userID string, date time.Time) (plan.Reservation, error)
	List(ctx context.Context, userID string, from, to time.Time) ([]plan.Reservation, error)
}

type ReservationHandler struct {
	svc ReservationService
	now func() time.Time
}

func NewReservationHandler(svc ReservationService) *ReservationHandler {
	return &ReservationHandler{svc: svc, now: time.Now}
}

func parseDate(ctx *gin.Context, raw, field string) (time.Time, bool) {
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		RespondBadRequest(ctx, field+" must be a date like 2026-01-03", nil)
		return time.Time{}, false
	}
	return d, true
}

// Put creates or replaces the caller's reservation for :date.
func (h *ReservationHandler) Put(ctx *gin.Context) {
	date, ok := parseDate(ctx, ctx.Param("date"), "date")
	if !ok {
		return
	}

	var req plan.ReserveRequest
	if !BindJSON(ctx, &req) {
		return
	}

	userID, _ := middlewares.UserIDFromContext(ctx)
	res, err := h.svc.Reserve(ctx.Request.Context(), userID, date, req)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, res)
}

func (h *ReservationHandler) Get(ctx *gin.Context) {
	date, ok := parseDate(ctx, ctx.Param("date"), "date")
	if !ok {
		return
	}

	userID, _ := middlewares.UserIDFromContext(ctx)
	res, err := h.svc.Get(ctx.Request.Context(), userID, date)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, res)
}

// List defaults to the next four weeks.
func (h *ReservationHandler) List(ctx *gin.Context) {
	from := plan.DateOnly(h.now())
	to := from.AddDate(0, 0, 27)

	if v := ctx.Query("from"); v != "" {
		d, ok := parseDate(ctx, v, "from")
		if !ok {
			return
		}
		from = d
	}
	if v := ctx.Query("to"); v != "" {
		d, ok := parseDate(ctx, v, "to")
		if !ok {
			return
		}
		to = d
	}

	userID, _ := middlewares.UserIDFromContext(ctx)
	items, err := h.svc.List(ctx.Request.Context(), userID, from, to)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}
