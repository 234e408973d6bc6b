package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/geocoder89/mealplanner/internal/domain/menu"
	"github.com/geocoder89/mealplanner/internal/domain/plan"
	"github.com/geocoder89/mealplanner/internal/domain/user"
	"github.com/geocoder89/mealplanner/internal/http/middlewares"
	"github.com/geocoder89/mealplanner/internal/sheet"
	"github.com/gin-gonic/gin"
)

type PlanReader interface {
	Snapshot(ctx context.Context) (*sheet.Grid, error)
}

type UserLookup interface {
	Lookup(ctx context.Context, username string) (user.User, error)
}

type MenuReader interface {
	ListOptions(ctx context.Context, slot menu.Slot) (menu.DayMenu, error)
	Cycle() (weeks, days int)
}

type ScheduleHandler struct {
	plan  PlanReader
	users UserLookup
	menus MenuReader
}

func NewScheduleHandler(plan PlanReader, users UserLookup, menus MenuReader) *ScheduleHandler {
	return &ScheduleHandler{plan: plan, users: users, menus: menus}
}

type SlotChoice struct {
	Week    int    `json:"week"`
	Day     int    `json:"day"`
	DayName string `json:"dayName"`
	plan.Choice
}

type ScheduleRow struct {
	Name  string       `json:"name"`
	Slots []SlotChoice `json:"slots"`
}

type ScheduleResponse struct {
	Weeks int           `json:"weeks"`
	Days  int           `json:"days"`
	Rows  []ScheduleRow `json:"rows"`
}

// Get returns the whole plan; clients revalidate with If-None-Match.
func (h *ScheduleHandler) Get(ctx *gin.Context) {
	g, err := h.plan.Snapshot(ctx.Request.Context())
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	l := g.Layout()
	resp := ScheduleResponse{Weeks: l.Weeks, Days: l.Days, Rows: make([]ScheduleRow, 0, g.Len())}
	for i := 0; i < g.Len(); i++ {
		row, err := scheduleRow(g, i)
		if err != nil {
			RespondAppError(ctx, err)
			return
		}
		resp.Rows = append(resp.Rows, row)
	}

	RespondJSONWithETag(ctx, http.StatusOK, resp)
}

// Mine returns the caller's own row.
func (h *ScheduleHandler) Mine(ctx *gin.Context) {
	username, _ := middlewares.UsernameFromContext(ctx)

	u, err := h.users.Lookup(ctx.Request.Context(), username)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	g, err := h.plan.Snapshot(ctx.Request.Context())
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	i, ok := g.FindRow(u.FullName)
	if !ok {
		RespondAppError(ctx, plan.ErrUserRowNotFound)
		return
	}

	row, err := scheduleRow(g, i)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}
	RespondJSONWithETag(ctx, http.StatusOK, row)
}

func scheduleRow(g *sheet.Grid, i int) (ScheduleRow, error) {
	l := g.Layout()
	row := ScheduleRow{Name: g.Name(i), Slots: make([]SlotChoice, 0, l.Weeks*l.Days)}

	for w := 1; w <= l.Weeks; w++ {
		for d := 1; d <= l.Days; d++ {
			slot := menu.Slot{Week: w, Day: d}
			c, err := g.Choice(i, slot)
			if err != nil {
				return ScheduleRow{}, err
			}
			row.Slots = append(row.Slots, SlotChoice{Week: w, Day: d, DayName: menu.DayName(d), Choice: c})
		}
	}
	return row, nil
}

// Menu lists the options of one (week, day) slot.
func (h *ScheduleHandler) Menu(ctx *gin.Context) {
	week, errW := strconv.Atoi(ctx.Param("week"))
	day, errD := strconv.Atoi(ctx.Param("day"))
	if errW != nil || errD != nil {
		RespondBadRequest(ctx, "week and day must be numbers", nil)
		return
	}

	slot := menu.Slot{Week: week, Day: day}
	weeks, days := h.menus.Cycle()
	if err := slot.Validate(weeks, days); err != nil {
		RespondAppError(ctx, err)
		return
	}

	m, err := h.menus.ListOptions(ctx.Request.Context(), slot)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}
	RespondJSONWithETag(ctx, http.StatusOK, m)
}
