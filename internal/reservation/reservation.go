// Package reservation is the calendar keyed variant of the assignment store:
// at most one (meal, dessert) reservation per user and date.
package reservation

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/geocoder89/mealplanner/internal/domain/menu"
	"github.com/geocoder89/mealplanner/internal/domain/plan"
	"github.com/geocoder89/mealplanner/internal/validation"
)

type Repo interface {
	Upsert(ctx context.Context, r plan.Reservation) (plan.Reservation, error)
	Get(ctx context.Context, userID string, date time.Time) (plan.Reservation, error)
	ListByUser(ctx context.Context, userID string, from, to time.Time) ([]plan.Reservation, error)
}

type Catalog interface {
	ListOptions(ctx context.Context, slot menu.Slot) (menu.DayMenu, error)
}

// Calendar maps dates onto the recurring cycle. Start must be a Saturday;
// every cycle week runs Saturday to Wednesday.
type Calendar struct {
	Start time.Time
	Weeks int
	Days  int
}

func (c Calendar) SlotFor(date time.Time) (menu.Slot, error) {
	date = plan.DateOnly(date)
	start := plan.DateOnly(c.Start)

	offset := int(date.Sub(start).Hours() / 24)
	if offset < 0 {
		return menu.Slot{}, apperr.Validation("date is before the cycle start %s", start.Format(time.DateOnly))
	}

	weekday := offset % 7
	if weekday >= c.Days {
		return menu.Slot{}, plan.ErrNotServingDay
	}

	week := (offset/7)%c.Weeks + 1
	return menu.Slot{Week: week, Day: weekday + 1}, nil
}

type Service struct {
	repo     Repo
	catalog  Catalog
	calendar Calendar
	log      *slog.Logger
}

func NewService(repo Repo, catalog Catalog, cal Calendar, log *slog.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, calendar: cal, log: log}
}

func (s *Service) Calendar() Calendar { return s.calendar }

// Reserve validates the option ids against the slot the date falls on and
// replaces any existing reservation of the user for that date.
func (s *Service) Reserve(ctx context.Context, userID string, date time.Time, req plan.ReserveRequest) (plan.Reservation, error) {
	if err := validation.Struct(req); err != nil {
		return plan.Reservation{}, err
	}

	slot, err := s.calendar.SlotFor(date)
	if err != nil {
		return plan.Reservation{}, err
	}

	day, err := s.catalog.ListOptions(ctx, slot)
	if err != nil {
		return plan.Reservation{}, err
	}
	if _, ok := day.Find(menu.KindMeal, req.MealID); !ok {
		return plan.Reservation{}, menu.ErrOptionUnavailable
	}
	if req.DessertID != nil {
		if _, ok := day.Find(menu.KindDessert, *req.DessertID); !ok {
			return plan.Reservation{}, menu.ErrOptionUnavailable
		}
	}

	out, err := s.repo.Upsert(ctx, plan.NewReservation(userID, date, req))
	if err != nil {
		return plan.Reservation{}, err
	}

	s.log.InfoContext(ctx, "reservation saved",
		"user_id", userID, "date", out.Date.Format(time.DateOnly), "week", slot.Week, "day", slot.Day)
	return out, nil
}

func (s *Service) Get(ctx context.Context, userID string, date time.Time) (plan.Reservation, error) {
	return s.repo.Get(ctx, userID, plan.DateOnly(date))
}

// List returns the user's reservations in [from, to], both inclusive.
func (s *Service) List(ctx context.Context, userID string, from, to time.Time) ([]plan.Reservation, error) {
	from, to = plan.DateOnly(from), plan.DateOnly(to)
	if to.Before(from) {
		return nil, apperr.Validation("to must not be before from")
	}
	return s.repo.ListByUser(ctx, userID, from, to)
}
