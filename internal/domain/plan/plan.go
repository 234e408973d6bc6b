package plan

import (
	"time"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/geocoder89/mealplanner/internal/domain/menu"
	"github.com/google/uuid"
)

// Choice is the content of one (week, day, user) cell pair. Empty means unset.
type Choice struct {
	Meal    string `json:"meal"`
	Dessert string `json:"dessert"`
}

func (c Choice) Get(kind menu.Kind) string {
	if kind == menu.KindDessert {
		return c.Dessert
	}
	return c.Meal
}

// AuditEntry records one successful assignment write.
type AuditEntry struct {
	Actor      string    `json:"actor"`
	OnBehalfOf string    `json:"onBehalfOf,omitempty"`
	Slot       menu.Slot `json:"slot"`
	Kind       menu.Kind `json:"kind"`
	Value      string    `json:"value"`
	At         time.Time `json:"at"`
}

var (
	ErrUserRowNotFound     = apperr.New(apperr.KindNotFound, "this user has no row in the meal plan")
	ErrReservationNotFound = apperr.New(apperr.KindNotFound, "reservation not found")
	ErrNotServingDay       = apperr.New(apperr.KindValidation, "meals are only served Saturday to Wednesday")
)

// Reservation is the calendar keyed variant: one per (user, date).
type Reservation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Date      time.Time `json:"date"`
	MealID    string    `json:"mealId"`
	DessertID *string   `json:"dessertId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ReserveRequest struct {
	MealID    string  `json:"mealId" binding:"required,uuid" validate:"required,uuid"`
	DessertID *string `json:"dessertId" binding:"omitempty,uuid" validate:"omitempty,uuid"`
}

// DateOnly truncates t to midnight UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func NewReservation(userID string, date time.Time, req ReserveRequest) Reservation {
	now := time.Now().UTC()
	return Reservation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Date:      DateOnly(date),
		MealID:    req.MealID,
		DessertID: req.DessertID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
