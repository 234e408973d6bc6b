package filestore

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/geocoder89/mealplanner/internal/domain/plan"
	"github.com/geocoder89/mealplanner/internal/observability"
)

type ReservationsRepo struct {
	file *jsonFile[[]plan.Reservation]
}

func NewReservationsRepo(dir string, prom *observability.Prom) *ReservationsRepo {
	return &ReservationsRepo{
		file: newJSONFile(filepath.Join(dir, "reservations.json"), func() []plan.Reservation {
			return nil
		}, prom),
	}
}

// Upsert keeps at most one reservation per (user, date). An existing one is
// replaced wholesale; only its id and creation time survive.
func (r *ReservationsRepo) Upsert(ctx context.Context, in plan.Reservation) (out plan.Reservation, err error) {
	in.Date = plan.DateOnly(in.Date)

	err = r.file.update("reservations.upsert", func(doc *[]plan.Reservation) error {
		for i, existing := range *doc {
			if existing.UserID == in.UserID && existing.Date.Equal(in.Date) {
				in.ID = existing.ID
				in.CreatedAt = existing.CreatedAt
				(*doc)[i] = in
				out = in
				return nil
			}
		}
		*doc = append(*doc, in)
		out = in
		return nil
	})
	return out, apperr.Storage("reservations.upsert", err)
}

func (r *ReservationsRepo) Get(ctx context.Context, userID string, date time.Time) (out plan.Reservation, err error) {
	date = plan.DateOnly(date)

	err = r.file.view("reservations.get", func(doc []plan.Reservation) error {
		for _, res := range doc {
			if res.UserID == userID && res.Date.Equal(date) {
				out = res
				return nil
			}
		}
		return plan.ErrReservationNotFound
	})
	return out, apperr.Storage("reservations.get", err)
}

// ListByUser returns reservations with from <= date <= to, oldest first.
func (r *ReservationsRepo) ListByUser(ctx context.Context, userID string, from, to time.Time) (out []plan.Reservation, err error) {
	from, to = plan.DateOnly(from), plan.DateOnly(to)

	err = r.file.view("reservations.list_by_user", func(doc []plan.Reservation) error {
		out = make([]plan.Reservation, 0)
		for _, res := range doc {
			if res.UserID != userID || res.Date.Before(from) || res.Date.After(to) {
				continue
			}
			out = append(out, res)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Storage("reservations.list_by_user", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
