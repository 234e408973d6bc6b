package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/geocoder89/mealplanner/internal/domain/plan"
	"github.com/geocoder89/mealplanner/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReservationsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewReservationsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ReservationsRepo {
	return &ReservationsRepo{pool: pool, prom: prom}
}

func (r *ReservationsRepo) observe(op string, fn func() error) error {
	return apperr.Storage(op, r.prom.ObserveStore(op, fn))
}

// Upsert replaces every field of an existing (user, day) reservation except
// id and created_at. Concurrent callers serialize on the unique constraint;
// the last one to commit wins.
func (r *ReservationsRepo) Upsert(ctx context.Context, in plan.Reservation) (out plan.Reservation, err error) {
	in.Date = plan.DateOnly(in.Date)

	err = r.observe("reservations.upsert", func() error {
		return r.pool.QueryRow(ctx, `
		INSERT INTO reservations (id, user_id, day, meal_id, dessert_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT ON CONSTRAINT reservations_user_day_uniq DO UPDATE
		SET meal_id    = EXCLUDED.meal_id,
		    dessert_id = EXCLUDED.dessert_id,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, user_id, day, meal_id, dessert_id, created_at, updated_at
		`, in.ID, in.UserID, in.Date, in.MealID, in.DessertID, in.CreatedAt, in.UpdatedAt,
		).Scan(&out.ID, &out.UserID, &out.Date, &out.MealID, &out.DessertID, &out.CreatedAt, &out.UpdatedAt)
	})
	return
}

func (r *ReservationsRepo) Get(ctx context.Context, userID string, date time.Time) (out plan.Reservation, err error) {
	err = r.observe("reservations.get", func() error {
		e := r.pool.QueryRow(ctx, `
		SELECT id, user_id, day, meal_id, dessert_id, created_at, updated_at
		FROM reservations WHERE user_id = $1 AND day = $2
		`, userID, plan.DateOnly(date),
		).Scan(&out.ID, &out.UserID, &out.Date, &out.MealID, &out.DessertID, &out.CreatedAt, &out.UpdatedAt)
		if errors.Is(e, pgx.ErrNoRows) {
			return plan.ErrReservationNotFound
		}
		return e
	})
	return
}

func (r *ReservationsRepo) ListByUser(ctx context.Context, userID string, from, to time.Time) (out []plan.Reservation, err error) {
	err = r.observe("reservations.list_by_user", func() error {
		rows, e := r.pool.Query(ctx, `
		SELECT id, user_id, day, meal_id, dessert_id, created_at, updated_at
		FROM reservations
		WHERE user_id = $1 AND day BETWEEN $2 AND $3
		ORDER BY day ASC
		`, userID, plan.DateOnly(from), plan.DateOnly(to))
		if e != nil {
			return e
		}

		out, e = pgx.CollectRows(rows, func(row pgx.CollectableRow) (plan.Reservation, error) {
			var res plan.Reservation
			err := row.Scan(&res.ID, &res.UserID, &res.Date, &res.MealID, &res.DessertID, &res.CreatedAt, &res.UpdatedAt)
			return res, err
		})
		return e
	})
	return
}
