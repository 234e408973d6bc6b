package postgres

import (
	"context"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/geocoder89/mealplanner/internal/domain/menu"
	"github.com/geocoder89/mealplanner/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Options of a slot are ordered by insertion (seq); the index the engine
// shows is the position in that order.
type CatalogRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewCatalogRepo(pool *pgxpool.Pool, prom *observability.Prom) *CatalogRepo {
	return &CatalogRepo{pool: pool, prom: prom}
}

func (r *CatalogRepo) observe(op string, fn func() error) error {
	return apperr.Storage(op, r.prom.ObserveStore(op, fn))
}

func (r *CatalogRepo) Get(ctx context.Context, slot menu.Slot) (m menu.DayMenu, err error) {
	m = menu.DayMenu{Slot: slot, Meals: []menu.Option{}, Desserts: []menu.Option{}}

	err = r.observe("catalog.get", func() error {
		rows, e := r.pool.Query(ctx,
			`SELECT id, kind, name FROM menu_options
			 WHERE week = $1 AND day = $2
			 ORDER BY kind, seq`,
			slot.Week, slot.Day)
		if e != nil {
			return e
		}
		defer rows.Close()

		for rows.Next() {
			var (
				o    menu.Option
				kind menu.Kind
			)
			if e := rows.Scan(&o.ID, &kind, &o.Name); e != nil {
				return e
			}
			if kind == menu.KindDessert {
				m.Desserts = append(m.Desserts, o)
			} else {
				m.Meals = append(m.Meals, o)
			}
		}
		return rows.Err()
	})
	return
}

func (r *CatalogRepo) Append(ctx context.Context, slot menu.Slot, kind menu.Kind, opt menu.Option) error {
	return r.observe("catalog.append", func() error {
		_, e := r.pool.Exec(ctx,
			`INSERT INTO menu_options (id, week, day, kind, name) VALUES ($1,$2,$3,$4,$5)`,
			opt.ID, slot.Week, slot.Day, kind, opt.Name)
		return e
	})
}

func (r *CatalogRepo) RemoveAt(ctx context.Context, slot menu.Slot, kind menu.Kind, index int, expectedID string) (removed menu.Option, err error) {
	err = r.observe("catalog.remove", func() error {
		tx, e := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if e != nil {
			return e
		}
		defer func() { _ = tx.Rollback(ctx) }()

		rows, e := tx.Query(ctx,
			`SELECT id, name FROM menu_options
			 WHERE week = $1 AND day = $2 AND kind = $3
			 ORDER BY seq
			 FOR UPDATE`,
			slot.Week, slot.Day, kind)
		if e != nil {
			return e
		}

		opts, e := pgx.CollectRows(rows, func(row pgx.CollectableRow) (menu.Option, error) {
			var o menu.Option
			err := row.Scan(&o.ID, &o.Name)
			return o, err
		})
		if e != nil {
			return e
		}

		if index < 0 || index >= len(opts) {
			return menu.ErrIndexOutOfRange
		}
		if expectedID != "" && opts[index].ID != expectedID {
			return menu.ErrIndexOutOfRange
		}
		removed = opts[index]

		if _, e := tx.Exec(ctx, `DELETE FROM menu_options WHERE id = $1`, removed.ID); e != nil {
			return e
		}
		return tx.Commit(ctx)
	})
	return
}

func (r *CatalogRepo) Replace(ctx context.Context, menus []menu.DayMenu) error {
	return r.observe("catalog.replace", func() error {
		tx, e := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if e != nil {
			return e
		}
		defer func() { _ = tx.Rollback(ctx) }()

		for _, m := range menus {
			if _, e := tx.Exec(ctx,
				`DELETE FROM menu_options WHERE week = $1 AND day = $2`,
				m.Slot.Week, m.Slot.Day); e != nil {
				return e
			}

			batch := &pgx.Batch{}
			for _, kind := range []menu.Kind{menu.KindMeal, menu.KindDessert} {
				for _, o := range m.Options(kind) {
					batch.Queue(
						`INSERT INTO menu_options (id, week, day, kind, name) VALUES ($1,$2,$3,$4,$5)`,
						o.ID, m.Slot.Week, m.Slot.Day, kind, o.Name)
				}
			}
			if batch.Len() == 0 {
				continue
			}
			if e := tx.SendBatch(ctx, batch).Close(); e != nil {
				return e
			}
		}
		return tx.Commit(ctx)
	})
}
