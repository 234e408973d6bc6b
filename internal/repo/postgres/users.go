package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/geocoder89/mealplanner/internal/domain/user"
	"github.com/geocoder89/mealplanner/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, username, full_name, role, password_hash, chat_id, active, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	return apperr.Storage(op, r.prom.ObserveStore(op, fn))
}

func scanUser(row pgx.Row) (u user.User, err error) {
	err = row.Scan(
		&u.ID,
		&u.Username,
		&u.FullName,
		&u.Role,
		&u.PasswordHash,
		&u.ChatID,
		&u.Active,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return
}

func (r *UsersRepo) getOne(ctx context.Context, op, where string, arg any) (u user.User, err error) {
	err = r.observe(op, func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
		if errors.Is(e, pgx.ErrNoRows) {
			return user.ErrNotFound
		}
		return e
	})
	return
}

func (r *UsersRepo) GetByUsername(ctx context.Context, username string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_username", "username = $1", username)
}

func (r *UsersRepo) GetByChatID(ctx context.Context, chatID int64) (user.User, error) {
	return r.getOne(ctx, "users.get_by_chat", "chat_id = $1", chatID)
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	err := r.observe("users.create", func() error {
		_, e := r.pool.Exec(ctx,
			`INSERT INTO users (`+userColumns+`)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			u.ID, u.Username, u.FullName, u.Role, u.PasswordHash, u.ChatID, u.Active, u.CreatedAt, u.UpdatedAt,
		)
		if IsUniqueViolation(e, "users_username_uniq") {
			return user.ErrDuplicateUsername
		}
		return e
	})
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

// UpdatePasswordHash is a compare-and-swap on the stored hash.
func (r *UsersRepo) UpdatePasswordHash(ctx context.Context, username, oldHash, newHash string) error {
	return r.observe("users.update_password", func() error {
		tag, e := r.pool.Exec(ctx,
			`UPDATE users SET password_hash = $3, updated_at = $4
			 WHERE username = $1 AND password_hash = $2`,
			username, oldHash, newHash, time.Now().UTC(),
		)
		if e != nil {
			return e
		}
		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}
		return nil
	})
}

// BindChat moves the chat binding to username in a single transaction.
func (r *UsersRepo) BindChat(ctx context.Context, username string, chatID int64) error {
	return r.observe("users.bind_chat", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		now := time.Now().UTC()

		_, err = tx.Exec(ctx,
			`UPDATE users SET chat_id = NULL, updated_at = $3 WHERE chat_id = $1 AND username <> $2`,
			chatID, username, now)
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`UPDATE users SET chat_id = $2, updated_at = $3 WHERE username = $1`,
			username, chatID, now)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}

		return tx.Commit(ctx)
	})
}

func (r *UsersRepo) SetActive(ctx context.Context, username string, active bool) error {
	return r.observe("users.set_active", func() error {
		tag, e := r.pool.Exec(ctx,
			`UPDATE users SET active = $2, updated_at = $3 WHERE username = $1`,
			username, active, time.Now().UTC())
		if e != nil {
			return e
		}
		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}
		return nil
	})
}

func (r *UsersRepo) List(ctx context.Context) (users []user.User, err error) {
	err = r.observe("users.list", func() error {
		rows, e := r.pool.Query(ctx,
			`SELECT `+userColumns+` FROM users ORDER BY created_at ASC, username ASC`)
		if e != nil {
			return e
		}
		defer rows.Close()

		users = make([]user.User, 0)
		for rows.Next() {
			u, e := scanUser(rows)
			if e != nil {
				return e
			}
			users = append(users, u)
		}
		return rows.Err()
	})
	return
}
