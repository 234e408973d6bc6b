package filestore

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/geocoder89/mealplanner/internal/domain/user"
	"github.com/geocoder89/mealplanner/internal/observability"
)

// users.json is keyed by username. The record keeps the hash that
// user.User hides from JSON.
type userRecord struct {
	user.User
	PasswordHash string `json:"passwordHash"`
}

type UsersRepo struct {
	file *jsonFile[map[string]userRecord]
}

func NewUsersRepo(dir string, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{
		file: newJSONFile(filepath.Join(dir, "users.json"), func() map[string]userRecord {
			return make(map[string]userRecord)
		}, prom),
	}
}

func fromRecord(r userRecord) user.User {
	u := r.User
	u.PasswordHash = r.PasswordHash
	return u
}

func (r *UsersRepo) GetByUsername(ctx context.Context, username string) (u user.User, err error) {
	err = r.file.view("users.get_by_username", func(doc map[string]userRecord) error {
		rec, ok := doc[username]
		if !ok {
			return user.ErrNotFound
		}
		u = fromRecord(rec)
		return nil
	})
	return u, apperr.Storage("users.get_by_username", err)
}

func (r *UsersRepo) GetByChatID(ctx context.Context, chatID int64) (u user.User, err error) {
	err = r.file.view("users.get_by_chat", func(doc map[string]userRecord) error {
		for _, rec := range doc {
			if rec.ChatID != nil && *rec.ChatID == chatID {
				u = fromRecord(rec)
				return nil
			}
		}
		return user.ErrNotFound
	})
	return u, apperr.Storage("users.get_by_chat", err)
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	err := r.file.update("users.create", func(doc *map[string]userRecord) error {
		if _, exists := (*doc)[u.Username]; exists {
			return user.ErrDuplicateUsername
		}
		(*doc)[u.Username] = userRecord{User: u, PasswordHash: u.PasswordHash}
		return nil
	})
	if err != nil {
		return user.User{}, apperr.Storage("users.create", err)
	}
	return u, nil
}

// UpdatePasswordHash swaps the hash only if it still equals oldHash.
func (r *UsersRepo) UpdatePasswordHash(ctx context.Context, username, oldHash, newHash string) error {
	err := r.file.update("users.update_password", func(doc *map[string]userRecord) error {
		rec, ok := (*doc)[username]
		if !ok || rec.PasswordHash != oldHash {
			return user.ErrNotFound
		}
		rec.PasswordHash = newHash
		rec.UpdatedAt = time.Now().UTC()
		(*doc)[username] = rec
		return nil
	})
	return apperr.Storage("users.update_password", err)
}

// BindChat links chatID to username and unlinks it from anyone else.
func (r *UsersRepo) BindChat(ctx context.Context, username string, chatID int64) error {
	err := r.file.update("users.bind_chat", func(doc *map[string]userRecord) error {
		rec, ok := (*doc)[username]
		if !ok {
			return user.ErrNotFound
		}

		for name, other := range *doc {
			if name != username && other.ChatID != nil && *other.ChatID == chatID {
				other.ChatID = nil
				(*doc)[name] = other
			}
		}

		id := chatID
		rec.ChatID = &id
		rec.UpdatedAt = time.Now().UTC()
		(*doc)[username] = rec
		return nil
	})
	return apperr.Storage("users.bind_chat", err)
}

func (r *UsersRepo) SetActive(ctx context.Context, username string, active bool) error {
	err := r.file.update("users.set_active", func(doc *map[string]userRecord) error {
		rec, ok := (*doc)[username]
		if !ok {
			return user.ErrNotFound
		}
		rec.Active = active
		rec.UpdatedAt = time.Now().UTC()
		(*doc)[username] = rec
		return nil
	})
	return apperr.Storage("users.set_active", err)
}

func (r *UsersRepo) List(ctx context.Context) (users []user.User, err error) {
	err = r.file.view("users.list", func(doc map[string]userRecord) error {
		users = make([]user.User, 0, len(doc))
		for _, rec := range doc {
			users = append(users, fromRecord(rec))
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Storage("users.list", err)
	}

	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].Username < users[j].Username
	})
	return users, nil
}
