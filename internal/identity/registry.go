// Package identity owns users, their credentials and their chat binding.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/geocoder89/mealplanner/internal/domain/user"
	"github.com/geocoder89/mealplanner/internal/security"
	"github.com/geocoder89/mealplanner/internal/validation"
)

type UsersRepo interface {
	GetByUsername(ctx context.Context, username string) (user.User, error)
	GetByChatID(ctx context.Context, chatID int64) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
	UpdatePasswordHash(ctx context.Context, username, oldHash, newHash string) error
	BindChat(ctx context.Context, username string, chatID int64) error
	SetActive(ctx context.Context, username string, active bool) error
	List(ctx context.Context) ([]user.User, error)
}

var dummyHash = sync.OnceValue(func() string {
	h, _ := security.HashPassword("no-such-user")
	return h
})

type Registry struct {
	repo UsersRepo
	log  *slog.Logger

	// serializes the full name check with the insert
	createMu sync.Mutex
}

func NewRegistry(repo UsersRepo, log *slog.Logger) *Registry {
	return &Registry{repo: repo, log: log}
}

// Authenticate checks credentials and links chatID to the user. Unknown,
// inactive and wrong-password logins all fail the same way.
func (r *Registry) Authenticate(ctx context.Context, username, password string, chatID int64) (user.User, error) {
	u, err := r.checkCredentials(ctx, strings.TrimSpace(username), password)
	if err != nil {
		return user.User{}, err
	}

	if err := r.repo.BindChat(ctx, u.Username, chatID); err != nil {
		return user.User{}, err
	}

	id := chatID
	u.ChatID = &id

	r.log.InfoContext(ctx, "user authenticated", "username", u.Username, "chat_id", chatID)
	return u, nil
}

// Login checks credentials without touching the chat binding.
func (r *Registry) Login(ctx context.Context, username, password string) (user.User, error) {
	return r.checkCredentials(ctx, strings.TrimSpace(username), password)
}

func (r *Registry) VerifyPassword(ctx context.Context, username, password string) error {
	_, err := r.checkCredentials(ctx, username, password)
	return err
}

func (r *Registry) checkCredentials(ctx context.Context, username, password string) (user.User, error) {
	u, err := r.repo.GetByUsername(ctx, username)
	if errors.Is(err, user.ErrNotFound) {
		// burn a comparison so unknown usernames cost the same as known ones
		_ = security.CheckPassword(dummyHash(), password)
		return user.User{}, user.ErrInvalidCredentials
	}
	if err != nil {
		return user.User{}, err
	}

	if security.CheckPassword(u.PasswordHash, password) != nil || !u.Active {
		return user.User{}, user.ErrInvalidCredentials
	}
	return u, nil
}

func (r *Registry) CreateUser(ctx context.Context, req user.CreateUserRequest) (user.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.FullName = strings.TrimSpace(req.FullName)

	if err := validation.Struct(req); err != nil {
		return user.User{}, err
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		return user.User{}, err
	}
	req.PasswordHash = hash

	r.createMu.Lock()
	defer r.createMu.Unlock()

	// the full name keys the user's row in the meal plan
	if err := r.EnsureFullNameFree(ctx, req.FullName); err != nil {
		return user.User{}, err
	}

	u, err := r.repo.Create(ctx, user.NewFromCreateRequest(req))
	if err != nil {
		return user.User{}, err
	}

	r.log.InfoContext(ctx, "user created", "username", u.Username, "role", u.Role)
	return u, nil
}

// EnsureFullNameFree fails with ErrDuplicateFullName if any user, active or
// not, already uses fullName (compared case-insensitively).
func (r *Registry) EnsureFullNameFree(ctx context.Context, fullName string) error {
	fullName = strings.TrimSpace(fullName)

	users, err := r.repo.List(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if strings.EqualFold(strings.TrimSpace(u.FullName), fullName) {
			return user.ErrDuplicateFullName
		}
	}
	return nil
}

// ChangePassword replaces the password only if old still matches at write time.
func (r *Registry) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if err := validation.Var("new password", newPassword, "required,min=4"); err != nil {
		return err
	}

	u, err := r.checkCredentials(ctx, username, oldPassword)
	if err != nil {
		return err
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}

	err = r.repo.UpdatePasswordHash(ctx, u.Username, u.PasswordHash, hash)
	if errors.Is(err, user.ErrNotFound) {
		// changed underneath us
		return user.ErrInvalidCredentials
	}
	if err != nil {
		return err
	}

	r.log.InfoContext(ctx, "password changed", "username", u.Username)
	return nil
}

func (r *Registry) ListUsers(ctx context.Context) ([]user.User, error) {
	return r.repo.List(ctx)
}

func (r *Registry) Lookup(ctx context.Context, username string) (user.User, error) {
	return r.repo.GetByUsername(ctx, username)
}

func (r *Registry) LookupByChat(ctx context.Context, chatID int64) (user.User, error) {
	return r.repo.GetByChatID(ctx, chatID)
}

func (r *Registry) SetActive(ctx context.Context, username string, active bool) error {
	return r.repo.SetActive(ctx, username, active)
}

// EnsureAdmin creates the bootstrap administrator if username is free.
func (r *Registry) EnsureAdmin(ctx context.Context, username, fullName, password string) (created bool, err error) {
	if username == "" || password == "" {
		return false, nil
	}

	_, err = r.repo.GetByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return false, err
	}

	_, err = r.CreateUser(ctx, user.CreateUserRequest{
		Username: username,
		FullName: fullName,
		Password: password,
		Role:     user.RoleAdmin,
	})
	if errors.Is(err, user.ErrDuplicateUsername) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	r.log.WarnContext(ctx, "bootstrap admin created, change its password", "username", username)
	return true, nil
}
