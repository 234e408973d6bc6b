package user

import (
	"strings"
	"time"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStandard Role = "standard"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleStandard
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	FullName     string    `json:"fullName"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	ChatID       *int64    `json:"chatId,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Linked reports whether the user has ever authenticated from a chat.
func (u User) Linked() bool { return u.ChatID != nil }

var (
	ErrNotFound           = apperr.New(apperr.KindNotFound, "user not found")
	ErrDuplicateUsername  = apperr.New(apperr.KindConflict, "username already taken")
	ErrDuplicateFullName  = apperr.New(apperr.KindConflict, "another user already has this full name")
	ErrInvalidCredentials = apperr.New(apperr.KindAuth, "username or password is incorrect")
	ErrForbidden          = apperr.New(apperr.KindAuth, "admin role required")
	ErrNotLoggedIn        = apperr.New(apperr.KindAuth, "please log in first")
)

type CreateUserRequest struct {
	Username     string `json:"username" binding:"required,alphanum,min=3,max=32" validate:"required,alphanum,min=3,max=32"`
	FullName     string `json:"fullName" binding:"required,max=80" validate:"required,max=80"`
	Password     string `json:"password" binding:"required,min=4" validate:"required,min=4"`
	Role         Role   `json:"role" binding:"omitempty,oneof=admin standard" validate:"omitempty,oneof=admin standard"`
	PasswordHash string `json:"-"`
}

// NewFromCreateRequest builds a User from the incoming DTO. The hash must already be set.
func NewFromCreateRequest(req CreateUserRequest) User {
	now := time.Now().UTC()

	role := req.Role
	if role == "" {
		role = RoleStandard
	}

	return User{
		ID:           uuid.NewString(),
		Username:     strings.TrimSpace(req.Username),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         role,
		PasswordHash: req.PasswordHash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
