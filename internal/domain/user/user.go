package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound         = errors.New("user: not found")
	ErrIDRequired       = errors.New("user: id is required")
	ErrEmailRequired    = errors.New("user: email is required")
	ErrEmailAlreadyUsed = errors.New("user: email already used")
	ErrPasswordRequired = errors.New("user: password hash is required")
)

type ID string

// User is the authentication record. Public display data lives on the
// profile keyed by the same id.
type User struct {
	ID           ID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type CreateParams struct {
	ID           ID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

func NewUser(params CreateParams) (*User, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" {
		return nil, ErrEmailRequired
	}
	if params.PasswordHash == "" {
		return nil, ErrPasswordRequired
	}
	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &User{
		ID:           params.ID,
		Email:        email,
		PasswordHash: params.PasswordHash,
		CreatedAt:    createdAt.UTC(),
	}, nil
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)
	Save(ctx context.Context, user *User) error
}
