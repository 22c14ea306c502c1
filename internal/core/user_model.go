package core

import (
	"context"
	"time"
)

// User is a platform account allowed to operate billing.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}

// Actor returns the identity recorded on mutations made by u.
func (u User) Actor() Actor {
	return Actor{ID: u.ID, Username: u.Username, Role: u.Role}
}

// UserService is the identity lookup billing depends on.
type UserService interface {
	// Authenticate verifies a username/password pair against the stored
	// bcrypt hash. Unknown users and wrong passwords both return
	// ErrNotAuthenticated.
	Authenticate(ctx context.Context, username, password string) (*User, error)

	// GetByUsername finds an active user by username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	GetByID(ctx context.Context, userID string) (*User, error)

	// CreateUser stores a new account with a bcrypt hash of password.
	CreateUser(ctx context.Context, username, email, password, role string) (*User, error)
}
