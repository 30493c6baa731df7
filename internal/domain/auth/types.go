// Package auth contains the domain types and logic for user identity
// and credential verification.
package auth

import (
	"context"
	"errors"
)

// User is a directory entry that sessions are created for.
type User struct {
	// ID is the unique identifier for this user.
	ID string
	// Name is the display name.
	Name string
	// OU is the organizational unit the user belongs to, consulted by
	// delegated-administration scope checks.
	OU string
	// PasswordHash is the stored credential in Argon2id PHC format.
	// Empty for users that can only authenticate through a trusted
	// front end.
	PasswordHash string
	// Props are free-form attributes merged into the runtime property
	// map during session creation.
	Props map[string]string
}

// ErrUserNotFound is returned when a user doesn't exist in the store.
var ErrUserNotFound = errors.New("user not found")

// Store is the persistence collaborator for users.
type Store interface {
	// GetUser returns a user by ID. Returns ErrUserNotFound if absent.
	GetUser(ctx context.Context, id string) (*User, error)
	// GetAllUsers returns every user.
	GetAllUsers(ctx context.Context) ([]User, error)
	// SaveUser creates or updates a user.
	SaveUser(ctx context.Context, u *User) error
	// DeleteUser removes a user by ID.
	DeleteUser(ctx context.Context, id string) error
}
