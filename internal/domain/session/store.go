package session

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned when a session doesn't exist.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExpired is returned by operations on a session whose idle
// timeout elapsed. Distinct from a policy denial so callers can tell
// "re-authenticate" from "access denied".
var ErrSessionExpired = errors.New("session expired")

// ErrSessionNotActive is returned by operations on a terminated or
// never-activated session.
var ErrSessionNotActive = errors.New("session not active")

// ErrRoleNotAssigned is returned when activating a role the user does
// not hold.
var ErrRoleNotAssigned = errors.New("role not assigned to user")

// ErrRoleNotActive is returned when deactivating a role that isn't
// active in the session.
var ErrRoleNotActive = errors.New("role not active in session")

// ErrRoleAlreadyActive is returned when activating a role twice.
var ErrRoleAlreadyActive = errors.New("role already active in session")

// Store provides session persistence.
// Implementations: in-memory (prod and test; sessions are process-local
// by design).
type Store interface {
	// Create stores a new session.
	Create(ctx context.Context, s *Session) error
	// Get retrieves a session by ID.
	// Returns ErrSessionNotFound if the session doesn't exist.
	Get(ctx context.Context, id string) (*Session, error)
	// Update saves changes to an existing session.
	Update(ctx context.Context, s *Session) error
	// Delete removes a session.
	Delete(ctx context.Context, id string) error
}
