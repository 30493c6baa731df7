// Package session tracks an authenticated user's activated roles
// across access checks.
package session

import (
	"time"

	"github.com/RoleGate/rolegate/internal/domain/constraint"
)

// State is the lifecycle state of a session.
type State string

const (
	// StateUnauthenticated is the initial state before credential
	// verification and role activation complete.
	StateUnauthenticated State = "unauthenticated"
	// StateActive is a usable session.
	StateActive State = "active"
	// StateExpired means the idle timeout elapsed; callers must
	// re-authenticate.
	StateExpired State = "expired"
	// StateTerminated means the session was explicitly ended.
	StateTerminated State = "terminated"
)

// ActiveRole is one activated role together with the constraint of the
// assignment it was activated from.
type ActiveRole struct {
	Name       string
	Constraint constraint.Constraint
}

// Warning records a role skipped during lenient session construction,
// e.g. an expired assignment or a dynamic separation-of-duty conflict.
type Warning struct {
	// Role is the role that was skipped.
	Role string
	// Admin is true when the role is in the administrative namespace.
	Admin bool
	// Reason explains why activation was skipped.
	Reason string
}

// Session is one user's activated authority. Owned exclusively by the
// caller that created it; never shared across callers.
type Session struct {
	// ID is a random identifier assigned at creation.
	ID string
	// UserID is the authenticated user.
	UserID string
	// OU is the user's organizational unit, cached from the directory
	// entry at creation.
	OU string
	// State is the lifecycle state.
	State State
	// ActiveRoles are the activated normal roles.
	ActiveRoles []ActiveRole
	// AdminRoles are the activated administrative roles.
	AdminRoles []ActiveRole
	// Warnings are the non-fatal activation failures collected during
	// construction.
	Warnings []Warning
	// CreatedAt is when the session was created (UTC).
	CreatedAt time.Time
	// LastAccess is the last time the session was used (UTC).
	LastAccess time.Time
}
