package role

import (
	"context"
	"errors"
)

// ErrRoleNotFound is returned when a role doesn't exist in the store.
var ErrRoleNotFound = errors.New("role not found")

// ErrAssignmentNotFound is returned when a user-role assignment doesn't
// exist.
var ErrAssignmentNotFound = errors.New("assignment not found")

// ErrAssignmentExists is returned when assigning a user to a role they
// already hold.
var ErrAssignmentExists = errors.New("assignment already exists")

// Store is the persistence collaborator for roles, administrative
// roles, and assignments. Interface in the domain package to avoid
// circular imports; implementations: sqlite (prod), in-memory (test).
type Store interface {
	// GetRole returns a normal role by name.
	// Returns ErrRoleNotFound if absent.
	GetRole(ctx context.Context, name string) (*Role, error)
	// GetAllRoles returns every normal role. Edges for the hierarchy
	// graph are derived from each role's Parents list.
	GetAllRoles(ctx context.Context) ([]Role, error)
	// SaveRole creates or updates a normal role.
	SaveRole(ctx context.Context, r *Role) error
	// DeleteRole removes a normal role by name.
	DeleteRole(ctx context.Context, name string) error

	// GetAdminRole returns an administrative role by name.
	GetAdminRole(ctx context.Context, name string) (*AdminRole, error)
	// GetAllAdminRoles returns every administrative role.
	GetAllAdminRoles(ctx context.Context) ([]AdminRole, error)
	// SaveAdminRole creates or updates an administrative role.
	SaveAdminRole(ctx context.Context, r *AdminRole) error
	// DeleteAdminRole removes an administrative role by name.
	DeleteAdminRole(ctx context.Context, name string) error

	// GetUserAssignments returns the user's normal-role assignments.
	GetUserAssignments(ctx context.Context, userID string) ([]UserRole, error)
	// GetRoleAssignments returns every assignment to the named role.
	GetRoleAssignments(ctx context.Context, roleName string) ([]UserRole, error)
	// SaveAssignment persists a new assignment.
	// Returns ErrAssignmentExists if the user already holds the role.
	SaveAssignment(ctx context.Context, ur UserRole) error
	// RemoveAssignment deletes an assignment.
	// Returns ErrAssignmentNotFound if absent.
	RemoveAssignment(ctx context.Context, userID, roleName string) error
	// UpdateAssignment replaces an existing assignment in place.
	// Returns ErrAssignmentNotFound if absent.
	UpdateAssignment(ctx context.Context, ur UserRole) error

	// GetUserAdminAssignments returns the user's admin-role assignments.
	GetUserAdminAssignments(ctx context.Context, userID string) ([]UserAdminRole, error)
	// SaveAdminAssignment persists a new admin-role assignment.
	SaveAdminAssignment(ctx context.Context, ur UserAdminRole) error
	// RemoveAdminAssignment deletes an admin-role assignment.
	RemoveAdminAssignment(ctx context.Context, userID, roleName string) error
}
