// Package role contains domain types for roles, administrative roles,
// and user-role assignments.
package role

import (
	"github.com/RoleGate/rolegate/internal/domain/constraint"
)

// Namespace selects one of the two independent role hierarchies.
type Namespace string

const (
	// NamespaceRole is the normal-role hierarchy.
	NamespaceRole Namespace = "role"
	// NamespaceAdmin is the administrative-role hierarchy.
	NamespaceAdmin Namespace = "admin"
)

// Role is a named grant of authority. Parents are the roles whose
// authority this role inherits; the full graph is a DAG maintained by
// the hierarchy package.
type Role struct {
	// Name is the unique identifier within its namespace.
	Name string
	// Description is optional human-readable context.
	Description string
	// Parents lists the immediate parent role names.
	Parents []string
	// Condition is an optional CEL expression over the runtime
	// properties supplied at session creation. A role whose condition
	// evaluates false is not eligible for activation in that session.
	// Empty always passes.
	Condition string
}

// AdminRole is a role in the administrative namespace, carrying the
// scope of delegated authority: which organizational units it may
// administer and which slice of the normal-role hierarchy it may
// assign or grant within.
type AdminRole struct {
	Role

	// UserOUs are the organizational units whose users this admin role
	// may assign and deassign. Empty means no user authority.
	UserOUs []string
	// PermOUs are the organizational units whose permissions this
	// admin role may grant and revoke. Empty means no grant authority.
	PermOUs []string

	// BeginRange and EndRange bound the normal-role hierarchy slice
	// this admin role controls: a target role must be an ascendant of
	// BeginRange and a descendant of EndRange. Either may be empty,
	// meaning unbounded in that direction.
	BeginRange string
	EndRange   string
	// BeginInclusive and EndInclusive control whether the endpoints
	// themselves are in range.
	BeginInclusive bool
	EndInclusive   bool
}

// HasUserOU reports whether the admin role may administer users in ou.
func (a *AdminRole) HasUserOU(ou string) bool {
	for _, u := range a.UserOUs {
		if u == ou {
			return true
		}
	}
	return false
}

// HasPermOU reports whether the admin role may administer permissions
// in ou.
func (a *AdminRole) HasPermOU(ou string) bool {
	for _, p := range a.PermOUs {
		if p == ou {
			return true
		}
	}
	return false
}

// UserRole assigns a user to a normal role under a temporal constraint.
// Created by assignment, removed by deassignment; the constraint is the
// only field updated in place.
type UserRole struct {
	UserID     string
	Role       string
	Constraint constraint.Constraint
}

// UserAdminRole assigns a user to an administrative role under a
// temporal constraint.
type UserAdminRole struct {
	UserID     string
	Role       string
	Constraint constraint.Constraint
}
