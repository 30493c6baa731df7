// Package perm contains domain types for permissions: operations on
// named objects, granted to roles or directly to users.
package perm

import (
	"context"
	"errors"
)

// Permission is the right to perform one operation on one object,
// optionally narrowed to a single object instance.
type Permission struct {
	// ObjName is the protected object, e.g. "ledger".
	ObjName string
	// OpName is the operation on the object, e.g. "post".
	OpName string
	// ObjID optionally narrows the permission to one object instance.
	ObjID string
	// OU is the organizational unit the permission object belongs to,
	// consulted by delegated-administration grant checks.
	OU string
	// Roles are the role names granted this permission.
	Roles []string
	// Users are user IDs granted this permission directly, bypassing
	// role resolution.
	Users []string
}

// Key returns the store key for the permission coordinates.
func Key(objName, opName, objID string) string {
	if objID == "" {
		return objName + "." + opName
	}
	return objName + "." + opName + "." + objID
}

// HasRole reports whether the role is granted this permission.
func (p *Permission) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasUser reports whether the user is granted this permission directly.
func (p *Permission) HasUser(userID string) bool {
	for _, u := range p.Users {
		if u == userID {
			return true
		}
	}
	return false
}

// ErrPermissionNotFound is returned when a permission doesn't exist in
// the store.
var ErrPermissionNotFound = errors.New("permission not found")

// ErrGrantNotFound is returned when revoking a grant that doesn't exist.
var ErrGrantNotFound = errors.New("grant not found")

// Store is the persistence collaborator for permissions.
type Store interface {
	// GetPermission returns the permission for the given coordinates.
	// Returns ErrPermissionNotFound if absent.
	GetPermission(ctx context.Context, objName, opName, objID string) (*Permission, error)
	// GetAllPermissions returns every permission.
	GetAllPermissions(ctx context.Context) ([]Permission, error)
	// SavePermission creates or updates a permission.
	SavePermission(ctx context.Context, p *Permission) error
	// DeletePermission removes a permission.
	DeletePermission(ctx context.Context, objName, opName, objID string) error
}
