package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/RoleGate/rolegate/internal/domain/auth"
	"github.com/RoleGate/rolegate/internal/domain/constraint"
	"github.com/RoleGate/rolegate/internal/domain/hierarchy"
	"github.com/RoleGate/rolegate/internal/domain/perm"
	"github.com/RoleGate/rolegate/internal/domain/role"
	"github.com/RoleGate/rolegate/internal/domain/sod"
)

// ErrNotAuthorized is returned when the supplied admin session lacks
// delegated authority over the target of a mutation.
var ErrNotAuthorized = errors.New("admin session not authorized for target")

// AssignmentService mutates user-role assignments and permission
// grants. Every mutation validates configuration first, then checks
// policy (delegated scope, static separation of duty), and only then
// persists; the store is never written speculatively.
type AssignmentService struct {
	roles  role.Store
	users  auth.Store
	sdsets sod.Store
	perms  perm.Store
	hier   *Hierarchies
	scope  *DelegatedAdminService
	access *AccessService
	logger *slog.Logger
}

// NewAssignmentService creates an AssignmentService. The scope service
// may be nil when delegated-administration checks are not enforced
// (single-admin deployments); calls naming an admin session then fail
// closed with ErrNotAuthorized. The access service, when non-nil, has
// its decision cache invalidated on grant changes.
func NewAssignmentService(
	roles role.Store,
	users auth.Store,
	sdsets sod.Store,
	perms perm.Store,
	hier *Hierarchies,
	scope *DelegatedAdminService,
	access *AccessService,
	logger *slog.Logger,
) *AssignmentService {
	return &AssignmentService{
		roles:  roles,
		users:  users,
		sdsets: sdsets,
		perms:  perms,
		hier:   hier,
		scope:  scope,
		access: access,
		logger: logger,
	}
}

// AssignUser assigns a normal role to a user. The constraint is
// normalized and validated, the static separation-of-duty check runs
// over the ascendant closure of the user's assigned roles plus the
// candidate, and only then is the assignment persisted.
//
// adminSessionID, when non-empty, must name a session whose delegated
// authority covers the target; otherwise the call is a trusted
// administrative path.
func (s *AssignmentService) AssignUser(ctx context.Context, ur role.UserRole, adminSessionID string) error {
	ur.Constraint.Normalize()
	if err := ur.Constraint.Validate(); err != nil {
		return fmt.Errorf("invalid constraint: %w", err)
	}
	if !s.hier.Roles().Contains(ur.Role) {
		return hierarchy.ErrUnknownRole
	}
	if _, err := s.users.GetUser(ctx, ur.UserID); err != nil {
		return err
	}

	if adminSessionID != "" {
		if s.scope == nil {
			return ErrNotAuthorized
		}
		ok, err := s.scope.CanAssign(ctx, adminSessionID, ur.UserID, ur.Role)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotAuthorized
		}
	}

	ssd, err := s.sdsets.GetSets(ctx, sod.Static)
	if err != nil {
		return fmt.Errorf("failed to load static sd sets: %w", err)
	}
	assigned, err := s.roles.GetUserAssignments(ctx, ur.UserID)
	if err != nil {
		return fmt.Errorf("failed to load assignments: %w", err)
	}
	names := make([]string, 0, len(assigned)+1)
	for _, a := range assigned {
		names = append(names, a.Role)
	}
	names = append(names, ur.Role)
	if err := sod.CheckStatic(expandClosure(s.hier.Roles(), names), ssd); err != nil {
		s.access.noteSodRejection("static")
		return err
	}

	if err := s.roles.SaveAssignment(ctx, ur); err != nil {
		return err
	}
	s.logger.Info("role assigned", "user", ur.UserID, "role", ur.Role)
	return nil
}

// DeassignUser removes a normal-role assignment.
func (s *AssignmentService) DeassignUser(ctx context.Context, userID, roleName, adminSessionID string) error {
	if adminSessionID != "" {
		if s.scope == nil {
			return ErrNotAuthorized
		}
		ok, err := s.scope.CanDeassign(ctx, adminSessionID, userID, roleName)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotAuthorized
		}
	}
	if err := s.roles.RemoveAssignment(ctx, userID, roleName); err != nil {
		return err
	}
	s.logger.Info("role deassigned", "user", userID, "role", roleName)
	return nil
}

// AssignAdminUser assigns an administrative role to a user.
func (s *AssignmentService) AssignAdminUser(ctx context.Context, ur role.UserAdminRole) error {
	ur.Constraint.Normalize()
	if err := ur.Constraint.Validate(); err != nil {
		return fmt.Errorf("invalid constraint: %w", err)
	}
	if !s.hier.Admin().Contains(ur.Role) {
		return hierarchy.ErrUnknownRole
	}
	if _, err := s.users.GetUser(ctx, ur.UserID); err != nil {
		return err
	}
	if err := s.roles.SaveAdminAssignment(ctx, ur); err != nil {
		return err
	}
	s.logger.Info("admin role assigned", "user", ur.UserID, "role", ur.Role)
	return nil
}

// DeassignAdminUser removes an administrative-role assignment.
func (s *AssignmentService) DeassignAdminUser(ctx context.Context, userID, roleName string) error {
	if err := s.roles.RemoveAdminAssignment(ctx, userID, roleName); err != nil {
		return err
	}
	s.logger.Info("admin role deassigned", "user", userID, "role", roleName)
	return nil
}

// GrantPermission grants a permission to a role.
func (s *AssignmentService) GrantPermission(ctx context.Context, objName, opName, objID, roleName, adminSessionID string) error {
	if !s.hier.Roles().Contains(roleName) {
		return hierarchy.ErrUnknownRole
	}
	if adminSessionID != "" {
		if s.scope == nil {
			return ErrNotAuthorized
		}
		ok, err := s.scope.CanGrant(ctx, adminSessionID, roleName, objName, opName, objID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotAuthorized
		}
	}

	p, err := s.perms.GetPermission(ctx, objName, opName, objID)
	if err != nil {
		return err
	}
	if p.HasRole(roleName) {
		return nil
	}
	p.Roles = append(p.Roles, roleName)
	if err := s.perms.SavePermission(ctx, p); err != nil {
		return err
	}
	s.invalidate()
	s.logger.Info("permission granted", "obj", objName, "op", opName, "role", roleName)
	return nil
}

// RevokePermission revokes a permission from a role.
func (s *AssignmentService) RevokePermission(ctx context.Context, objName, opName, objID, roleName, adminSessionID string) error {
	if adminSessionID != "" {
		if s.scope == nil {
			return ErrNotAuthorized
		}
		ok, err := s.scope.CanRevoke(ctx, adminSessionID, roleName, objName, opName, objID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotAuthorized
		}
	}

	p, err := s.perms.GetPermission(ctx, objName, opName, objID)
	if err != nil {
		return err
	}
	found := false
	for i, r := range p.Roles {
		if r == roleName {
			p.Roles = append(p.Roles[:i:i], p.Roles[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return perm.ErrGrantNotFound
	}
	if err := s.perms.SavePermission(ctx, p); err != nil {
		return err
	}
	s.invalidate()
	s.logger.Info("permission revoked", "obj", objName, "op", opName, "role", roleName)
	return nil
}

// GrantUserPermission grants a permission directly to a user,
// bypassing role resolution.
func (s *AssignmentService) GrantUserPermission(ctx context.Context, objName, opName, objID, userID string) error {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return err
	}
	p, err := s.perms.GetPermission(ctx, objName, opName, objID)
	if err != nil {
		return err
	}
	if p.HasUser(userID) {
		return nil
	}
	p.Users = append(p.Users, userID)
	if err := s.perms.SavePermission(ctx, p); err != nil {
		return err
	}
	s.invalidate()
	s.logger.Info("user permission granted", "obj", objName, "op", opName, "user", userID)
	return nil
}

// RevokeUserPermission removes a direct user grant.
func (s *AssignmentService) RevokeUserPermission(ctx context.Context, objName, opName, objID, userID string) error {
	p, err := s.perms.GetPermission(ctx, objName, opName, objID)
	if err != nil {
		return err
	}
	found := false
	for i, u := range p.Users {
		if u == userID {
			p.Users = append(p.Users[:i:i], p.Users[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return perm.ErrGrantNotFound
	}
	if err := s.perms.SavePermission(ctx, p); err != nil {
		return err
	}
	s.invalidate()
	s.logger.Info("user permission revoked", "obj", objName, "op", opName, "user", userID)
	return nil
}

// UpdateAssignmentConstraint replaces the constraint on an existing
// assignment. The only in-place mutation assignments permit.
func (s *AssignmentService) UpdateAssignmentConstraint(ctx context.Context, userID, roleName string, c constraint.Constraint) error {
	c.Normalize()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid constraint: %w", err)
	}
	return s.roles.UpdateAssignment(ctx, role.UserRole{UserID: userID, Role: roleName, Constraint: c})
}

func (s *AssignmentService) invalidate() {
	if s.access != nil {
		s.access.InvalidateDecisions()
	}
}
