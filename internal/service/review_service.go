package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/RoleGate/rolegate/internal/domain/perm"
	"github.com/RoleGate/rolegate/internal/domain/role"
)

// ReviewService answers read-side queries over the directory: who holds
// what, and which permissions a role, user, or session can reach.
type ReviewService struct {
	roles  role.Store
	perms  perm.Store
	hier   *Hierarchies
	access *AccessService
	logger *slog.Logger
}

// NewReviewService creates a ReviewService.
func NewReviewService(roles role.Store, perms perm.Store, hier *Hierarchies, access *AccessService, logger *slog.Logger) *ReviewService {
	return &ReviewService{
		roles:  roles,
		perms:  perms,
		hier:   hier,
		access: access,
		logger: logger,
	}
}

// AssignedRoles returns the user's direct normal-role assignments.
func (s *ReviewService) AssignedRoles(ctx context.Context, userID string) ([]role.UserRole, error) {
	return s.roles.GetUserAssignments(ctx, userID)
}

// AssignedUsers returns every assignment to the named role.
func (s *ReviewService) AssignedUsers(ctx context.Context, roleName string) ([]role.UserRole, error) {
	return s.roles.GetRoleAssignments(ctx, roleName)
}

// AuthorizedRoles returns the user's assigned roles expanded through
// the hierarchy: everything their authority reaches, sorted by name.
func (s *ReviewService) AuthorizedRoles(ctx context.Context, userID string) ([]string, error) {
	assigned, err := s.roles.GetUserAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(assigned))
	for _, a := range assigned {
		names = append(names, a.Role)
	}
	return sortedKeys(expandClosure(s.hier.Roles(), names)), nil
}

// RolePermissions returns every permission reachable by the role: any
// permission granted to the role itself or to a role in its ascendant
// closure.
func (s *ReviewService) RolePermissions(ctx context.Context, roleName string) ([]perm.Permission, error) {
	closure := expandClosure(s.hier.Roles(), []string{roleName})
	return s.permissionsFor(ctx, closure, "")
}

// UserPermissions returns every permission the user can reach through
// any assigned role, plus direct user grants.
func (s *ReviewService) UserPermissions(ctx context.Context, userID string) ([]perm.Permission, error) {
	authorized, err := s.AuthorizedRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	closure := make(map[string]struct{}, len(authorized))
	for _, r := range authorized {
		closure[r] = struct{}{}
	}
	return s.permissionsFor(ctx, closure, userID)
}

// SessionPermissions returns every permission reachable through the
// session's currently active roles, plus direct user grants. Unlike
// CheckAccess it does not touch the session.
func (s *ReviewService) SessionPermissions(ctx context.Context, sessionID string) ([]perm.Permission, error) {
	sess, err := s.access.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	closure := expandClosure(s.hier.Roles(), sess.ActiveRoleNames())
	return s.permissionsFor(ctx, closure, sess.UserID)
}

// permissionsFor filters all permissions to those granted to any role
// in the closure, or directly to userID when non-empty. Output is
// sorted by permission key for deterministic review listings.
func (s *ReviewService) permissionsFor(ctx context.Context, closure map[string]struct{}, userID string) ([]perm.Permission, error) {
	all, err := s.perms.GetAllPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load permissions: %w", err)
	}
	var out []perm.Permission
	for _, p := range all {
		if userID != "" && p.HasUser(userID) {
			out = append(out, p)
			continue
		}
		for _, granted := range p.Roles {
			if _, ok := closure[granted]; ok {
				out = append(out, p)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return perm.Key(out[i].ObjName, out[i].OpName, out[i].ObjID) <
			perm.Key(out[j].ObjName, out[j].OpName, out[j].ObjID)
	})
	return out, nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
