package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/RoleGate/rolegate/internal/domain/auth"
	"github.com/RoleGate/rolegate/internal/domain/hierarchy"
	"github.com/RoleGate/rolegate/internal/domain/perm"
	"github.com/RoleGate/rolegate/internal/domain/role"
	"github.com/RoleGate/rolegate/internal/domain/session"
)

// DelegatedAdminService answers whether an administrative session is
// authorized to mutate assignments and grants. A false answer is a
// policy decision, not an error; errors are reserved for store and
// session failures.
type DelegatedAdminService struct {
	access *AccessService
	roles  role.Store
	users  auth.Store
	perms  perm.Store
	hier   *Hierarchies
	logger *slog.Logger
}

// NewDelegatedAdminService creates a DelegatedAdminService. The access
// service supplies live admin sessions; the hierarchy pair supplies the
// normal-role graph the ranges are checked against.
func NewDelegatedAdminService(access *AccessService, roles role.Store, users auth.Store, perms perm.Store, hier *Hierarchies, logger *slog.Logger) *DelegatedAdminService {
	return &DelegatedAdminService{
		access: access,
		roles:  roles,
		users:  users,
		perms:  perms,
		hier:   hier,
		logger: logger,
	}
}

// CanAssign reports whether the admin session may assign targetRole to
// targetUser: some active admin role must cover the user's
// organizational unit and hold targetRole within its hierarchical
// range.
func (s *DelegatedAdminService) CanAssign(ctx context.Context, adminSessionID, targetUser, targetRole string) (bool, error) {
	return s.checkUserScope(ctx, adminSessionID, targetUser, targetRole)
}

// CanDeassign reports whether the admin session may remove targetRole
// from targetUser. Same authority as CanAssign.
func (s *DelegatedAdminService) CanDeassign(ctx context.Context, adminSessionID, targetUser, targetRole string) (bool, error) {
	return s.checkUserScope(ctx, adminSessionID, targetUser, targetRole)
}

// CanGrant reports whether the admin session may grant the permission
// to targetRole: some active admin role must cover the permission's
// organizational unit and hold targetRole within its range.
func (s *DelegatedAdminService) CanGrant(ctx context.Context, adminSessionID, targetRole, objName, opName, objID string) (bool, error) {
	return s.checkPermScope(ctx, adminSessionID, targetRole, objName, opName, objID)
}

// CanRevoke reports whether the admin session may revoke the permission
// from targetRole. Same authority as CanGrant.
func (s *DelegatedAdminService) CanRevoke(ctx context.Context, adminSessionID, targetRole, objName, opName, objID string) (bool, error) {
	return s.checkPermScope(ctx, adminSessionID, targetRole, objName, opName, objID)
}

func (s *DelegatedAdminService) checkUserScope(ctx context.Context, adminSessionID, targetUser, targetRole string) (bool, error) {
	sess, err := s.access.liveSession(ctx, adminSessionID, s.access.clock().UTC())
	if err != nil {
		return false, err
	}
	u, err := s.users.GetUser(ctx, targetUser)
	if err != nil {
		return false, err
	}
	return s.anyAdminRole(ctx, sess, func(ar *role.AdminRole) (bool, error) {
		if !ar.HasUserOU(u.OU) {
			return false, nil
		}
		return s.inRange(targetRole, ar)
	})
}

func (s *DelegatedAdminService) checkPermScope(ctx context.Context, adminSessionID, targetRole, objName, opName, objID string) (bool, error) {
	sess, err := s.access.liveSession(ctx, adminSessionID, s.access.clock().UTC())
	if err != nil {
		return false, err
	}
	p, err := s.perms.GetPermission(ctx, objName, opName, objID)
	if err != nil {
		return false, err
	}
	return s.anyAdminRole(ctx, sess, func(ar *role.AdminRole) (bool, error) {
		if !ar.HasPermOU(p.OU) {
			return false, nil
		}
		return s.inRange(targetRole, ar)
	})
}

// anyAdminRole resolves the session's active admin roles and returns
// true if any of them satisfies the check. A session with no active
// admin role has no authority.
func (s *DelegatedAdminService) anyAdminRole(ctx context.Context, sess *session.Session, check func(*role.AdminRole) (bool, error)) (bool, error) {
	for _, active := range sess.AdminRoles {
		ar, err := s.roles.GetAdminRole(ctx, active.Name)
		if err != nil {
			return false, fmt.Errorf("failed to load admin role %q: %w", active.Name, err)
		}
		ok, err := check(ar)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// inRange reports whether the target role lies within the admin role's
// slice of the normal-role hierarchy: an ascendant of BeginRange and a
// descendant of EndRange, with inclusive or exclusive endpoints.
func (s *DelegatedAdminService) inRange(target string, ar *role.AdminRole) (bool, error) {
	g := s.hier.Roles()

	if ar.EndRange != "" {
		if target == ar.EndRange {
			if !ar.EndInclusive {
				return false, nil
			}
		} else {
			ok, err := g.IsDescendant(target, ar.EndRange)
			if err != nil {
				if errors.Is(err, hierarchy.ErrUnknownRole) {
					return false, nil
				}
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}

	if ar.BeginRange != "" {
		if target == ar.BeginRange {
			if !ar.BeginInclusive {
				return false, nil
			}
		} else {
			ok, err := g.IsAscendant(target, ar.BeginRange)
			if err != nil {
				if errors.Is(err, hierarchy.ErrUnknownRole) {
					return false, nil
				}
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}

	return true, nil
}
