package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	celeval "github.com/RoleGate/rolegate/internal/adapter/outbound/cel"
	"github.com/RoleGate/rolegate/internal/domain/hierarchy"
	"github.com/RoleGate/rolegate/internal/domain/role"
	"github.com/RoleGate/rolegate/internal/domain/sod"
)

// ErrRoleInUse is returned when deleting a role that still has
// assignments.
var ErrRoleInUse = errors.New("role still has assignments")

// DirectoryAdminService owns structural mutations: roles, inheritance
// edges, and separation-of-duty sets. Configuration errors (cycles,
// unknown references, malformed fields) surface synchronously; nothing
// is coerced.
type DirectoryAdminService struct {
	roles  role.Store
	sdsets sod.Store
	hier   *Hierarchies
	cond   *celeval.Evaluator
	access *AccessService
	logger *slog.Logger
}

// NewDirectoryAdminService creates a DirectoryAdminService. The access
// service, when non-nil, has its decision cache invalidated on
// hierarchy changes.
func NewDirectoryAdminService(roles role.Store, sdsets sod.Store, hier *Hierarchies, access *AccessService, logger *slog.Logger) (*DirectoryAdminService, error) {
	cond, err := celeval.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create condition evaluator: %w", err)
	}
	return &DirectoryAdminService{
		roles:  roles,
		sdsets: sdsets,
		hier:   hier,
		cond:   cond,
		access: access,
		logger: logger,
	}, nil
}

// ReloadFromStore rebuilds both hierarchy graphs from the directory
// store and swaps them in atomically. In-flight readers keep the old
// graphs until their query completes.
func (s *DirectoryAdminService) ReloadFromStore(ctx context.Context) error {
	roles, err := s.roles.GetAllRoles(ctx)
	if err != nil {
		return fmt.Errorf("failed to load roles: %w", err)
	}
	rolesG := hierarchy.New()
	for _, r := range roles {
		if err := rolesG.AddRole(r.Name); err != nil {
			return fmt.Errorf("role %q: %w", r.Name, err)
		}
	}
	for _, r := range roles {
		for _, p := range r.Parents {
			if err := rolesG.AddEdge(p, r.Name); err != nil {
				return fmt.Errorf("edge %s->%s: %w", p, r.Name, err)
			}
		}
	}

	adminRoles, err := s.roles.GetAllAdminRoles(ctx)
	if err != nil {
		return fmt.Errorf("failed to load admin roles: %w", err)
	}
	adminG := hierarchy.New()
	for _, r := range adminRoles {
		if err := adminG.AddRole(r.Name); err != nil {
			return fmt.Errorf("admin role %q: %w", r.Name, err)
		}
	}
	for _, r := range adminRoles {
		for _, p := range r.Parents {
			if err := adminG.AddEdge(p, r.Name); err != nil {
				return fmt.Errorf("admin edge %s->%s: %w", p, r.Name, err)
			}
		}
	}

	s.hier.swap(rolesG, adminG)
	s.invalidate()
	s.logger.Info("hierarchies reloaded",
		"roles", len(roles), "admin_roles", len(adminRoles))
	return nil
}

// AddRole creates a normal role. Parents must already exist; an edge
// that would create a cycle rejects the whole operation.
func (s *DirectoryAdminService) AddRole(ctx context.Context, r *role.Role) error {
	if r.Condition != "" {
		if err := s.cond.ValidateExpression(r.Condition); err != nil {
			return err
		}
	}
	g := s.hier.Roles()
	if err := g.AddRole(r.Name); err != nil {
		return err
	}
	for _, p := range r.Parents {
		if err := g.AddEdge(p, r.Name); err != nil {
			_ = g.RemoveRole(r.Name)
			return err
		}
	}
	if err := s.roles.SaveRole(ctx, r); err != nil {
		_ = g.RemoveRole(r.Name)
		return err
	}
	s.logger.Info("role added", "role", r.Name, "parents", len(r.Parents))
	return nil
}

// DeleteRole removes a normal role. The role must have no remaining
// assignments; its edges are removed with it.
func (s *DirectoryAdminService) DeleteRole(ctx context.Context, name string) error {
	assigned, err := s.roles.GetRoleAssignments(ctx, name)
	if err != nil {
		return err
	}
	if len(assigned) > 0 {
		return fmt.Errorf("role %q has %d assignments: %w", name, len(assigned), ErrRoleInUse)
	}
	if err := s.hier.Roles().RemoveRole(name); err != nil {
		return err
	}
	if err := s.roles.DeleteRole(ctx, name); err != nil {
		return err
	}
	s.invalidate()
	s.logger.Info("role deleted", "role", name)
	return nil
}

// AddAdminRole creates an administrative role. Range endpoints, when
// set, must exist in the normal-role hierarchy.
func (s *DirectoryAdminService) AddAdminRole(ctx context.Context, r *role.AdminRole) error {
	if r.Condition != "" {
		if err := s.cond.ValidateExpression(r.Condition); err != nil {
			return err
		}
	}
	if r.BeginRange != "" && !s.hier.Roles().Contains(r.BeginRange) {
		return fmt.Errorf("begin range %q: %w", r.BeginRange, hierarchy.ErrUnknownRole)
	}
	if r.EndRange != "" && !s.hier.Roles().Contains(r.EndRange) {
		return fmt.Errorf("end range %q: %w", r.EndRange, hierarchy.ErrUnknownRole)
	}
	g := s.hier.Admin()
	if err := g.AddRole(r.Name); err != nil {
		return err
	}
	for _, p := range r.Parents {
		if err := g.AddEdge(p, r.Name); err != nil {
			_ = g.RemoveRole(r.Name)
			return err
		}
	}
	if err := s.roles.SaveAdminRole(ctx, r); err != nil {
		_ = g.RemoveRole(r.Name)
		return err
	}
	s.logger.Info("admin role added", "role", r.Name)
	return nil
}

// DeleteAdminRole removes an administrative role.
func (s *DirectoryAdminService) DeleteAdminRole(ctx context.Context, name string) error {
	if err := s.hier.Admin().RemoveRole(name); err != nil {
		return err
	}
	if err := s.roles.DeleteAdminRole(ctx, name); err != nil {
		return err
	}
	s.logger.Info("admin role deleted", "role", name)
	return nil
}

// AddInheritance adds a parent→child edge in the given namespace and
// records it on the child's directory entry.
func (s *DirectoryAdminService) AddInheritance(ctx context.Context, ns role.Namespace, parent, child string) error {
	if err := s.hier.Graph(ns).AddEdge(parent, child); err != nil {
		return err
	}
	if err := s.saveParents(ctx, ns, child); err != nil {
		_ = s.hier.Graph(ns).RemoveEdge(parent, child)
		return err
	}
	s.invalidate()
	s.logger.Info("inheritance added", "namespace", string(ns), "parent", parent, "child", child)
	return nil
}

// DeleteInheritance removes a parent→child edge in the given namespace.
func (s *DirectoryAdminService) DeleteInheritance(ctx context.Context, ns role.Namespace, parent, child string) error {
	if err := s.hier.Graph(ns).RemoveEdge(parent, child); err != nil {
		return err
	}
	if err := s.saveParents(ctx, ns, child); err != nil {
		return err
	}
	s.invalidate()
	s.logger.Info("inheritance removed", "namespace", string(ns), "parent", parent, "child", child)
	return nil
}

// CreateSsdSet creates a static separation-of-duty set.
func (s *DirectoryAdminService) CreateSsdSet(ctx context.Context, set *sod.SDSet) error {
	set.Type = sod.Static
	return s.createSet(ctx, set)
}

// CreateDsdSet creates a dynamic separation-of-duty set.
func (s *DirectoryAdminService) CreateDsdSet(ctx context.Context, set *sod.SDSet) error {
	set.Type = sod.Dynamic
	return s.createSet(ctx, set)
}

// DeleteSet removes a separation-of-duty set by name.
func (s *DirectoryAdminService) DeleteSet(ctx context.Context, name string) error {
	if err := s.sdsets.DeleteSet(ctx, name); err != nil {
		return err
	}
	s.logger.Info("sd set deleted", "set", name)
	return nil
}

func (s *DirectoryAdminService) createSet(ctx context.Context, set *sod.SDSet) error {
	if set.Cardinality < 2 || set.Cardinality > len(set.Members) {
		return sod.ErrBadCardinality
	}
	for _, m := range set.Members {
		if !s.hier.Roles().Contains(m) {
			return fmt.Errorf("member %q: %w", m, hierarchy.ErrUnknownRole)
		}
	}
	if err := s.sdsets.SaveSet(ctx, set); err != nil {
		return err
	}
	s.logger.Info("sd set created",
		"set", set.Name, "type", string(set.Type),
		"cardinality", set.Cardinality, "members", len(set.Members))
	return nil
}

// saveParents re-reads the graph's parent list for child and persists
// it on the directory entry, keeping store and graph consistent.
func (s *DirectoryAdminService) saveParents(ctx context.Context, ns role.Namespace, child string) error {
	parents, err := s.hier.Graph(ns).Parents(child)
	if err != nil {
		return err
	}
	if ns == role.NamespaceAdmin {
		r, err := s.roles.GetAdminRole(ctx, child)
		if err != nil {
			return err
		}
		r.Parents = parents
		return s.roles.SaveAdminRole(ctx, r)
	}
	r, err := s.roles.GetRole(ctx, child)
	if err != nil {
		return err
	}
	r.Parents = parents
	return s.roles.SaveRole(ctx, r)
}

func (s *DirectoryAdminService) invalidate() {
	if s.access != nil {
		s.access.InvalidateDecisions()
	}
}
