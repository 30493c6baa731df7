// Package memory provides in-memory implementations of the directory
// store interfaces. Thread-safe for concurrent access. For development
// and testing; production directories sit behind the sqlite adapter.
package memory

import (
	"context"
	"sync"

	"github.com/RoleGate/rolegate/internal/domain/role"
)

// RoleStore implements role.Store with in-memory maps.
type RoleStore struct {
	mu               sync.RWMutex
	roles            map[string]*role.Role
	adminRoles       map[string]*role.AdminRole
	assignments      map[string][]role.UserRole      // userID -> assignments
	adminAssignments map[string][]role.UserAdminRole // userID -> assignments
}

// NewRoleStore creates an empty in-memory role store.
func NewRoleStore() *RoleStore {
	return &RoleStore{
		roles:            make(map[string]*role.Role),
		adminRoles:       make(map[string]*role.AdminRole),
		assignments:      make(map[string][]role.UserRole),
		adminAssignments: make(map[string][]role.UserAdminRole),
	}
}

// GetRole returns a normal role by name.
func (s *RoleStore) GetRole(ctx context.Context, name string) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.roles[name]
	if !ok {
		return nil, role.ErrRoleNotFound
	}
	return copyRole(r), nil
}

// GetAllRoles returns every normal role.
func (s *RoleStore) GetAllRoles(ctx context.Context) ([]role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]role.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, *copyRole(r))
	}
	return out, nil
}

// SaveRole creates or updates a normal role.
func (s *RoleStore) SaveRole(ctx context.Context, r *role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roles[r.Name] = copyRole(r)
	return nil
}

// DeleteRole removes a normal role by name.
func (s *RoleStore) DeleteRole(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[name]; !ok {
		return role.ErrRoleNotFound
	}
	delete(s.roles, name)
	return nil
}

// GetAdminRole returns an administrative role by name.
func (s *RoleStore) GetAdminRole(ctx context.Context, name string) (*role.AdminRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.adminRoles[name]
	if !ok {
		return nil, role.ErrRoleNotFound
	}
	return copyAdminRole(r), nil
}

// GetAllAdminRoles returns every administrative role.
func (s *RoleStore) GetAllAdminRoles(ctx context.Context) ([]role.AdminRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]role.AdminRole, 0, len(s.adminRoles))
	for _, r := range s.adminRoles {
		out = append(out, *copyAdminRole(r))
	}
	return out, nil
}

// SaveAdminRole creates or updates an administrative role.
func (s *RoleStore) SaveAdminRole(ctx context.Context, r *role.AdminRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.adminRoles[r.Name] = copyAdminRole(r)
	return nil
}

// DeleteAdminRole removes an administrative role by name.
func (s *RoleStore) DeleteAdminRole(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.adminRoles[name]; !ok {
		return role.ErrRoleNotFound
	}
	delete(s.adminRoles, name)
	return nil
}

// GetUserAssignments returns the user's normal-role assignments.
func (s *RoleStore) GetUserAssignments(ctx context.Context, userID string) ([]role.UserRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]role.UserRole(nil), s.assignments[userID]...), nil
}

// GetRoleAssignments returns every assignment to the named role.
func (s *RoleStore) GetRoleAssignments(ctx context.Context, roleName string) ([]role.UserRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []role.UserRole
	for _, urs := range s.assignments {
		for _, ur := range urs {
			if ur.Role == roleName {
				out = append(out, ur)
			}
		}
	}
	return out, nil
}

// SaveAssignment persists a new normal-role assignment.
func (s *RoleStore) SaveAssignment(ctx context.Context, ur role.UserRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.assignments[ur.UserID] {
		if existing.Role == ur.Role {
			return role.ErrAssignmentExists
		}
	}
	s.assignments[ur.UserID] = append(s.assignments[ur.UserID], ur)
	return nil
}

// RemoveAssignment deletes a normal-role assignment.
func (s *RoleStore) RemoveAssignment(ctx context.Context, userID, roleName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	urs := s.assignments[userID]
	for i, ur := range urs {
		if ur.Role == roleName {
			s.assignments[userID] = append(urs[:i:i], urs[i+1:]...)
			return nil
		}
	}
	return role.ErrAssignmentNotFound
}

// UpdateAssignment replaces an existing assignment in place.
func (s *RoleStore) UpdateAssignment(ctx context.Context, ur role.UserRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	urs := s.assignments[ur.UserID]
	for i, existing := range urs {
		if existing.Role == ur.Role {
			urs[i] = ur
			return nil
		}
	}
	return role.ErrAssignmentNotFound
}

// GetUserAdminAssignments returns the user's admin-role assignments.
func (s *RoleStore) GetUserAdminAssignments(ctx context.Context, userID string) ([]role.UserAdminRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]role.UserAdminRole(nil), s.adminAssignments[userID]...), nil
}

// SaveAdminAssignment persists a new admin-role assignment.
func (s *RoleStore) SaveAdminAssignment(ctx context.Context, ur role.UserAdminRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.adminAssignments[ur.UserID] {
		if existing.Role == ur.Role {
			return role.ErrAssignmentExists
		}
	}
	s.adminAssignments[ur.UserID] = append(s.adminAssignments[ur.UserID], ur)
	return nil
}

// RemoveAdminAssignment deletes an admin-role assignment.
func (s *RoleStore) RemoveAdminAssignment(ctx context.Context, userID, roleName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	urs := s.adminAssignments[userID]
	for i, ur := range urs {
		if ur.Role == roleName {
			s.adminAssignments[userID] = append(urs[:i:i], urs[i+1:]...)
			return nil
		}
	}
	return role.ErrAssignmentNotFound
}

// copyRole returns a deep copy to prevent external mutation.
func copyRole(r *role.Role) *role.Role {
	c := *r
	c.Parents = append([]string(nil), r.Parents...)
	return &c
}

// copyAdminRole returns a deep copy to prevent external mutation.
func copyAdminRole(r *role.AdminRole) *role.AdminRole {
	c := *r
	c.Parents = append([]string(nil), r.Parents...)
	c.UserOUs = append([]string(nil), r.UserOUs...)
	c.PermOUs = append([]string(nil), r.PermOUs...)
	return &c
}
