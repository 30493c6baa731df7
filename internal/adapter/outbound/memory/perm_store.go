package memory

import (
	"context"
	"sync"

	"github.com/RoleGate/rolegate/internal/domain/perm"
)

// PermStore implements perm.Store with an in-memory map keyed by the
// permission coordinates.
type PermStore struct {
	mu    sync.RWMutex
	perms map[string]*perm.Permission
}

// NewPermStore creates an empty in-memory permission store.
func NewPermStore() *PermStore {
	return &PermStore{perms: make(map[string]*perm.Permission)}
}

// GetPermission returns the permission for the given coordinates.
func (s *PermStore) GetPermission(ctx context.Context, objName, opName, objID string) (*perm.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.perms[perm.Key(objName, opName, objID)]
	if !ok {
		return nil, perm.ErrPermissionNotFound
	}
	return copyPermission(p), nil
}

// GetAllPermissions returns every permission.
func (s *PermStore) GetAllPermissions(ctx context.Context) ([]perm.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]perm.Permission, 0, len(s.perms))
	for _, p := range s.perms {
		out = append(out, *copyPermission(p))
	}
	return out, nil
}

// SavePermission creates or updates a permission.
func (s *PermStore) SavePermission(ctx context.Context, p *perm.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.perms[perm.Key(p.ObjName, p.OpName, p.ObjID)] = copyPermission(p)
	return nil
}

// DeletePermission removes a permission.
func (s *PermStore) DeletePermission(ctx context.Context, objName, opName, objID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := perm.Key(objName, opName, objID)
	if _, ok := s.perms[key]; !ok {
		return perm.ErrPermissionNotFound
	}
	delete(s.perms, key)
	return nil
}

func copyPermission(p *perm.Permission) *perm.Permission {
	c := *p
	c.Roles = append([]string(nil), p.Roles...)
	c.Users = append([]string(nil), p.Users...)
	return &c
}
