package memory

import (
	"context"
	"sync"

	"github.com/RoleGate/rolegate/internal/domain/auth"
)

// UserStore implements auth.Store with an in-memory map.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*auth.User
}

// NewUserStore creates an empty in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*auth.User)}
}

// GetUser returns a user by ID.
func (s *UserStore) GetUser(ctx context.Context, id string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return copyUser(u), nil
}

// GetAllUsers returns every user.
func (s *UserStore) GetAllUsers(ctx context.Context) ([]auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]auth.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *copyUser(u))
	}
	return out, nil
}

// SaveUser creates or updates a user.
func (s *UserStore) SaveUser(ctx context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[u.ID] = copyUser(u)
	return nil
}

// DeleteUser removes a user by ID.
func (s *UserStore) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return auth.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func copyUser(u *auth.User) *auth.User {
	c := *u
	if u.Props != nil {
		c.Props = make(map[string]string, len(u.Props))
		for k, v := range u.Props {
			c.Props[k] = v
		}
	}
	return &c
}
