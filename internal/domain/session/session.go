package session

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh random session identifier.
func NewID() string {
	return uuid.NewString()
}

// Touch updates the last-access timestamp. Every access check and role
// mutation on a live session touches it.
func (s *Session) Touch(now time.Time) {
	s.LastAccess = now.UTC()
}

// IdleTimeout returns the effective idle limit: the smallest nonzero
// timeout across the active role constraints, or zero when every
// constraint is unbounded.
func (s *Session) IdleTimeout() time.Duration {
	var min time.Duration
	consider := func(roles []ActiveRole) {
		for _, r := range roles {
			t := r.Constraint.IdleTimeout()
			if t == 0 {
				continue
			}
			if min == 0 || t < min {
				min = t
			}
		}
	}
	consider(s.ActiveRoles)
	consider(s.AdminRoles)
	return min
}

// IsExpired reports whether the idle timeout has elapsed relative to
// the last access. A session with no timeout never idles out.
func (s *Session) IsExpired(now time.Time) bool {
	timeout := s.IdleTimeout()
	if timeout == 0 {
		return false
	}
	return now.UTC().Sub(s.LastAccess) > timeout
}

// HasActiveRole reports whether the named normal role is active.
func (s *Session) HasActiveRole(name string) bool {
	for _, r := range s.ActiveRoles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// ActiveRoleNames returns the names of the active normal roles.
func (s *Session) ActiveRoleNames() []string {
	out := make([]string, 0, len(s.ActiveRoles))
	for _, r := range s.ActiveRoles {
		out = append(out, r.Name)
	}
	return out
}

// AdminRoleNames returns the names of the active administrative roles.
func (s *Session) AdminRoleNames() []string {
	out := make([]string, 0, len(s.AdminRoles))
	for _, r := range s.AdminRoles {
		out = append(out, r.Name)
	}
	return out
}

// Warn appends a non-fatal activation warning.
func (s *Session) Warn(role string, admin bool, reason string) {
	s.Warnings = append(s.Warnings, Warning{Role: role, Admin: admin, Reason: reason})
}

// Clone returns a deep copy. Stores return clones so callers can't
// mutate shared state.
func (s *Session) Clone() *Session {
	c := *s
	c.ActiveRoles = append([]ActiveRole(nil), s.ActiveRoles...)
	c.AdminRoles = append([]ActiveRole(nil), s.AdminRoles...)
	c.Warnings = append([]Warning(nil), s.Warnings...)
	return &c
}
