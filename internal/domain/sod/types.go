// Package sod implements static and dynamic separation-of-duty
// constraint checking.
package sod

import (
	"context"
	"errors"
)

// SetType distinguishes static from dynamic separation-of-duty sets.
type SetType string

const (
	// Static sets bound how many member roles one user may be
	// assigned; checked at assignment time.
	Static SetType = "STATIC"
	// Dynamic sets bound how many member roles one session may have
	// simultaneously active; checked at activation time.
	Dynamic SetType = "DYNAMIC"
)

// IsValid returns true if the set type is a known value.
func (t SetType) IsValid() bool {
	return t == Static || t == Dynamic
}

// SDSet is a named conflict set: no user (Static) or session (Dynamic)
// may hold Cardinality or more of the member roles at once.
type SDSet struct {
	// Name is the unique identifier for this set.
	Name string
	// Description is optional human-readable context.
	Description string
	// Type is Static or Dynamic.
	Type SetType
	// Cardinality is the conflict threshold, always at least 2.
	Cardinality int
	// Members are the role names in the conflict set.
	Members []string
}

// ErrSetNotFound is returned when an SD set doesn't exist in the store.
var ErrSetNotFound = errors.New("sd set not found")

// ErrBadCardinality is returned when creating a set with cardinality
// below 2 or above the member count.
var ErrBadCardinality = errors.New("sd set cardinality must be between 2 and the member count")

// Store is the persistence collaborator for separation-of-duty sets.
type Store interface {
	// GetSets returns all sets of the given type.
	GetSets(ctx context.Context, t SetType) ([]SDSet, error)
	// GetSet returns a set by name. Returns ErrSetNotFound if absent.
	GetSet(ctx context.Context, name string) (*SDSet, error)
	// SaveSet creates or updates a set.
	SaveSet(ctx context.Context, s *SDSet) error
	// DeleteSet removes a set by name.
	DeleteSet(ctx context.Context, name string) error
}
