package sod

import (
	"errors"
	"fmt"
)

// ErrSSDConflict is returned when an assignment would give a user a
// conflicting set of statically separated roles.
var ErrSSDConflict = errors.New("static separation of duty conflict")

// ErrDSDConflict is returned when an activation would give a session a
// conflicting set of dynamically separated roles.
var ErrDSDConflict = errors.New("dynamic separation of duty conflict")

// CheckStatic refuses an assignment that would let the user hold
// Cardinality or more member roles of any static set. The caller
// supplies the ascendant closure of the user's assigned roles plus the
// candidate role and its closure (inherited membership counts toward a
// conflict).
func CheckStatic(closure map[string]struct{}, sets []SDSet) error {
	return check(closure, sets, ErrSSDConflict)
}

// CheckDynamic refuses an activation that would let the session hold
// Cardinality or more member roles of any dynamic set simultaneously
// active. The caller supplies the closure of the currently active roles
// plus the candidate.
func CheckDynamic(closure map[string]struct{}, sets []SDSet) error {
	return check(closure, sets, ErrDSDConflict)
}

func check(closure map[string]struct{}, sets []SDSet, conflict error) error {
	for _, s := range sets {
		matched := 0
		for _, m := range s.Members {
			if _, ok := closure[m]; ok {
				matched++
			}
		}
		if matched >= s.Cardinality {
			return fmt.Errorf("set %q: %d of %d conflicting roles held: %w",
				s.Name, matched, s.Cardinality, conflict)
		}
	}
	return nil
}
