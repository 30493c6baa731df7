// Package service contains application services.
package service

import (
	"sync/atomic"

	"github.com/RoleGate/rolegate/internal/domain/hierarchy"
	"github.com/RoleGate/rolegate/internal/domain/role"
)

// Hierarchies holds the two independent role graphs. Structural
// mutations go through the graph's own lock; a directory reload swaps
// whole graphs atomically so in-flight readers keep a consistent view.
type Hierarchies struct {
	roles atomic.Pointer[hierarchy.Graph]
	admin atomic.Pointer[hierarchy.Graph]
}

// NewHierarchies creates a pair of empty graphs.
func NewHierarchies() *Hierarchies {
	h := &Hierarchies{}
	h.roles.Store(hierarchy.New())
	h.admin.Store(hierarchy.New())
	return h
}

// Roles returns the normal-role graph.
func (h *Hierarchies) Roles() *hierarchy.Graph {
	return h.roles.Load()
}

// Admin returns the administrative-role graph.
func (h *Hierarchies) Admin() *hierarchy.Graph {
	return h.admin.Load()
}

// Graph returns the graph for the namespace.
func (h *Hierarchies) Graph(ns role.Namespace) *hierarchy.Graph {
	if ns == role.NamespaceAdmin {
		return h.Admin()
	}
	return h.Roles()
}

// swap replaces both graphs. Nil keeps the current graph.
func (h *Hierarchies) swap(roles, admin *hierarchy.Graph) {
	if roles != nil {
		h.roles.Store(roles)
	}
	if admin != nil {
		h.admin.Store(admin)
	}
}

// expandClosure returns the union of each named role with its ascendant
// closure. A name missing from the graph (a stale assignment) counts
// only for itself.
func expandClosure(g *hierarchy.Graph, names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
		asc, err := g.Ascendants(n)
		if err != nil {
			continue
		}
		for a := range asc {
			out[a] = struct{}{}
		}
	}
	return out
}
