// Package hierarchy maintains a directed acyclic graph of role
// inheritance for one role namespace and answers transitive closure
// queries over it. The normal-role graph and the administrative-role
// graph are separate instances of the same type and are never
// cross-linked.
package hierarchy

import (
	"errors"
	"sync"
)

// ErrCycle is returned when adding an edge would create a cycle.
var ErrCycle = errors.New("hierarchy edge would create a cycle")

// ErrUnknownRole is returned when an operation references a role that
// is not present in the graph.
var ErrUnknownRole = errors.New("unknown role")

// ErrEdgeNotFound is returned when removing an edge that does not exist.
var ErrEdgeNotFound = errors.New("inheritance edge not found")

// ErrDuplicateEdge is returned when adding an edge that already exists.
var ErrDuplicateEdge = errors.New("inheritance edge already exists")

// ErrDuplicateRole is returned when adding a role name already present.
var ErrDuplicateRole = errors.New("role already exists in hierarchy")

// node is one role in the arena. Edges are stored as adjacency sets in
// both directions; closure queries traverse these sets with a visited
// guard and never follow live object references.
type node struct {
	parents  map[string]struct{}
	children map[string]struct{}
}

// Graph is a DAG of role inheritance. A role's parents are the roles
// whose authority it inherits; ascendants(r) is the transitive parent
// closure. Closure results are memoized per role and invalidated when
// a mutation touches any role reachable from the changed edge.
//
// Reads are safe for unbounded concurrent callers. Mutations are
// serialized against each other and against in-flight closure
// computations by a single RWMutex per instance.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*node

	// Memoized closures, keyed by role name. Populated lazily under
	// the write lock on first query, dropped transactionally with the
	// mutation that invalidates them.
	ascCache  map[string]map[string]struct{}
	descCache map[string]map[string]struct{}
}

// New creates an empty hierarchy graph.
func New() *Graph {
	return &Graph{
		nodes:     make(map[string]*node),
		ascCache:  make(map[string]map[string]struct{}),
		descCache: make(map[string]map[string]struct{}),
	}
}

// AddRole adds a role with no edges. Returns ErrDuplicateRole if the
// name is already present.
func (g *Graph) AddRole(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[name]; ok {
		return ErrDuplicateRole
	}
	g.nodes[name] = &node{
		parents:  make(map[string]struct{}),
		children: make(map[string]struct{}),
	}
	return nil
}

// RemoveRole deletes a role and every edge touching it. Returns
// ErrUnknownRole if the role is absent.
func (g *Graph) RemoveRole(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[name]
	if !ok {
		return ErrUnknownRole
	}
	for p := range n.parents {
		delete(g.nodes[p].children, name)
	}
	for c := range n.children {
		delete(g.nodes[c].parents, name)
	}
	delete(g.nodes, name)

	// A removed role may appear in any cached closure; drop them all.
	g.ascCache = make(map[string]map[string]struct{})
	g.descCache = make(map[string]map[string]struct{})
	return nil
}

// Contains reports whether the role is present in the graph.
func (g *Graph) Contains(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[name]
	return ok
}

// Roles returns the names of all roles in the graph.
func (g *Graph) Roles() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		out = append(out, name)
	}
	return out
}

// AddEdge records that child inherits the authority of parent.
// Returns ErrUnknownRole if either endpoint is absent, ErrDuplicateEdge
// if the edge already exists, and ErrCycle if the edge would make
// parent reachable from itself.
func (g *Graph) AddEdge(parent, child string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.nodes[parent]
	if !ok {
		return ErrUnknownRole
	}
	c, ok := g.nodes[child]
	if !ok {
		return ErrUnknownRole
	}
	if _, ok := c.parents[parent]; ok {
		return ErrDuplicateEdge
	}
	if parent == child || g.reachesLocked(child, parent, func(n *node) map[string]struct{} { return n.parents }) {
		return ErrCycle
	}

	c.parents[parent] = struct{}{}
	p.children[child] = struct{}{}
	g.invalidateLocked(parent, child)
	return nil
}

// RemoveEdge deletes the parent→child edge. Returns ErrEdgeNotFound if
// the edge is absent and ErrUnknownRole if either endpoint is.
func (g *Graph) RemoveEdge(parent, child string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.nodes[parent]
	if !ok {
		return ErrUnknownRole
	}
	c, ok := g.nodes[child]
	if !ok {
		return ErrUnknownRole
	}
	if _, ok := c.parents[parent]; !ok {
		return ErrEdgeNotFound
	}

	delete(c.parents, parent)
	delete(p.children, child)
	g.invalidateLocked(parent, child)
	return nil
}

// Ascendants returns the transitive closure of all ancestors of the
// role: every role whose authority it inherits, directly or through
// intermediates. The role itself is not included.
func (g *Graph) Ascendants(name string) (map[string]struct{}, error) {
	return g.closure(name, g.ascCache, func(n *node) map[string]struct{} { return n.parents })
}

// Descendants returns the transitive closure of all roles that inherit
// the role's authority. The role itself is not included.
func (g *Graph) Descendants(name string) (map[string]struct{}, error) {
	return g.closure(name, g.descCache, func(n *node) map[string]struct{} { return n.children })
}

// IsAscendant reports whether a is in the ascendant closure of b.
func (g *Graph) IsAscendant(a, b string) (bool, error) {
	asc, err := g.Ascendants(b)
	if err != nil {
		return false, err
	}
	_, ok := asc[a]
	return ok, nil
}

// IsDescendant reports whether a is in the descendant closure of b.
func (g *Graph) IsDescendant(a, b string) (bool, error) {
	desc, err := g.Descendants(b)
	if err != nil {
		return false, err
	}
	_, ok := desc[a]
	return ok, nil
}

// Parents returns the immediate parents of the role.
func (g *Graph) Parents(name string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[name]
	if !ok {
		return nil, ErrUnknownRole
	}
	out := make([]string, 0, len(n.parents))
	for p := range n.parents {
		out = append(out, p)
	}
	return out, nil
}

// Edges returns every parent→child pair in the graph.
func (g *Graph) Edges() [][2]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out [][2]string
	for child, n := range g.nodes {
		for parent := range n.parents {
			out = append(out, [2]string{parent, child})
		}
	}
	return out
}

// closure returns the memoized transitive closure for name in the given
// direction, computing and caching it on a miss. Callers receive the
// cached map and must not mutate it.
func (g *Graph) closure(name string, cache map[string]map[string]struct{}, next func(*node) map[string]struct{}) (map[string]struct{}, error) {
	g.mu.RLock()
	if c, ok := cache[name]; ok {
		g.mu.RUnlock()
		return c, nil
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	// Re-check: another writer may have filled the entry, or removed
	// the role, between lock transitions.
	if c, ok := cache[name]; ok {
		return c, nil
	}
	if _, ok := g.nodes[name]; !ok {
		return nil, ErrUnknownRole
	}

	c := g.traverseLocked(name, next)
	cache[name] = c
	return c, nil
}

// traverseLocked walks the graph from start in the given direction and
// returns every reachable role, excluding start itself. Explicit stack
// with a visited set; never recursive.
func (g *Graph) traverseLocked(start string, next func(*node) map[string]struct{}) map[string]struct{} {
	visited := make(map[string]struct{})
	stack := make([]string, 0, len(next(g.nodes[start])))
	for n := range next(g.nodes[start]) {
		stack = append(stack, n)
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := visited[cur]; ok {
			continue
		}
		visited[cur] = struct{}{}
		if n, ok := g.nodes[cur]; ok {
			for nxt := range next(n) {
				if _, seen := visited[nxt]; !seen {
					stack = append(stack, nxt)
				}
			}
		}
	}
	return visited
}

// reachesLocked reports whether target is reachable from start in the
// given direction. Used for the cycle check before committing an edge:
// parent→child cycles exactly when child is already an ancestor of
// parent.
func (g *Graph) reachesLocked(target, from string, next func(*node) map[string]struct{}) bool {
	reach := g.traverseLocked(from, next)
	_, ok := reach[target]
	return ok
}

// invalidateLocked drops every cached closure that the parent→child
// mutation can have changed: ascendant closures of child and everything
// below it, descendant closures of parent and everything above it.
func (g *Graph) invalidateLocked(parent, child string) {
	stale := g.traverseLocked(child, func(n *node) map[string]struct{} { return n.children })
	stale[child] = struct{}{}
	for name := range stale {
		delete(g.ascCache, name)
	}

	stale = g.traverseLocked(parent, func(n *node) map[string]struct{} { return n.parents })
	stale[parent] = struct{}{}
	for name := range stale {
		delete(g.descCache, name)
	}
}
