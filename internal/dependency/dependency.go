// Package dependency maintains the directed graph between checkables and
// answers reachability queries against it.
package dependency

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/oceanplexian/vigilo/internal/clock"
	"github.com/oceanplexian/vigilo/internal/objects"
)

// Type selects which aspect of a dependency applies.
type Type int

const (
	TypeState Type = iota
	TypeCheckExecution
	TypeNotification
)

// Recursion limits. Cycles must be broken by bounded depth, not detected.
const (
	maxParentDepth   = 20
	maxChildrenDepth = 32
)

// Dependency is an explicit parent→child edge with an availability
// predicate evaluated against the parent's state and period.
type Dependency struct {
	Parent *objects.Checkable
	Child  *objects.Checkable
	Kind   Type

	// Period outside which the dependency does not apply.
	Period *objects.TimePeriod

	// Parent states under which the child stays available. Empty means the
	// parent must be in an OK state.
	AllowedParentStates []objects.ServiceState

	// IgnoreSoftStates makes a soft parent state count as its last hard
	// state for availability.
	IgnoreSoftStates bool
}

// Available reports whether the parent currently satisfies the dependency.
func (d *Dependency) Available(now time.Time) bool {
	if d.Period != nil && !d.Period.IsInside(now) {
		return true
	}

	state := d.Parent.StateRaw
	if d.IgnoreSoftStates && d.Parent.StateType == objects.StateTypeSoft {
		state = d.Parent.LastHardStateRaw
	}

	if len(d.AllowedParentStates) == 0 {
		return d.Parent.IsOKState(state)
	}
	for _, s := range d.AllowedParentStates {
		if s == state {
			return true
		}
	}
	return false
}

// Graph holds member edges (host/parent relations) and explicit
// dependencies. Reachability traverses without a global lock; a racing edit
// is benign because the next result recomputes.
type Graph struct {
	mu       sync.Mutex
	parents  map[*objects.Checkable][]*objects.Checkable
	children map[*objects.Checkable][]*objects.Checkable
	deps     map[*objects.Checkable][]*Dependency // keyed by child

	clock clock.Clock
	log   zerolog.Logger
}

// NewGraph creates an empty graph.
func NewGraph(clk clock.Clock, log zerolog.Logger) *Graph {
	return &Graph{
		parents:  make(map[*objects.Checkable][]*objects.Checkable),
		children: make(map[*objects.Checkable][]*objects.Checkable),
		deps:     make(map[*objects.Checkable][]*Dependency),
		clock:    clk,
		log:      log,
	}
}

// AddMember records a parent→child member edge.
func (g *Graph) AddMember(parent, child *objects.Checkable) {
	g.mu.Lock()
	g.parents[child] = append(g.parents[child], parent)
	g.children[parent] = append(g.children[parent], child)
	g.mu.Unlock()
}

// RemoveMember deletes a member edge.
func (g *Graph) RemoveMember(parent, child *objects.Checkable) {
	g.mu.Lock()
	g.parents[child] = remove(g.parents[child], parent)
	g.children[parent] = remove(g.children[parent], child)
	g.mu.Unlock()
}

// AddDependency registers an explicit dependency edge.
func (g *Graph) AddDependency(d *Dependency) {
	g.mu.Lock()
	g.deps[d.Child] = append(g.deps[d.Child], d)
	g.mu.Unlock()
}

// RemoveDependency removes an explicit dependency edge.
func (g *Graph) RemoveDependency(d *Dependency) {
	g.mu.Lock()
	deps := g.deps[d.Child]
	for i, e := range deps {
		if e == d {
			g.deps[d.Child] = append(deps[:i], deps[i+1:]...)
			break
		}
	}
	g.mu.Unlock()
}

// RemoveCheckable drops every edge touching c.
func (g *Graph) RemoveCheckable(c *objects.Checkable) {
	g.mu.Lock()
	for _, p := range g.parents[c] {
		g.children[p] = remove(g.children[p], c)
	}
	for _, ch := range g.children[c] {
		g.parents[ch] = remove(g.parents[ch], c)
	}
	delete(g.parents, c)
	delete(g.children, c)
	delete(g.deps, c)
	for child, deps := range g.deps {
		kept := deps[:0]
		for _, d := range deps {
			if d.Parent != c {
				kept = append(kept, d)
			}
		}
		g.deps[child] = kept
	}
	g.mu.Unlock()
}

// Parents returns the direct member parents of c.
func (g *Graph) Parents(c *objects.Checkable) []*objects.Checkable {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*objects.Checkable(nil), g.parents[c]...)
}

// Children returns the direct member children of c.
func (g *Graph) Children(c *objects.Checkable) []*objects.Checkable {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*objects.Checkable(nil), g.children[c]...)
}

// AllChildren enumerates transitive children, recursion bounded.
func (g *Graph) AllChildren(c *objects.Checkable) []*objects.Checkable {
	seen := make(map[*objects.Checkable]bool)
	g.collectChildren(c, seen, 0)
	out := make([]*objects.Checkable, 0, len(seen))
	for ch := range seen {
		out = append(out, ch)
	}
	return out
}

func (g *Graph) collectChildren(c *objects.Checkable, seen map[*objects.Checkable]bool, depth int) {
	if depth > maxChildrenDepth {
		return
	}
	for _, ch := range g.Children(c) {
		if seen[ch] {
			continue
		}
		seen[ch] = true
		g.collectChildren(ch, seen, depth+1)
	}
}

// IsReachable answers whether c is reachable with respect to t: every member
// parent must itself be reachable, a service's host must not be hard-down
// (soft-down stays reachable), and every explicit dependency of kind t must
// be available.
func (g *Graph) IsReachable(c *objects.Checkable, t Type) bool {
	return g.isReachable(c, t, 0)
}

func (g *Graph) isReachable(c *objects.Checkable, t Type, depth int) bool {
	if depth > maxParentDepth {
		g.log.Warn().Str("checkable", c.FullName()).
			Msg("dependency recursion limit reached, treating as unreachable")
		return false
	}

	for _, p := range g.Parents(c) {
		if !g.isReachable(p, t, depth+1) {
			return false
		}
	}

	if c.IsService() && (t == TypeState || t == TypeNotification) {
		host := c.Host()
		if host != nil && host.HostState() == objects.HostDown && host.StateType == objects.StateTypeHard {
			return false
		}
	}

	now := g.clock.Now()
	g.mu.Lock()
	deps := append([]*Dependency(nil), g.deps[c]...)
	g.mu.Unlock()
	for _, d := range deps {
		if d.Kind != t {
			continue
		}
		if !d.Available(now) {
			return false
		}
	}
	return true
}

func remove(list []*objects.Checkable, c *objects.Checkable) []*objects.Checkable {
	for i, e := range list {
		if e == c {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
