package store

import (
	"sort"
	"sync"
)

// Graph is an undirected adjacency set. Edges are never removed.
type Graph struct {
	mu    sync.RWMutex
	adj   map[string]map[string]struct{}
	edges int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{adj: make(map[string]map[string]struct{})}
}

// AddEdge links a and b in both directions. Repeated calls and self-edges are no-ops.
// It reports whether a new edge was created.
func (g *Graph) AddEdge(a, b string) bool {
	if a == "" || b == "" || a == b {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.adj[a][b]; ok {
		return false
	}
	g.link(a, b)
	g.link(b, a)
	g.edges++
	return true
}

func (g *Graph) link(from, to string) {
	set, ok := g.adj[from]
	if !ok {
		set = make(map[string]struct{})
		g.adj[from] = set
	}
	set[to] = struct{}{}
}

// Neighbors returns the ids adjacent to id in ascending order. Unknown ids
// yield an empty slice.
func (g *Graph) Neighbors(id string) []string {
	g.mu.RLock()
	set := g.adj[id]
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	g.mu.RUnlock()
	sort.Strings(out)
	return out
}

// HasEdge reports whether a and b are directly linked.
func (g *Graph) HasEdge(a, b string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.adj[a][b]
	return ok
}

// SharedNeighbors returns the ids adjacent to both a and b, ascending.
func (g *Graph) SharedNeighbors(a, b string) []string {
	g.mu.RLock()
	small, large := g.adj[a], g.adj[b]
	if len(small) > len(large) {
		small, large = large, small
	}
	var out []string
	for n := range small {
		if _, ok := large[n]; ok {
			out = append(out, n)
		}
	}
	g.mu.RUnlock()
	sort.Strings(out)
	return out
}

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges
}
