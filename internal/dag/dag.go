// Package dag provides the workflow dependency graph used by the planner and
// the enactor. Nodes are workflow names; an edge parent -> child means the
// child must not start before the parent completes.
package dag

import (
	"sort"

	"github.com/me/campman/pkg/model"
)

// Graph is a directed graph over workflow names with optional transfer costs
// on edges. Built once per planning pass; read-only during execution.
type Graph struct {
	nodes    []string
	index    map[string]int
	succ     map[string][]string
	pred     map[string][]string
	transfer map[[2]string]float64
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		index:    make(map[string]int),
		succ:     make(map[string][]string),
		pred:     make(map[string][]string),
		transfer: make(map[[2]string]float64),
	}
}

// Add inserts a node. Adding an existing node is a no-op. Node order is
// preserved so iteration stays deterministic.
func (g *Graph) Add(name string) {
	if _, ok := g.index[name]; ok {
		return
	}
	g.index[name] = len(g.nodes)
	g.nodes = append(g.nodes, name)
}

// AddEdge inserts a parent -> child edge with the given transfer cost in
// minutes. Both endpoints are added if missing.
func (g *Graph) AddEdge(parent, child string, transferCost float64) {
	g.Add(parent)
	g.Add(child)
	for _, s := range g.succ[parent] {
		if s == child {
			g.transfer[[2]string{parent, child}] = transferCost
			return
		}
	}
	g.succ[parent] = append(g.succ[parent], child)
	g.pred[child] = append(g.pred[child], parent)
	g.transfer[[2]string{parent, child}] = transferCost
}

// Nodes returns all node names in insertion order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Has reports whether the node exists.
func (g *Graph) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Predecessors returns the direct parents of a node, sorted by insertion order.
func (g *Graph) Predecessors(name string) []string {
	return g.ordered(g.pred[name])
}

// Successors returns the direct children of a node, sorted by insertion order.
func (g *Graph) Successors(name string) []string {
	return g.ordered(g.succ[name])
}

// TransferCost returns the transfer cost of the parent -> child edge, or 0
// when no edge or no cost is modeled.
func (g *Graph) TransferCost(parent, child string) float64 {
	return g.transfer[[2]string{parent, child}]
}

// TransitiveDependents returns every node reachable from name via successor
// edges, excluding name itself, in insertion order.
func (g *Graph) TransitiveDependents(name string) []string {
	seen := make(map[string]bool)
	var walk func(n string)
	walk = func(n string) {
		for _, s := range g.succ[n] {
			if !seen[s] {
				seen[s] = true
				walk(s)
			}
		}
	}
	walk(name)

	out := make([]string, 0, len(seen))
	for _, n := range g.nodes {
		if seen[n] {
			out = append(out, n)
		}
	}
	return out
}

// TopologicalOrder returns the nodes so that every parent precedes its
// children. Among nodes whose dependencies are equally satisfied, insertion
// order is kept. Returns a CycleError if the graph has a cycle.
func (g *Graph) TopologicalOrder() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		indegree[n] = len(g.pred[n])
	}

	ready := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		released := make([]string, 0)
		for _, s := range g.succ[n] {
			indegree[s]--
			if indegree[s] == 0 {
				released = append(released, s)
			}
		}
		ready = append(ready, g.ordered(released)...)
	}

	if len(order) != len(g.nodes) {
		return nil, &model.CycleError{Cycle: g.findCycle()}
	}
	return order, nil
}

// Validate returns a CycleError if the graph is cyclic.
func (g *Graph) Validate() error {
	_, err := g.TopologicalOrder()
	return err
}

// findCycle locates one cycle for error reporting.
func (g *Graph) findCycle() []string {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var visit func(n string) bool
	visit = func(n string) bool {
		color[n] = grey
		stack = append(stack, n)
		for _, s := range g.succ[n] {
			switch color[s] {
			case grey:
				// Found it; slice the stack from the first occurrence of s.
				for i, v := range stack {
					if v == s {
						cycle = append(append([]string{}, stack[i:]...), s)
						return true
					}
				}
			case white:
				if visit(s) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return false
	}

	for _, n := range g.nodes {
		if color[n] == white && visit(n) {
			break
		}
	}
	return cycle
}

// ordered sorts a node slice by graph insertion order.
func (g *Graph) ordered(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	sort.SliceStable(out, func(i, j int) bool {
		return g.index[out[i]] < g.index[out[j]]
	})
	return out
}

// FromCampaign builds the graph for a campaign from each workflow's declared
// dependencies. Every referenced dependency must exist in the campaign.
func FromCampaign(c *model.Campaign) (*Graph, error) {
	g := New()
	for _, w := range c.Workflows {
		g.Add(w.Name)
	}
	for _, w := range c.Workflows {
		for _, dep := range w.DependsOn {
			if !g.Has(dep) {
				return nil, &model.ConfigError{
					Section: w.Name,
					Field:   "depends_on",
					Message: "unknown workflow " + dep,
				}
			}
			g.AddEdge(dep, w.Name, 0)
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
