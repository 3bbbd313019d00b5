package planner

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/me/campman/internal/dag"
	"github.com/me/campman/internal/estimator"
	"github.com/me/campman/pkg/model"
)

// Heft is a list scheduler based on Heterogeneous Earliest Finish Time
// (Topcuoglu, Hariri, Wu; IEEE TPDS 2002), adapted for allocation of
// contiguous node ranges on a homogeneous HPC cluster: workflows are ranked
// by upward rank over the dependency graph, then placed in rank order at the
// earliest slot where a wide-enough node range is free.
type Heft struct {
	est    estimator.Estimator
	logger *slog.Logger
}

// NewHeft creates a HEFT planner using the given estimator.
func NewHeft(est estimator.Estimator, logger *slog.Logger) *Heft {
	return &Heft{
		est:    est,
		logger: logger.With("component", "heft-planner"),
	}
}

// Plan computes one PlanEntry per campaign workflow on the campaign's target
// resource. A dependency cycle or an impossible resource request aborts the
// whole plan. A makespan beyond the campaign deadline is reported as a
// warning; the plan is still returned and the caller decides whether to
// proceed.
func (h *Heft) Plan(ctx context.Context, c *model.Campaign, resources map[string]*model.Resource) (*model.Plan, *dag.Graph, error) {
	res, err := targetResource(c, resources)
	if err != nil {
		return nil, nil, err
	}

	g, err := dag.FromCampaign(c)
	if err != nil {
		return nil, nil, err
	}

	// Estimated cost (walltime minutes) and node width per workflow.
	cost := make(map[string]float64, len(c.Workflows))
	width := make(map[string]int, len(c.Workflows))
	for _, w := range c.Workflows {
		est, err := h.est.Estimate(ctx, w)
		if err != nil {
			return nil, nil, fmt.Errorf("estimate workflow %s: %w", w.Name, err)
		}
		walltime := est.WalltimeMinutes
		if walltime <= 0 {
			walltime = w.RuntimeMinutes()
		}
		cost[w.Name] = walltime

		cores := est.Cores
		if cores <= 0 {
			cores = w.Ranks() * w.Threads()
		}
		nodes := int(math.Ceil(float64(cores) / float64(res.CoresPerNode)))
		if nodes < 1 {
			nodes = 1
		}
		if nodes > res.Nodes {
			return nil, nil, &model.InfeasibleError{
				Workflow: w.Name,
				Nodes:    nodes,
				Resource: res.Name,
				Capacity: res.Nodes,
			}
		}
		width[w.Name] = nodes
	}

	ranks := h.upwardRanks(g, cost)
	order := priorityOrder(c, ranks)

	entries := make([]*model.PlanEntry, 0, len(c.Workflows))
	placedBy := make(map[string]*model.PlanEntry, len(c.Workflows))

	for len(entries) < len(c.Workflows) {
		w := nextPlaceable(order, g, placedBy)
		if w == nil {
			// Cannot happen on a validated DAG; guard against a stuck loop.
			return nil, nil, fmt.Errorf("no placeable workflow left, %d of %d placed",
				len(entries), len(c.Workflows))
		}

		earliest := 0.0
		for _, pred := range g.Predecessors(w.Name) {
			p := placedBy[pred]
			if t := p.End + g.TransferCost(pred, w.Name); t > earliest {
				earliest = t
			}
		}

		entry := place(w, width[w.Name], cost[w.Name], earliest, res, entries)
		entry.Qos = res.SelectQos(cost[w.Name])
		entries = append(entries, entry)
		placedBy[w.Name] = entry

		h.logger.Debug("placed workflow",
			"workflow", w.Name,
			"nodes", fmt.Sprintf("[%d,%d]", entry.NodeStart, entry.NodeEnd),
			"start", entry.Start, "end", entry.End, "qos", entry.Qos)
	}

	plan := &model.Plan{Resource: res.Name, Entries: entries}
	if c.Deadline > 0 && plan.Makespan() > c.Deadline {
		h.logger.Warn("plan exceeds campaign deadline",
			"makespan_minutes", plan.Makespan(), "deadline_minutes", c.Deadline)
	}
	h.logger.Info("plan computed",
		"workflows", len(entries), "resource", res.Name, "makespan_minutes", plan.Makespan())

	return plan, g, nil
}

// upwardRanks computes rank(w) = cost(w) + max over successors s of
// (transfer(w,s) + rank(s)), walking the graph in reverse topological order.
func (h *Heft) upwardRanks(g *dag.Graph, cost map[string]float64) map[string]float64 {
	order, _ := g.TopologicalOrder() // graph already validated
	ranks := make(map[string]float64, len(order))

	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		best := 0.0
		for _, s := range g.Successors(n) {
			if r := g.TransferCost(n, s) + ranks[s]; r > best {
				best = r
			}
		}
		ranks[n] = cost[n] + best
	}
	return ranks
}

// priorityOrder sorts the campaign's workflows by descending rank; ties keep
// campaign insertion order so scheduling stays deterministic.
func priorityOrder(c *model.Campaign, ranks map[string]float64) []*model.Workflow {
	order := make([]*model.Workflow, len(c.Workflows))
	copy(order, c.Workflows)
	sort.SliceStable(order, func(i, j int) bool {
		return ranks[order[i].Name] > ranks[order[j].Name]
	})
	return order
}

// nextPlaceable returns the highest-priority unplaced workflow whose
// predecessors all have assigned finish times.
func nextPlaceable(order []*model.Workflow, g *dag.Graph, placed map[string]*model.PlanEntry) *model.Workflow {
	for _, w := range order {
		if _, done := placed[w.Name]; done {
			continue
		}
		ready := true
		for _, pred := range g.Predecessors(w.Name) {
			if _, ok := placed[pred]; !ok {
				ready = false
				break
			}
		}
		if ready {
			return w
		}
	}
	return nil
}

// place finds the earliest start time at or after earliest where a contiguous
// range of nodes wide nodes is free for duration minutes, preferring the
// lowest starting node index. The earliest feasible start minimizes finish
// time because the duration is fixed.
func place(w *model.Workflow, nodes int, duration, earliest float64, res *model.Resource, placed []*model.PlanEntry) *model.PlanEntry {
	// Candidate start times: the dependency-derived earliest time plus every
	// later release point of an existing placement.
	candidates := []float64{earliest}
	for _, e := range placed {
		if e.End > earliest {
			candidates = append(candidates, e.End)
		}
	}
	sort.Float64s(candidates)

	for _, t := range candidates {
		if start, ok := freeRange(nodes, t, t+duration, res.Nodes, placed); ok {
			return &model.PlanEntry{
				Workflow:  w,
				NodeStart: start,
				NodeEnd:   start + nodes - 1,
				Start:     t,
				End:       t + duration,
			}
		}
	}

	// The cluster is empty after the last release point, so the final
	// candidate always fits; this is unreachable.
	last := candidates[len(candidates)-1]
	return &model.PlanEntry{
		Workflow:  w,
		NodeStart: 0,
		NodeEnd:   nodes - 1,
		Start:     last,
		End:       last + duration,
	}
}

// freeRange returns the lowest starting index of a contiguous run of nodes
// free throughout [start, end), or false when none exists.
func freeRange(nodes int, start, end float64, total int, placed []*model.PlanEntry) (int, bool) {
	busy := make([]bool, total)
	for _, e := range placed {
		if e.Start < end && start < e.End {
			for n := e.NodeStart; n <= e.NodeEnd && n < total; n++ {
				busy[n] = true
			}
		}
	}

	run := 0
	for n := 0; n < total; n++ {
		if busy[n] {
			run = 0
			continue
		}
		run++
		if run == nodes {
			return n - nodes + 1, true
		}
	}
	return 0, false
}

// targetResource resolves the campaign's target resource from the map. A
// single-entry map is used as-is when the campaign does not name a target.
func targetResource(c *model.Campaign, resources map[string]*model.Resource) (*model.Resource, error) {
	if len(resources) == 0 {
		return nil, &model.ConfigError{Section: "campaign", Field: "resources", Message: "no resources configured"}
	}
	if c.TargetResource == "" && len(resources) == 1 {
		for _, r := range resources {
			return r, nil
		}
	}
	r, ok := resources[c.TargetResource]
	if !ok {
		return nil, &model.UnknownResourceError{Resource: c.TargetResource}
	}
	return r, nil
}
