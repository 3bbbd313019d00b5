package model

// PlanEntry is one workflow's assignment in an execution plan: a contiguous
// node range (inclusive on both ends), a start and end time in minutes from
// campaign start, and the selected QoS tier. Entries are never mutated after
// the planner emits them; a changed schedule is a new Plan.
type PlanEntry struct {
	Workflow  *Workflow `json:"workflow"`
	NodeStart int       `json:"node_start"`
	NodeEnd   int       `json:"node_end"`
	Start     float64   `json:"start"`
	End       float64   `json:"end"`
	Qos       string    `json:"qos"`
}

// Nodes returns the width of the assigned node range.
func (e *PlanEntry) Nodes() int {
	return e.NodeEnd - e.NodeStart + 1
}

// Overlaps reports whether the [Start,End) intervals of two entries overlap
// in time.
func (e *PlanEntry) Overlaps(other *PlanEntry) bool {
	return e.Start < other.End && other.Start < e.End
}

// OverlapsNodes reports whether the node ranges of two entries intersect.
func (e *PlanEntry) OverlapsNodes(other *PlanEntry) bool {
	return e.NodeStart <= other.NodeEnd && other.NodeStart <= e.NodeEnd
}

// Plan is the planner's output: one entry per campaign workflow, ordered by
// scheduling priority.
type Plan struct {
	Resource string       `json:"resource"`
	Entries  []*PlanEntry `json:"entries"`
}

// Makespan returns the end time of the latest-finishing entry.
func (p *Plan) Makespan() float64 {
	makespan := 0.0
	for _, e := range p.Entries {
		if e.End > makespan {
			makespan = e.End
		}
	}
	return makespan
}

// EntryFor returns the entry for the named workflow, or nil.
func (p *Plan) EntryFor(name string) *PlanEntry {
	for _, e := range p.Entries {
		if e.Workflow.Name == name {
			return e
		}
	}
	return nil
}
