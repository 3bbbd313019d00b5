package model

// Resource request keys used in Workflow.Resources. Values are normalized to
// numeric units (MB for memory, minutes for runtime) during configuration
// expansion, before planning sees them.
const (
	ResourceRanks   = "ranks"
	ResourceThreads = "threads"
	ResourceMemory  = "memory"  // MB
	ResourceRuntime = "runtime" // minutes
)

// Workflow is one schedulable unit of work in a campaign. Workflows are
// created during configuration expansion and immutable once part of a
// Campaign.
type Workflow struct {
	ID          int                `json:"id"`
	Name        string             `json:"name"` // unique within a campaign
	Executable  string             `json:"executable"`
	Subcommand  string             `json:"subcommand,omitempty"`
	Context     string             `json:"context,omitempty"`
	Args        []string           `json:"args,omitempty"`
	Environment map[string]string  `json:"environment,omitempty"`
	Resources   map[string]float64 `json:"resources,omitempty"`
	DependsOn   []string           `json:"depends_on,omitempty"`
}

// Ranks returns the requested process count, defaulting to 1.
func (w *Workflow) Ranks() int {
	if v, ok := w.Resources[ResourceRanks]; ok && v >= 1 {
		return int(v)
	}
	return 1
}

// Threads returns the requested threads per process, defaulting to 1.
func (w *Workflow) Threads() int {
	if v, ok := w.Resources[ResourceThreads]; ok && v >= 1 {
		return int(v)
	}
	return 1
}

// MemoryMB returns the requested memory in MB, or 0 when unset.
func (w *Workflow) MemoryMB() float64 {
	return w.Resources[ResourceMemory]
}

// RuntimeMinutes returns the declared runtime in minutes, or 0 when unset.
func (w *Workflow) RuntimeMinutes() float64 {
	return w.Resources[ResourceRuntime]
}

// Command returns the executable plus subcommand as submitted to the batch
// scheduler.
func (w *Workflow) Command() string {
	if w.Subcommand == "" {
		return w.Executable
	}
	return w.Executable + " " + w.Subcommand
}

// Campaign is a deadline-bound collection of workflows executed together.
// The workflow order is configuration order, not execution order. Read-only
// after construction.
type Campaign struct {
	ID                 int         `json:"id"`
	Workflows          []*Workflow `json:"workflows"`
	Policy             string      `json:"policy"`          // planner selection, "time" is built in
	TargetResource     string      `json:"target_resource"` // resource name to plan onto
	Deadline           float64     `json:"deadline,omitempty"`            // minutes, 0 = none
	RequestedResources float64     `json:"requested_resources,omitempty"` // core-hours budget, 0 = none
}

// WorkflowByName returns the workflow with the given name, or nil.
func (c *Campaign) WorkflowByName(name string) *Workflow {
	for _, w := range c.Workflows {
		if w.Name == name {
			return w
		}
	}
	return nil
}
