package enactor

import (
	"context"
	"log/slog"
	"sort"

	"github.com/me/campman/internal/dag"
	"github.com/me/campman/pkg/model"
)

// SimEnactor replays a plan without touching any scheduler. Workflows finish
// in the order of their planned end times, each one walking the full
// INITIAL -> SUBMITTED -> RUNNING -> COMPLETED path so that registered
// callbacks fire exactly as they would against the live backend. Used by dry
// runs and by tests.
type SimEnactor struct {
	tracker
	plan  *model.Plan
	graph *dag.Graph

	// Failures marks workflows that end FAILED instead of COMPLETED, with
	// their transitive dependents cascading to CANCELLED. Set before Submit.
	Failures map[string]bool
}

// NewSim returns a simulation enactor.
func NewSim(logger *slog.Logger) *SimEnactor {
	return &SimEnactor{
		tracker:  newTracker(logger.With("component", "enactor", "mode", "simulation")),
		Failures: make(map[string]bool),
	}
}

// Submit seeds the state table. No jobs are created; Monitor does the replay.
func (e *SimEnactor) Submit(ctx context.Context, plan *model.Plan, g *dag.Graph) error {
	e.plan = plan
	e.graph = g
	e.tracker.init(plan)
	e.logger.Info("simulating campaign plan", "workflows", len(plan.Entries), "resource", plan.Resource, "makespan_minutes", plan.Makespan())
	return nil
}

// Monitor replays the plan to completion. Entries finish in planned end-time
// order, which guarantees every predecessor is resolved before its
// dependents are reached.
func (e *SimEnactor) Monitor(ctx context.Context) error {
	order := make([]*model.PlanEntry, len(e.plan.Entries))
	copy(order, e.plan.Entries)
	sort.SliceStable(order, func(i, j int) bool { return order[i].End < order[j].End })

	for _, entry := range order {
		if err := ctx.Err(); err != nil {
			e.cancelRemaining()
			return err
		}
		name := entry.Workflow.Name
		if e.state(name).IsTerminal() {
			// Cancelled by an earlier failure's cascade.
			continue
		}
		if !e.ready(e.graph, name) {
			e.transition(name, model.WorkflowStateCancelled)
			continue
		}
		e.transition(name, model.WorkflowStateSubmitted)
		e.transition(name, model.WorkflowStateRunning)
		if e.Failures[name] {
			e.transition(name, model.WorkflowStateFailed)
			e.cascadeCancel(name)
			continue
		}
		e.recordMeasurement(name, Measurement{
			RuntimeMinutes: entry.End - entry.Start,
			MemoryMB:       entry.Workflow.MemoryMB(),
		})
		e.transition(name, model.WorkflowStateCompleted)
	}
	return nil
}

func (e *SimEnactor) cascadeCancel(name string) {
	for _, dep := range e.graph.TransitiveDependents(name) {
		if e.state(dep).IsTerminal() {
			continue
		}
		e.logger.Info("cancelling dependent workflow", "workflow", dep, "cause", name)
		e.transition(dep, model.WorkflowStateCancelled)
	}
}

func (e *SimEnactor) cancelRemaining() {
	for name, state := range e.snapshot() {
		if !state.IsTerminal() {
			e.transition(name, model.WorkflowStateCancelled)
		}
	}
}

// States returns the current state of every planned workflow.
func (e *SimEnactor) States() map[string]model.WorkflowState {
	return e.snapshot()
}

// Measurements returns the simulated footprint of completed workflows.
func (e *SimEnactor) Measurements() map[string]Measurement {
	return e.measurements()
}

// Terminate is a no-op for the simulation backend.
func (e *SimEnactor) Terminate() error {
	return nil
}
