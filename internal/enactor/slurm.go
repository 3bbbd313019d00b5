package enactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/me/campman/internal/batch"
	"github.com/me/campman/internal/dag"
	"github.com/me/campman/pkg/model"
)

// SlurmEnactor executes a plan against a live batch scheduler. It submits a
// workflow as soon as all its predecessors are COMPLETED and drives the state
// machine from the client's event stream. Submission and event handling run
// on the Submit caller and then on the Monitor goroutine only; the job maps
// are never touched from anywhere else.
type SlurmEnactor struct {
	tracker
	client  batch.Client
	plan    *model.Plan
	graph   *dag.Graph
	jobIDs  map[string]string // workflow name -> job id
	names   map[string]string // job id -> workflow name
	pending map[string]bool   // planned but not yet submitted
	closed  bool
}

// NewSlurm returns an enactor driving the given scheduler client.
func NewSlurm(client batch.Client, logger *slog.Logger) *SlurmEnactor {
	return &SlurmEnactor{
		tracker: newTracker(logger.With("component", "enactor")),
		client:  client,
		jobIDs:  make(map[string]string),
		names:   make(map[string]string),
		pending: make(map[string]bool),
	}
}

// Submit seeds the state table and submits every workflow whose dependencies
// are already satisfied, which on the first call is the set of workflows with
// no predecessors.
func (e *SlurmEnactor) Submit(ctx context.Context, plan *model.Plan, g *dag.Graph) error {
	e.plan = plan
	e.graph = g
	e.tracker.init(plan)
	for _, entry := range plan.Entries {
		e.pending[entry.Workflow.Name] = true
	}
	e.logger.Info("submitting campaign plan", "workflows", len(plan.Entries), "resource", plan.Resource)
	return e.submitReady(ctx)
}

// submitReady submits, in plan order, every pending workflow whose
// predecessors have all completed. A submission error fails that workflow
// and cascades to its dependents only; independent branches still submit,
// and every error is reported joined at the end.
func (e *SlurmEnactor) submitReady(ctx context.Context) error {
	var errs []error
	for _, entry := range e.plan.Entries {
		name := entry.Workflow.Name
		if !e.pending[name] || !e.ready(e.graph, name) {
			continue
		}
		delete(e.pending, name)

		jobID, err := e.client.Submit(ctx, jobFromEntry(entry))
		if err != nil {
			e.logger.Error("job submission failed", "workflow", name, "error", err)
			// The scheduler never saw the job; walk the workflow to FAILED
			// so its dependents cascade like any other failure.
			e.advance(name, model.WorkflowStateSubmitted)
			e.advance(name, model.WorkflowStateFailed)
			e.cascadeCancel(ctx, name)
			errs = append(errs, fmt.Errorf("submitting workflow %s: %w", name, err))
			continue
		}
		e.jobIDs[name] = jobID
		e.names[jobID] = name
		e.logger.Info("workflow submitted", "workflow", name, "job_id", jobID, "qos", entry.Qos)
		e.advance(name, model.WorkflowStateSubmitted)
	}
	return errors.Join(errs...)
}

// jobFromEntry maps a plan entry onto a scheduler job request.
func jobFromEntry(entry *model.PlanEntry) batch.Job {
	w := entry.Workflow
	return batch.Job{
		Name:            w.Name,
		Executable:      w.Command(),
		Args:            w.Args,
		NodeStart:       entry.NodeStart,
		NodeEnd:         entry.NodeEnd,
		Ranks:           w.Ranks(),
		CoresPerRank:    w.Threads(),
		MemoryMB:        w.MemoryMB(),
		Qos:             entry.Qos,
		WalltimeMinutes: entry.End - entry.Start,
		Environment:     w.Environment,
	}
}

// Monitor drains scheduler events until every workflow is terminal. When ctx
// is cancelled it cancels all in-flight jobs, marks every non-terminal
// workflow CANCELLED and returns the context error.
func (e *SlurmEnactor) Monitor(ctx context.Context) error {
	for !e.allTerminal() {
		select {
		case <-ctx.Done():
			e.cancelRemaining(ctx)
			return ctx.Err()
		case ev, ok := <-e.client.Events():
			if !ok {
				return fmt.Errorf("scheduler event stream closed with workflows still active")
			}
			e.handleEvent(ctx, ev)
		}
	}
	return nil
}

func (e *SlurmEnactor) handleEvent(ctx context.Context, ev batch.Event) {
	name, ok := e.names[ev.JobID]
	if !ok {
		e.logger.Warn("event for unknown job", "job_id", ev.JobID, "state", ev.State)
		return
	}
	switch ev.State {
	case batch.JobRunning:
		e.advance(name, model.WorkflowStateRunning)
	case batch.JobCompleted:
		e.recordMeasurement(name, Measurement{RuntimeMinutes: ev.RuntimeMinutes, MemoryMB: ev.MemoryMB})
		// A job shorter than the poll interval is first seen COMPLETED;
		// drive the missed RUNNING step so the transition table holds.
		if e.state(name) == model.WorkflowStateSubmitted {
			e.advance(name, model.WorkflowStateRunning)
		}
		e.advance(name, model.WorkflowStateCompleted)
		if err := e.submitReady(ctx); err != nil {
			e.logger.Error("releasing dependent workflows", "error", err)
		}
	case batch.JobFailed:
		e.recordMeasurement(name, Measurement{RuntimeMinutes: ev.RuntimeMinutes, MemoryMB: ev.MemoryMB})
		e.advance(name, model.WorkflowStateFailed)
		e.cascadeCancel(ctx, name)
	case batch.JobCancelled:
		e.advance(name, model.WorkflowStateCancelled)
		e.cascadeCancel(ctx, name)
	}
}

// advance applies a transition and logs a rejection instead of dropping it.
// Scheduler events that do not fit the state table indicate a bug on one
// side or the other and must not vanish silently.
func (e *SlurmEnactor) advance(name string, next model.WorkflowState) {
	if err := e.transition(name, next); err != nil {
		e.logger.Error("workflow state transition rejected", "workflow", name, "next", next, "error", err)
	}
}

// cascadeCancel cancels every transitive dependent of a failed or cancelled
// workflow. Dependents already submitted to the scheduler are cancelled
// there too; their CANCELLED transition happens here rather than waiting on
// the scheduler's acknowledgement.
func (e *SlurmEnactor) cascadeCancel(ctx context.Context, name string) {
	for _, dep := range e.graph.TransitiveDependents(name) {
		if e.state(dep).IsTerminal() {
			continue
		}
		delete(e.pending, dep)
		if jobID, ok := e.jobIDs[dep]; ok {
			if err := e.client.Cancel(ctx, jobID); err != nil {
				e.logger.Warn("cancelling dependent job", "workflow", dep, "job_id", jobID, "error", err)
			}
		}
		e.logger.Info("cancelling dependent workflow", "workflow", dep, "cause", name)
		e.advance(dep, model.WorkflowStateCancelled)
	}
}

// cancelRemaining tears down every non-terminal workflow on shutdown.
func (e *SlurmEnactor) cancelRemaining(ctx context.Context) {
	for name, state := range e.snapshot() {
		if state.IsTerminal() {
			continue
		}
		delete(e.pending, name)
		if jobID, ok := e.jobIDs[name]; ok {
			if err := e.client.Cancel(ctx, jobID); err != nil {
				e.logger.Warn("cancelling job on shutdown", "workflow", name, "job_id", jobID, "error", err)
			}
		}
		e.advance(name, model.WorkflowStateCancelled)
	}
}

// States returns the current state of every planned workflow.
func (e *SlurmEnactor) States() map[string]model.WorkflowState {
	return e.snapshot()
}

// Measurements returns the observed footprint of finished workflows.
func (e *SlurmEnactor) Measurements() map[string]Measurement {
	return e.measurements()
}

// Terminate closes the scheduler client. Safe to call more than once.
func (e *SlurmEnactor) Terminate() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.client.Close()
}
