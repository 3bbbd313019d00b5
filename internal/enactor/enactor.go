// Package enactor turns an execution plan into submitted jobs and drives
// each workflow's state machine from asynchronous job events. Two backends
// share the same contract: a live one submitting to the batch scheduler and
// a simulation backend with no external I/O.
package enactor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/me/campman/internal/dag"
	"github.com/me/campman/pkg/model"
)

// Callback is invoked after a workflow enters the state it was registered
// for. Callbacks registered for one state run in registration order and are
// never invoked concurrently for the same workflow.
type Callback func(workflow string, state model.WorkflowState)

// Measurement is the observed footprint of a finished workflow.
type Measurement struct {
	RuntimeMinutes float64
	MemoryMB       float64
}

// Enactor submits planned workflows and monitors them to a terminal state.
type Enactor interface {
	// RegisterCallback associates a callback with a state name. Registration
	// is permissive: unknown state names are accepted and simply never fire.
	RegisterCallback(state string, cb Callback)

	// Submit starts execution of the plan. A workflow is submitted only once
	// all its dependency-graph predecessors are COMPLETED; the initial call
	// submits the workflows with no predecessors and Monitor releases the
	// rest as their predecessors finish.
	Submit(ctx context.Context, plan *model.Plan, g *dag.Graph) error

	// Monitor blocks until every workflow reaches a terminal state or ctx is
	// cancelled. On cancellation in-flight jobs are cancelled and dependents
	// cascade to CANCELLED.
	Monitor(ctx context.Context) error

	// States returns a snapshot of every workflow's current state.
	States() map[string]model.WorkflowState

	// Measurements returns the observed runtime/memory of finished
	// workflows, keyed by workflow name.
	Measurements() map[string]Measurement

	// Terminate releases backend resources. Safe to call more than once.
	Terminate() error
}

// tracker holds the per-workflow state table and the callback registry
// shared by both backends. All transitions funnel through transition, which
// enforces the forward-only state machine and fires callbacks; transitions
// happen on the Submit caller's goroutine and then on the single Monitor
// loop goroutine, so callbacks for one workflow are always serialized.
type tracker struct {
	mu        sync.Mutex // guards states and measured; callbacks fire outside it
	states    map[string]model.WorkflowState
	callbacks map[string][]Callback
	measured  map[string]Measurement
	logger    *slog.Logger
}

func newTracker(logger *slog.Logger) tracker {
	return tracker{
		states:    make(map[string]model.WorkflowState),
		callbacks: make(map[string][]Callback),
		measured:  make(map[string]Measurement),
		logger:    logger,
	}
}

// init seeds every workflow at INITIAL.
func (t *tracker) init(plan *model.Plan) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range plan.Entries {
		t.states[e.Workflow.Name] = model.WorkflowStateInitial
	}
}

// RegisterCallback appends cb to the list for the given state name.
func (t *tracker) RegisterCallback(state string, cb Callback) {
	t.callbacks[state] = append(t.callbacks[state], cb)
}

// transition moves a workflow to the next state and fires the callbacks
// registered for it. Invalid transitions are rejected; attempts to leave a
// terminal state are ignored (the first terminal event wins).
func (t *tracker) transition(workflow string, to model.WorkflowState) error {
	t.mu.Lock()
	from, ok := t.states[workflow]
	if !ok {
		t.mu.Unlock()
		return &model.InvalidTransitionError{Workflow: workflow, To: to}
	}
	if from == to || from.IsTerminal() {
		t.mu.Unlock()
		return nil
	}
	if !from.CanTransitionTo(to) {
		t.mu.Unlock()
		return &model.InvalidTransitionError{Workflow: workflow, From: from, To: to}
	}
	t.states[workflow] = to
	t.mu.Unlock()
	t.logger.Debug("workflow state change", "workflow", workflow, "from", from, "to", to)

	for _, cb := range t.callbacks[to.String()] {
		t.invoke(cb, workflow, to)
	}
	return nil
}

// invoke runs one callback, isolating panics from the state machine driver.
func (t *tracker) invoke(cb Callback, workflow string, state model.WorkflowState) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("state callback panicked", "workflow", workflow, "state", state, "panic", r)
		}
	}()
	cb(workflow, state)
}

func (t *tracker) state(workflow string) model.WorkflowState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[workflow]
}

func (t *tracker) recordMeasurement(workflow string, m Measurement) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.measured[workflow] = m
}

func (t *tracker) allTerminal() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.states {
		if !s.IsTerminal() {
			return false
		}
	}
	return true
}

func (t *tracker) snapshot() map[string]model.WorkflowState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]model.WorkflowState, len(t.states))
	for k, v := range t.states {
		out[k] = v
	}
	return out
}

func (t *tracker) measurements() map[string]Measurement {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Measurement, len(t.measured))
	for k, v := range t.measured {
		out[k] = v
	}
	return out
}

// ready reports whether every predecessor of the workflow is COMPLETED.
func (t *tracker) ready(g *dag.Graph, workflow string) bool {
	for _, pred := range g.Predecessors(workflow) {
		if t.state(pred) != model.WorkflowStateCompleted {
			return false
		}
	}
	return true
}
