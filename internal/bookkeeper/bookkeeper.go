// Package bookkeeper runs one campaign end to end: it selects the planner
// for the campaign's policy, plans, hands the plan to the enactor, waits for
// every workflow to reach a terminal state and records measured runs for
// future estimation.
package bookkeeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/me/campman/internal/enactor"
	"github.com/me/campman/internal/estimator"
	"github.com/me/campman/internal/planner"
	"github.com/me/campman/internal/store"
	"github.com/me/campman/pkg/model"
)

// Report is the final tally of a campaign run.
type Report struct {
	SessionID string
	State     model.CampaignState
	States    map[string]model.WorkflowState
	Completed int
	Failed    int
	Cancelled int
	// MakespanMinutes is the planned makespan, not the measured one.
	MakespanMinutes float64
}

// Bookkeeper drives a single campaign through plan, execute and record.
type Bookkeeper struct {
	campaign  *model.Campaign
	resources map[string]*model.Resource
	registry  *planner.Registry
	est       estimator.Estimator
	enact     enactor.Enactor
	store     store.Store // nil disables run recording
	logger    *slog.Logger
	sessionID string

	mu    sync.Mutex
	state model.CampaignState
	plan  *model.Plan
}

// New creates a Bookkeeper for one campaign. The store may be nil when run
// recording is not wanted, for example in dry runs.
func New(c *model.Campaign, resources map[string]*model.Resource, registry *planner.Registry,
	est estimator.Estimator, enact enactor.Enactor, st store.Store, logger *slog.Logger) *Bookkeeper {
	return &Bookkeeper{
		campaign:  c,
		resources: resources,
		registry:  registry,
		est:       est,
		enact:     enact,
		store:     st,
		logger:    logger.With("component", "bookkeeper"),
		sessionID: uuid.NewString(),
		state:     model.CampaignStateNew,
	}
}

// SessionID identifies this campaign run in recorded run history.
func (b *Bookkeeper) SessionID() string {
	return b.sessionID
}

// State returns the campaign's current lifecycle state.
func (b *Bookkeeper) State() model.CampaignState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Plan returns the computed execution plan, or nil before planning finished.
func (b *Bookkeeper) Plan() *model.Plan {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.plan
}

// WorkflowStates returns the enactor's view of every workflow.
func (b *Bookkeeper) WorkflowStates() map[string]model.WorkflowState {
	return b.enact.States()
}

func (b *Bookkeeper) setState(s model.CampaignState) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
	b.logger.Info("campaign state change", "campaign", b.campaign.ID, "state", s)
}

// Run executes the campaign and blocks until it is finished. It returns nil
// only when every workflow completed; a failed or cancelled campaign returns
// an error after run recording has happened.
func (b *Bookkeeper) Run(ctx context.Context) error {
	b.setState(model.CampaignStatePlanning)

	factory, err := b.registry.Get(b.campaign.Policy)
	if err != nil {
		b.setState(model.CampaignStateFailed)
		return err
	}
	p := factory(b.est, b.logger)
	plan, graph, err := p.Plan(ctx, b.campaign, b.resources)
	if err != nil {
		b.setState(model.CampaignStateFailed)
		return fmt.Errorf("planning campaign %d: %w", b.campaign.ID, err)
	}
	b.mu.Lock()
	b.plan = plan
	b.mu.Unlock()
	b.logger.Info("campaign planned",
		"campaign", b.campaign.ID,
		"workflows", len(plan.Entries),
		"resource", plan.Resource,
		"makespan_minutes", plan.Makespan())

	b.setState(model.CampaignStateExecuting)
	if err := b.enact.Submit(ctx, plan, graph); err != nil {
		// A rejected submission fails that workflow and cascades; the rest
		// of the campaign keeps running, so keep monitoring.
		b.logger.Error("initial submission incomplete", "error", err)
	}

	monErr := b.enact.Monitor(ctx)
	b.recordRuns()
	report := b.report(plan)
	b.logger.Info("campaign finished",
		"campaign", b.campaign.ID,
		"completed", report.Completed,
		"failed", report.Failed,
		"cancelled", report.Cancelled)

	switch {
	case monErr != nil:
		b.setState(model.CampaignStateCancelled)
		return monErr
	case report.Failed > 0:
		b.setState(model.CampaignStateFailed)
		return fmt.Errorf("campaign %d: %d workflows failed, %d cancelled", b.campaign.ID, report.Failed, report.Cancelled)
	case report.Cancelled > 0:
		b.setState(model.CampaignStateCancelled)
		return fmt.Errorf("campaign %d: %d workflows cancelled", b.campaign.ID, report.Cancelled)
	default:
		b.setState(model.CampaignStateDone)
		return nil
	}
}

// Report summarizes the campaign after Run returned.
func (b *Bookkeeper) Report() Report {
	b.mu.Lock()
	plan := b.plan
	b.mu.Unlock()
	return b.report(plan)
}

func (b *Bookkeeper) report(plan *model.Plan) Report {
	r := Report{
		SessionID: b.sessionID,
		State:     b.State(),
		States:    b.enact.States(),
	}
	if plan != nil {
		r.MakespanMinutes = plan.Makespan()
	}
	for _, s := range r.States {
		switch s {
		case model.WorkflowStateCompleted:
			r.Completed++
		case model.WorkflowStateFailed:
			r.Failed++
		case model.WorkflowStateCancelled:
			r.Cancelled++
		}
	}
	return r
}

// recordRuns persists one run record per finished workflow. Cancelled
// workflows never ran, so only COMPLETED and FAILED states are recorded.
func (b *Bookkeeper) recordRuns() {
	if b.store == nil {
		return
	}
	states := b.enact.States()
	measured := b.enact.Measurements()
	for name, state := range states {
		if state != model.WorkflowStateCompleted && state != model.WorkflowStateFailed {
			continue
		}
		w := b.campaign.WorkflowByName(name)
		if w == nil {
			continue
		}
		m := measured[name]
		rec := &store.RunRecord{
			ID:             uuid.NewString(),
			SessionID:      b.sessionID,
			Workflow:       name,
			Command:        w.Command(),
			Cores:          w.Ranks() * w.Threads(),
			MemoryMB:       m.MemoryMB,
			RuntimeMinutes: m.RuntimeMinutes,
			State:          state.String(),
			RecordedAt:     time.Now().UTC(),
		}
		if err := b.store.RecordRun(context.Background(), rec); err != nil {
			b.logger.Warn("recording run", "workflow", name, "error", err)
		}
	}
}
