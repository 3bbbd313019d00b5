package bookkeeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/me/campman/internal/enactor"
	"github.com/me/campman/internal/estimator"
	"github.com/me/campman/internal/planner"
	"github.com/me/campman/internal/store"
	"github.com/me/campman/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testResources() map[string]*model.Resource {
	return map[string]*model.Resource{
		"tiger3": {
			Name:          "tiger3",
			Nodes:         4,
			CoresPerNode:  8,
			MemoryPerNode: 192000,
			Qos: []model.QosPolicy{
				{Name: "short", MaxWalltime: 1440},
				{Name: "medium", MaxWalltime: 4320},
			},
		},
	}
}

func testCampaign() *model.Campaign {
	return &model.Campaign{
		ID:             1,
		Policy:         "time",
		TargetResource: "tiger3",
		Workflows: []*model.Workflow{
			{
				Name:       "mapmaking",
				Executable: "toast",
				Subcommand: "run",
				Resources: map[string]float64{
					model.ResourceRanks:   8,
					model.ResourceRuntime: 60,
					model.ResourceMemory:  4096,
				},
			},
			{
				Name:       "null-tests",
				Executable: "toast",
				Subcommand: "null",
				DependsOn:  []string{"mapmaking"},
				Resources: map[string]float64{
					model.ResourceRanks:   4,
					model.ResourceRuntime: 30,
				},
			},
		},
	}
}

func runCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:", testLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return st
}

func TestRunCompletesCampaign(t *testing.T) {
	logger := testLogger()
	st := newStore(t)
	b := New(testCampaign(), testResources(), planner.DefaultRegistry(logger),
		estimator.Declared{}, enactor.NewSim(logger), st, logger)

	ctx := runCtx(t)
	if err := b.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := b.State(); got != model.CampaignStateDone {
		t.Errorf("campaign state = %s, want DONE", got)
	}

	report := b.Report()
	if report.Completed != 2 || report.Failed != 0 || report.Cancelled != 0 {
		t.Errorf("report = %+v, want 2 completed", report)
	}
	if report.MakespanMinutes != 90 {
		t.Errorf("makespan = %v, want 90", report.MakespanMinutes)
	}

	// Both finished workflows were recorded for the estimator.
	runs, err := st.RunsByWorkflow(ctx, "mapmaking")
	if err != nil {
		t.Fatalf("RunsByWorkflow: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("recorded runs = %d, want 1", len(runs))
	}
	if runs[0].SessionID != b.SessionID() {
		t.Errorf("run session = %s, want %s", runs[0].SessionID, b.SessionID())
	}
	if runs[0].State != model.WorkflowStateCompleted.String() {
		t.Errorf("run state = %s, want COMPLETED", runs[0].State)
	}
	if runs[0].RuntimeMinutes != 60 {
		t.Errorf("run runtime = %v, want 60", runs[0].RuntimeMinutes)
	}
}

func TestRunFailedWorkflowFailsCampaign(t *testing.T) {
	logger := testLogger()
	sim := enactor.NewSim(logger)
	sim.Failures["mapmaking"] = true
	b := New(testCampaign(), testResources(), planner.DefaultRegistry(logger),
		estimator.Declared{}, sim, nil, logger)

	err := b.Run(runCtx(t))
	if err == nil {
		t.Fatal("Run returned nil for a failed campaign")
	}
	if got := b.State(); got != model.CampaignStateFailed {
		t.Errorf("campaign state = %s, want FAILED", got)
	}
	states := b.WorkflowStates()
	if states["mapmaking"] != model.WorkflowStateFailed {
		t.Errorf("mapmaking = %s, want FAILED", states["mapmaking"])
	}
	if states["null-tests"] != model.WorkflowStateCancelled {
		t.Errorf("null-tests = %s, want CANCELLED", states["null-tests"])
	}
}

func TestRunUnknownPolicy(t *testing.T) {
	logger := testLogger()
	c := testCampaign()
	c.Policy = "cost"
	b := New(c, testResources(), planner.DefaultRegistry(logger),
		estimator.Declared{}, enactor.NewSim(logger), nil, logger)

	err := b.Run(runCtx(t))
	var unknown *model.UnknownPolicyError
	if !errors.As(err, &unknown) {
		t.Fatalf("Run: err = %v, want UnknownPolicyError", err)
	}
	if got := b.State(); got != model.CampaignStateFailed {
		t.Errorf("campaign state = %s, want FAILED", got)
	}
}

func TestRunUnknownResource(t *testing.T) {
	logger := testLogger()
	c := testCampaign()
	c.TargetResource = "nonesuch"
	b := New(c, testResources(), planner.DefaultRegistry(logger),
		estimator.Declared{}, enactor.NewSim(logger), nil, logger)

	if err := b.Run(runCtx(t)); err == nil {
		t.Fatal("Run returned nil for an unknown target resource")
	}
	if got := b.State(); got != model.CampaignStateFailed {
		t.Errorf("campaign state = %s, want FAILED", got)
	}
	if b.Plan() != nil {
		t.Error("plan should be nil when planning failed")
	}
}

func TestRunRecordsFeedEstimator(t *testing.T) {
	logger := testLogger()
	st := newStore(t)
	b := New(testCampaign(), testResources(), planner.DefaultRegistry(logger),
		estimator.Declared{}, enactor.NewSim(logger), st, logger)

	ctx := runCtx(t)
	if err := b.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// A second campaign estimates from the recorded history.
	rec := estimator.NewRecorded(st, logger)
	est, err := rec.Estimate(ctx, testCampaign().Workflows[0])
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est.WalltimeMinutes != 66 { // 60 measured, padded by 1.1
		t.Errorf("estimated walltime = %v, want 66", est.WalltimeMinutes)
	}
}
