package enactor

import (
	"testing"

	"github.com/me/campman/pkg/model"
)

func TestSimEnactorCompletesPlanInEndTimeOrder(t *testing.T) {
	plan, g := testPlan(t, []wf{
		{name: "a", start: 0, end: 60},
		{name: "b", dependsOn: []string{"a"}, start: 60, end: 90},
		{name: "late", start: 0, end: 200},
	})
	e := NewSim(testLogger())

	var completed []string
	e.RegisterCallback(model.WorkflowStateCompleted.String(), func(workflow string, _ model.WorkflowState) {
		completed = append(completed, workflow)
	})

	ctx := monitorCtx(t)
	if err := e.Submit(ctx, plan, g); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := e.Monitor(ctx); err != nil {
		t.Fatalf("Monitor: %v", err)
	}

	want := []string{"a", "b", "late"}
	if len(completed) != len(want) {
		t.Fatalf("completed = %v, want %v", completed, want)
	}
	for i := range want {
		if completed[i] != want[i] {
			t.Fatalf("completed = %v, want %v", completed, want)
		}
	}
}

func TestSimEnactorMeasurementsMatchPlan(t *testing.T) {
	plan, g := testPlan(t, []wf{{name: "a", start: 10, end: 70}})
	e := NewSim(testLogger())

	ctx := monitorCtx(t)
	if err := e.Submit(ctx, plan, g); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := e.Monitor(ctx); err != nil {
		t.Fatalf("Monitor: %v", err)
	}

	m, ok := e.Measurements()["a"]
	if !ok {
		t.Fatal("no measurement recorded for a")
	}
	if m.RuntimeMinutes != 60 {
		t.Errorf("runtime = %v, want 60", m.RuntimeMinutes)
	}
	if m.MemoryMB != 2048 {
		t.Errorf("memory = %v, want 2048", m.MemoryMB)
	}
}

func TestSimEnactorInjectedFailureCascades(t *testing.T) {
	plan, g := testPlan(t, []wf{
		{name: "a", start: 0, end: 60},
		{name: "b", dependsOn: []string{"a"}, start: 60, end: 90},
		{name: "c", dependsOn: []string{"b"}, start: 90, end: 120},
		{name: "d", start: 0, end: 30},
	})
	e := NewSim(testLogger())
	e.Failures["a"] = true

	ctx := monitorCtx(t)
	if err := e.Submit(ctx, plan, g); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := e.Monitor(ctx); err != nil {
		t.Fatalf("Monitor: %v", err)
	}

	states := e.States()
	wantState(t, states, "a", model.WorkflowStateFailed)
	wantState(t, states, "b", model.WorkflowStateCancelled)
	wantState(t, states, "c", model.WorkflowStateCancelled)
	wantState(t, states, "d", model.WorkflowStateCompleted)
	if _, ok := e.Measurements()["a"]; ok {
		t.Error("failed workflow should not record a measurement")
	}
}

func TestSimEnactorFullStateSequence(t *testing.T) {
	plan, g := testPlan(t, []wf{{name: "a", start: 0, end: 60}})
	e := NewSim(testLogger())

	var seq []model.WorkflowState
	for _, s := range []model.WorkflowState{
		model.WorkflowStateSubmitted,
		model.WorkflowStateRunning,
		model.WorkflowStateCompleted,
	} {
		e.RegisterCallback(s.String(), func(_ string, state model.WorkflowState) {
			seq = append(seq, state)
		})
	}

	ctx := monitorCtx(t)
	if err := e.Submit(ctx, plan, g); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := e.Monitor(ctx); err != nil {
		t.Fatalf("Monitor: %v", err)
	}

	want := []model.WorkflowState{
		model.WorkflowStateSubmitted,
		model.WorkflowStateRunning,
		model.WorkflowStateCompleted,
	}
	if len(seq) != len(want) {
		t.Fatalf("state sequence = %v, want %v", seq, want)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("state sequence = %v, want %v", seq, want)
		}
	}
}
