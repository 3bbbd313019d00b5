package model

import "testing"

func TestWorkflowStateIsTerminal(t *testing.T) {
	terminal := []WorkflowState{WorkflowStateCompleted, WorkflowStateFailed, WorkflowStateCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	active := []WorkflowState{WorkflowStateInitial, WorkflowStateSubmitted, WorkflowStateRunning}
	for _, s := range active {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestWorkflowStateTransitions(t *testing.T) {
	allowed := []struct{ from, to WorkflowState }{
		{WorkflowStateInitial, WorkflowStateSubmitted},
		{WorkflowStateInitial, WorkflowStateCancelled},
		{WorkflowStateSubmitted, WorkflowStateRunning},
		{WorkflowStateSubmitted, WorkflowStateFailed},
		{WorkflowStateRunning, WorkflowStateCompleted},
		{WorkflowStateRunning, WorkflowStateFailed},
		{WorkflowStateRunning, WorkflowStateCancelled},
	}
	for _, tr := range allowed {
		if !tr.from.CanTransitionTo(tr.to) {
			t.Errorf("%s -> %s should be allowed", tr.from, tr.to)
		}
	}

	forbidden := []struct{ from, to WorkflowState }{
		{WorkflowStateRunning, WorkflowStateInitial},
		{WorkflowStateSubmitted, WorkflowStateInitial},
		{WorkflowStateCompleted, WorkflowStateRunning},
		{WorkflowStateCompleted, WorkflowStateFailed},
		{WorkflowStateFailed, WorkflowStateSubmitted},
		{WorkflowStateCancelled, WorkflowStateSubmitted},
		{WorkflowStateInitial, WorkflowStateRunning},
	}
	for _, tr := range forbidden {
		if tr.from.CanTransitionTo(tr.to) {
			t.Errorf("%s -> %s should be forbidden", tr.from, tr.to)
		}
	}
}

func TestTerminalStatesHaveNoSuccessors(t *testing.T) {
	for _, s := range []WorkflowState{WorkflowStateCompleted, WorkflowStateFailed, WorkflowStateCancelled} {
		if len(ValidWorkflowTransitions[s]) != 0 {
			t.Errorf("terminal state %s has outgoing transitions", s)
		}
	}
}

func TestCampaignStateIsTerminal(t *testing.T) {
	if CampaignStateExecuting.IsTerminal() {
		t.Error("EXECUTING should not be terminal")
	}
	for _, s := range []CampaignState{CampaignStateDone, CampaignStateFailed, CampaignStateCancelled} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}
