package model

// WorkflowState represents the lifecycle state of a Workflow during execution.
type WorkflowState string

const (
	WorkflowStateInitial   WorkflowState = "INITIAL"
	WorkflowStateSubmitted WorkflowState = "SUBMITTED"
	WorkflowStateRunning   WorkflowState = "RUNNING"
	WorkflowStateCompleted WorkflowState = "COMPLETED"
	WorkflowStateFailed    WorkflowState = "FAILED"
	WorkflowStateCancelled WorkflowState = "CANCELLED"
)

// String returns the string representation of the workflow state.
func (s WorkflowState) String() string {
	return string(s)
}

// IsTerminal returns true if the workflow is in a final state.
func (s WorkflowState) IsTerminal() bool {
	switch s {
	case WorkflowStateCompleted, WorkflowStateFailed, WorkflowStateCancelled:
		return true
	}
	return false
}

// ValidWorkflowTransitions defines the allowed state transitions for Workflows.
// Transitions are strictly forward; terminal states have no successors.
var ValidWorkflowTransitions = map[WorkflowState][]WorkflowState{
	WorkflowStateInitial:   {WorkflowStateSubmitted, WorkflowStateCancelled},
	WorkflowStateSubmitted: {WorkflowStateRunning, WorkflowStateFailed, WorkflowStateCancelled},
	WorkflowStateRunning:   {WorkflowStateCompleted, WorkflowStateFailed, WorkflowStateCancelled},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s WorkflowState) CanTransitionTo(next WorkflowState) bool {
	for _, allowed := range ValidWorkflowTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CampaignState represents the lifecycle state of a Campaign run.
type CampaignState string

const (
	CampaignStateNew       CampaignState = "NEW"
	CampaignStatePlanning  CampaignState = "PLANNING"
	CampaignStateExecuting CampaignState = "EXECUTING"
	CampaignStateDone      CampaignState = "DONE"
	CampaignStateFailed    CampaignState = "FAILED"
	CampaignStateCancelled CampaignState = "CANCELLED"
)

// String returns the string representation of the campaign state.
func (s CampaignState) String() string {
	return string(s)
}

// IsTerminal returns true if the campaign is in a final state.
func (s CampaignState) IsTerminal() bool {
	switch s {
	case CampaignStateDone, CampaignStateFailed, CampaignStateCancelled:
		return true
	}
	return false
}
