package model

import (
	"fmt"
	"strings"
)

// ConfigError reports an invalid campaign configuration: missing required
// fields, unparseable values, unknown workflow types. Fatal before any
// submission occurs.
type ConfigError struct {
	Section string
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config %s: field %q: %s", e.Section, e.Field, e.Message)
	}
	return fmt.Sprintf("config %s: %s", e.Section, e.Message)
}

// CycleError reports a dependency cycle among workflows. Planning aborts.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// InfeasibleError reports a workflow whose resource request can never be
// satisfied by the target resource. The whole plan is aborted; a partial
// plan is not executed.
type InfeasibleError struct {
	Workflow string
	Nodes    int
	Resource string
	Capacity int
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("workflow %s needs %d nodes but resource %s has %d",
		e.Workflow, e.Nodes, e.Resource, e.Capacity)
}

// UnknownPolicyError reports a campaign policy with no registered planner.
type UnknownPolicyError struct {
	Policy string
}

func (e *UnknownPolicyError) Error() string {
	return fmt.Sprintf("unsupported campaign policy %q", e.Policy)
}

// UnknownResourceError reports a target resource missing from the resource map.
type UnknownResourceError struct {
	Resource string
}

func (e *UnknownResourceError) Error() string {
	return fmt.Sprintf("unknown target resource %q", e.Resource)
}

// InvalidTransitionError is returned when a workflow state transition is not
// allowed by the state machine.
type InvalidTransitionError struct {
	Workflow string
	From     WorkflowState
	To       WorkflowState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition for workflow %s: %s -> %s", e.Workflow, e.From, e.To)
}
