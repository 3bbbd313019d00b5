// Package planner computes execution plans for campaigns: one node-range,
// time-window, and QoS assignment per workflow, under the campaign deadline.
package planner

import (
	"context"
	"log/slog"

	"github.com/me/campman/internal/dag"
	"github.com/me/campman/internal/estimator"
	"github.com/me/campman/pkg/model"
)

// Planner computes an execution plan and the dependency graph it was built
// from. Planning is synchronous and side-effect-free; identical inputs and a
// deterministic estimator always yield an identical plan.
type Planner interface {
	Plan(ctx context.Context, c *model.Campaign, resources map[string]*model.Resource) (*model.Plan, *dag.Graph, error)
}

// Factory builds a Planner with its estimator and logger.
type Factory func(est estimator.Estimator, logger *slog.Logger) Planner

// Registry maps campaign policy names to Planner factories. Registration
// happens at startup before concurrent access, so no mutex is needed.
type Registry struct {
	factories map[string]Factory
	logger    *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger.With("component", "planner-registry"),
	}
}

// Register adds a planner factory under a policy name.
func (r *Registry) Register(policy string, f Factory) {
	r.factories[policy] = f
	r.logger.Debug("planner registered", "policy", policy)
}

// Get returns the factory for the given policy or an UnknownPolicyError.
func (r *Registry) Get(policy string) (Factory, error) {
	f, ok := r.factories[policy]
	if !ok {
		return nil, &model.UnknownPolicyError{Policy: policy}
	}
	return f, nil
}

// DefaultRegistry returns a Registry with the built-in policies.
func DefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register("time", func(est estimator.Estimator, logger *slog.Logger) Planner {
		return NewHeft(est, logger)
	})
	return r
}
