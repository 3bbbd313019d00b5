// Package estimator predicts the resource needs of workflows before planning.
// Estimates come from recorded past runs when available and otherwise fall
// back to the resource request declared in the campaign configuration.
package estimator

import (
	"context"

	"github.com/me/campman/pkg/model"
)

// Estimate is a predicted resource footprint for one workflow.
type Estimate struct {
	WalltimeMinutes float64
	MemoryMB        float64
	Cores           int
}

// Estimator produces resource estimates for workflows. Implementations must
// be deterministic for identical inputs so plans stay reproducible.
type Estimator interface {
	Estimate(ctx context.Context, w *model.Workflow) (Estimate, error)
}

// Declared estimates straight from the workflow's declared resource request.
// It is the fallback when no measured history exists.
type Declared struct{}

// Estimate returns the declared walltime, memory, and core count.
func (Declared) Estimate(_ context.Context, w *model.Workflow) (Estimate, error) {
	return Estimate{
		WalltimeMinutes: w.RuntimeMinutes(),
		MemoryMB:        w.MemoryMB(),
		Cores:           w.Ranks() * w.Threads(),
	}, nil
}
