package estimator

import (
	"context"
	"log/slog"

	"github.com/me/campman/internal/store"
	"github.com/me/campman/pkg/model"
)

// padding added on top of measured runtimes, matching the safety margin the
// operators apply when requesting walltime.
const runtimePad = 1.1

// Recorded estimates from measured past runs of the same workflow name,
// padded by 10%. When no records exist, or the record store is unreachable,
// it degrades to the declared values with a warning instead of failing the
// planning pass.
type Recorded struct {
	store    store.Store
	fallback Declared
	logger   *slog.Logger
}

// NewRecorded creates a record-backed estimator.
func NewRecorded(st store.Store, logger *slog.Logger) *Recorded {
	return &Recorded{
		store:  st,
		logger: logger.With("component", "estimator"),
	}
}

// Estimate returns the mean of past measured runs for the workflow, padded,
// or the declared values when no usable history exists.
func (r *Recorded) Estimate(ctx context.Context, w *model.Workflow) (Estimate, error) {
	recs, err := r.store.RunsByWorkflow(ctx, w.Name)
	if err != nil {
		r.logger.Warn("record store unavailable, using declared resources",
			"workflow", w.Name, "error", err)
		return r.fallback.Estimate(ctx, w)
	}

	var runtimes, memories []float64
	for _, rec := range recs {
		if rec.State == string(model.WorkflowStateCompleted) && rec.RuntimeMinutes > 0 {
			runtimes = append(runtimes, rec.RuntimeMinutes)
			memories = append(memories, rec.MemoryMB)
		}
	}
	if len(runtimes) == 0 {
		r.logger.Debug("no run history, using declared resources", "workflow", w.Name)
		return r.fallback.Estimate(ctx, w)
	}

	est := Estimate{
		WalltimeMinutes: mean(runtimes) * runtimePad,
		MemoryMB:        mean(memories),
		Cores:           w.Ranks() * w.Threads(),
	}
	if est.MemoryMB == 0 {
		est.MemoryMB = w.MemoryMB()
	}
	r.logger.Debug("estimated from run history",
		"workflow", w.Name, "runs", len(runtimes), "walltime_minutes", est.WalltimeMinutes)
	return est, nil
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
