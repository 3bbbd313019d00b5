// Package store persists measured run records of finished workflows. The
// resource estimator consults these records to predict runtimes for future
// campaigns.
package store

import (
	"context"
	"time"
)

// RunRecord is one measured workflow execution.
type RunRecord struct {
	ID             string
	SessionID      string
	Workflow       string // workflow name, the lookup key for estimation
	Command        string
	Cores          int
	MemoryMB       float64 // peak RSS in MB, 0 when unknown
	RuntimeMinutes float64 // measured wall clock in minutes
	State          string  // terminal workflow state
	RecordedAt     time.Time
}

// Store defines the persistence layer for run records.
type Store interface {
	RecordRun(ctx context.Context, rec *RunRecord) error
	RunsByWorkflow(ctx context.Context, workflow string) ([]*RunRecord, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
