// Package batch defines the narrow contract to the cluster's batch scheduler:
// submit a job description, cancel by ID, and observe asynchronous state
// events. The enactor depends only on this boundary.
package batch

import "context"

// Job describes one submission to the batch scheduler.
type Job struct {
	Name            string
	Executable      string
	Args            []string
	NodeStart       int // inclusive node range assigned by the planner
	NodeEnd         int
	Ranks           int
	CoresPerRank    int
	MemoryMB        float64
	Qos             string
	WalltimeMinutes float64
	Environment     map[string]string
}

// Nodes returns the width of the job's node range.
func (j *Job) Nodes() int {
	return j.NodeEnd - j.NodeStart + 1
}

// JobState is the scheduler-side state of a submitted job.
type JobState string

const (
	JobQueued    JobState = "QUEUED"
	JobRunning   JobState = "RUNNING"
	JobCompleted JobState = "COMPLETED"
	JobFailed    JobState = "FAILED"
	JobCancelled JobState = "CANCELLED"
)

// IsTerminal returns true if the job has finished.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// Event is one asynchronous job state change delivered by a Client.
type Event struct {
	JobID string
	State JobState
	// RuntimeMinutes is the measured wall clock, set on terminal events when
	// the scheduler reports it.
	RuntimeMinutes float64
	// MemoryMB is the measured peak RSS, set on terminal events when known.
	MemoryMB float64
}

// Client talks to one batch scheduler. Implementations deliver state changes
// for every submitted job on the Events channel until Close is called.
type Client interface {
	// Submit sends a job to the scheduler and returns its job ID.
	Submit(ctx context.Context, job Job) (string, error)

	// Cancel requests cancellation of a submitted job.
	Cancel(ctx context.Context, jobID string) error

	// Events returns the stream of job state changes.
	Events() <-chan Event

	// Close stops event delivery and releases scheduler resources.
	Close() error
}
