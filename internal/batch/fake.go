package batch

import (
	"context"
	"fmt"
	"sync"
)

// FakeClient is an in-memory Client for tests. Submitted jobs stay QUEUED
// until the test advances them with Start/Complete/Fail; every transition is
// delivered on the event channel like a real scheduler would.
type FakeClient struct {
	mu     sync.Mutex
	next   int
	jobs   map[string]Job
	states map[string]JobState
	events chan Event
	closed bool

	// SubmitErr, when set, makes every Submit call fail. SubmitErrFor fails
	// only submissions for the named jobs.
	SubmitErr    error
	SubmitErrFor map[string]error
}

// NewFakeClient creates an empty FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		jobs:   make(map[string]Job),
		states: make(map[string]JobState),
		events: make(chan Event, 128),
	}
}

func (c *FakeClient) Submit(_ context.Context, job Job) (string, error) {
	if c.SubmitErr != nil {
		return "", c.SubmitErr
	}
	if err := c.SubmitErrFor[job.Name]; err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	id := fmt.Sprintf("job-%d", c.next)
	c.jobs[id] = job
	c.states[id] = JobQueued
	return id, nil
}

func (c *FakeClient) Cancel(_ context.Context, jobID string) error {
	c.transition(jobID, JobCancelled, 0, 0)
	return nil
}

func (c *FakeClient) Events() <-chan Event {
	return c.events
}

func (c *FakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

// Job returns the submitted description for a job ID.
func (c *FakeClient) Job(jobID string) (Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[jobID]
	return j, ok
}

// JobIDByName finds the job ID submitted under the given name.
func (c *FakeClient) JobIDByName(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, j := range c.jobs {
		if j.Name == name {
			return id, true
		}
	}
	return "", false
}

// Start moves a job to RUNNING.
func (c *FakeClient) Start(jobID string) {
	c.transition(jobID, JobRunning, 0, 0)
}

// Complete moves a job to COMPLETED with a measured runtime.
func (c *FakeClient) Complete(jobID string, runtimeMinutes float64) {
	c.transition(jobID, JobCompleted, runtimeMinutes, 0)
}

// Fail moves a job to FAILED.
func (c *FakeClient) Fail(jobID string) {
	c.transition(jobID, JobFailed, 0, 0)
}

func (c *FakeClient) transition(jobID string, state JobState, runtime, memory float64) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if cur, ok := c.states[jobID]; !ok || cur.IsTerminal() {
		c.mu.Unlock()
		return
	}
	c.states[jobID] = state
	c.mu.Unlock()

	c.events <- Event{JobID: jobID, State: state, RuntimeMinutes: runtime, MemoryMB: memory}
}
