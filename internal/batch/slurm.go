package batch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SlurmClient submits jobs through the Slurm command line tools (sbatch,
// scancel) and polls sacct for state changes, translating accounting rows
// into Events. The planner's node ranges are a capacity ledger; the actual
// node set is Slurm's choice, only the range width is requested.
type SlurmClient struct {
	pollInterval time.Duration
	logger       *slog.Logger

	mu      sync.Mutex
	tracked map[string]JobState // jobID -> last delivered state

	events chan Event
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSlurmClient creates a client polling sacct at the given interval.
func NewSlurmClient(pollInterval time.Duration, logger *slog.Logger) *SlurmClient {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	c := &SlurmClient{
		pollInterval: pollInterval,
		logger:       logger.With("component", "slurm-client"),
		tracked:      make(map[string]JobState),
		events:       make(chan Event, 64),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	go c.poll()
	return c
}

// Submit runs sbatch and returns the new job ID.
func (c *SlurmClient) Submit(ctx context.Context, job Job) (string, error) {
	args := []string{
		"--parsable",
		"--job-name", job.Name,
		"--nodes", strconv.Itoa(job.Nodes()),
		"--ntasks", strconv.Itoa(job.Ranks),
	}
	if job.CoresPerRank > 0 {
		args = append(args, "--cpus-per-task", strconv.Itoa(job.CoresPerRank))
	}
	if job.Qos != "" {
		args = append(args, "--qos", job.Qos)
	}
	if job.WalltimeMinutes > 0 {
		args = append(args, "--time", strconv.Itoa(int(job.WalltimeMinutes+0.5)))
	}
	if job.MemoryMB > 0 {
		args = append(args, "--mem", fmt.Sprintf("%dM", int64(job.MemoryMB)))
	}
	for k, v := range job.Environment {
		args = append(args, "--export", fmt.Sprintf("%s=%s", k, v))
	}
	wrap := job.Executable
	if len(job.Args) > 0 {
		wrap += " " + strings.Join(job.Args, " ")
	}
	args = append(args, "--wrap", wrap)

	cmd := exec.CommandContext(ctx, "sbatch", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("sbatch %s: %w: %s", job.Name, err, strings.TrimSpace(stderr.String()))
	}

	// --parsable prints "jobid" or "jobid;cluster".
	jobID := strings.TrimSpace(stdout.String())
	if i := strings.IndexByte(jobID, ';'); i >= 0 {
		jobID = jobID[:i]
	}
	if jobID == "" {
		return "", fmt.Errorf("sbatch %s: empty job id", job.Name)
	}

	c.mu.Lock()
	c.tracked[jobID] = JobQueued
	c.mu.Unlock()

	c.logger.Info("job submitted", "job_id", jobID, "name", job.Name,
		"nodes", job.Nodes(), "qos", job.Qos)
	return jobID, nil
}

// Cancel runs scancel for the job.
func (c *SlurmClient) Cancel(ctx context.Context, jobID string) error {
	cmd := exec.CommandContext(ctx, "scancel", jobID)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("scancel %s: %w: %s", jobID, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Events returns the job state change stream.
func (c *SlurmClient) Events() <-chan Event {
	return c.events
}

// Close stops the polling loop and closes the event channel.
func (c *SlurmClient) Close() error {
	close(c.stopCh)
	<-c.doneCh
	close(c.events)
	return nil
}

func (c *SlurmClient) poll() {
	defer close(c.doneCh)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.pollOnce()
		}
	}
}

func (c *SlurmClient) pollOnce() {
	c.mu.Lock()
	ids := make([]string, 0, len(c.tracked))
	for id, state := range c.tracked {
		if !state.IsTerminal() {
			ids = append(ids, id)
		}
	}
	c.mu.Unlock()
	if len(ids) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.pollInterval)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sacct",
		"-j", strings.Join(ids, ","),
		"-n", "-P", "-X",
		"-o", "JobID,State,ElapsedRaw,MaxRSS")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		c.logger.Warn("sacct poll failed", "error", err)
		return
	}

	for _, ev := range parseSacct(stdout.String()) {
		c.mu.Lock()
		last, ok := c.tracked[ev.JobID]
		changed := ok && last != ev.State
		if changed {
			c.tracked[ev.JobID] = ev.State
		}
		c.mu.Unlock()

		if changed {
			c.logger.Debug("job state change", "job_id", ev.JobID, "state", ev.State)
			select {
			case c.events <- ev:
			case <-c.stopCh:
				return
			}
		}
	}
}

// parseSacct converts parsable sacct rows (JobID|State|ElapsedRaw|MaxRSS)
// into Events.
func parseSacct(out string) []Event {
	var events []Event
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(strings.TrimSpace(line), "|")
		if len(fields) < 2 || fields[0] == "" {
			continue
		}
		ev := Event{JobID: fields[0], State: mapSlurmState(fields[1])}
		if len(fields) > 2 {
			if sec, err := strconv.ParseFloat(fields[2], 64); err == nil {
				ev.RuntimeMinutes = sec / 60
			}
		}
		if len(fields) > 3 {
			ev.MemoryMB = parseRSS(fields[3])
		}
		events = append(events, ev)
	}
	return events
}

// mapSlurmState folds Slurm's state vocabulary onto JobState. CANCELLED rows
// carry a "by <uid>" suffix.
func mapSlurmState(s string) JobState {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch {
	case s == "PENDING" || s == "REQUEUED" || s == "SUSPENDED":
		return JobQueued
	case s == "RUNNING" || s == "COMPLETING":
		return JobRunning
	case s == "COMPLETED":
		return JobCompleted
	case strings.HasPrefix(s, "CANCELLED"):
		return JobCancelled
	default:
		// FAILED, TIMEOUT, NODE_FAIL, OUT_OF_MEMORY, PREEMPTED, ...
		return JobFailed
	}
}

// parseRSS converts a MaxRSS value like "1234K", "56M", "2G" to MB.
func parseRSS(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	unit := s[len(s)-1]
	val, err := strconv.ParseFloat(strings.TrimRight(s, "KMGTkmgt"), 64)
	if err != nil {
		return 0
	}
	switch unit {
	case 'K', 'k':
		return val / 1024
	case 'M', 'm':
		return val
	case 'G', 'g':
		return val * 1024
	case 'T', 't':
		return val * 1024 * 1024
	default:
		return val / (1024 * 1024) // bytes
	}
}
