// Package scheduler generates batch job scripts for biom3d prediction
// runs and submits them to a cluster queueing system.
package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/biomsub/biomsub/job"
)

const (
	defaultSubmitRetries = 3
	submitRetryDelay     = 2 * time.Second
)

// Resources describes what a job asks the scheduler for. Zero values
// fall back to scheduler-specific defaults.
type Resources struct {
	CPUs      int    `json:"cpus,omitempty"`
	Memory    string `json:"mem,omitempty"`  // e.g. "16gb"
	Walltime  string `json:"time,omitempty"` // e.g. "04:00:00"
	Partition string `json:"partition,omitempty"`
	GPUs      int    `json:"gpus,omitempty"`
}

func (r Resources) withDefaults() Resources {
	if r.CPUs == 0 {
		r.CPUs = 1
	}
	if r.Memory == "" {
		r.Memory = "16gb"
	}
	return r
}

// Options configures script generation and submission.
type Options struct {
	LogDir        string // where stdout logs and job scripts go
	Resources     Resources
	SubmitRetries int           // attempts before giving up on a busy scheduler
	RetryDelay    time.Duration // wait between attempts
}

// State is a coarse view of a submitted job's lifecycle.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateUnknown   State = "unknown"
)

// Submission is the queueing-system interface. Implementations turn a
// job spec into a submit script and hand it to the scheduler.
type Submission interface {
	// Name identifies the scheduler, e.g. "slurm".
	Name() string
	// Make returns the submit script, one line per element.
	Make(j job.Spec) []string
	// Write renders the script to path.
	Write(path string, j job.Spec) error
	// Submit queues the script and returns the scheduler's job ID.
	Submit(ctx context.Context, path string) (int, error)
	// State reports the current state of a submitted job.
	State(ctx context.Context, id int) (State, error)
}

// New returns the Submission for the named scheduler.
func New(name string, opts Options) (Submission, error) {
	switch name {
	case "slurm", "":
		return &Slurm{opts: opts}, nil
	case "pbs":
		return &PBS{opts: opts}, nil
	default:
		return nil, fmt.Errorf("unsupported scheduler: %s", name)
	}
}

// ScriptPath returns where the submit script for a run is written.
func ScriptPath(logDir string, j job.Spec) string {
	return filepath.Join(logDir, j.Name+".sh")
}

// LogPath returns where the scheduler redirects the run's stdout.
func LogPath(logDir string, j job.Spec) string {
	return filepath.Join(logDir, j.Name+".out")
}

func retries(opts Options) int {
	if opts.SubmitRetries < 1 {
		return defaultSubmitRetries
	}
	return opts.SubmitRetries
}

func retryDelay(opts Options) time.Duration {
	if opts.RetryDelay <= 0 {
		return submitRetryDelay
	}
	return opts.RetryDelay
}
