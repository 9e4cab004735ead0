package scheduler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/biomsub/biomsub/job"
	"github.com/biomsub/biomsub/logger"
)

// Slurm submits through sbatch. sbatch is used rather than srun so the
// job queues instead of grabbing a node interactively.
type Slurm struct {
	opts Options
}

func (s *Slurm) Name() string { return "slurm" }

func (s *Slurm) makeHead(j job.Spec) []string {
	res := s.opts.Resources.withDefaults()
	head := []string{
		"#!/bin/bash",
		"#SBATCH --job-name=" + j.Name,
		"#SBATCH -o " + LogPath(s.opts.LogDir, j),
		"#SBATCH --ntasks=1",
		fmt.Sprintf("#SBATCH --cpus-per-task=%d", res.CPUs),
		"#SBATCH --mem=" + res.Memory,
	}
	if res.Walltime != "" {
		head = append(head, "#SBATCH --time="+res.Walltime)
	}
	if res.Partition != "" {
		head = append(head, "#SBATCH --partition="+res.Partition)
	}
	if res.GPUs > 0 {
		head = append(head, fmt.Sprintf("#SBATCH --gres=gpu:%d", res.GPUs))
	}
	return append(head, "#SBATCH --no-requeue")
}

func (s *Slurm) Make(j job.Spec) []string {
	return append(s.makeHead(j), "", j.CommandLine(), "")
}

func (s *Slurm) Write(path string, j job.Spec) error {
	script := strings.Join(s.Make(j), "\n")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		return fmt.Errorf("failed to write job script: %w", err)
	}
	return nil
}

// submittedRe matches sbatch's acceptance line: "Submitted batch job 1234".
var submittedRe = regexp.MustCompile(`Submitted batch job (\d+)`)

func (s *Slurm) Submit(ctx context.Context, path string) (int, error) {
	var lastErr error
	for attempt := 0; attempt < retries(s.opts); attempt++ {
		if attempt > 0 {
			logger.Debug("retrying sbatch", "script", path, "attempt", attempt+1)
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(retryDelay(s.opts)):
			}
		}

		out, err := exec.CommandContext(ctx, "sbatch", path).Output()
		if err != nil {
			lastErr = fmt.Errorf("sbatch %s: %w", path, err)
			continue
		}
		return parseSbatchOutput(string(out))
	}
	return 0, lastErr
}

func parseSbatchOutput(out string) (int, error) {
	m := submittedRe.FindStringSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("unexpected sbatch output: %q", strings.TrimSpace(out))
	}
	return strconv.Atoi(m[1])
}

// State queries squeue for queued and running jobs, then falls back to
// sacct for jobs that already left the queue.
func (s *Slurm) State(ctx context.Context, id int) (State, error) {
	out, err := exec.CommandContext(ctx, "squeue", "-h", "-j", strconv.Itoa(id), "-o", "%T").Output()
	if err == nil {
		if st := strings.TrimSpace(string(out)); st != "" {
			return slurmState(st), nil
		}
	}

	out, err = exec.CommandContext(ctx, "sacct", "-n", "-X", "-j", strconv.Itoa(id), "-o", "State").Output()
	if err != nil {
		return StateUnknown, fmt.Errorf("failed to query job %d: %w", id, err)
	}
	st := strings.TrimSpace(string(out))
	if st == "" {
		return StateUnknown, nil
	}
	return slurmState(st), nil
}

func slurmState(raw string) State {
	// sacct may report e.g. "CANCELLED by 1000"; the first word decides.
	switch strings.Fields(raw)[0] {
	case "PENDING", "CONFIGURING", "REQUEUED":
		return StatePending
	case "RUNNING", "COMPLETING":
		return StateRunning
	case "COMPLETED":
		return StateCompleted
	case "FAILED", "CANCELLED", "TIMEOUT", "NODE_FAIL", "OUT_OF_MEMORY", "PREEMPTED":
		return StateFailed
	default:
		return StateUnknown
	}
}
