package scheduler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/biomsub/biomsub/job"
	"github.com/biomsub/biomsub/logger"
)

// PBS submits through qsub.
type PBS struct {
	opts Options
}

func (p *PBS) Name() string { return "pbs" }

func (p *PBS) makeHead(j job.Spec) []string {
	res := p.opts.Resources.withDefaults()
	head := []string{
		"#!/bin/sh",
		"#PBS -N " + j.Name,
		"#PBS -S /bin/bash",
		"#PBS -j oe",
		"#PBS -o " + LogPath(p.opts.LogDir, j),
		fmt.Sprintf("#PBS -l ncpus=%d", res.CPUs),
		"#PBS -l mem=" + res.Memory,
	}
	if res.Walltime != "" {
		head = append(head, "#PBS -l walltime="+res.Walltime)
	}
	if res.GPUs > 0 {
		head = append(head, fmt.Sprintf("#PBS -l ngpus=%d", res.GPUs))
	}
	if res.Partition != "" {
		head = append(head, "#PBS -q "+res.Partition)
	}
	return append(head, "cd $PBS_O_WORKDIR")
}

func (p *PBS) Make(j job.Spec) []string {
	return append(p.makeHead(j), "", j.CommandLine(), "")
}

func (p *PBS) Write(path string, j job.Spec) error {
	script := strings.Join(p.Make(j), "\n")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		return fmt.Errorf("failed to write job script: %w", err)
	}
	return nil
}

func (p *PBS) Submit(ctx context.Context, path string) (int, error) {
	var lastErr error
	for attempt := 0; attempt < retries(p.opts); attempt++ {
		if attempt > 0 {
			logger.Debug("retrying qsub", "script", path, "attempt", attempt+1)
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(retryDelay(p.opts)):
			}
		}

		out, err := exec.CommandContext(ctx, "qsub", path).Output()
		if err != nil {
			lastErr = fmt.Errorf("qsub %s: %w", path, err)
			continue
		}
		return parseQsubOutput(string(out))
	}
	return 0, lastErr
}

// parseQsubOutput extracts the numeric ID from qsub's "1234.hostname".
func parseQsubOutput(out string) (int, error) {
	id := strings.TrimSpace(out)
	if i := strings.IndexByte(id, '.'); i >= 0 {
		id = id[:i]
	}
	n, err := strconv.Atoi(id)
	if err != nil {
		return 0, fmt.Errorf("unexpected qsub output: %q", strings.TrimSpace(out))
	}
	return n, nil
}

func (p *PBS) State(ctx context.Context, id int) (State, error) {
	out, err := exec.CommandContext(ctx, "qstat", "-x", "-f", strconv.Itoa(id)).Output()
	if err != nil {
		return StateUnknown, fmt.Errorf("failed to query job %d: %w", id, err)
	}
	return parseQstatState(string(out)), nil
}

func parseQstatState(out string) State {
	var state, exitStatus string
	for _, line := range strings.Split(out, "\n") {
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "job_state":
			state = strings.TrimSpace(val)
		case "Exit_status":
			exitStatus = strings.TrimSpace(val)
		}
	}
	switch state {
	case "Q", "H", "W":
		return StatePending
	case "R", "E":
		return StateRunning
	case "F":
		// qstat reports F for success and failure alike; Exit_status
		// tells them apart.
		if exitStatus != "" && exitStatus != "0" {
			return StateFailed
		}
		return StateCompleted
	}
	return StateUnknown
}
