// Package config loads the biomsub run manifest. The manifest is JSONC
// (comments and trailing commas allowed), so a disabled run can stay in
// the file commented out.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	"github.com/biomsub/biomsub/job"
	"github.com/biomsub/biomsub/scheduler"
)

// DefaultFile is the manifest looked up when none is given.
const DefaultFile = "biomsub.jsonc"

// Manifest is the top-level manifest structure.
type Manifest struct {
	Interpreter string              `json:"interpreter,omitempty"`
	Scheduler   string              `json:"scheduler,omitempty"` // "slurm" or "pbs"
	LogDir      string              `json:"log_dir,omitempty"`
	Resources   scheduler.Resources `json:"resources,omitempty"`
	Runs        []Run               `json:"runs"`
}

// Run is one prediction run entry. Resources, when present, override
// the manifest-level defaults for this run only.
type Run struct {
	Name      string               `json:"name"`
	ModelDir  string               `json:"model_dir"`
	InputDir  string               `json:"input_dir"`
	OutputDir string               `json:"output_dir"`
	LabelDir  string               `json:"label_dir,omitempty"`
	ExtraArgs []string             `json:"extra_args,omitempty"`
	Resources *scheduler.Resources `json:"resources,omitempty"`
}

// Default returns a manifest with the defaults applied.
func Default() Manifest {
	return Manifest{
		Interpreter: job.DefaultInterpreter,
		Scheduler:   "slurm",
		LogDir:      "logs",
	}
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}

	m := Default()
	if err := json.Unmarshal(std, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	switch m.Scheduler {
	case "slurm", "pbs":
	default:
		return fmt.Errorf("unsupported scheduler: %s", m.Scheduler)
	}
	if len(m.Runs) == 0 {
		return fmt.Errorf("no runs defined")
	}
	seen := make(map[string]bool, len(m.Runs))
	for i, r := range m.Runs {
		if r.Name == "" {
			return fmt.Errorf("run %d: name is required", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("duplicate run name: %s", r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}

// Spec converts a run entry to a job spec with manifest defaults
// applied.
func (m *Manifest) Spec(r Run) job.Spec {
	return job.Spec{
		Name:        r.Name,
		ModelDir:    r.ModelDir,
		InputDir:    r.InputDir,
		OutputDir:   r.OutputDir,
		LabelDir:    r.LabelDir,
		Interpreter: m.Interpreter,
		ExtraArgs:   r.ExtraArgs,
	}
}

// SchedulerOptions returns submission options for a run, merging the
// run's resource overrides over the manifest defaults.
func (m *Manifest) SchedulerOptions(r Run) scheduler.Options {
	res := m.Resources
	if r.Resources != nil {
		o := *r.Resources
		if o.CPUs != 0 {
			res.CPUs = o.CPUs
		}
		if o.Memory != "" {
			res.Memory = o.Memory
		}
		if o.Walltime != "" {
			res.Walltime = o.Walltime
		}
		if o.Partition != "" {
			res.Partition = o.Partition
		}
		if o.GPUs != 0 {
			res.GPUs = o.GPUs
		}
	}
	return scheduler.Options{
		LogDir:    m.LogDir,
		Resources: res,
	}
}
