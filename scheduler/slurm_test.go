package scheduler

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/biomsub/biomsub/job"
)

func slurmJob() job.Spec {
	return job.Spec{
		Name:      "unet_nucleus",
		ModelDir:  "models/unet",
		InputDir:  "data/test",
		OutputDir: "preds/unet",
	}
}

func TestSlurmMake(t *testing.T) {
	s := &Slurm{opts: Options{
		LogDir: "logs",
		Resources: Resources{
			CPUs:      4,
			Memory:    "32gb",
			Walltime:  "02:00:00",
			Partition: "gpu",
			GPUs:      1,
		},
	}}

	want := []string{
		"#!/bin/bash",
		"#SBATCH --job-name=unet_nucleus",
		"#SBATCH -o logs/unet_nucleus.out",
		"#SBATCH --ntasks=1",
		"#SBATCH --cpus-per-task=4",
		"#SBATCH --mem=32gb",
		"#SBATCH --time=02:00:00",
		"#SBATCH --partition=gpu",
		"#SBATCH --gres=gpu:1",
		"#SBATCH --no-requeue",
		"",
		"python3 -m biom3d.pred --name unet_nucleus --bui_dir models/unet --dir_in data/test --dir_out preds/unet",
		"",
	}

	got := s.Make(slurmJob())
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, wanted %#v", got, want)
	}
}

func TestSlurmMakeDefaults(t *testing.T) {
	s := &Slurm{opts: Options{LogDir: "logs"}}

	want := []string{
		"#!/bin/bash",
		"#SBATCH --job-name=unet_nucleus",
		"#SBATCH -o logs/unet_nucleus.out",
		"#SBATCH --ntasks=1",
		"#SBATCH --cpus-per-task=1",
		"#SBATCH --mem=16gb",
		"#SBATCH --no-requeue",
	}

	got := s.makeHead(slurmJob())
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, wanted %#v", got, want)
	}
}

func TestSlurmWrite(t *testing.T) {
	tmp := t.TempDir()
	s := &Slurm{opts: Options{LogDir: tmp}}

	path := filepath.Join(tmp, "unet_nucleus.sh")
	if err := s.Write(path, slurmJob()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("script was not written: %v", err)
	}
	if !strings.HasPrefix(string(data), "#!/bin/bash\n") {
		t.Errorf("script missing shebang:\n%s", data)
	}
	if !strings.Contains(string(data), "-m biom3d.pred") {
		t.Errorf("script missing prediction command:\n%s", data)
	}
}

func TestParseSbatchOutput(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    int
		wantErr bool
	}{
		{"accepted", "Submitted batch job 775241\n", 775241, false},
		{"accepted with cluster note", "sbatch: some warning\nSubmitted batch job 12\n", 12, false},
		{"rejected", "sbatch: error: invalid partition\n", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSbatchOutput(tt.out)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, wanted %d", got, tt.want)
			}
		})
	}
}

func TestSlurmStateMapping(t *testing.T) {
	tests := []struct {
		raw  string
		want State
	}{
		{"PENDING", StatePending},
		{"RUNNING", StateRunning},
		{"COMPLETING", StateRunning},
		{"COMPLETED", StateCompleted},
		{"FAILED", StateFailed},
		{"CANCELLED by 1000", StateFailed},
		{"TIMEOUT", StateFailed},
		{"OUT_OF_MEMORY", StateFailed},
		{"SPECIAL_EXIT", StateUnknown},
	}

	for _, tt := range tests {
		if got := slurmState(tt.raw); got != tt.want {
			t.Errorf("slurmState(%q) = %s, wanted %s", tt.raw, got, tt.want)
		}
	}
}
