package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biomsub/biomsub/config"
	"github.com/biomsub/biomsub/scheduler"
)

// TestIntegration_ManifestToScripts walks the whole path a batch
// submission takes short of calling sbatch: manifest in, job scripts
// out.
func TestIntegration_ManifestToScripts(t *testing.T) {
	tmpDir := t.TempDir()

	manifest := `{
		"scheduler": "slurm",
		"log_dir": "` + filepath.ToSlash(tmpDir) + `",
		"resources": {"cpus": 4, "mem": "32gb", "gpus": 1},
		"runs": [
			{
				"name": "unet_nucleus",
				"model_dir": "models/unet_nucleus",
				"input_dir": "data/nucleus/test",
				"output_dir": "preds/nucleus",
				"label_dir": "data/nucleus/labels",
			},
			{
				"name": "unet_chromo",
				"model_dir": "models/unet_chromo",
				"input_dir": "data/chromo/test",
				"output_dir": "preds/chromo",
			},
		],
	}`

	manifestPath := filepath.Join(tmpDir, "biomsub.jsonc")
	if err := os.WriteFile(manifestPath, []byte(manifest), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	m, err := config.Load(manifestPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	wantCommands := map[string]string{
		"unet_nucleus": "python3 -m biom3d.pred --name unet_nucleus --bui_dir models/unet_nucleus" +
			" --dir_in data/nucleus/test --dir_out preds/nucleus --dir_lab data/nucleus/labels",
		"unet_chromo": "python3 -m biom3d.pred --name unet_chromo --bui_dir models/unet_chromo" +
			" --dir_in data/chromo/test --dir_out preds/chromo",
	}

	for _, r := range m.Runs {
		sub, err := scheduler.New(m.Scheduler, m.SchedulerOptions(r))
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}

		spec := m.Spec(r)
		scriptPath := scheduler.ScriptPath(m.LogDir, spec)
		if err := sub.Write(scriptPath, spec); err != nil {
			t.Fatalf("Write failed for %s: %v", r.Name, err)
		}

		data, err := os.ReadFile(scriptPath)
		if err != nil {
			t.Fatalf("script for %s was not written: %v", r.Name, err)
		}
		script := string(data)

		if !strings.Contains(script, wantCommands[r.Name]) {
			t.Errorf("script for %s missing exact command line\nwant: %s\ngot:\n%s",
				r.Name, wantCommands[r.Name], script)
		}
		if !strings.Contains(script, "#SBATCH -o "+scheduler.LogPath(m.LogDir, spec)) {
			t.Errorf("script for %s missing stdout redirection directive:\n%s", r.Name, script)
		}
		if !strings.Contains(script, "#SBATCH --gres=gpu:1") {
			t.Errorf("script for %s missing gpu request:\n%s", r.Name, script)
		}
	}
}

// TestIntegration_EvaluationOnlyWithLabels checks that --dir_lab never
// leaks into a run without labels.
func TestIntegration_EvaluationOnlyWithLabels(t *testing.T) {
	tmpDir := t.TempDir()

	manifest := `{
		"log_dir": "` + filepath.ToSlash(tmpDir) + `",
		"runs": [
			{"name": "noeval", "model_dir": "m", "input_dir": "i", "output_dir": "o"},
		],
	}`

	manifestPath := filepath.Join(tmpDir, "biomsub.jsonc")
	if err := os.WriteFile(manifestPath, []byte(manifest), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	m, err := config.Load(manifestPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	sub, err := scheduler.New(m.Scheduler, m.SchedulerOptions(m.Runs[0]))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	script := strings.Join(sub.Make(m.Spec(m.Runs[0])), "\n")
	if strings.Contains(script, "--dir_lab") {
		t.Errorf("script contains --dir_lab for a run without labels:\n%s", script)
	}
}
