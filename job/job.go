package job

import (
	"fmt"
	"os"
	"strings"
)

const (
	// DefaultInterpreter runs biom3d the way the cluster images ship it.
	DefaultInterpreter = "python3"

	// predModule is the biom3d prediction entry point, invoked as
	// `<interpreter> -m biom3d.pred`.
	predModule = "biom3d.pred"
)

// Spec describes a single prediction run: which trained model to load,
// where the input volumes live, and where predictions go. When LabelDir
// is set, biom3d additionally evaluates the predictions against the
// ground-truth labels.
type Spec struct {
	Name        string // run name, selects the trained configuration
	ModelDir    string // build directory with trained model artifacts (--bui_dir)
	InputDir    string // input volumes (--dir_in)
	OutputDir   string // prediction output (--dir_out)
	LabelDir    string // optional ground-truth labels (--dir_lab)
	Interpreter string // defaults to DefaultInterpreter
	ExtraArgs   []string
}

// Args returns the argument list passed to the interpreter. The flag
// order is fixed; --dir_lab is emitted only when LabelDir is set.
func (s Spec) Args() []string {
	args := []string{
		"-m", predModule,
		"--name", s.Name,
		"--bui_dir", s.ModelDir,
		"--dir_in", s.InputDir,
		"--dir_out", s.OutputDir,
	}
	if s.LabelDir != "" {
		args = append(args, "--dir_lab", s.LabelDir)
	}
	return append(args, s.ExtraArgs...)
}

// CommandLine renders the full invocation as a single shell command,
// suitable for a job script body.
func (s Spec) CommandLine() string {
	parts := []string{shellQuote(s.interpreter())}
	for _, a := range s.Args() {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ")
}

func (s Spec) interpreter() string {
	if s.Interpreter == "" {
		return DefaultInterpreter
	}
	return s.Interpreter
}

// Validate checks that the run can be handed to biom3d: the name is set
// and the directories biom3d reads from exist. The output directory is
// created by biom3d itself, so only its presence in the spec is checked.
func (s Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("run name is required")
	}
	if s.OutputDir == "" {
		return fmt.Errorf("run %s: output directory is required", s.Name)
	}
	for _, d := range []struct {
		label, path string
		required    bool
	}{
		{"model directory", s.ModelDir, true},
		{"input directory", s.InputDir, true},
		{"label directory", s.LabelDir, false},
	} {
		if d.path == "" {
			if d.required {
				return fmt.Errorf("run %s: %s is required", s.Name, d.label)
			}
			continue
		}
		info, err := os.Stat(d.path)
		if err != nil {
			return fmt.Errorf("run %s: %s: %w", s.Name, d.label, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("run %s: %s %s is not a directory", s.Name, d.label, d.path)
		}
	}
	return nil
}

// shellQuote quotes s for use in a POSIX shell command line. Plain
// words pass through unchanged.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$&|;<>()*?[]#~`!{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
