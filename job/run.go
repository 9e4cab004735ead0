package job

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/biomsub/biomsub/logger"
)

// RunOptions configures a local foreground run.
type RunOptions struct {
	Stdout io.Writer // defaults to os.Stdout
	Stderr io.Writer // defaults to os.Stderr
	Dir    string    // working directory, defaults to the current one
}

// Run executes the prediction directly, without a scheduler, and blocks
// until biom3d exits. The exit status is surfaced verbatim in the
// returned error; nothing is retried.
func Run(ctx context.Context, s Spec, opts RunOptions) error {
	if err := s.Validate(); err != nil {
		return err
	}

	interp := s.interpreter()
	if _, err := exec.LookPath(interp); err != nil {
		return fmt.Errorf("%s not found: %w", interp, err)
	}

	if err := os.MkdirAll(s.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, interp, s.Args()...)
	cmd.Dir = opts.Dir
	cmd.Stdout = opts.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = opts.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	logger.Debug("running prediction locally", "run", s.Name, "interpreter", interp)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("prediction %s failed: %w", s.Name, err)
	}
	return nil
}
