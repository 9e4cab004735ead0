package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/biomsub/biomsub/scheduler"
	"github.com/biomsub/biomsub/ui"
)

var (
	statusScheduler string
	watch           bool
	watchInterval   time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>...",
	Short: "Show the state of submitted jobs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusScheduler, "scheduler", "slurm", "queueing system: slurm or pbs")
	statusCmd.Flags().BoolVarP(&watch, "watch", "w", false, "poll until all jobs finish")
	statusCmd.Flags().DurationVar(&watchInterval, "interval", 30*time.Second, "poll interval with --watch")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	ids := make([]int, 0, len(args))
	for _, a := range args {
		id, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("invalid job id: %s", a)
		}
		ids = append(ids, id)
	}

	sub, err := scheduler.New(statusScheduler, scheduler.Options{})
	if err != nil {
		ui.ErrorMsg("Invalid scheduler", err)
		return err
	}

	for {
		done := true
		for _, id := range ids {
			state, err := sub.State(ctx, id)
			if err != nil {
				ui.ErrorMsg(fmt.Sprintf("Job %d", id), err)
				return err
			}
			ui.Printf("  %s %d %s\n", renderState(state), id, ui.Dim.Render(string(state)))
			if state == scheduler.StatePending || state == scheduler.StateRunning {
				done = false
			}
		}

		if !watch || done {
			return nil
		}

		ui.Println()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(watchInterval):
		}
	}
}

func renderState(s scheduler.State) string {
	switch s {
	case scheduler.StateCompleted:
		return ui.Success.Render("✓")
	case scheduler.StateFailed:
		return ui.Error.Render("✗")
	case scheduler.StateRunning:
		return ui.Primary.Render("•")
	case scheduler.StatePending:
		return ui.Warning.Render("•")
	default:
		return ui.Dim.Render("?")
	}
}
