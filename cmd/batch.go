package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/biomsub/biomsub/config"
	"github.com/biomsub/biomsub/logger"
	"github.com/biomsub/biomsub/scheduler"
	"github.com/biomsub/biomsub/ui"
)

var (
	batchConcurrency int
	batchDryRun      bool
	batchVerbose     bool
)

var batchCmd = &cobra.Command{
	Use:   "batch [manifest]",
	Short: "Submit every run from a manifest file",
	Long: `Read a JSONC manifest of prediction runs and submit them all. Runs
that should stay disabled can be left commented out in the manifest.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 4, "max concurrent submissions")
	batchCmd.Flags().BoolVar(&batchDryRun, "dry-run", false, "print job scripts without submitting")
	batchCmd.Flags().BoolVarP(&batchVerbose, "verbose", "v", false, "show verbose output")
}

// batchResult records the outcome of one submission.
type batchResult struct {
	run string
	id  int
	err error
}

func runBatch(cmd *cobra.Command, args []string) error {
	start := time.Now()

	ui.SetVerbose(batchVerbose)
	logger.SetLogger(logger.New(batchVerbose))

	ctx := cmd.Context()

	manifestPath := config.DefaultFile
	if len(args) == 1 {
		manifestPath = args[0]
	}

	ui.Step(1, 3, "Loading manifest")
	m, err := config.Load(manifestPath)
	if err != nil {
		ui.ErrorMsg("Failed to load manifest", err)
		return err
	}
	ui.Detail(fmt.Sprintf("%d runs, scheduler %s", len(m.Runs), m.Scheduler))

	ui.Step(2, 3, "Validating runs")
	for _, r := range m.Runs {
		if err := m.Spec(r).Validate(); err != nil {
			ui.ErrorMsg("Invalid run", err)
			return err
		}
	}

	if batchDryRun {
		ui.Println()
		ui.Println(ui.Bold.Render("Dry run mode - job scripts not submitted"))
		for _, r := range m.Runs {
			sub, err := scheduler.New(m.Scheduler, m.SchedulerOptions(r))
			if err != nil {
				return err
			}
			ui.Println()
			ui.Printf("%s %s\n", ui.Dim.Render("#"), ui.Primary.Render(r.Name))
			for _, line := range sub.Make(m.Spec(r)) {
				ui.Println(line)
			}
		}
		return nil
	}

	if err := os.MkdirAll(m.LogDir, 0755); err != nil {
		ui.ErrorMsg("Failed to create log directory", err)
		return err
	}

	ui.Step(3, 3, "Submitting to "+m.Scheduler)

	results := make([]batchResult, len(m.Runs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for i, run := range m.Runs {
		idx, r := i, run

		g.Go(func() error {
			results[idx] = batchResult{run: r.Name}

			sub, err := scheduler.New(m.Scheduler, m.SchedulerOptions(r))
			if err != nil {
				results[idx].err = err
				return nil
			}

			spec := m.Spec(r)
			scriptPath := scheduler.ScriptPath(m.LogDir, spec)
			if err := sub.Write(scriptPath, spec); err != nil {
				results[idx].err = err
				return nil
			}

			id, err := sub.Submit(ctx, scriptPath)
			if err != nil {
				// Keep going: other runs may still submit fine.
				results[idx].err = err
				return nil
			}
			results[idx].id = id
			ui.Verbosef("submitted %s as job %d", r.Name, id)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	ui.Println()
	failed := 0
	for _, res := range results {
		if res.err != nil {
			failed++
			ui.Printf("  %s %s: %s\n", ui.Error.Render("✗"), res.run, ui.Dim.Render(res.err.Error()))
			continue
		}
		ui.Printf("  %s %s %s job %d\n", ui.Success.Render("✓"), ui.Primary.Render(res.run), ui.Dim.Render("→"), res.id)
	}

	ui.Println()
	if failed > 0 {
		err := fmt.Errorf("%d of %d submissions failed", failed, len(results))
		ui.ErrorMsg("Batch incomplete", err)
		return err
	}
	ui.SuccessMsg(fmt.Sprintf("Submitted %d runs (%s)", len(results), ui.FormatDuration(time.Since(start))))
	ui.Detail("logs in " + m.LogDir)
	return nil
}
