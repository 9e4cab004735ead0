package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/biomsub/biomsub/job"
	"github.com/biomsub/biomsub/logger"
	"github.com/biomsub/biomsub/scheduler"
	"github.com/biomsub/biomsub/ui"
)

var (
	runName     string
	modelDir    string
	inputDir    string
	outputDir   string
	labelDir    string
	interpreter string
	schedName   string
	logDir      string
	local       bool
	dryRun      bool
	verbose     bool

	resources scheduler.Resources
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Run biom3d inference on a folder of volumes",
	Long: `Build the biom3d prediction invocation for a trained model and submit
it as a batch job, or run it in the foreground with --local. Passing
--labels forwards the ground-truth directory so biom3d evaluates the
predictions after inference.`,
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)

	predictCmd.Flags().StringVarP(&runName, "name", "n", "", "run name, selects the trained configuration")
	predictCmd.Flags().StringVarP(&modelDir, "model-dir", "m", "", "build directory with trained model artifacts")
	predictCmd.Flags().StringVarP(&inputDir, "input", "i", "", "directory of input volumes")
	predictCmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory for predictions")
	predictCmd.Flags().StringVarP(&labelDir, "labels", "l", "", "ground-truth label directory (enables evaluation)")
	predictCmd.Flags().StringVar(&interpreter, "interpreter", job.DefaultInterpreter, "python interpreter to invoke")
	predictCmd.Flags().StringVar(&schedName, "scheduler", "slurm", "queueing system: slurm or pbs")
	predictCmd.Flags().StringVar(&logDir, "log-dir", "logs", "directory for job scripts and stdout logs")
	predictCmd.Flags().BoolVar(&local, "local", false, "run in the foreground instead of submitting")
	predictCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the job script without submitting")
	predictCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show verbose output")

	predictCmd.Flags().IntVar(&resources.CPUs, "cpus", 0, "cpus per task")
	predictCmd.Flags().StringVar(&resources.Memory, "mem", "", "memory request, e.g. 16gb")
	predictCmd.Flags().StringVar(&resources.Walltime, "time", "", "walltime limit, e.g. 04:00:00")
	predictCmd.Flags().StringVar(&resources.Partition, "partition", "", "partition or queue")
	predictCmd.Flags().IntVar(&resources.GPUs, "gpus", 0, "gpus per job")

	predictCmd.MarkFlagRequired("name")
	predictCmd.MarkFlagRequired("model-dir")
	predictCmd.MarkFlagRequired("input")
	predictCmd.MarkFlagRequired("output")
}

func runPredict(cmd *cobra.Command, args []string) error {
	start := time.Now()

	ui.SetVerbose(verbose)
	logger.SetLogger(logger.New(verbose))

	ctx := cmd.Context()

	spec := job.Spec{
		Name:        runName,
		ModelDir:    modelDir,
		InputDir:    inputDir,
		OutputDir:   outputDir,
		LabelDir:    labelDir,
		Interpreter: interpreter,
	}

	ui.Step(1, 3, "Validating run")
	if err := spec.Validate(); err != nil {
		ui.ErrorMsg("Invalid run", err)
		return err
	}
	if spec.LabelDir != "" {
		ui.Detail("evaluation enabled against " + spec.LabelDir)
	}

	if local {
		ui.Step(2, 3, "Running prediction in the foreground")
		ui.Verbosef("command: %s", spec.CommandLine())
		if err := job.Run(ctx, spec, job.RunOptions{}); err != nil {
			ui.ErrorMsg("Prediction failed", err)
			return err
		}
		ui.Step(3, 3, "Done")
		ui.SuccessMsg(fmt.Sprintf("Prediction complete (%s)", ui.FormatDuration(time.Since(start))))
		ui.Detail("predictions in " + spec.OutputDir)
		return nil
	}

	sub, err := scheduler.New(schedName, scheduler.Options{
		LogDir:    logDir,
		Resources: resources,
	})
	if err != nil {
		ui.ErrorMsg("Invalid scheduler", err)
		return err
	}

	if dryRun {
		ui.Println()
		ui.Println(ui.Bold.Render("Dry run mode - job script not submitted"))
		ui.Println()
		for _, line := range sub.Make(spec) {
			ui.Println(line)
		}
		return nil
	}

	ui.Step(2, 3, "Writing job script")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		ui.ErrorMsg("Failed to create log directory", err)
		return err
	}
	scriptPath := scheduler.ScriptPath(logDir, spec)
	if err := sub.Write(scriptPath, spec); err != nil {
		ui.ErrorMsg("Failed to write job script", err)
		return err
	}
	ui.Detail(scriptPath)

	ui.Step(3, 3, "Submitting to "+sub.Name())
	var id int
	err = ui.RunWithSpinner("Submitting job...", func() error {
		var submitErr error
		id, submitErr = sub.Submit(ctx, scriptPath)
		return submitErr
	})
	if err != nil {
		ui.ErrorMsg("Submission failed", err, "Is the scheduler reachable from this node?")
		return err
	}

	ui.Println()
	ui.SuccessMsg(fmt.Sprintf("Submitted %s as job %s (%s)",
		spec.Name, ui.Primary.Render(fmt.Sprint(id)), ui.FormatDuration(time.Since(start))))
	ui.Detail("stdout log: " + scheduler.LogPath(logDir, spec))
	ui.Printf("  %s biomsub status --scheduler %s %d\n", ui.Dim.Render("Tip:"), sub.Name(), id)
	return nil
}
