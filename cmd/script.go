package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/biomsub/biomsub/job"
	"github.com/biomsub/biomsub/scheduler"
	"github.com/biomsub/biomsub/ui"
)

var scriptOut string

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Render the job script without submitting it",
	RunE:  runScript,
}

func init() {
	rootCmd.AddCommand(scriptCmd)

	scriptCmd.Flags().StringVarP(&runName, "name", "n", "", "run name, selects the trained configuration")
	scriptCmd.Flags().StringVarP(&modelDir, "model-dir", "m", "", "build directory with trained model artifacts")
	scriptCmd.Flags().StringVarP(&inputDir, "input", "i", "", "directory of input volumes")
	scriptCmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory for predictions")
	scriptCmd.Flags().StringVarP(&labelDir, "labels", "l", "", "ground-truth label directory (enables evaluation)")
	scriptCmd.Flags().StringVar(&interpreter, "interpreter", job.DefaultInterpreter, "python interpreter to invoke")
	scriptCmd.Flags().StringVar(&schedName, "scheduler", "slurm", "queueing system: slurm or pbs")
	scriptCmd.Flags().StringVar(&logDir, "log-dir", "logs", "directory for job scripts and stdout logs")
	scriptCmd.Flags().StringVar(&scriptOut, "out", "", "write the script to a file instead of stdout")

	scriptCmd.Flags().IntVar(&resources.CPUs, "cpus", 0, "cpus per task")
	scriptCmd.Flags().StringVar(&resources.Memory, "mem", "", "memory request, e.g. 16gb")
	scriptCmd.Flags().StringVar(&resources.Walltime, "time", "", "walltime limit, e.g. 04:00:00")
	scriptCmd.Flags().StringVar(&resources.Partition, "partition", "", "partition or queue")
	scriptCmd.Flags().IntVar(&resources.GPUs, "gpus", 0, "gpus per job")

	scriptCmd.MarkFlagRequired("name")
	scriptCmd.MarkFlagRequired("model-dir")
	scriptCmd.MarkFlagRequired("input")
	scriptCmd.MarkFlagRequired("output")
}

func runScript(cmd *cobra.Command, args []string) error {
	spec := job.Spec{
		Name:        runName,
		ModelDir:    modelDir,
		InputDir:    inputDir,
		OutputDir:   outputDir,
		LabelDir:    labelDir,
		Interpreter: interpreter,
	}

	sub, err := scheduler.New(schedName, scheduler.Options{
		LogDir:    logDir,
		Resources: resources,
	})
	if err != nil {
		ui.ErrorMsg("Invalid scheduler", err)
		return err
	}

	if scriptOut != "" {
		if err := sub.Write(scriptOut, spec); err != nil {
			ui.ErrorMsg("Failed to write job script", err)
			return err
		}
		ui.SuccessMsg("Wrote " + scriptOut)
		return nil
	}

	ui.Println(strings.Join(sub.Make(spec), "\n"))
	return nil
}
