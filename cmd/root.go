package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// Version information set by goreleaser
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "biomsub",
	Short: "Submit biom3d prediction runs to a cluster scheduler",
}

func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate("biomsub {{.Version}} (" + commit + ", " + date + ")\n")
}
