// Package cmd provides the command-line interface for framescope.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "framescope",
	Short: "framescope records per-node render and lifecycle timings.",
	Long: `framescope profiles a live component tree and groups the timings ` +
		`into frames. It can run a synthetic tree, serve a monitoring page ` +
		`and read back recorded frames.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
