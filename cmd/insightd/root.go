package main

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "insightd",
	Short: "insightd - background insight-processing engine",
	Long: `insightd schedules analytical computation tasks across a bounded
worker pool, aggregates the resulting insights into a time-bounded store
and notifies subscribers as results arrive.`,
	Version: Version,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
}
