package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vigilix/insightd/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
		fmt.Printf("go: %s\n", version.GoVersion)
	},
}
