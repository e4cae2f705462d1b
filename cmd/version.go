package cmd

import (
	"fmt"

	"github.com/fbz-tec/chxport/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("chxport %s (commit %s, built %s)\n", version.AppVersion, version.GitCommit, version.BuildTime)
	},
}
