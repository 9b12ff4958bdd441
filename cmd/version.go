package cmd

import (
	"fmt"

	"github.com/fenrix-tec/ioxport/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ioxport %s\n", version.AppVersion)
		fmt.Printf("  build time: %s\n", version.BuildTime)
		fmt.Printf("  commit:     %s\n", version.GitCommit)
	},
}
