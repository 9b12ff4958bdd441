package cmd

import (
	"fmt"
	"strings"

	"github.com/fenrix-tec/ioxport/core/handlers"
	"github.com/fenrix-tec/ioxport/core/output"
	"github.com/spf13/cobra"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the available output formats and compressions",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Non-spatial formats: %s\n", strings.Join(handlers.TabularFormats(), ", "))
		fmt.Printf("Spatial formats:     %s\n", strings.Join(handlers.SpatialFormats(), ", "))
		fmt.Printf("Compressions:        %s\n", strings.Join(output.Compressions(), ", "))
	},
}
