package cmd

import (
	"fmt"

	"github.com/fenrix-tec/ioxport/core/convert"
	"github.com/fenrix-tec/ioxport/internal/logger"
	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune <workspace>",
	Short: "Delete a run workspace under the storage directory",
	Long: `Deletes one run workspace (cache plus artifacts). The path must live
inside the configured storage directory; anything outside it is refused.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfigWithOverrides()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		if err := convert.Prune(cfg.StorageDir, args[0]); err != nil {
			return err
		}
		logger.Success("Pruned %s", args[0])
		return nil
	},
}

func init() {
	pruneCmd.Flags().StringVar(&storageDir, "storage-dir", "", "Directory run workspaces are created under (overrides .env and environment)")
}
