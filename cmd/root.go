package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/desguapro/stock-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "stock-cli",
	Short: "DesguaPro bulk stock verification",
	Long:  "Ingests junkyard stock CSVs, maps columns, and verifies prices against the DesguaPro pricing service with a bounded worker pool.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
