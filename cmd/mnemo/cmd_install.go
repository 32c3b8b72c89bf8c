package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemo-dev/mnemo/internal/config"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Create the data directory and default settings file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			cfg = config.Default()
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if err := config.EnsureDataDir(cfg); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		fmt.Printf("mnemo data directory ready at %s\n", cfg.DataDir)
		return nil
	},
}
