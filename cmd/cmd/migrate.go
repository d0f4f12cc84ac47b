package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"gazette/internal/config"
	"gazette/internal/logger"
	"gazette/internal/recordstore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending record-store schema migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("migrate: load config: %w", err)
		}
		logger.InitWithLevel(cfg.App.LogLevel)

		if err := recordstore.RunMigrations(cfg.Database.DSN); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Println("migrations applied")
		return nil
	},
}
