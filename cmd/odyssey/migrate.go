package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/db"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Run the embedded database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{db.MigrateUp, db.MigrateDown, db.MigrateStatus},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			command := db.MigrateUp
			if len(args) == 1 {
				command = args[0]
			}
			if err := db.Migrate(cmd.Context(), cfg.PGDSN, command); err != nil {
				return err
			}
			logger.Info("migrate finished", slog.String("command", command))
			return nil
		},
	}
}
