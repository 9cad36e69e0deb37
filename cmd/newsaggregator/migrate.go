package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply (up) or roll back one step of (down) the schema, then sync configured sources",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}

			application, logger, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Migrate(direction); err != nil {
				return err
			}
			logger.Info("migration complete", "direction", direction)

			if direction == "down" {
				return nil
			}
			return application.SyncSources(cmd.Context())
		},
	}
}
