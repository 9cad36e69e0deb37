package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"NewsAggregator/internal/app"
	"NewsAggregator/internal/config"
	"NewsAggregator/internal/logging"
)

var cfgFile string

func main() {
	_ = godotenv.Load()

	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "newsaggregator",
		Short:         "Fetch articles from news APIs and serve them",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to the YAML config (default $NEWS_AGGREGATOR_CONFIG)")

	root.AddCommand(newFetchCommand())
	root.AddCommand(newServeCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newSourcesCommand())
	return root
}

// bootstrap loads configuration and builds the application for a subcommand.
func bootstrap(ctx context.Context) (*app.Application, *slog.Logger, error) {
	cfg := config.Load(cfgFile)
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return application, logger, nil
}
