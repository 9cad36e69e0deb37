package main

import (
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"NewsAggregator/internal/config"
	"NewsAggregator/internal/domain"
)

func newSourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured source profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			renderProfiles(cmd.OutOrStdout(), config.Load(cfgFile).Sources)
			return nil
		},
	}
}

// renderProfiles prints one row per configured profile; malformed ones show their validation error.
func renderProfiles(w io.Writer, sources []config.SourceConfig) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Name", "Base URL", "Endpoints", "API Key", "Status"})

	for _, src := range sources {
		p := src.Profile()
		names := make([]string, 0, len(p.Endpoints))
		for _, ep := range p.Endpoints {
			names = append(names, ep.Name)
		}
		key := "missing"
		if p.APIKey != "" {
			key = "set"
		}
		status := "ok"
		if err := p.Validate(); err != nil {
			status = strings.TrimPrefix(err.Error(), domain.ErrConfiguration.Error()+": ")
		}
		t.AppendRow(table.Row{p.ID, p.Name, p.BaseURL, strings.Join(names, ", "), key, status})
	}
	t.Render()
}
