package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"NewsAggregator/internal/adapter"
	"NewsAggregator/internal/usecase"
)

type fetchOptions struct {
	category   string
	query      string
	endpoint   string
	pathParams map[string]string
	params     map[string]string
}

// adapterParams maps the command flags onto request parameters.
func (o fetchOptions) adapterParams() adapter.Params {
	p := adapter.Params{
		Endpoint:   o.endpoint,
		PathParams: map[string]string{},
		Query:      map[string]string{},
	}
	for k, v := range o.pathParams {
		p.PathParams[k] = v
	}
	for k, v := range o.params {
		p.Query[k] = v
	}
	if o.category != "" {
		p.Query["category"] = o.category
	}
	if o.query != "" {
		p.Query["q"] = o.query
	}
	return p
}

func newFetchCommand() *cobra.Command {
	var opts fetchOptions

	cmd := &cobra.Command{
		Use:   "fetch [source]",
		Short: "Fetch and store articles from one source, or from all when omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, _, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer application.Close()

			ingestion := application.Ingestion()
			params := opts.adapterParams()

			var results []usecase.Result
			if len(args) == 1 && args[0] != "all" {
				results = []usecase.Result{ingestion.Run(cmd.Context(), args[0], params)}
			} else {
				results = ingestion.RunAll(cmd.Context(), params)
			}

			renderResults(cmd.OutOrStdout(), results)
			if failed := countFailed(results); failed > 0 {
				return fmt.Errorf("%d of %d source(s) failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.category, "category", "", "category filter passed to the source API")
	cmd.Flags().StringVar(&opts.query, "query", "", "search keywords passed to the source API")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "endpoint name (default: the profile's default endpoint)")
	cmd.Flags().StringToStringVar(&opts.pathParams, "path", nil, "path placeholder values, e.g. --path section=world")
	cmd.Flags().StringToStringVar(&opts.params, "param", nil, "extra query parameters, e.g. --param page=2")
	return cmd
}

func renderResults(w io.Writer, results []usecase.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Source", "Status", "Processed", "Created", "Updated", "Skipped", "Failed", "Duration", "Error"})

	for _, r := range results {
		status := "ok"
		if !r.Succeeded() {
			status = "failed"
		}
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		t.AppendRow(table.Row{r.Source, status, r.Processed, r.Created, r.Updated, r.Skipped, r.Failed, r.Duration.Round(time.Millisecond), errText})
	}
	t.Render()
}

func countFailed(results []usecase.Result) int {
	n := 0
	for _, r := range results {
		if !r.Succeeded() {
			n++
		}
	}
	return n
}
