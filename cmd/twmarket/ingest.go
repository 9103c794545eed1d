package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"twmarket/internal/ingest"
	"twmarket/internal/pipeline"
)

func newIngestCommand(opts *rootOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:       "ingest {stats|tickers}",
		Short:     "Run one ingestion pipeline for a trading date",
		Example:   "  twmarket ingest stats --date 2024-01-03",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"stats", "tickers"},
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := pipelineName(args[0])
			if err != nil {
				return err
			}
			a, err := opts.application()
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			if date == "" {
				date = a.Today()
			}
			result, err := a.Ingest(cmd.Context(), name, date)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			return failedSteps(result)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "trading date yyyy-MM-dd (default today in the configured timezone)")
	return cmd
}

func pipelineName(arg string) (string, error) {
	switch arg {
	case "stats", ingest.StatsPipeline:
		return ingest.StatsPipeline, nil
	case "tickers":
		return ingest.TickersPipeline, nil
	}
	return "", fmt.Errorf("unknown pipeline %q (want stats or tickers)", arg)
}

// failedSteps turns failed steps into a non-zero exit
func failedSteps(result *pipeline.RunResult) error {
	var failed int
	for _, st := range result.Steps {
		if st.GetStatus() == pipeline.StepStatusFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%s %s: %d of %d steps failed", result.Pipeline, result.Date, failed, len(result.Steps))
	}
	return nil
}
