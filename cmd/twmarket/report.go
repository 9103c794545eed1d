package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newReportCommand(opts *rootOptions) *cobra.Command {
	var (
		date  string
		out   string
		asCSV bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write the after-hours workbook for a trading date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.application()
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			if date == "" {
				date = a.Today()
			}
			if out == "" {
				out = a.Config.Report.OutputDir
			}

			write := a.Reports.Write
			if asCSV {
				write = a.Reports.WriteCSV
			}
			path, err := write(cmd.Context(), date, out)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "trading date yyyy-MM-dd (default today in the configured timezone)")
	cmd.Flags().StringVar(&out, "out", "", "output directory (default report.output_dir)")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "write the statistics window as CSV instead of xlsx")
	return cmd
}
