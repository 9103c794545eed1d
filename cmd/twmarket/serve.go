package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, live events and price monitors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.application()
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			return a.Serve(cmd.Context())
		},
	}
}
