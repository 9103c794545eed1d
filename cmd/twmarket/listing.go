package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"twmarket/internal/sources/isin"
)

func newListingCommand(opts *rootOptions) *cobra.Command {
	var market string
	cmd := &cobra.Command{
		Use:   "listing",
		Short: "Print the ISIN listing of a market as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := isin.Market(market)
			switch m {
			case isin.MarketTSE, isin.MarketOTC, isin.MarketIndex:
			default:
				return fmt.Errorf("unknown market %q (want tse, otc or index)", market)
			}

			a, err := opts.application()
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			listings, err := a.Listing(cmd.Context(), m)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(listings)
		},
	}
	cmd.Flags().StringVar(&market, "market", string(isin.MarketTSE), "tse, otc or index")
	return cmd
}
