package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newBalanceCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show non-zero account balances (needs KRAKEN_API_KEY and KRAKEN_API_SECRET)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.printer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			client, err := g.newClient()
			if err != nil {
				return err
			}
			defer client.Close(cmd.Context())

			balances, err := client.Balance(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([]table.Row, 0, len(balances))
			for _, b := range balances {
				rows = append(rows, table.Row{b.Asset, b.Amount.String()})
			}
			return p.print(balances, table.Row{"Asset", "Amount"}, rows)
		},
	}
}
