package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"krakenkit/internal/ratelimit"
	"krakenkit/pkg/core"
	"krakenkit/pkg/rest"
)

func newTimeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "time",
		Short: "Show the exchange server time",
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

			st, err := client.ServerTime(cmd.Context())
			if err != nil {
				return err
			}
			skew := time.Since(st.Time()).Round(time.Millisecond)
			return p.print(st,
				table.Row{"Server time", "Unix", "Local skew"},
				[]table.Row{{st.Time().UTC().Format(time.RFC3339), st.UnixTime, skew}})
		},
	}
}

func newTickerCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "ticker PAIR...",
		Short: "Show tickers for one or more pairs",
		Args:  cobra.MinimumNArgs(1),
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

			tickers, err := client.Ticker(cmd.Context(), args...)
			if err != nil {
				return err
			}
			rows := make([]table.Row, 0, len(tickers))
			for _, t := range tickers {
				rows = append(rows, table.Row{
					t.Pair, t.Bid.String(), t.Ask.String(), t.Last.String(),
					t.High.String(), t.Low.String(), t.Volume.String(), t.Trades,
				})
			}
			return p.print(tickers,
				table.Row{"Pair", "Bid", "Ask", "Last", "High 24h", "Low 24h", "Volume 24h", "Trades"},
				rows)
		},
	}
}

func newBookCmd(g *globals) *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "book PAIR",
		Short: "Show the order book for a pair",
		Args:  cobra.ExactArgs(1),
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

			book, err := client.OrderBook(cmd.Context(), args[0], depth)
			if err != nil {
				return err
			}
			return p.print(book, table.Row{"Side", "Price", "Volume", "Time"}, bookRows(book))
		},
	}
	cmd.Flags().IntVarP(&depth, "depth", "d", 10, "levels per side (0 for all)")
	return cmd
}

// bookRows lists asks from the highest shown down to the best, then bids from the best down.
func bookRows(book *core.OrderBook) []table.Row {
	rows := make([]table.Row, 0, len(book.Asks)+len(book.Bids))
	for i := len(book.Asks) - 1; i >= 0; i-- {
		l := book.Asks[i]
		rows = append(rows, table.Row{"ask", l.Price.String(), l.Volume.String(), l.Timestamp.UTC().Format(time.TimeOnly)})
	}
	for _, l := range book.Bids {
		rows = append(rows, table.Row{"bid", l.Price.String(), l.Volume.String(), l.Timestamp.UTC().Format(time.TimeOnly)})
	}
	return rows
}

func newTradesCmd(g *globals) *cobra.Command {
	var (
		since string
		count int
	)
	cmd := &cobra.Command{
		Use:   "trades PAIR",
		Short: "Show recent public trades for a pair",
		Args:  cobra.ExactArgs(1),
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

			trades, err := client.Trades(cmd.Context(), args[0], rest.WithSince(since), rest.WithCount(count))
			if err != nil {
				return err
			}
			rows := make([]table.Row, 0, len(trades.Trades))
			for _, t := range trades.Trades {
				rows = append(rows, table.Row{
					t.Time.UTC().Format(time.StampMilli), t.Side.String(), t.OrderType.String(),
					t.Price.String(), t.Volume.String(),
				})
			}
			if err := p.print(trades, table.Row{"Time", "Side", "Type", "Price", "Volume"}, rows); err != nil {
				return err
			}
			if p.format == formatTable {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "next cursor: %s\n", trades.Last)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "cursor returned by a previous call")
	cmd.Flags().IntVarP(&count, "count", "n", 20, "maximum number of trades")
	return cmd
}

func newLimitsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "limits",
		Short: "Show the configured REST rate-limit tiers",
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

			type tierRow struct {
				Tier         string        `json:"tier"`
				Capacity     int           `json:"capacity"`
				RefillPeriod time.Duration `json:"refill_period"`
				Tokens       int           `json:"tokens"`
			}
			limiter := client.Limiter()
			var payload []tierRow
			var rows []table.Row
			for _, tier := range ratelimit.Tiers {
				cfg, ok := limiter.Config(tier)
				if !ok {
					continue
				}
				r := tierRow{tier.String(), cfg.Capacity, cfg.RefillPeriod, limiter.Tokens(tier)}
				payload = append(payload, r)
				rows = append(rows, table.Row{r.Tier, r.Capacity, r.RefillPeriod, r.Tokens})
			}
			return p.print(payload, table.Row{"Tier", "Capacity", "Refill period", "Tokens"}, rows)
		},
	}
}
