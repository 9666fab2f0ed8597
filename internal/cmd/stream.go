package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"krakenkit/pkg/core"
	"krakenkit/pkg/stream"
)

type streamOptions struct {
	channel  string
	interval uint32
	depth    uint32
	duration time.Duration
	limit    int
}

func newStreamCmd(g *globals) *cobra.Command {
	var opts streamOptions
	cmd := &cobra.Command{
		Use:   "stream PAIR...",
		Short: "Subscribe to a public channel and print what arrives",
		Example: `  krakenkit stream XBT/USD ETH/USD
  krakenkit stream XBT/USD --channel book --depth 10
  krakenkit stream XBT/USD --channel ohlc --interval 5 --duration 1m`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := stream.ParseSubscriptionName(opts.channel)
			if err != nil {
				return err
			}
			req := stream.NewSubscribe(name).WithPairs(args...)
			if opts.interval > 0 {
				req.WithInterval(opts.interval)
			}
			if opts.depth > 0 {
				req.WithDepth(opts.depth)
			}
			if err := req.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if opts.duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.duration)
				defer cancel()
			}

			client, err := g.newClient()
			if err != nil {
				return err
			}
			// The command context may already be done, so shutdown gets its own deadline.
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Close(closeCtx)
			}()

			session, err := client.NewSession("cli")
			if err != nil {
				return err
			}
			results, err := session.Connect(ctx)
			if err != nil {
				return err
			}
			if err := session.Subscribe(ctx, req); err != nil {
				return err
			}

			r := newStreamRenderer(cmd.OutOrStdout(), g.output == formatJSON, int(opts.depth))
			return r.run(ctx, results, opts.limit)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.channel, "channel", "c", string(stream.ChannelTicker), "channel: ticker, ohlc, trade, spread or book")
	flags.Uint32Var(&opts.interval, "interval", 0, "ohlc interval in minutes")
	flags.Uint32Var(&opts.depth, "depth", 0, "book depth")
	flags.DurationVar(&opts.duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	flags.IntVarP(&opts.limit, "count", "n", 0, "stop after this many data messages (0 for no limit)")
	return cmd
}

// streamRenderer prints classified messages, keeping a local book per pair
// for book channels so checksums can be verified.
type streamRenderer struct {
	w     io.Writer
	json  bool
	depth int
	books map[string]*stream.LocalBook
}

func newStreamRenderer(w io.Writer, asJSON bool, depth int) *streamRenderer {
	if depth <= 0 {
		depth = 10
	}
	return &streamRenderer{w: w, json: asJSON, depth: depth, books: make(map[string]*stream.LocalBook)}
}

func (r *streamRenderer) run(ctx context.Context, results <-chan stream.Result, limit int) error {
	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case res, ok := <-results:
			if !ok {
				return nil
			}
			if res.Err != nil {
				var parseErr *core.ParseError
				if errors.As(res.Err, &parseErr) {
					fmt.Fprintf(r.w, "unparseable frame: %v\n", res.Err)
					continue
				}
				return res.Err
			}
			if err := r.render(res.Message); err != nil {
				return err
			}
			if res.Message.Kind() == stream.KindData {
				seen++
				if limit > 0 && seen >= limit {
					return nil
				}
			}
		}
	}
}

func (r *streamRenderer) render(msg stream.Message) error {
	switch m := msg.(type) {
	case stream.Heartbeat:
		return nil
	case stream.SystemStatus:
		return r.line(m, "system %s (version %s, connection %d)", m.Status, m.Version, m.ConnectionID)
	case stream.SubscriptionStatus:
		if m.ErrorMessage != "" {
			return r.line(m, "subscription %s %s: %s", m.Subscription.Name, m.Status, m.ErrorMessage)
		}
		return r.line(m, "subscription %s %s %s", m.Subscription.Name, m.Pair, m.Status)
	case stream.ErrorNotice:
		return r.line(m, "error: %s", m.ErrorMessage)
	case stream.DataArray:
		return r.renderData(m)
	default:
		return r.line(msg, "%s message", msg.Kind())
	}
}

func (r *streamRenderer) renderData(d stream.DataArray) error {
	channel := d.ChannelName()
	switch {
	case channel == string(stream.ChannelTicker):
		t, err := stream.DecodeTicker(d)
		if err != nil {
			return err
		}
		return r.line(t, "%-10s ticker bid %s ask %s last %s vol %s",
			t.Pair, t.Bid.String(), t.Ask.String(), t.Last.String(), t.Volume.String())

	case channel == string(stream.ChannelTrade):
		trades, err := stream.DecodeTrades(d)
		if err != nil {
			return err
		}
		for _, t := range trades {
			if err := r.line(t, "%-10s trade  %-4s %s @ %s", d.Pair(), t.Side, t.Volume.String(), t.Price.String()); err != nil {
				return err
			}
		}
		return nil

	case channel == string(stream.ChannelSpread):
		s, err := stream.DecodeSpread(d)
		if err != nil {
			return err
		}
		return r.line(s, "%-10s spread %s / %s", s.Pair, s.Bid.Price.String(), s.Ask.Price.String())

	case strings.HasPrefix(channel, string(stream.ChannelOHLC)+"-"):
		c, err := stream.DecodeCandle(d)
		if err != nil {
			return err
		}
		return r.line(c, "%-10s %s o %s h %s l %s c %s", d.Pair(), channel,
			c.Open.String(), c.High.String(), c.Low.String(), c.Close.String())

	case strings.HasPrefix(channel, string(stream.ChannelBook)+"-"):
		return r.renderBook(d)

	default:
		return r.line(d, "%s %v", channel, d.Payload())
	}
}

func (r *streamRenderer) renderBook(d stream.DataArray) error {
	update, err := stream.DecodeBook(d)
	if err != nil {
		return err
	}
	book, ok := r.books[update.Pair]
	if !ok {
		book = stream.NewLocalBook(update.Pair, r.depth)
		r.books[update.Pair] = book
	}
	if err := book.Apply(update); err != nil {
		return err
	}

	status := "ok"
	if update.Checksum != "" && update.Checksum != book.Checksum() {
		status = "checksum mismatch"
	}
	snap := book.Snapshot()
	bid, ask := "-", "-"
	if len(snap.Bids) > 0 {
		bid = snap.Bids[0].Price.String()
	}
	if len(snap.Asks) > 0 {
		ask = snap.Asks[0].Price.String()
	}
	return r.line(snap, "%-10s book   bid %s ask %s levels %d/%d %s",
		update.Pair, bid, ask, len(snap.Bids), len(snap.Asks), status)
}

// line prints either the formatted text or value as one JSON line.
func (r *streamRenderer) line(value any, format string, args ...any) error {
	if r.json {
		data, err := sonic.Marshal(value)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(r.w, string(data))
		return err
	}
	_, err := fmt.Fprintf(r.w, format+"\n", args...)
	return err
}
