package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/subcommands"

	"stockwatch/internal/config"
	"stockwatch/internal/domain"
	"stockwatch/internal/graph"
	"stockwatch/internal/live"
	"stockwatch/internal/store"
	"stockwatch/pkg/stockwatch"
)

// Terminal chart geometry.
const (
	chartCols     = 60
	chartRows     = 8
	frameInterval = 33 * time.Millisecond
)

// --- version ---

type versionCmd struct{}

func (*versionCmd) Name() string             { return "version" }
func (*versionCmd) Synopsis() string         { return "print the version" }
func (*versionCmd) Usage() string            { return "version\n" }
func (*versionCmd) SetFlags(_ *flag.FlagSet) {}

func (*versionCmd) Execute(_ context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	fmt.Fprintf(appFrom(args).out, "stockwatch %s\n", version)
	return subcommands.ExitSuccess
}

// --- search ---

type searchCmd struct{}

func (*searchCmd) Name() string             { return "search" }
func (*searchCmd) Synopsis() string         { return "search stocks by name or symbol" }
func (*searchCmd) Usage() string            { return "search <query>\n" }
func (*searchCmd) SetFlags(_ *flag.FlagSet) {}

func (*searchCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)
	query := strings.Join(f.Args(), " ")
	if strings.TrimSpace(query) == "" {
		fmt.Fprintln(os.Stderr, "Error: a query is required.")
		return subcommands.ExitUsageError
	}
	res, err := a.client.Search(ctx, query)
	if err != nil {
		return fail(err)
	}
	writeSearchResults(a.out, res)
	return subcommands.ExitSuccess
}

// --- show ---

type showCmd struct {
	exchange string
	svg      string
	width    int
	height   int
	chart    bool
}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "show the detail of a stock" }
func (*showCmd) Usage() string {
	return `show [-exchange X] [-chart] [-svg file] <symbol>

Prints the quote, key stats and company facts. With -chart the price chart
is drawn in the terminal; with -svg it is written to the given file.
`
}
func (c *showCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.exchange, "exchange", "", "exchange of the listing, e.g. NASDAQ")
	f.StringVar(&c.svg, "svg", "", "write the price chart as SVG to this file")
	f.IntVar(&c.width, "width", 600, "SVG width")
	f.IntVar(&c.height, "height", 300, "SVG height")
	f.BoolVar(&c.chart, "chart", false, "draw the price chart in the terminal")
}

func (c *showCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one symbol is required.")
		return subcommands.ExitUsageError
	}
	info, err := a.client.GetStock(ctx, f.Arg(0), c.exchange)
	if err != nil {
		return fail(err)
	}
	if c.chart && len(info.Graph.Prices) > 0 {
		reveal := time.Duration(a.cfg.Display.RevealMillis) * time.Millisecond
		drawChart(ctx, a.out, info.Summary, info.Graph, reveal)
		fmt.Fprintln(a.out)
	}
	writeStockInformation(a.out, info)

	if c.svg != "" {
		data, err := a.client.GraphSVG(ctx, f.Arg(0), c.exchange, c.width, c.height)
		if err != nil {
			return fail(err)
		}
		if err := os.WriteFile(c.svg, data, 0o644); err != nil {
			return fail(err)
		}
		fmt.Fprintf(a.out, "\nchart written to %s\n", c.svg)
	}
	return subcommands.ExitSuccess
}

// --- history ---

type historyCmd struct {
	date string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "print an archived day of prices" }
func (*historyCmd) Usage() string {
	return "history [-date YYYY-MM-DD] <symbol>\n"
}
func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "date", "", "day to print, defaults to the latest archived day")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one symbol is required.")
		return subcommands.ExitUsageError
	}
	h, err := a.client.History(ctx, f.Arg(0), c.date)
	if err != nil {
		return fail(err)
	}
	writeHistory(a.out, h)
	return subcommands.ExitSuccess
}

// --- list ---

type listCmd struct{}

func (*listCmd) Name() string             { return "list" }
func (*listCmd) Synopsis() string         { return "print the watchlist" }
func (*listCmd) Usage() string            { return "list\n" }
func (*listCmd) SetFlags(_ *flag.FlagSet) {}

func (*listCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)
	stocks, err := a.client.Watchlist(ctx)
	if err != nil {
		return fail(err)
	}
	writeWatchlist(a.out, stocks)
	return subcommands.ExitSuccess
}

// --- add ---

type addCmd struct {
	exchange string
	name     string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "add a stock to the watchlist" }
func (*addCmd) Usage() string {
	return `add -exchange X [-name N] <symbol>

When -name is omitted the server looks the listing up.
`
}
func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.exchange, "exchange", "", "exchange of the listing, e.g. NASDAQ")
	f.StringVar(&c.name, "name", "", "company name")
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)
	if f.NArg() != 1 || c.exchange == "" {
		fmt.Fprintln(os.Stderr, "Error: a symbol and -exchange are required.")
		return subcommands.ExitUsageError
	}
	symbol := strings.ToUpper(f.Arg(0))
	added, err := a.client.Add(ctx, symbol, c.name, c.exchange)
	if err != nil {
		return fail(err)
	}
	if added {
		fmt.Fprintf(a.out, "added %s\n", symbol)
	} else {
		fmt.Fprintf(a.out, "%s is already on the watchlist\n", symbol)
	}
	return subcommands.ExitSuccess
}

// --- remove ---

type removeCmd struct{}

func (*removeCmd) Name() string             { return "remove" }
func (*removeCmd) Synopsis() string         { return "remove a stock from the watchlist" }
func (*removeCmd) Usage() string            { return "remove <symbol>\n" }
func (*removeCmd) SetFlags(_ *flag.FlagSet) {}

func (*removeCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one symbol is required.")
		return subcommands.ExitUsageError
	}
	symbol := strings.ToUpper(f.Arg(0))
	if err := a.client.Remove(ctx, symbol); err != nil {
		return fail(err)
	}
	fmt.Fprintf(a.out, "removed %s\n", symbol)
	return subcommands.ExitSuccess
}

// --- watch ---

type watchCmd struct {
	sse bool
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "print the watchlist on every change" }
func (*watchCmd) Usage() string {
	return `watch [-sse]

Streams the watchlist over gRPC until interrupted. With -sse the REST event
stream is used instead.
`
}
func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.sse, "sse", false, "use the server-sent events endpoint")
}

func (c *watchCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	if c.sse {
		err := a.client.WatchWatchlist(ctx, func(stocks []stockwatch.Stock) {
			writeWatchlist(a.out, stocks)
			fmt.Fprintln(a.out)
		})
		if err != nil && ctx.Err() == nil {
			return fail(err)
		}
		return subcommands.ExitSuccess
	}

	feed := live.NewFeed()
	updates := feed.Watch(ctx)
	<-updates // local empty list

	errc := make(chan error, 1)
	go func() { errc <- live.NewClient(a.grpc, feed, a.log).Sync(ctx) }()

	for {
		select {
		case stocks, ok := <-updates:
			if !ok {
				return subcommands.ExitSuccess
			}
			writeWatchlist(a.out, fromDomain(stocks))
			fmt.Fprintln(a.out)
		case err := <-errc:
			if err != nil {
				return fail(err)
			}
			return subcommands.ExitSuccess
		}
	}
}

// --- env ---

type envCmd struct{}

func (*envCmd) Name() string     { return "env" }
func (*envCmd) Synopsis() string { return "show or persist the finance API environment" }
func (*envCmd) Usage() string {
	return `env [Prod|Test]

Without an argument prints the environment the server will use. With an
argument stores it in the local database; restart the server to apply.
`
}
func (*envCmd) SetFlags(_ *flag.FlagSet) {}

func (*envCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)
	if f.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "Error: at most one environment is accepted.")
		return subcommands.ExitUsageError
	}

	db, err := store.NewSQLiteStore(a.cfg.Storage.SQLitePath)
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	if f.NArg() == 0 {
		env, err := currentEnvironment(ctx, a.cfg, db)
		if err != nil {
			return fail(err)
		}
		fmt.Fprintln(a.out, env)
		return subcommands.ExitSuccess
	}

	env := f.Arg(0)
	if err := a.cfg.SelectEnvironment(env); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if err := db.SetPreference(ctx, store.PreferenceKeyEnvironment, env); err != nil {
		return fail(err)
	}
	fmt.Fprintf(a.out, "environment set to %s (%s)\n", env, a.cfg.BaseURL())
	return subcommands.ExitSuccess
}

// currentEnvironment returns the persisted environment, falling back to
// the configured one.
func currentEnvironment(ctx context.Context, cfg *config.Config, prefs store.PreferenceStore) (string, error) {
	env, err := prefs.GetPreference(ctx, store.PreferenceKeyEnvironment)
	if errors.Is(err, store.ErrNotFound) {
		return cfg.API.Environment, nil
	}
	return env, err
}

// --- output ---

func fail(err error) subcommands.ExitStatus {
	var apiErr *stockwatch.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", apiErr.Message)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return subcommands.ExitFailure
}

func colored(s stockwatch.Summary, text string) string {
	if s.Color == "" {
		return text
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(s.Color)).Render(text)
}

func movement(s stockwatch.Summary) string {
	out := strings.TrimSpace(s.Arrow + " " + s.Percentage)
	if s.Value != "" {
		out += " (" + s.Value + ")"
	}
	return out
}

func writeSearchResults(w io.Writer, res *stockwatch.SearchResults) {
	if len(res.Results) == 0 {
		msg := res.Message
		if msg == "" {
			msg = "No results"
		}
		fmt.Fprintln(w, msg)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tEXCHANGE\tPRICE\tCHANGE\tNAME")
	for _, r := range res.Results {
		mark := ""
		if r.ExactMatch {
			mark = " *"
		}
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\t%s\n", r.Symbol, mark, r.Exchange, r.Price, colored(r.Summary, movement(r.Summary)), r.Title)
	}
	tw.Flush()
}

func writeWatchlist(w io.Writer, stocks []stockwatch.Stock) {
	if len(stocks) == 0 {
		fmt.Fprintln(w, "The watchlist is empty.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tEXCHANGE\tNAME\tADDED")
	for _, s := range stocks {
		added := ""
		if !s.AddedAt.IsZero() {
			added = s.AddedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Symbol, s.Exchange, s.Name, added)
	}
	tw.Flush()
}

func writeStockInformation(w io.Writer, info *stockwatch.StockInformation) {
	s := info.Summary
	fmt.Fprintf(w, "%s (%s:%s)\n", s.Title, s.Symbol, s.Exchange)
	fmt.Fprintf(w, "%s %s  %s\n", s.Price, s.Currency, colored(s, movement(s)))
	if info.InWatchlist {
		fmt.Fprintln(w, "on watchlist")
	}

	g := info.Graph
	if n := len(g.Prices); n > 0 {
		lo, hi := g.Prices[0], g.Prices[0]
		for _, p := range g.Prices {
			lo, hi = min(lo, p), max(hi, p)
		}
		fmt.Fprintf(w, "%d points %s-%s, low %.2f high %.2f\n", n, g.FirstLabel, g.LastLabel, lo, hi)
	}

	for _, sec := range info.Sections {
		fmt.Fprintf(w, "\n%s\n", sec.Title)
		if sec.Text != "" {
			fmt.Fprintln(w, sec.Text)
		}
		if sec.Link != "" {
			fmt.Fprintln(w, sec.Link)
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, r := range sec.Rows {
			fmt.Fprintf(tw, "  %s\t%s\n", r.Label, r.Value)
		}
		tw.Flush()
	}
}

// drawChart animates the braille chart in place, redrawing it on every
// reveal frame.
func drawChart(ctx context.Context, w io.Writer, s stockwatch.Summary, g stockwatch.Graph, reveal time.Duration) {
	canvas := graph.NewCanvas(chartCols, chartRows)
	path, err := graph.Layout(g.Prices, canvas.Size())
	if err != nil {
		return
	}

	first := true
	for progress := range graph.Animate(ctx, reveal, frameInterval) {
		if !first {
			fmt.Fprintf(w, "\x1b[%dA", chartRows+1)
		}
		first = false

		frame := graph.NewCanvas(chartCols, chartRows)
		frame.DrawPath(path, progress)
		for _, line := range frame.Lines() {
			fmt.Fprintln(w, colored(s, line))
		}
		gap := max(chartCols-len([]rune(g.FirstLabel))-len([]rune(g.LastLabel)), 1)
		fmt.Fprintln(w, g.FirstLabel+strings.Repeat(" ", gap)+g.LastLabel)
	}
}

func writeHistory(w io.Writer, h *stockwatch.History) {
	if len(h.Graph.Nodes) == 0 {
		fmt.Fprintf(w, "no archived prices for %s\n", h.Symbol)
		if len(h.Days) > 0 {
			fmt.Fprintf(w, "archived days: %s\n", strings.Join(h.Days, ", "))
		}
		return
	}
	fmt.Fprintf(w, "%s %s\n", h.Symbol, h.Date)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, n := range h.Graph.Nodes {
		fmt.Fprintf(tw, "%s\t%.2f\n", n.Date, n.Price)
	}
	tw.Flush()
}

func fromDomain(stocks []domain.Stock) []stockwatch.Stock {
	out := make([]stockwatch.Stock, len(stocks))
	for i, s := range stocks {
		out[i] = stockwatch.Stock{ID: s.ID, Name: s.Name, Symbol: s.Symbol, Exchange: s.Exchange, AddedAt: s.AddedAt}
	}
	return out
}
