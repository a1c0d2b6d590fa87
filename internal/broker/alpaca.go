package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

// DefaultWatchlistName is the Alpaca watchlist used when none is configured.
const DefaultWatchlistName = "stockwatch"

// Compile-time interface check.
var _ Mirror = (*AlpacaMirror)(nil)

// watchlistAPI is the subset of the Alpaca client used by AlpacaMirror.
type watchlistAPI interface {
	GetWatchlists() ([]alpacaapi.Watchlist, error)
	GetWatchlist(watchlistID string) (*alpacaapi.Watchlist, error)
	CreateWatchlist(req alpacaapi.CreateWatchlistRequest) (*alpacaapi.Watchlist, error)
	AddSymbolToWatchlist(watchlistID string, req alpacaapi.AddSymbolToWatchlistRequest) (*alpacaapi.Watchlist, error)
	RemoveSymbolFromWatchlist(watchlistID string, req alpacaapi.RemoveSymbolFromWatchlistRequest) error
}

// AlpacaMirror mirrors the watchlist to a named Alpaca watchlist, creating
// it on first use.
type AlpacaMirror struct {
	api  watchlistAPI
	name string
	log  *slog.Logger

	mu          sync.Mutex
	watchlistID string
}

// NewAlpacaMirror creates a mirror using the given credentials. An empty
// baseURL selects the SDK default (paper trading).
func NewAlpacaMirror(apiKey, apiSecret, baseURL, name string, log *slog.Logger) *AlpacaMirror {
	client := alpacaapi.NewClient(alpacaapi.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})
	return newAlpacaMirror(client, name, log)
}

func newAlpacaMirror(api watchlistAPI, name string, log *slog.Logger) *AlpacaMirror {
	if name == "" {
		name = DefaultWatchlistName
	}
	return &AlpacaMirror{api: api, name: name, log: log}
}

// Name returns "alpaca".
func (m *AlpacaMirror) Name() string {
	return "alpaca"
}

// Add puts symbol on the Alpaca watchlist.
func (m *AlpacaMirror) Add(_ context.Context, symbol string) error {
	id, err := m.resolve()
	if err != nil {
		return err
	}
	symbol = strings.ToUpper(symbol)
	if _, err := m.api.AddSymbolToWatchlist(id, alpacaapi.AddSymbolToWatchlistRequest{Symbol: symbol}); err != nil {
		return fmt.Errorf("adding %s to alpaca watchlist: %w", symbol, err)
	}
	return nil
}

// Remove takes symbol off the Alpaca watchlist.
func (m *AlpacaMirror) Remove(_ context.Context, symbol string) error {
	id, err := m.resolve()
	if err != nil {
		return err
	}
	symbol = strings.ToUpper(symbol)
	if err := m.api.RemoveSymbolFromWatchlist(id, alpacaapi.RemoveSymbolFromWatchlistRequest{Symbol: symbol}); err != nil {
		return fmt.Errorf("removing %s from alpaca watchlist: %w", symbol, err)
	}
	return nil
}

// Symbols returns the symbols on the Alpaca watchlist, sorted.
func (m *AlpacaMirror) Symbols(_ context.Context) ([]string, error) {
	id, err := m.resolve()
	if err != nil {
		return nil, err
	}
	// GetWatchlists doesn't include assets; fetch the full watchlist.
	wl, err := m.api.GetWatchlist(id)
	if err != nil {
		return nil, fmt.Errorf("getting alpaca watchlist: %w", err)
	}
	symbols := make([]string, 0, len(wl.Assets))
	for _, a := range wl.Assets {
		symbols = append(symbols, a.Symbol)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// resolve finds the watchlist ID by name, creating the watchlist if needed.
func (m *AlpacaMirror) resolve() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watchlistID != "" {
		return m.watchlistID, nil
	}

	lists, err := m.api.GetWatchlists()
	if err != nil {
		return "", fmt.Errorf("listing alpaca watchlists: %w", err)
	}
	for _, w := range lists {
		if w.Name == m.name {
			m.watchlistID = w.ID
			m.log.Info("watchlist found", "name", m.name, "id", w.ID)
			return w.ID, nil
		}
	}

	w, err := m.api.CreateWatchlist(alpacaapi.CreateWatchlistRequest{Name: m.name})
	if err != nil {
		return "", fmt.Errorf("creating alpaca watchlist: %w", err)
	}
	m.watchlistID = w.ID
	m.log.Info("watchlist created", "name", m.name, "id", w.ID)
	return w.ID, nil
}
