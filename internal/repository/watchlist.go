package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"stockwatch/internal/broker"
	"stockwatch/internal/domain"
	"stockwatch/internal/live"
	"stockwatch/internal/mapper"
	"stockwatch/internal/store"
)

// WatchlistRepository owns the local watchlist. Every change is written to
// the store, then the full list is republished on the feed and, when a
// mirror is configured, copied to the broker.
type WatchlistRepository struct {
	// mu serialises each store mutation with the publish that follows it,
	// so the feed never ends on an older list than the store holds.
	mu sync.Mutex

	store  store.WatchlistStore
	feed   *live.Feed
	mirror broker.Mirror
	log    *slog.Logger
}

// NewWatchlistRepository creates a WatchlistRepository. mirror may be nil.
func NewWatchlistRepository(st store.WatchlistStore, feed *live.Feed, mirror broker.Mirror, log *slog.Logger) *WatchlistRepository {
	return &WatchlistRepository{store: st, feed: feed, mirror: mirror, log: log}
}

// Feed returns the feed the repository publishes to.
func (r *WatchlistRepository) Feed() *live.Feed { return r.feed }

// Refresh loads the list from the store and publishes it.
func (r *WatchlistRepository) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refreshLocked(ctx)
}

func (r *WatchlistRepository) refreshLocked(ctx context.Context) error {
	stocks, err := r.store.ListStocks(ctx)
	if err != nil {
		return fmt.Errorf("listing watchlist: %w", err)
	}
	r.feed.Publish(stocks)
	return nil
}

// Add inserts stock unless its symbol is already tracked. It reports
// whether a row was added.
func (r *WatchlistRepository) Add(ctx context.Context, stock domain.Stock) (bool, error) {
	stock.Symbol = strings.ToUpper(strings.TrimSpace(stock.Symbol))
	r.mu.Lock()
	defer r.mu.Unlock()
	added, err := r.store.InsertStock(ctx, stock)
	if err != nil {
		return false, fmt.Errorf("adding %s: %w", stock.Symbol, err)
	}
	if !added {
		return false, nil
	}

	r.log.Info("watchlist add", "symbol", stock.Symbol, "exchange", stock.Exchange)
	if r.mirror != nil {
		if err := r.mirror.Add(ctx, stock.Symbol); err != nil {
			r.log.Warn("mirroring add", "mirror", r.mirror.Name(), "symbol", stock.Symbol, "error", err)
		}
	}
	return true, r.refreshLocked(ctx)
}

// AddSummary adds the listing described by a search result or detail
// summary.
func (r *WatchlistRepository) AddSummary(ctx context.Context, s domain.Summary) (bool, error) {
	return r.Add(ctx, mapper.ToStock(s))
}

// Remove deletes symbol from the watchlist. It reports whether a row was
// removed.
func (r *WatchlistRepository) Remove(ctx context.Context, symbol string) (bool, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	r.mu.Lock()
	defer r.mu.Unlock()
	removed, err := r.store.DeleteStock(ctx, symbol)
	if err != nil {
		return false, fmt.Errorf("removing %s: %w", symbol, err)
	}
	if !removed {
		return false, nil
	}

	r.log.Info("watchlist remove", "symbol", symbol)
	if r.mirror != nil {
		if err := r.mirror.Remove(ctx, symbol); err != nil {
			r.log.Warn("mirroring remove", "mirror", r.mirror.Name(), "symbol", symbol, "error", err)
		}
	}
	return true, r.refreshLocked(ctx)
}

// List returns the watchlist in insertion order.
func (r *WatchlistRepository) List(ctx context.Context) ([]domain.Stock, error) {
	return r.store.ListStocks(ctx)
}

// Get returns the entry for symbol or store.ErrNotFound.
func (r *WatchlistRepository) Get(ctx context.Context, symbol string) (*domain.Stock, error) {
	return r.store.GetStock(ctx, symbol)
}

// Contains reports whether symbol is tracked.
func (r *WatchlistRepository) Contains(ctx context.Context, symbol string) (bool, error) {
	_, err := r.store.GetStock(ctx, symbol)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Watch returns a channel delivering the current list and then the full
// list after every change, until ctx is done.
func (r *WatchlistRepository) Watch(ctx context.Context) <-chan []domain.Stock {
	return r.feed.Watch(ctx)
}

// SyncMirror adds every tracked symbol missing from the mirror. Symbols
// only on the mirror are left alone. It returns the symbols it added.
func (r *WatchlistRepository) SyncMirror(ctx context.Context) ([]string, error) {
	if r.mirror == nil {
		return nil, nil
	}
	remote, err := r.mirror.Symbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing %s watchlist: %w", r.mirror.Name(), err)
	}
	have := make(map[string]bool, len(remote))
	for _, s := range remote {
		have[s] = true
	}

	stocks, err := r.store.ListStocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing watchlist: %w", err)
	}
	var added []string
	for _, s := range stocks {
		if have[s.Symbol] {
			continue
		}
		if err := r.mirror.Add(ctx, s.Symbol); err != nil {
			return added, err
		}
		added = append(added, s.Symbol)
	}
	if len(added) > 0 {
		r.log.Info("mirror synced", "mirror", r.mirror.Name(), "added", added)
	}
	return added, nil
}
