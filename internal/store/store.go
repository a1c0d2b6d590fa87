// Package store defines storage interfaces for the watchlist and the price
// graph archive, with SQLite and Parquet implementations.
package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"stockwatch/internal/domain"
)

// ErrNotFound is returned when a symbol is not on the watchlist.
var ErrNotFound = errors.New("store: not found")

// ErrInvalidSymbol is returned for symbols outside the ticker charset.
var ErrInvalidSymbol = errors.New("store: invalid symbol")

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-]+$`)

// ValidSymbol reports whether symbol, upper-cased, is made only of ticker
// characters: letters, digits, dots and dashes. Such a symbol is safe to
// use as a path element.
func ValidSymbol(symbol string) bool {
	s := strings.ToUpper(symbol)
	return symbolPattern.MatchString(s) && s != "." && s != ".."
}

// WatchlistStore persists the user's tracked stocks, unique by symbol.
type WatchlistStore interface {
	// InsertStock adds a stock unless its symbol is already present, in
	// which case the existing row is left untouched. It reports whether a
	// row was added.
	InsertStock(ctx context.Context, stock domain.Stock) (bool, error)

	// UpsertStock adds a stock or replaces the row with the same symbol.
	UpsertStock(ctx context.Context, stock domain.Stock) error

	// ListStocks returns all stocks in insertion order.
	ListStocks(ctx context.Context) ([]domain.Stock, error)

	// GetStock returns the stock with the given symbol, or ErrNotFound.
	GetStock(ctx context.Context, symbol string) (*domain.Stock, error)

	// DeleteStock removes the stock with the given symbol. It reports
	// whether a row was removed.
	DeleteStock(ctx context.Context, symbol string) (bool, error)
}

// PreferenceKeyEnvironment holds the selected backend environment.
const PreferenceKeyEnvironment = "environment"

// PreferenceStore persists small string settings.
type PreferenceStore interface {
	// GetPreference returns the value stored under key, or ErrNotFound.
	GetPreference(ctx context.Context, key string) (string, error)

	// SetPreference stores value under key.
	SetPreference(ctx context.Context, key, value string) error
}

// GraphStore archives fetched price series.
type GraphStore interface {
	// WriteGraph merges nodes into the archive for symbol, grouped by the
	// calendar day of each node.
	WriteGraph(ctx context.Context, symbol string, nodes []domain.GraphNode) error

	// ReadGraph returns the archived nodes for symbol on day, ordered by time.
	ReadGraph(ctx context.Context, symbol string, day time.Time) ([]domain.GraphNode, error)

	// ListDays returns the archived days for symbol as YYYY-MM-DD strings.
	ListDays(ctx context.Context, symbol string) ([]string, error)
}
