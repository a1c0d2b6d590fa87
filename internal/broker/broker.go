// Package broker mirrors the local watchlist to a brokerage watchlist.
package broker

import "context"

// Mirror keeps a remote watchlist in step with the local one. Mirror
// failures never block local changes; callers log and continue.
type Mirror interface {
	// Name returns the mirror identifier (e.g. "alpaca", "memory").
	Name() string

	// Add puts symbol on the remote watchlist.
	Add(ctx context.Context, symbol string) error

	// Remove takes symbol off the remote watchlist.
	Remove(ctx context.Context, symbol string) error

	// Symbols returns the symbols on the remote watchlist, sorted.
	Symbols(ctx context.Context) ([]string, error)
}
