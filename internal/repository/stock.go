// Package repository combines the remote finance API, the mappers and the
// local stores into the operations the front ends call.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stockwatch/internal/domain"
	"stockwatch/internal/finance"
	"stockwatch/internal/mapper"
	"stockwatch/internal/store"
)

// FinanceAPI is the remote finance-search endpoint.
type FinanceAPI interface {
	GetStock(ctx context.Context, query string) (*finance.StockResponse, error)
	Search(ctx context.Context, query string) (*finance.SearchResponse, error)
}

// Compile-time interface check.
var _ FinanceAPI = (*finance.Client)(nil)

// StockRepository fetches stock information and search results. Every
// fetched price series is archived when an archive is configured.
type StockRepository struct {
	api     FinanceAPI
	mapper  *mapper.Mapper
	archive store.GraphStore
	log     *slog.Logger
}

// NewStockRepository creates a StockRepository. archive may be nil.
func NewStockRepository(api FinanceAPI, m *mapper.Mapper, archive store.GraphStore, log *slog.Logger) *StockRepository {
	return &StockRepository{api: api, mapper: m, archive: archive, log: log}
}

// GetStockInformation fetches and maps the full record for symbol on
// exchange. An empty exchange queries the symbol alone.
func (r *StockRepository) GetStockInformation(ctx context.Context, symbol, exchange string) (*domain.StockInformation, error) {
	query := finance.Query(symbol, exchange)
	resp, err := r.api.GetStock(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", query, err)
	}
	info, err := r.mapper.ToStockInformation(resp)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", query, err)
	}

	if r.archive != nil && len(info.Graph.Nodes) > 0 {
		sym := info.Summary.Symbol
		if sym == "" {
			sym = symbol
		}
		if err := r.archive.WriteGraph(ctx, sym, info.Graph.Nodes); err != nil {
			r.log.Warn("archiving graph", "symbol", sym, "error", err)
		}
	}
	return info, nil
}

// Search looks up stocks by free-text query. No results is not an error.
func (r *StockRepository) Search(ctx context.Context, query string) (domain.StockSearchResults, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.StockSearchResults{CloseMatches: []domain.Summary{}}, nil
	}
	resp, err := r.api.Search(ctx, query)
	if err != nil {
		return domain.StockSearchResults{}, fmt.Errorf("searching %q: %w", query, err)
	}
	return mapper.ToSearchResults(resp), nil
}

// History returns the archived graph of symbol for the given day, with
// labels rendered in the mapper's zone.
func (r *StockRepository) History(ctx context.Context, symbol string, day time.Time) (domain.Graph, error) {
	if r.archive == nil {
		return domain.Graph{Nodes: []domain.GraphNode{}, HorizontalLabels: []string{}}, nil
	}
	nodes, err := r.archive.ReadGraph(ctx, symbol, day)
	if err != nil {
		return domain.Graph{}, fmt.Errorf("reading history for %s: %w", symbol, err)
	}
	g := r.mapper.FromArchive(nodes)
	if g.Nodes == nil {
		g.Nodes = []domain.GraphNode{}
	}
	if g.HorizontalLabels == nil {
		g.HorizontalLabels = []string{}
	}
	return g, nil
}

// HistoryDays lists the archived days of symbol, oldest first.
func (r *StockRepository) HistoryDays(ctx context.Context, symbol string) ([]string, error) {
	if r.archive == nil {
		return []string{}, nil
	}
	return r.archive.ListDays(ctx, symbol)
}
