// Package httpapi provides the REST API of stockwatch-server, serving the
// same screens as the terminal client in JSON form.
package httpapi

import (
	"stockwatch/internal/domain"
	"stockwatch/internal/uimodel"
)

// StockResponse is the detail screen of one stock.
type StockResponse struct {
	uimodel.StockInformationUI
	InWatchlist bool `json:"inWatchlist"`
}

// SearchResponse lists search results, exact match first.
type SearchResponse struct {
	Query   string                   `json:"query"`
	Results []uimodel.SearchResultUI `json:"results"`
	Message string                   `json:"message,omitempty"` // set when there are no results
}

// WatchlistResponse lists the watchlist in insertion order.
type WatchlistResponse struct {
	Stocks []domain.Stock `json:"stocks"`
}

// AddStockRequest is the body of PUT /api/watchlist/{symbol}.
type AddStockRequest struct {
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
}

// HistoryResponse is an archived graph for one day.
type HistoryResponse struct {
	Symbol string       `json:"symbol"`
	Date   string       `json:"date"`
	Graph  domain.Graph `json:"graph"`
	Days   []string     `json:"days"` // every archived day for the symbol
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}
