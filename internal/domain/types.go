// Package domain defines the core types shared across stockwatch: stock
// information for the detail screen, watchlist entries, and search results.
package domain

import "time"

// Movement values reported by the finance API. The field is an opaque
// string; only the UI mappers interpret it.
const (
	MovementUp   = "Up"
	MovementDown = "Down"
)

// StockInformation is everything shown on a stock's detail screen.
type StockInformation struct {
	Summary        Summary        `json:"summary"`
	Graph          Graph          `json:"graph"`
	KnowledgeGraph KnowledgeGraph `json:"knowledgeGraph"`
}

// Summary is the headline quote of a listing.
type Summary struct {
	Title         string        `json:"title"`
	Symbol        string        `json:"symbol"`
	Exchange      string        `json:"exchange"`
	Price         string        `json:"price"`
	Currency      string        `json:"currency"`
	PriceMovement PriceMovement `json:"priceMovement"`
}

// PriceMovement is the change since previous close. No check ties the sign
// of Value to Movement; inconsistent data is kept as received.
type PriceMovement struct {
	Percentage float64 `json:"percentage"`
	Value      float64 `json:"value"`
	Movement   string  `json:"movement"`
}

// Graph is the intraday price series with derived axis labels.
type Graph struct {
	Nodes            []GraphNode `json:"nodes"`
	EdgeLabels       EdgeLabels  `json:"edgeLabels"`
	HorizontalLabels []string    `json:"horizontalLabels"`
}

// GraphNode is a single price point. Date is the rendered HH:mm label and
// Time the parsed instant.
type GraphNode struct {
	Price float64   `json:"price"`
	Date  string    `json:"date"`
	Time  time.Time `json:"time"`
}

// EdgeLabels are the x-axis labels at the extremes of the graph.
type EdgeLabels struct {
	First string `json:"first"`
	Last  string `json:"last"`
}

// Prices returns the node prices in order.
func (g Graph) Prices() []float64 {
	out := make([]float64, len(g.Nodes))
	for i, n := range g.Nodes {
		out[i] = n.Price
	}
	return out
}

// KnowledgeGraph holds supplementary facts bundled with a summary.
type KnowledgeGraph struct {
	KeyStats KeyStats `json:"keyStats"`
	About    []About  `json:"about"`
}

// KeyStats holds the headline figures of a listing.
type KeyStats struct {
	Tags          []Tag          `json:"tags"`
	Stats         []Stat         `json:"stats"`
	ClimateChange *ClimateChange `json:"climateChange,omitempty"`
}

// Tag is a short label attached to a listing, such as its index membership.
type Tag struct {
	Text        string `json:"text"`
	Description string `json:"description"`
	Link        string `json:"link,omitempty"`
}

// Stat is one labelled statistic, such as market cap or P/E ratio.
type Stat struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	Value       string `json:"value"`
}

// ClimateChange is the listing's published climate disclosure score.
type ClimateChange struct {
	Score string `json:"score"`
	Link  string `json:"link"`
}

// About is a descriptive section about the company behind a listing.
type About struct {
	Title       string           `json:"title"`
	Description AboutDescription `json:"description"`
	Info        []Info           `json:"info"`
}

// AboutDescription is the snippet of an About section and its source link.
type AboutDescription struct {
	Snippet  string `json:"snippet"`
	Link     string `json:"link"`
	LinkText string `json:"linkText"`
}

// Info is one labelled fact in an About section, such as CEO or headquarters.
type Info struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Link  string `json:"link,omitempty"`
}

// Stock is a watchlist entry, unique by Symbol.
type Stock struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Symbol   string    `json:"symbol"`
	Exchange string    `json:"exchange"`
	AddedAt  time.Time `json:"addedAt"`
}

// StockSearchResults is the outcome of a search. Both fields may be empty,
// which means "no results" rather than an error.
type StockSearchResults struct {
	ExactMatch   *Summary  `json:"exactMatch,omitempty"`
	CloseMatches []Summary `json:"closeMatches"`
}

// Empty reports whether the search found nothing.
func (r StockSearchResults) Empty() bool {
	return r.ExactMatch == nil && len(r.CloseMatches) == 0
}
