package stockwatch

import "time"

// Stock is a watchlist entry.
type Stock struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Symbol   string    `json:"symbol"`
	Exchange string    `json:"exchange"`
	AddedAt  time.Time `json:"addedAt"`
}

// Summary is a display-ready quote.
type Summary struct {
	Title      string `json:"title"`
	Symbol     string `json:"symbol"`
	Exchange   string `json:"exchange"`
	Price      string `json:"price"`
	Currency   string `json:"currency"`
	Value      string `json:"value"`
	Percentage string `json:"percentage"`
	Arrow      string `json:"arrow"`
	Trend      string `json:"trend"` // "positive", "negative" or "neutral"
	Color      string `json:"color"`
}

// SearchResult is one row of a search.
type SearchResult struct {
	Summary
	ExactMatch bool `json:"exactMatch"`
}

// SearchResults is the answer to Search.
type SearchResults struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Message string         `json:"message,omitempty"`
}

// Graph is the chart data of a stock.
type Graph struct {
	Prices           []float64 `json:"prices"`
	FirstLabel       string    `json:"firstLabel"`
	LastLabel        string    `json:"lastLabel"`
	HorizontalLabels []string  `json:"horizontalLabels"`
}

// Row is a label/value line.
type Row struct {
	Label       string `json:"label"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
	Link        string `json:"link,omitempty"`
}

// Section is a titled block of facts.
type Section struct {
	Title    string `json:"title"`
	Text     string `json:"text,omitempty"`
	Link     string `json:"link,omitempty"`
	LinkText string `json:"linkText,omitempty"`
	Rows     []Row  `json:"rows"`
}

// StockInformation is the detail view of a stock.
type StockInformation struct {
	Summary     Summary   `json:"summary"`
	Graph       Graph     `json:"graph"`
	Tags        []Row     `json:"tags"`
	Sections    []Section `json:"sections"`
	InWatchlist bool      `json:"inWatchlist"`
}

// HistoryNode is an archived price point.
type HistoryNode struct {
	Price float64   `json:"price"`
	Date  string    `json:"date"`
	Time  time.Time `json:"time"`
}

// History is an archived day of prices.
type History struct {
	Symbol string `json:"symbol"`
	Date   string `json:"date"`
	Graph  struct {
		Nodes      []HistoryNode `json:"nodes"`
		EdgeLabels struct {
			First string `json:"first"`
			Last  string `json:"last"`
		} `json:"edgeLabels"`
		HorizontalLabels []string `json:"horizontalLabels"`
	} `json:"graph"`
	Days []string `json:"days"`
}
