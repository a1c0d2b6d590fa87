// Package finance is the client for the remote finance-search API. It
// decodes the JSON payload into response structs without interpreting them;
// conversion to domain models lives in package mapper.
package finance

// StockResponse is the payload for an exact stock lookup ("AAPL:NASDAQ").
type StockResponse struct {
	Summary        *SummaryResponse        `json:"summary"`
	Graph          []GraphNodeResponse     `json:"graph"`
	KnowledgeGraph *KnowledgeGraphResponse `json:"knowledge_graph"`
}

// SearchResponse is the payload for a free-text query. Summary is set only
// for an exact symbol hit; Suggestions holds the close matches.
type SearchResponse struct {
	Summary     *SummaryResponse  `json:"summary"`
	Suggestions []SummaryResponse `json:"suggestions"`
}

// SummaryResponse describes one listing.
type SummaryResponse struct {
	Title         string                `json:"title"`
	Stock         string                `json:"stock"`
	Exchange      string                `json:"exchange"`
	Price         string                `json:"price"`
	Currency      string                `json:"currency"`
	PriceMovement PriceMovementResponse `json:"price_movement"`
}

// PriceMovementResponse is the change since previous close. Movement is a
// direction string such as "Up" or "Down".
type PriceMovementResponse struct {
	Percentage float64 `json:"percentage"`
	Value      float64 `json:"value"`
	Movement   string  `json:"movement"`
}

// GraphNodeResponse is one intraday point. Date uses the source layout
// "Oct 16 2026, 09:30 AM UTC-04:00".
type GraphNodeResponse struct {
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	Date     string  `json:"date"`
	Volume   int64   `json:"volume"`
}

// KnowledgeGraphResponse holds supplementary facts about the listing.
type KnowledgeGraphResponse struct {
	KeyStats *KeyStatsResponse `json:"key_stats"`
	About    []AboutResponse   `json:"about"`
}

type KeyStatsResponse struct {
	Tags          []TagResponse          `json:"tags"`
	Stats         []StatResponse         `json:"stats"`
	ClimateChange *ClimateChangeResponse `json:"climate_change"`
}

type TagResponse struct {
	Text        string `json:"text"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

type StatResponse struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	Value       string `json:"value"`
}

type ClimateChangeResponse struct {
	Score string `json:"score"`
	Link  string `json:"link"`
}

type AboutResponse struct {
	Title       string                   `json:"title"`
	Description AboutDescriptionResponse `json:"description"`
	Info        []InfoResponse           `json:"info"`
}

type AboutDescriptionResponse struct {
	Snippet  string `json:"snippet"`
	Link     string `json:"link"`
	LinkText string `json:"link_text"`
}

type InfoResponse struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Link  string `json:"link"`
}
