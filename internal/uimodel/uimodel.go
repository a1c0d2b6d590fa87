// Package uimodel turns domain models into display-ready strings and
// colors. All text and colors come from a Resources lookup so front ends
// can localize or re-theme without touching the mapping rules.
package uimodel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"stockwatch/internal/domain"
	"stockwatch/internal/finance"
	"stockwatch/internal/mapper"
	"stockwatch/internal/store"
)

// Trend classifies a price movement for display.
type Trend string

const (
	TrendPositive Trend = "positive"
	TrendNegative Trend = "negative"
	TrendNeutral  Trend = "neutral"
)

// SummaryUI is a summary ready for display.
type SummaryUI struct {
	Title      string         `json:"title"`
	Symbol     string         `json:"symbol"`
	Exchange   string         `json:"exchange"`
	Price      string         `json:"price"`
	Currency   string         `json:"currency"`
	Value      string         `json:"value"`      // absolute change, 2 decimals
	Percentage string         `json:"percentage"` // signed, 2 decimals, with %
	Arrow      string         `json:"arrow"`
	Trend      Trend          `json:"trend"`
	Color      lipgloss.Color `json:"color"`
}

// SearchResultUI is one row of the search results list.
type SearchResultUI struct {
	SummaryUI
	ExactMatch bool `json:"exactMatch"`
}

// ToSummaryUI formats a summary. Only the exact direction "Up" counts as a
// rise; every other value is shown as a fall.
func ToSummaryUI(s domain.Summary, r Resources) SummaryUI {
	trend := TrendNegative
	if s.PriceMovement.Movement == domain.MovementUp {
		trend = TrendPositive
	}
	return summaryUI(s, trend, r)
}

// ToSearchResultsUI lists the exact match first, then the close matches.
// Directions are compared case-insensitively and unknown directions are
// shown neutral with no arrow.
func ToSearchResultsUI(res domain.StockSearchResults, r Resources) []SearchResultUI {
	out := make([]SearchResultUI, 0, len(res.CloseMatches)+1)
	if res.ExactMatch != nil {
		out = append(out, SearchResultUI{
			SummaryUI:  summaryUI(*res.ExactMatch, searchTrend(res.ExactMatch.PriceMovement.Movement), r),
			ExactMatch: true,
		})
	}
	for _, s := range res.CloseMatches {
		out = append(out, SearchResultUI{
			SummaryUI: summaryUI(s, searchTrend(s.PriceMovement.Movement), r),
		})
	}
	return out
}

func searchTrend(movement string) Trend {
	switch strings.ToLower(movement) {
	case "up":
		return TrendPositive
	case "down":
		return TrendNegative
	default:
		return TrendNeutral
	}
}

func summaryUI(s domain.Summary, trend Trend, r Resources) SummaryUI {
	var sign, arrow string
	var color lipgloss.Color
	switch trend {
	case TrendPositive:
		sign, arrow, color = "+", r.String(StrUpArrow), r.Color(ColorPositive)
	case TrendNegative:
		sign, arrow, color = "-", r.String(StrDownArrow), r.Color(ColorNegative)
	default:
		color = r.Color(ColorNeutral)
	}
	return SummaryUI{
		Title:      s.Title,
		Symbol:     s.Symbol,
		Exchange:   s.Exchange,
		Price:      s.Price,
		Currency:   s.Currency,
		Value:      FormatFixed(s.PriceMovement.Value),
		Percentage: sign + FormatFixed(s.PriceMovement.Percentage) + "%",
		Arrow:      arrow,
		Trend:      trend,
		Color:      color,
	}
}

// FormatFixed renders the magnitude of v with exactly two decimals,
// rounding half away from zero. The sign is carried by the direction.
func FormatFixed(v float64) string {
	return decimal.NewFromFloat(v).Abs().StringFixed(2)
}

// GraphUI is the chart data of the detail screen.
type GraphUI struct {
	Prices           []float64 `json:"prices"`
	FirstLabel       string    `json:"firstLabel"`
	LastLabel        string    `json:"lastLabel"`
	HorizontalLabels []string  `json:"horizontalLabels"`
}

// Row is a label/value line of a facts table.
type Row struct {
	Label       string `json:"label"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
	Link        string `json:"link,omitempty"`
}

// Section is a titled block of text and rows.
type Section struct {
	Title    string `json:"title"`
	Text     string `json:"text,omitempty"`
	Link     string `json:"link,omitempty"`
	LinkText string `json:"linkText,omitempty"`
	Rows     []Row  `json:"rows"`
}

// StockInformationUI is the detail screen.
type StockInformationUI struct {
	Summary  SummaryUI `json:"summary"`
	Graph    GraphUI   `json:"graph"`
	Tags     []Row     `json:"tags"`
	Sections []Section `json:"sections"`
}

// ToStockInformationUI formats the detail screen. The first section holds
// the key stats (and climate score when present), followed by the about
// sections in order.
func ToStockInformationUI(info *domain.StockInformation, r Resources) StockInformationUI {
	ui := StockInformationUI{
		Summary: ToSummaryUI(info.Summary, r),
		Graph: GraphUI{
			Prices:           info.Graph.Prices(),
			FirstLabel:       info.Graph.EdgeLabels.First,
			LastLabel:        info.Graph.EdgeLabels.Last,
			HorizontalLabels: info.Graph.HorizontalLabels,
		},
		Tags:     []Row{},
		Sections: []Section{},
	}
	if ui.Graph.HorizontalLabels == nil {
		ui.Graph.HorizontalLabels = []string{}
	}

	ks := info.KnowledgeGraph.KeyStats
	for _, t := range ks.Tags {
		ui.Tags = append(ui.Tags, Row{Label: t.Text, Description: t.Description, Link: t.Link})
	}
	if len(ks.Stats) > 0 || ks.ClimateChange != nil {
		sec := Section{Title: r.String(StrKeyStats), Rows: []Row{}}
		for _, st := range ks.Stats {
			sec.Rows = append(sec.Rows, Row{Label: st.Label, Value: st.Value, Description: st.Description})
		}
		if cc := ks.ClimateChange; cc != nil {
			sec.Rows = append(sec.Rows, Row{Label: r.String(StrClimateChange), Value: cc.Score, Link: cc.Link})
		}
		ui.Sections = append(ui.Sections, sec)
	}

	for _, a := range info.KnowledgeGraph.About {
		sec := Section{
			Title:    a.Title,
			Text:     a.Description.Snippet,
			Link:     a.Description.Link,
			LinkText: a.Description.LinkText,
			Rows:     []Row{},
		}
		if sec.Title == "" {
			sec.Title = r.String(StrAbout)
		}
		for _, in := range a.Info {
			sec.Rows = append(sec.Rows, Row{Label: in.Label, Value: in.Value, Link: in.Link})
		}
		ui.Sections = append(ui.Sections, sec)
	}
	return ui
}

// ErrorMessage converts a failed call into a message for the user. A nil
// error yields "".
func ErrorMessage(err error, r Resources) string {
	if err == nil {
		return ""
	}

	var httpErr *finance.HTTPError
	var dateErr *mapper.DateParseError
	var netErr net.Error
	switch {
	case errors.Is(err, finance.ErrEmptyBody):
		return r.String(StrErrEmptyBody)
	case errors.As(err, &httpErr):
		return fmt.Sprintf(r.String(StrErrHTTPStatus), httpErr.StatusCode)
	case errors.As(err, &dateErr):
		return r.String(StrErrBadData)
	case errors.Is(err, store.ErrNotFound):
		return r.String(StrErrNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		return r.String(StrErrTimeout)
	case errors.As(err, &netErr) && netErr.Timeout():
		return r.String(StrErrTimeout)
	default:
		return r.String(StrErrUnknown)
	}
}
