// Package mapper converts finance API responses into domain models. The
// conversions are pure: the only transformation applied to scalar fields is
// re-rendering graph timestamps as local HH:mm labels.
package mapper

import (
	"fmt"
	"time"

	"stockwatch/internal/domain"
	"stockwatch/internal/finance"
)

// GraphDefaultHorizontalLabels is the number of interior x-axis labels.
const GraphDefaultHorizontalLabels = 4

const (
	// sourceDateLayout matches "Oct 16 2026, 09:30 AM UTC-04:00". Z07:00
	// also accepts a literal Z for a zero offset.
	sourceDateLayout = "Jan 02 2006, 03:04 PM UTCZ07:00"
	labelLayout      = "15:04"
)

// DateParseError reports a graph node whose timestamp is not in the source
// layout.
type DateParseError struct {
	Index int
	Value string
	Err   error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("graph node %d: parsing date %q: %v", e.Index, e.Value, e.Err)
}

func (e *DateParseError) Unwrap() error { return e.Err }

// Mapper holds the settings the conversions depend on.
type Mapper struct {
	loc    *time.Location
	labels int
}

// New returns a Mapper rendering labels in loc with labelCount interior
// horizontal labels. A nil loc means UTC; a negative count means the default.
func New(loc *time.Location, labelCount int) *Mapper {
	if loc == nil {
		loc = time.UTC
	}
	if labelCount < 0 {
		labelCount = GraphDefaultHorizontalLabels
	}
	return &Mapper{loc: loc, labels: labelCount}
}

// ToStockInformation converts a stock lookup response.
func (m *Mapper) ToStockInformation(resp *finance.StockResponse) (*domain.StockInformation, error) {
	info := &domain.StockInformation{}
	if resp == nil {
		return info, nil
	}
	if resp.Summary != nil {
		info.Summary = ToSummary(*resp.Summary)
	}

	graph, err := m.ToGraph(resp.Graph)
	if err != nil {
		return nil, err
	}
	info.Graph = graph

	if resp.KnowledgeGraph != nil {
		info.KnowledgeGraph = ToKnowledgeGraph(*resp.KnowledgeGraph)
	}
	return info, nil
}

// ToStockInformation converts resp using labels rendered in loc and the
// default horizontal label count.
func ToStockInformation(resp *finance.StockResponse, loc *time.Location) (*domain.StockInformation, error) {
	return New(loc, GraphDefaultHorizontalLabels).ToStockInformation(resp)
}

// ToSummary copies a summary, passing price movement through unchanged.
func ToSummary(s finance.SummaryResponse) domain.Summary {
	return domain.Summary{
		Title:    s.Title,
		Symbol:   s.Stock,
		Exchange: s.Exchange,
		Price:    s.Price,
		Currency: s.Currency,
		PriceMovement: domain.PriceMovement{
			Percentage: s.PriceMovement.Percentage,
			Value:      s.PriceMovement.Value,
			Movement:   s.PriceMovement.Movement,
		},
	}
}

// ToGraph parses node timestamps and derives the edge and horizontal labels.
// The first malformed timestamp aborts the conversion.
func (m *Mapper) ToGraph(nodes []finance.GraphNodeResponse) (domain.Graph, error) {
	var g domain.Graph
	if len(nodes) == 0 {
		return g, nil
	}

	g.Nodes = make([]domain.GraphNode, len(nodes))
	for i, n := range nodes {
		t, err := time.Parse(sourceDateLayout, n.Date)
		if err != nil {
			return domain.Graph{}, &DateParseError{Index: i, Value: n.Date, Err: err}
		}
		local := t.In(m.loc)
		g.Nodes[i] = domain.GraphNode{
			Price: n.Price,
			Date:  local.Format(labelLayout),
			Time:  local,
		}
	}

	g.EdgeLabels = domain.EdgeLabels{
		First: g.Nodes[0].Date,
		Last:  g.Nodes[len(g.Nodes)-1].Date,
	}
	g.HorizontalLabels = HorizontalLabels(g.Nodes, m.labels)
	return g, nil
}

// FromArchive rebuilds a graph from archived nodes, re-rendering each label
// from the stored instant in the mapper's zone.
func (m *Mapper) FromArchive(nodes []domain.GraphNode) domain.Graph {
	var g domain.Graph
	if len(nodes) == 0 {
		return g
	}
	g.Nodes = make([]domain.GraphNode, len(nodes))
	for i, n := range nodes {
		local := n.Time.In(m.loc)
		g.Nodes[i] = domain.GraphNode{Price: n.Price, Date: local.Format(labelLayout), Time: local}
	}
	g.EdgeLabels = domain.EdgeLabels{
		First: g.Nodes[0].Date,
		Last:  g.Nodes[len(g.Nodes)-1].Date,
	}
	g.HorizontalLabels = HorizontalLabels(g.Nodes, m.labels)
	return g
}

// Location returns the zone labels are rendered in.
func (m *Mapper) Location() *time.Location { return m.loc }

// HorizontalLabels picks count evenly spaced interior labels at indices
// step, 2*step, ... where step = n/(count+1). When there are too few nodes
// the count is reduced to n-1 so every index stays in range.
func HorizontalLabels(nodes []domain.GraphNode, count int) []string {
	n := len(nodes)
	if count > n-1 {
		count = n - 1
	}
	if count <= 0 {
		return []string{}
	}

	step := n / (count + 1)
	labels := make([]string, count)
	for i := 1; i <= count; i++ {
		labels[i-1] = nodes[i*step].Date
	}
	return labels
}

// ToKnowledgeGraph copies the knowledge graph facts.
func ToKnowledgeGraph(kg finance.KnowledgeGraphResponse) domain.KnowledgeGraph {
	var out domain.KnowledgeGraph

	if ks := kg.KeyStats; ks != nil {
		out.KeyStats.Tags = make([]domain.Tag, 0, len(ks.Tags))
		for _, t := range ks.Tags {
			out.KeyStats.Tags = append(out.KeyStats.Tags, domain.Tag{
				Text:        t.Text,
				Description: t.Description,
				Link:        t.Link,
			})
		}
		out.KeyStats.Stats = make([]domain.Stat, 0, len(ks.Stats))
		for _, s := range ks.Stats {
			out.KeyStats.Stats = append(out.KeyStats.Stats, domain.Stat{
				Label:       s.Label,
				Description: s.Description,
				Value:       s.Value,
			})
		}
		if cc := ks.ClimateChange; cc != nil {
			out.KeyStats.ClimateChange = &domain.ClimateChange{Score: cc.Score, Link: cc.Link}
		}
	}

	out.About = make([]domain.About, 0, len(kg.About))
	for _, a := range kg.About {
		about := domain.About{
			Title: a.Title,
			Description: domain.AboutDescription{
				Snippet:  a.Description.Snippet,
				Link:     a.Description.Link,
				LinkText: a.Description.LinkText,
			},
			Info: make([]domain.Info, 0, len(a.Info)),
		}
		for _, i := range a.Info {
			about.Info = append(about.Info, domain.Info{Label: i.Label, Value: i.Value, Link: i.Link})
		}
		out.About = append(out.About, about)
	}
	return out
}

// ToSearchResults converts a search response. Missing fields yield empty
// results, never an error.
func ToSearchResults(resp *finance.SearchResponse) domain.StockSearchResults {
	res := domain.StockSearchResults{CloseMatches: []domain.Summary{}}
	if resp == nil {
		return res
	}
	if resp.Summary != nil {
		s := ToSummary(*resp.Summary)
		res.ExactMatch = &s
	}
	for _, s := range resp.Suggestions {
		res.CloseMatches = append(res.CloseMatches, ToSummary(s))
	}
	return res
}

// ToStock builds the watchlist entry for a summary.
func ToStock(s domain.Summary) domain.Stock {
	return domain.Stock{Name: s.Title, Symbol: s.Symbol, Exchange: s.Exchange}
}
