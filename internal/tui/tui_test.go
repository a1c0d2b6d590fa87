package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"stockwatch/internal/domain"
	"stockwatch/internal/graph"
	"stockwatch/pkg/stockwatch"
)

type fakeBackend struct {
	mu      sync.Mutex
	added   []string
	removed []string
	loads   []string
	err     error
}

func (f *fakeBackend) Search(_ context.Context, q string) (*stockwatch.SearchResults, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &stockwatch.SearchResults{
		Query: q,
		Results: []stockwatch.SearchResult{
			{Summary: stockwatch.Summary{Title: "Apple Inc", Symbol: "AAPL", Exchange: "NASDAQ", Price: "$182.52", Percentage: "+0.41%", Arrow: "▲", Color: "10"}, ExactMatch: true},
			{Summary: stockwatch.Summary{Title: "Apple Hospitality", Symbol: "APLE", Exchange: "NYSE", Price: "$15.02", Percentage: "-0.20%", Arrow: "▼", Color: "9"}},
		},
	}, nil
}

func (f *fakeBackend) GetStock(_ context.Context, symbol, exchange string) (*stockwatch.StockInformation, error) {
	f.mu.Lock()
	f.loads = append(f.loads, symbol+":"+exchange)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &stockwatch.StockInformation{
		Summary: stockwatch.Summary{Title: "Apple Inc", Symbol: symbol, Exchange: exchange, Price: "182.52", Currency: "USD", Value: "0.75", Percentage: "+0.41%", Arrow: "▲", Color: "10"},
		Graph: stockwatch.Graph{
			Prices:           []float64{181.2, 182.0, 181.7, 182.5},
			FirstLabel:       "9:30",
			LastLabel:        "16:00",
			HorizontalLabels: []string{"11:00", "12:30", "14:00"},
		},
		Tags:     []stockwatch.Row{{Label: "Stock"}},
		Sections: []stockwatch.Section{{Title: "Key stats", Rows: []stockwatch.Row{{Label: "Previous close", Value: "$181.77"}}}},
	}, nil
}

func (f *fakeBackend) Add(_ context.Context, symbol, _, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	f.added = append(f.added, symbol)
	return true, nil
}

func (f *fakeBackend) Remove(_ context.Context, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, symbol)
	return nil
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func newTestModel(t *testing.T, b Backend) (Model, chan []domain.Stock) {
	t.Helper()
	updates := make(chan []domain.Stock, 4)
	m := New(b, updates, 100*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return next.(Model), updates
}

// step applies msg and returns the new model and its command.
func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func watchlist(symbols ...string) []domain.Stock {
	out := make([]domain.Stock, 0, len(symbols))
	for i, s := range symbols {
		out = append(out, domain.Stock{ID: int64(i + 1), Name: s + " Inc", Symbol: s, Exchange: "NASDAQ"})
	}
	return out
}

func TestWatchlistUpdates(t *testing.T) {
	m, updates := newTestModel(t, &fakeBackend{})

	updates <- watchlist("AAPL", "MSFT")
	msg := m.Init()()
	m, cmd := step(t, m, msg)
	if len(m.stocks) != 2 || !m.tracked["MSFT"] {
		t.Fatalf("stocks = %+v tracked = %v", m.stocks, m.tracked)
	}
	if cmd == nil {
		t.Fatal("watchlist update should re-arm the wait")
	}

	m, _ = step(t, m, runes("j"))
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want 1", m.cursor)
	}

	// A shorter list clamps the cursor.
	updates <- watchlist("AAPL")
	m, _ = step(t, m, cmd())
	if m.cursor != 0 || m.tracked["MSFT"] {
		t.Errorf("after shrink cursor = %d tracked = %v", m.cursor, m.tracked)
	}

	close(updates)
	m, _ = step(t, m, waitForWatchlist(updates)())
	if !m.statusErr {
		t.Error("closed stream should show an error")
	}

	if v := m.View(); !strings.Contains(v, "AAPL") || !strings.Contains(v, "Watchlist (1)") {
		t.Errorf("view missing watchlist:\n%s", v)
	}
}

func TestSearchAndAdd(t *testing.T) {
	b := &fakeBackend{}
	m, _ := newTestModel(t, b)

	m, _ = step(t, m, runes("/"))
	if m.screen != screenSearch {
		t.Fatalf("screen = %v, want search", m.screen)
	}
	m, _ = step(t, m, runes("apple"))
	if got := m.input.Value(); got != "apple" {
		t.Fatalf("input = %q", got)
	}

	m, cmd := step(t, m, enter)
	if cmd == nil || !m.searching {
		t.Fatal("enter should start a search")
	}
	m, _ = step(t, m, cmd())
	if len(m.results) != 2 || !m.focusResults {
		t.Fatalf("results = %d focused = %v", len(m.results), m.focusResults)
	}

	m, _ = step(t, m, runes("j"))
	m, cmd = step(t, m, runes("a"))
	if cmd == nil {
		t.Fatal("a should add the selected result")
	}
	m, _ = step(t, m, cmd())
	if len(b.added) != 1 || b.added[0] != "APLE" {
		t.Errorf("added = %v", b.added)
	}
	if m.status != "Added APLE" {
		t.Errorf("status = %q", m.status)
	}

	view := m.View()
	if !strings.Contains(view, "Apple Hospitality") || !strings.Contains(view, "+0.41%") {
		t.Errorf("view missing results:\n%s", view)
	}

	m, _ = step(t, m, esc)
	if m.screen != screenWatchlist {
		t.Errorf("esc should go back to the watchlist, screen = %v", m.screen)
	}
}

func TestSearchAddSkipsTracked(t *testing.T) {
	b := &fakeBackend{}
	m, _ := newTestModel(t, b)
	m, _ = step(t, m, watchlistMsg(watchlist("AAPL")))

	m, _ = step(t, m, runes("/"))
	m, _ = step(t, m, runes("apple"))
	_, cmd := step(t, m, enter)
	m, _ = step(t, m, cmd())

	m, cmd = step(t, m, runes("a"))
	if cmd != nil {
		t.Error("adding a tracked symbol should not call the backend")
	}
	if !strings.Contains(m.status, "already") {
		t.Errorf("status = %q", m.status)
	}
}

func TestDetailLoadAndReveal(t *testing.T) {
	b := &fakeBackend{}
	m, _ := newTestModel(t, b)
	m, _ = step(t, m, watchlistMsg(watchlist("AAPL")))

	m, cmd := step(t, m, enter)
	if m.screen != screenDetail || !m.loading {
		t.Fatalf("screen = %v loading = %v", m.screen, m.loading)
	}
	m, tick := step(t, m, cmd())
	if m.detail == nil || m.loading {
		t.Fatal("detail not loaded")
	}
	if tick == nil {
		t.Fatal("load should start the reveal")
	}
	if len(b.loads) != 1 || b.loads[0] != "AAPL:NASDAQ" {
		t.Errorf("loads = %v", b.loads)
	}

	gen := m.revealGen
	m, next := step(t, m, revealTickMsg{gen: gen, t: m.revealStart.Add(50 * time.Millisecond)})
	if m.progress <= 0 || m.progress >= 1 || next == nil {
		t.Errorf("mid reveal progress = %v", m.progress)
	}
	m, next = step(t, m, revealTickMsg{gen: gen, t: m.revealStart.Add(time.Second)})
	if m.progress != 1 || next != nil {
		t.Errorf("final progress = %v, cmd nil = %v", m.progress, next == nil)
	}

	content := m.renderDetail()
	for _, want := range []string{"Apple Inc", "on watchlist", "16:00", "Key stats", "Previous close"} {
		if !strings.Contains(content, want) {
			t.Errorf("detail missing %q:\n%s", want, content)
		}
	}

	// Tracked stock: a removes.
	m, cmd = step(t, m, runes("a"))
	m, _ = step(t, m, cmd())
	if len(b.removed) != 1 || b.removed[0] != "AAPL" {
		t.Errorf("removed = %v", b.removed)
	}

	m, _ = step(t, m, esc)
	if m.screen != screenWatchlist || m.detail != nil {
		t.Errorf("esc: screen = %v", m.screen)
	}
	m, next = step(t, m, revealTickMsg{gen: gen, t: time.Now()})
	if next != nil {
		t.Error("stale reveal tick should stop")
	}
}

func TestStaleLoadIgnored(t *testing.T) {
	m, _ := newTestModel(t, &fakeBackend{})
	m, _ = step(t, m, watchlistMsg(watchlist("AAPL")))

	m, cmd := step(t, m, enter)
	m, _ = step(t, m, esc)
	m, _ = step(t, m, cmd())
	if m.detail != nil || m.screen != screenWatchlist {
		t.Error("a load finishing after esc should be dropped")
	}
}

func TestDetailError(t *testing.T) {
	b := &fakeBackend{err: &stockwatch.APIError{StatusCode: 502, Message: "The request failed (HTTP 503)."}}
	m, _ := newTestModel(t, b)
	m, _ = step(t, m, watchlistMsg(watchlist("AAPL")))

	m, cmd := step(t, m, enter)
	m, _ = step(t, m, cmd())
	if !m.statusErr || m.status != "The request failed (HTTP 503)." {
		t.Errorf("status = %q err = %v", m.status, m.statusErr)
	}
	if m.loading {
		t.Error("loading should end on error")
	}
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&stockwatch.APIError{StatusCode: 404, Message: "Stock not found."}, "Stock not found."},
		{context.DeadlineExceeded, "The request timed out. Check your connection."},
		{errors.New("boom"), "Request failed: boom"},
	}
	for _, tt := range tests {
		if got := errorText(tt.err); got != tt.want {
			t.Errorf("errorText(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestLabelRow(t *testing.T) {
	g := stockwatch.Graph{FirstLabel: "9:30", LastLabel: "16:00"}
	got := labelRow(g, 20, graph.NewCanvas(20, graphRows).Size())
	if !strings.HasPrefix(got, "9:30") || !strings.HasSuffix(got, "16:00") || len([]rune(got)) != 20 {
		t.Errorf("labelRow = %q", got)
	}
}
