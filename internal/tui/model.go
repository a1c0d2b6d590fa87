// Package tui is the terminal front end: a watchlist kept live over gRPC,
// a search screen and a stock detail screen with an animated chart.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"stockwatch/internal/domain"
	"stockwatch/internal/graph"
	"stockwatch/pkg/stockwatch"
)

// Backend is the server API used by the screens. *stockwatch.Client
// implements it.
type Backend interface {
	Search(ctx context.Context, query string) (*stockwatch.SearchResults, error)
	GetStock(ctx context.Context, symbol, exchange string) (*stockwatch.StockInformation, error)
	Add(ctx context.Context, symbol, name, exchange string) (bool, error)
	Remove(ctx context.Context, symbol string) error
}

var _ Backend = (*stockwatch.Client)(nil)

// requestTimeout bounds every backend call.
const requestTimeout = 15 * time.Second

// frameInterval is the chart reveal frame rate.
const frameInterval = 33 * time.Millisecond

type screen int

const (
	screenWatchlist screen = iota
	screenSearch
	screenDetail
)

// Messages.
type watchlistMsg []domain.Stock
type watchlistClosedMsg struct{}

type searchResultMsg struct {
	query string
	res   *stockwatch.SearchResults
	err   error
}

type stockLoadedMsg struct {
	symbol string
	info   *stockwatch.StockInformation
	err    error
}

type watchlistToggleMsg struct {
	symbol string
	added  bool
	err    error
}

// revealTickMsg drives the chart animation. Ticks from an earlier reveal
// carry an older gen and are dropped, which stops the animation when the
// detail screen is left.
type revealTickMsg struct {
	gen int
	t   time.Time
}

// Model is the bubbletea model of the terminal client.
type Model struct {
	backend Backend
	updates <-chan []domain.Stock
	reveal  graph.Reveal
	logger  *slog.Logger

	screen        screen
	back          screen // where esc leaves the detail screen to
	width, height int
	ready         bool
	viewport      viewport.Model
	input         textinput.Model

	// Watchlist.
	stocks  []domain.Stock
	tracked map[string]bool
	cursor  int

	// Search.
	results      []stockwatch.SearchResult
	resultCursor int
	focusResults bool
	searching    bool
	searchMsg    string

	// Detail.
	detail         *stockwatch.StockInformation
	detailSymbol   string
	detailExchange string
	loading        bool
	revealGen      int
	revealStart    time.Time
	progress       float64

	status    string
	statusErr bool
}

// New creates the model. updates delivers the full watchlist on every
// change; reveal is the chart draw-in duration.
func New(backend Backend, updates <-chan []domain.Stock, reveal time.Duration, logger *slog.Logger) Model {
	in := textinput.New()
	in.Placeholder = "name or symbol"
	in.Prompt = "Search: "
	in.CharLimit = 64
	return Model{
		backend: backend,
		updates: updates,
		reveal:  graph.Reveal{Duration: reveal},
		logger:  logger,
		input:   in,
		tracked: make(map[string]bool),
	}
}

// Init starts listening for watchlist updates.
func (m Model) Init() tea.Cmd {
	return waitForWatchlist(m.updates)
}

func waitForWatchlist(ch <-chan []domain.Stock) tea.Cmd {
	return func() tea.Msg {
		stocks, ok := <-ch
		if !ok {
			return watchlistClosedMsg{}
		}
		return watchlistMsg(stocks)
	}
}

func revealTick(gen int) tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return revealTickMsg{gen: gen, t: t}
	})
}

func (m Model) searchCmd(query string) tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		res, err := b.Search(ctx, query)
		return searchResultMsg{query: query, res: res, err: err}
	}
}

func (m Model) loadStockCmd(symbol, exchange string) tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		info, err := b.GetStock(ctx, symbol, exchange)
		return stockLoadedMsg{symbol: symbol, info: info, err: err}
	}
}

func (m Model) addCmd(symbol, name, exchange string) tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := b.Add(ctx, symbol, name, exchange)
		return watchlistToggleMsg{symbol: symbol, added: true, err: err}
	}
}

func (m Model) removeCmd(symbol string) tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		err := b.Remove(ctx, symbol)
		return watchlistToggleMsg{symbol: symbol, added: false, err: err}
	}
}

// Update handles a message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.screen {
		case screenSearch:
			return m.updateSearch(msg)
		case screenDetail:
			return m.updateDetail(msg)
		default:
			return m.updateWatchlist(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := max(m.height-2, 1) // header + footer
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.viewport.SetContent(m.renderDetail())
		return m, nil

	case watchlistMsg:
		m.stocks = msg
		m.tracked = make(map[string]bool, len(msg))
		for _, s := range msg {
			m.tracked[s.Symbol] = true
		}
		m.cursor = min(m.cursor, max(len(m.stocks)-1, 0))
		if m.screen == screenDetail {
			m.viewport.SetContent(m.renderDetail())
		}
		return m, waitForWatchlist(m.updates)

	case watchlistClosedMsg:
		m.setError("watchlist stream closed")
		return m, nil

	case searchResultMsg:
		m.searching = false
		if msg.err != nil {
			m.logger.Warn("search failed", "query", msg.query, "error", msg.err)
			m.setError(errorText(msg.err))
			return m, nil
		}
		m.results = msg.res.Results
		m.searchMsg = msg.res.Message
		m.resultCursor = 0
		if len(m.results) > 0 {
			m.focusResults = true
			m.input.Blur()
		}
		return m, nil

	case stockLoadedMsg:
		if msg.symbol != m.detailSymbol || m.screen != screenDetail {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.logger.Warn("loading stock", "symbol", msg.symbol, "error", msg.err)
			m.setError(errorText(msg.err))
			m.viewport.SetContent(m.renderDetail())
			return m, nil
		}
		m.detail = msg.info
		m.revealGen++
		m.revealStart = time.Now()
		m.progress = 0
		m.viewport.SetContent(m.renderDetail())
		m.viewport.GotoTop()
		return m, revealTick(m.revealGen)

	case revealTickMsg:
		if msg.gen != m.revealGen || m.screen != screenDetail {
			return m, nil
		}
		m.progress = m.reveal.Progress(msg.t.Sub(m.revealStart))
		m.viewport.SetContent(m.renderDetail())
		if m.progress >= 1 {
			return m, nil
		}
		return m, revealTick(msg.gen)

	case watchlistToggleMsg:
		if msg.err != nil {
			m.logger.Warn("watchlist toggle failed", "symbol", msg.symbol, "error", msg.err)
			m.setError(errorText(msg.err))
			return m, nil
		}
		m.logger.Info("watchlist toggled", "symbol", msg.symbol, "added", msg.added)
		if msg.added {
			m.setStatus("Added " + msg.symbol)
		} else {
			m.setStatus("Removed " + msg.symbol)
		}
		return m, nil
	}

	if m.ready && m.screen == screenDetail {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateWatchlist(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.stocks)-1 {
			m.cursor++
		}
	case "/", "s":
		m.screen = screenSearch
		m.focusResults = false
		m.clearStatus()
		return m, m.input.Focus()
	case "enter":
		if len(m.stocks) == 0 {
			return m, nil
		}
		s := m.stocks[m.cursor]
		return m.openDetail(s.Symbol, s.Exchange, screenWatchlist)
	case "d", "delete":
		if len(m.stocks) == 0 {
			return m, nil
		}
		return m, m.removeCmd(m.stocks[m.cursor].Symbol)
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.screen = screenWatchlist
		m.input.Blur()
		m.clearStatus()
		return m, nil
	case "tab":
		m.focusResults = !m.focusResults && len(m.results) > 0
		if m.focusResults {
			m.input.Blur()
			return m, nil
		}
		return m, m.input.Focus()
	}

	if !m.focusResults {
		if msg.String() == "enter" {
			query := strings.TrimSpace(m.input.Value())
			if query == "" {
				return m, nil
			}
			m.searching = true
			m.clearStatus()
			return m, m.searchCmd(query)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "up", "k":
		if m.resultCursor > 0 {
			m.resultCursor--
		}
	case "down", "j":
		if m.resultCursor < len(m.results)-1 {
			m.resultCursor++
		}
	case "enter":
		r := m.results[m.resultCursor]
		return m.openDetail(r.Symbol, r.Exchange, screenSearch)
	case "a":
		r := m.results[m.resultCursor]
		if m.tracked[r.Symbol] {
			m.setStatus(r.Symbol + " is already on the watchlist")
			return m, nil
		}
		return m, m.addCmd(r.Symbol, r.Title, r.Exchange)
	}
	return m, nil
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "backspace", "q":
		m.screen = m.back
		m.revealGen++ // stop the animation
		m.detail = nil
		m.clearStatus()
		if m.screen == screenSearch && !m.focusResults {
			return m, m.input.Focus()
		}
		return m, nil
	case "a":
		if m.detail == nil {
			return m, nil
		}
		s := m.detail.Summary
		if m.tracked[s.Symbol] {
			return m, m.removeCmd(s.Symbol)
		}
		return m, m.addCmd(s.Symbol, s.Title, s.Exchange)
	case "r":
		return m.openDetail(m.detailSymbol, m.detailExchange, m.back)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) openDetail(symbol, exchange string, back screen) (tea.Model, tea.Cmd) {
	m.screen = screenDetail
	m.back = back
	m.detailSymbol = symbol
	m.detailExchange = exchange
	m.detail = nil
	m.loading = true
	m.revealGen++
	m.input.Blur()
	m.clearStatus()
	if m.ready {
		m.viewport.SetContent(m.renderDetail())
	}
	return m, m.loadStockCmd(symbol, exchange)
}

func (m *Model) setStatus(s string) { m.status, m.statusErr = s, false }
func (m *Model) setError(s string)  { m.status, m.statusErr = s, true }
func (m *Model) clearStatus()       { m.status, m.statusErr = "", false }

// errorText returns the server's user-facing message when there is one.
func errorText(err error) string {
	var apiErr *stockwatch.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The request timed out. Check your connection."
	}
	return fmt.Sprintf("Request failed: %v", err)
}
