package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stockwatch/internal/domain"
	"stockwatch/internal/finance"
	"stockwatch/internal/graph"
	"stockwatch/internal/mapper"
	"stockwatch/internal/repository"
	"stockwatch/internal/store"
	"stockwatch/internal/uimodel"
)

// Default and maximum graph.svg dimensions.
const (
	defaultGraphWidth  = 600
	defaultGraphHeight = 300
	maxGraphDimension  = 4000
)

// CSS colors used for the SVG line, by trend.
var trendCSS = map[uimodel.Trend]string{
	uimodel.TrendPositive: "#16a34a",
	uimodel.TrendNegative: "#dc2626",
	uimodel.TrendNeutral:  "#6b7280",
}

// Server serves the stockwatch HTTP API.
type Server struct {
	stocks    *repository.StockRepository
	watchlist *repository.WatchlistRepository
	res       uimodel.Resources
	reveal    time.Duration
	log       *slog.Logger
}

// NewServer creates a new HTTP API server. reveal is the duration of the
// SVG draw-in animation.
func NewServer(
	stocks *repository.StockRepository,
	watchlist *repository.WatchlistRepository,
	res uimodel.Resources,
	reveal time.Duration,
	log *slog.Logger,
) *Server {
	return &Server{
		stocks:    stocks,
		watchlist: watchlist,
		res:       res,
		reveal:    reveal,
		log:       log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/stocks/{symbol}", s.handleStock)
	mux.HandleFunc("GET /api/stocks/{symbol}/graph.svg", s.handleGraphSVG)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/watchlist", s.handleGetWatchlist)
	mux.HandleFunc("GET /api/watchlist/events", s.handleWatchlistEvents)
	mux.HandleFunc("PUT /api/watchlist/{symbol}", s.handleAddWatchlist)
	mux.HandleFunc("DELETE /api/watchlist/{symbol}", s.handleRemoveWatchlist)
	mux.HandleFunc("GET /api/history/{symbol}", s.handleHistory)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSONStatus(w, status, ErrorResponse{Error: msg})
}

// writeFailure maps err to a status code and writes the user-facing message.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Warn("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeError(w, status, uimodel.ErrorMessage(err, s.res))
}

func errorStatus(err error) int {
	var httpErr *finance.HTTPError
	var dateErr *mapper.DateParseError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidSymbol):
		return http.StatusBadRequest
	case errors.Is(err, finance.ErrEmptyBody), errors.As(err, &httpErr), errors.As(err, &dateErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// pathSymbol returns the upper-cased {symbol} path value. A symbol outside
// the ticker charset is answered with 400 and ok is false.
func pathSymbol(w http.ResponseWriter, r *http.Request) (symbol string, ok bool) {
	symbol = strings.ToUpper(r.PathValue("symbol"))
	if !store.ValidSymbol(symbol) {
		writeError(w, http.StatusBadRequest, "invalid symbol")
		return "", false
	}
	return symbol, true
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	symbol, ok := pathSymbol(w, r)
	if !ok {
		return
	}
	info, err := s.stocks.GetStockInformation(r.Context(), symbol, r.URL.Query().Get("exchange"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	tracked, err := s.watchlist.Contains(r.Context(), symbol)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, StockResponse{
		StockInformationUI: uimodel.ToStockInformationUI(info, s.res),
		InWatchlist:        tracked,
	})
}

func (s *Server) handleGraphSVG(w http.ResponseWriter, r *http.Request) {
	symbol, ok := pathSymbol(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	width, err := dimension(q.Get("width"), defaultGraphWidth)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid width")
		return
	}
	height, err := dimension(q.Get("height"), defaultGraphHeight)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid height")
		return
	}

	info, err := s.stocks.GetStockInformation(r.Context(), symbol, q.Get("exchange"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if len(info.Graph.Nodes) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no graph for %s", symbol))
		return
	}

	trend := uimodel.ToSummaryUI(info.Summary, s.res).Trend
	w.Header().Set("Content-Type", "image/svg+xml")
	err = graph.RenderSVG(w, graph.Chart{
		Prices:     info.Graph.Prices(),
		FirstLabel: info.Graph.EdgeLabels.First,
		LastLabel:  info.Graph.EdgeLabels.Last,
		Labels:     info.Graph.HorizontalLabels,
		Size:       graph.Size{Width: float64(width), Height: float64(height)},
		Horizontal: 3,
		Color:      trendCSS[trend],
		Reveal:     s.reveal,
	})
	if err != nil {
		s.log.Warn("rendering graph", "symbol", symbol, "error", err)
	}
}

func dimension(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > maxGraphDimension {
		return 0, fmt.Errorf("invalid dimension %q", v)
	}
	return n, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	res, err := s.stocks.Search(r.Context(), query)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	resp := SearchResponse{Query: query, Results: uimodel.ToSearchResultsUI(res, s.res)}
	if len(resp.Results) == 0 {
		resp.Message = s.res.String(uimodel.StrNoResults)
	}
	writeJSON(w, resp)
}

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	stocks, err := s.watchlist.List(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, WatchlistResponse{Stocks: stocks})
}

// handleAddWatchlist answers 201 when the stock was added and 204 when the
// symbol was already tracked. Without a name the listing is looked up.
func (s *Server) handleAddWatchlist(w http.ResponseWriter, r *http.Request) {
	symbol, ok := pathSymbol(w, r)
	if !ok {
		return
	}
	var req AddStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Exchange) == "" {
		writeError(w, http.StatusBadRequest, "exchange is required")
		return
	}

	var added bool
	var err error
	stock := stockFromRequest(symbol, req)
	if strings.TrimSpace(req.Name) == "" {
		// No name: add the listing as the finance API describes it.
		info, lookupErr := s.stocks.GetStockInformation(r.Context(), symbol, req.Exchange)
		if lookupErr != nil {
			s.writeFailure(w, r, lookupErr)
			return
		}
		if info.Summary.Symbol == "" {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no listing for %s on %s", symbol, stock.Exchange))
			return
		}
		stock = mapper.ToStock(info.Summary)
		added, err = s.watchlist.AddSummary(r.Context(), info.Summary)
	} else {
		added, err = s.watchlist.Add(r.Context(), stock)
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if !added {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	// The stored symbol is the looked-up one, which may differ from the path.
	created, err := s.watchlist.Get(r.Context(), strings.ToUpper(strings.TrimSpace(stock.Symbol)))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, created)
}

func stockFromRequest(symbol string, req AddStockRequest) domain.Stock {
	return domain.Stock{
		Name:     strings.TrimSpace(req.Name),
		Symbol:   symbol,
		Exchange: strings.ToUpper(strings.TrimSpace(req.Exchange)),
	}
}

func (s *Server) handleRemoveWatchlist(w http.ResponseWriter, r *http.Request) {
	symbol, ok := pathSymbol(w, r)
	if !ok {
		return
	}
	removed, err := s.watchlist.Remove(r.Context(), symbol)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if !removed {
		s.writeFailure(w, r, store.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWatchlistEvents streams the full watchlist as server-sent events:
// the current list first, then the list after every change.
func (s *Server) handleWatchlistEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	s.log.Info("sse client subscribed", "remote", r.RemoteAddr)
	for stocks := range s.watchlist.Watch(ctx) {
		data, err := json.Marshal(WatchlistResponse{Stocks: stocks})
		if err != nil {
			s.log.Error("encoding watchlist event", "error", err)
			return
		}
		if _, err := fmt.Fprintf(w, "event: watchlist\ndata: %s\n\n", data); err != nil {
			return
		}
		flusher.Flush()
	}
	s.log.Info("sse client disconnected", "remote", r.RemoteAddr)
}

// handleHistory serves one archived UTC day. Without a date the latest
// archived day is served, or today when nothing is archived.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol, ok := pathSymbol(w, r)
	if !ok {
		return
	}
	days, err := s.stocks.HistoryDays(r.Context(), symbol)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
		if len(days) > 0 {
			date = days[len(days)-1]
		}
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	g, err := s.stocks.History(r.Context(), symbol, day)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, HistoryResponse{Symbol: symbol, Date: date, Graph: g, Days: days})
}
