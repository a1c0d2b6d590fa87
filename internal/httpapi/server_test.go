package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"stockwatch/internal/broker"
	"stockwatch/internal/domain"
	"stockwatch/internal/finance"
	"stockwatch/internal/live"
	"stockwatch/internal/mapper"
	"stockwatch/internal/repository"
	"stockwatch/internal/store"
	"stockwatch/internal/uimodel"
)

// newUpstream serves the finance fixtures keyed by query.
func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	aapl, err := os.ReadFile("../finance/testdata/aapl.json")
	if err != nil {
		t.Fatal(err)
	}
	search, err := os.ReadFile("../finance/testdata/search_apple.json")
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("q") {
		case "AAPL:NASDAQ", "APPLE:NASDAQ":
			w.Write(aapl)
		case "apple":
			w.Write(search)
		case "nothing", "NOPE:NASDAQ":
			w.Write([]byte(`{}`))
		case "DOWN:NASDAQ":
			http.Error(w, "upstream down", http.StatusServiceUnavailable)
		default:
			// empty body
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	upstream := newUpstream(t)

	client := finance.NewClient(finance.Options{BaseURL: upstream.URL, APIKey: "k", Engine: "google_finance", Logger: log})
	stocks := repository.NewStockRepository(client, mapper.New(time.UTC, 4), store.NewParquetStore(t.TempDir()), log)

	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	watchlist := repository.NewWatchlistRepository(db, live.NewFeed(), broker.NewMemoryMirror(), log)

	s := NewServer(stocks, watchlist, uimodel.DefaultResources(), 0, log)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestGetStock(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, "GET", ts.URL+"/api/stocks/aapl?exchange=NASDAQ", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got StockResponse
	decode(t, resp, &got)
	if got.Summary.Symbol != "AAPL" || got.Summary.Value != "10.65" || got.Summary.Percentage != "+2.56%" {
		t.Errorf("summary = %+v", got.Summary)
	}
	if got.InWatchlist {
		t.Error("InWatchlist = true for empty watchlist")
	}
	if got.Graph.FirstLabel != "13:30" || len(got.Graph.HorizontalLabels) != 4 {
		t.Errorf("graph = %+v", got.Graph)
	}

	// The fetched graph is archived and served as history.
	resp = do(t, "GET", ts.URL+"/api/history/AAPL?date=2026-10-16", "")
	var hist HistoryResponse
	decode(t, resp, &hist)
	if len(hist.Graph.Nodes) != 7 || len(hist.Days) != 1 || hist.Days[0] != "2026-10-16" {
		t.Errorf("history = %+v", hist)
	}

	// Without a date the latest archived day is served.
	resp = do(t, "GET", ts.URL+"/api/history/AAPL", "")
	hist = HistoryResponse{}
	decode(t, resp, &hist)
	if hist.Date != "2026-10-16" || len(hist.Graph.Nodes) != 7 {
		t.Errorf("default history = %+v", hist)
	}
}

func TestGetStockUpstreamFailures(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, "GET", ts.URL+"/api/stocks/DOWN?exchange=NASDAQ", "")
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	var e ErrorResponse
	decode(t, resp, &e)
	if e.Error != "The request failed (HTTP 503)." {
		t.Errorf("error = %q", e.Error)
	}

	resp = do(t, "GET", ts.URL+"/api/stocks/EMPTY?exchange=NASDAQ", "")
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("empty body status = %d, want 502", resp.StatusCode)
	}
}

func TestGraphSVG(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, "GET", ts.URL+"/api/stocks/AAPL/graph.svg?exchange=NASDAQ&width=500&height=250", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	svg := string(body)
	if !strings.Contains(svg, `width="500" height="250"`) || !strings.Contains(svg, trendCSS[uimodel.TrendPositive]) {
		t.Errorf("unexpected svg: %.200s", svg)
	}

	resp = do(t, "GET", ts.URL+"/api/stocks/AAPL/graph.svg?width=-1", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad width status = %d", resp.StatusCode)
	}
}

func TestSearch(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, "GET", ts.URL+"/api/search?q=apple", "")
	var got SearchResponse
	decode(t, resp, &got)
	if len(got.Results) != 2 {
		t.Fatalf("results = %+v", got.Results)
	}
	if got.Results[0].Trend != uimodel.TrendPositive || got.Results[1].Trend != uimodel.TrendNegative {
		t.Errorf("trends = %q, %q", got.Results[0].Trend, got.Results[1].Trend)
	}

	resp = do(t, "GET", ts.URL+"/api/search?q=nothing", "")
	got = SearchResponse{}
	decode(t, resp, &got)
	if resp.StatusCode != http.StatusOK || len(got.Results) != 0 || got.Message != "No results" {
		t.Errorf("empty search = %d %+v", resp.StatusCode, got)
	}
}

func TestWatchlistCRUD(t *testing.T) {
	ts := newTestServer(t)
	body := `{"name":"Apple Inc","exchange":"nasdaq"}`

	resp := do(t, "PUT", ts.URL+"/api/watchlist/aapl", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add status = %d", resp.StatusCode)
	}
	resp = do(t, "PUT", ts.URL+"/api/watchlist/AAPL", body)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("duplicate add status = %d, want 204", resp.StatusCode)
	}
	resp = do(t, "PUT", ts.URL+"/api/watchlist/MSFT", `{"name":""}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid add status = %d, want 400", resp.StatusCode)
	}

	resp = do(t, "GET", ts.URL+"/api/watchlist", "")
	var wl WatchlistResponse
	decode(t, resp, &wl)
	if len(wl.Stocks) != 1 || wl.Stocks[0].Symbol != "AAPL" || wl.Stocks[0].Exchange != "NASDAQ" {
		t.Errorf("watchlist = %+v", wl)
	}

	resp = do(t, "GET", ts.URL+"/api/stocks/AAPL?exchange=NASDAQ", "")
	var st StockResponse
	decode(t, resp, &st)
	if !st.InWatchlist {
		t.Error("InWatchlist = false after add")
	}

	resp = do(t, "DELETE", ts.URL+"/api/watchlist/aapl", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	resp = do(t, "DELETE", ts.URL+"/api/watchlist/aapl", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", resp.StatusCode)
	}

	// Without a name the listing is looked up upstream.
	resp = do(t, "PUT", ts.URL+"/api/watchlist/AAPL", `{"exchange":"NASDAQ"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("lookup add status = %d", resp.StatusCode)
	}
	var added domain.Stock
	decode(t, resp, &added)
	if added.Symbol != "AAPL" || added.Name != "Apple Inc" {
		t.Errorf("looked-up stock = %+v", added)
	}
}

func TestWatchlistAddLookup(t *testing.T) {
	ts := newTestServer(t)

	// The finance API knows nothing about NOPE: no row, and a 404.
	resp := do(t, "PUT", ts.URL+"/api/watchlist/NOPE", `{"exchange":"NASDAQ"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown listing status = %d, want 404", resp.StatusCode)
	}
	var e ErrorResponse
	decode(t, resp, &e)
	if e.Error != "no listing for NOPE on NASDAQ" {
		t.Errorf("error = %q", e.Error)
	}

	// The API answers APPLE with the AAPL listing; the created row is the
	// one actually stored.
	resp = do(t, "PUT", ts.URL+"/api/watchlist/apple", `{"exchange":"NASDAQ"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("lookup add status = %d, want 201", resp.StatusCode)
	}
	var added domain.Stock
	decode(t, resp, &added)
	if added.Symbol != "AAPL" || added.Name != "Apple Inc" {
		t.Errorf("created = %+v", added)
	}

	resp = do(t, "GET", ts.URL+"/api/watchlist", "")
	var wl WatchlistResponse
	decode(t, resp, &wl)
	if len(wl.Stocks) != 1 || wl.Stocks[0].Symbol != "AAPL" {
		t.Errorf("watchlist = %+v", wl.Stocks)
	}
}

func TestInvalidSymbolRejected(t *testing.T) {
	ts := newTestServer(t)

	for _, tc := range []struct{ method, path, body string }{
		{"GET", "/api/history/..%2F..%2Fx", ""},
		{"GET", "/api/stocks/a%2Fb", ""},
		{"GET", "/api/stocks/..%2Fx/graph.svg", ""},
		{"PUT", "/api/watchlist/..%2Fx", `{"name":"X","exchange":"NASDAQ"}`},
		{"DELETE", "/api/watchlist/a%20b", ""},
	} {
		resp := do(t, tc.method, ts.URL+tc.path, tc.body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s %s status = %d, want 400", tc.method, tc.path, resp.StatusCode)
		}
	}
}

func TestWatchlistEvents(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/watchlist/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	events := make(chan WatchlistResponse)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			line := sc.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var wl WatchlistResponse
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &wl) != nil {
				continue
			}
			select {
			case events <- wl:
			case <-ctx.Done():
				return
			}
		}
		close(events)
	}()

	next := func() WatchlistResponse {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("event stream ended")
			}
			return ev
		case <-ctx.Done():
			t.Fatal("timed out waiting for event")
		}
		return WatchlistResponse{}
	}

	if ev := next(); len(ev.Stocks) != 0 {
		t.Errorf("first event = %+v, want empty list", ev)
	}
	do(t, "PUT", ts.URL+"/api/watchlist/GOOGL", `{"name":"Alphabet Inc","exchange":"NASDAQ"}`)
	if ev := next(); len(ev.Stocks) != 1 || ev.Stocks[0].Symbol != "GOOGL" {
		t.Errorf("second event = %+v", ev)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	resp := do(t, "OPTIONS", ts.URL+"/api/watchlist/AAPL", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q", got)
	}
}
