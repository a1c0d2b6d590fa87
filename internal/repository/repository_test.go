package repository

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"stockwatch/internal/broker"
	"stockwatch/internal/domain"
	"stockwatch/internal/finance"
	"stockwatch/internal/live"
	"stockwatch/internal/mapper"
	"stockwatch/internal/store"
)

type fakeAPI struct {
	stock   *finance.StockResponse
	search  *finance.SearchResponse
	err     error
	queries []string
}

func (f *fakeAPI) GetStock(_ context.Context, query string) (*finance.StockResponse, error) {
	f.queries = append(f.queries, query)
	return f.stock, f.err
}

func (f *fakeAPI) Search(_ context.Context, query string) (*finance.SearchResponse, error) {
	f.queries = append(f.queries, query)
	return f.search, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadFixture(t *testing.T, name string, out any) {
	t.Helper()
	data, err := os.ReadFile("../finance/testdata/" + name)
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("decoding fixture: %v", err)
	}
}

func TestGetStockInformationArchivesGraph(t *testing.T) {
	var resp finance.StockResponse
	loadFixture(t, "aapl.json", &resp)
	api := &fakeAPI{stock: &resp}
	archive := store.NewParquetStore(t.TempDir())
	repo := NewStockRepository(api, mapper.New(time.UTC, mapper.GraphDefaultHorizontalLabels), archive, discardLogger())
	ctx := context.Background()

	info, err := repo.GetStockInformation(ctx, "aapl", "nasdaq")
	if err != nil {
		t.Fatalf("GetStockInformation: %v", err)
	}
	if len(api.queries) != 1 || api.queries[0] != "AAPL:NASDAQ" {
		t.Errorf("queries = %v", api.queries)
	}
	if info.Summary.Symbol != "AAPL" || len(info.Graph.Nodes) != 7 {
		t.Fatalf("info = %+v", info.Summary)
	}

	day := info.Graph.Nodes[0].Time
	g, err := repo.History(ctx, "AAPL", day)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(g.Nodes) != 7 {
		t.Fatalf("archived %d nodes, want 7", len(g.Nodes))
	}
	if g.EdgeLabels != info.Graph.EdgeLabels {
		t.Errorf("history edge labels = %+v, want %+v", g.EdgeLabels, info.Graph.EdgeLabels)
	}
	days, err := repo.HistoryDays(ctx, "AAPL")
	if err != nil || len(days) != 1 {
		t.Errorf("HistoryDays = %v, %v", days, err)
	}
}

func TestGetStockInformationPropagatesErrors(t *testing.T) {
	api := &fakeAPI{err: &finance.HTTPError{StatusCode: 500, Body: "boom"}}
	repo := NewStockRepository(api, mapper.New(time.UTC, 4), nil, discardLogger())

	_, err := repo.GetStockInformation(context.Background(), "AAPL", "NASDAQ")
	var httpErr *finance.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 500 {
		t.Errorf("err = %v, want wrapped HTTPError", err)
	}
	if len(api.queries) != 1 {
		t.Errorf("expected a single attempt, got %d", len(api.queries))
	}

	api = &fakeAPI{stock: &finance.StockResponse{Graph: []finance.GraphNodeResponse{{Price: 1, Date: "garbage"}}}}
	repo = NewStockRepository(api, mapper.New(time.UTC, 4), nil, discardLogger())
	_, err = repo.GetStockInformation(context.Background(), "AAPL", "")
	var dateErr *mapper.DateParseError
	if !errors.As(err, &dateErr) {
		t.Errorf("err = %v, want DateParseError", err)
	}
}

func TestSearch(t *testing.T) {
	var resp finance.SearchResponse
	loadFixture(t, "search_apple.json", &resp)
	api := &fakeAPI{search: &resp}
	repo := NewStockRepository(api, mapper.New(time.UTC, 4), nil, discardLogger())
	ctx := context.Background()

	res, err := repo.Search(ctx, " apple ")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.ExactMatch != nil || len(res.CloseMatches) != 2 {
		t.Errorf("results = %+v", res)
	}
	if api.queries[0] != "apple" {
		t.Errorf("query = %q, want trimmed", api.queries[0])
	}

	res, err = repo.Search(ctx, "   ")
	if err != nil || !res.Empty() || res.CloseMatches == nil {
		t.Errorf("blank query = %+v, %v", res, err)
	}
	if len(api.queries) != 1 {
		t.Error("blank query should not reach the API")
	}
}

func TestHistoryWithoutArchive(t *testing.T) {
	repo := NewStockRepository(&fakeAPI{}, mapper.New(time.UTC, 4), nil, discardLogger())
	g, err := repo.History(context.Background(), "AAPL", time.Now())
	if err != nil || g.Nodes == nil || len(g.Nodes) != 0 {
		t.Errorf("History = %+v, %v", g, err)
	}
}

func newWatchlist(t *testing.T, mirror broker.Mirror) *WatchlistRepository {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewWatchlistRepository(st, live.NewFeed(), mirror, discardLogger())
}

func recvList(t *testing.T, ch <-chan []domain.Stock) []domain.Stock {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watchlist")
	}
	return nil
}

func TestWatchlistAddPublishes(t *testing.T) {
	mirror := broker.NewMemoryMirror()
	repo := newWatchlist(t, mirror)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := repo.Watch(ctx)
	if got := recvList(t, ch); len(got) != 0 {
		t.Fatalf("initial list = %+v", got)
	}

	added, err := repo.AddSummary(ctx, domain.Summary{Title: "Apple Inc", Symbol: "AAPL", Exchange: "NASDAQ"})
	if err != nil || !added {
		t.Fatalf("AddSummary = %v, %v", added, err)
	}
	got := recvList(t, ch)
	if len(got) != 1 || got[0].Name != "Apple Inc" || got[0].Symbol != "AAPL" || got[0].Exchange != "NASDAQ" {
		t.Errorf("published list = %+v", got)
	}

	// Duplicate symbol: nothing changes, nothing is published.
	added, err = repo.Add(ctx, domain.Stock{Name: "Other", Symbol: "aapl", Exchange: "NYSE"})
	if err != nil || added {
		t.Errorf("duplicate Add = %v, %v", added, err)
	}
	list, _ := repo.List(ctx)
	if len(list) != 1 || list[0].Name != "Apple Inc" {
		t.Errorf("list after duplicate = %+v", list)
	}

	syms, _ := mirror.Symbols(ctx)
	if len(syms) != 1 || syms[0] != "AAPL" {
		t.Errorf("mirror = %v", syms)
	}
}

func TestWatchlistRemove(t *testing.T) {
	mirror := broker.NewMemoryMirror()
	repo := newWatchlist(t, mirror)
	ctx := context.Background()

	repo.Add(ctx, domain.Stock{Name: "Apple Inc", Symbol: "AAPL", Exchange: "NASDAQ"})
	repo.Add(ctx, domain.Stock{Name: "Microsoft Corp", Symbol: "MSFT", Exchange: "NASDAQ"})

	removed, err := repo.Remove(ctx, "aapl")
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	if ok, _ := repo.Contains(ctx, "AAPL"); ok {
		t.Error("AAPL still tracked after Remove")
	}
	if _, err := repo.Get(ctx, "AAPL"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get after remove: %v", err)
	}
	snap := repo.Feed().Snapshot()
	if len(snap) != 1 || snap[0].Symbol != "MSFT" {
		t.Errorf("feed snapshot = %+v", snap)
	}

	removed, err = repo.Remove(ctx, "AAPL")
	if err != nil || removed {
		t.Errorf("second Remove = %v, %v", removed, err)
	}
	syms, _ := mirror.Symbols(ctx)
	if len(syms) != 1 || syms[0] != "MSFT" {
		t.Errorf("mirror = %v", syms)
	}
}

type failingMirror struct{ broker.MemoryMirror }

func (failingMirror) Add(context.Context, string) error { return errors.New("mirror down") }

func TestWatchlistMirrorFailureDoesNotBlock(t *testing.T) {
	repo := newWatchlist(t, &failingMirror{})
	added, err := repo.Add(context.Background(), domain.Stock{Name: "Apple Inc", Symbol: "AAPL", Exchange: "NASDAQ"})
	if err != nil || !added {
		t.Errorf("Add with failing mirror = %v, %v", added, err)
	}
}

func TestWatchlistRefresh(t *testing.T) {
	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	st.InsertStock(context.Background(), domain.Stock{Name: "Apple Inc", Symbol: "AAPL", Exchange: "NASDAQ"})

	repo := NewWatchlistRepository(st, live.NewFeed(), nil, discardLogger())
	if err := repo.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if snap := repo.Feed().Snapshot(); len(snap) != 1 {
		t.Errorf("snapshot after refresh = %+v", snap)
	}
}

func TestWatchlistSyncMirror(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	st.InsertStock(ctx, domain.Stock{Name: "Apple Inc", Symbol: "AAPL", Exchange: "NASDAQ"})
	st.InsertStock(ctx, domain.Stock{Name: "Microsoft Corp", Symbol: "MSFT", Exchange: "NASDAQ"})

	mirror := broker.NewMemoryMirror()
	mirror.Add(ctx, "MSFT")
	mirror.Add(ctx, "TSLA")

	repo := NewWatchlistRepository(st, live.NewFeed(), mirror, discardLogger())
	added, err := repo.SyncMirror(ctx)
	if err != nil {
		t.Fatalf("SyncMirror: %v", err)
	}
	if len(added) != 1 || added[0] != "AAPL" {
		t.Errorf("added = %v, want [AAPL]", added)
	}
	got, _ := mirror.Symbols(ctx)
	if strings.Join(got, ",") != "AAPL,MSFT,TSLA" {
		t.Errorf("mirror symbols = %v", got)
	}

	if added, err := NewWatchlistRepository(st, live.NewFeed(), nil, discardLogger()).SyncMirror(ctx); err != nil || added != nil {
		t.Errorf("SyncMirror without mirror = %v, %v", added, err)
	}
}

// gatedStore pauses the first ListStocks call until release is closed.
type gatedStore struct {
	*store.SQLiteStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) ListStocks(ctx context.Context) ([]domain.Stock, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.SQLiteStore.ListStocks(ctx)
}

func TestWatchlistConcurrentAddsConverge(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	gated := &gatedStore{SQLiteStore: st, entered: make(chan struct{}), release: make(chan struct{})}
	repo := NewWatchlistRepository(gated, live.NewFeed(), nil, discardLogger())

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	add := func(s domain.Stock) {
		defer wg.Done()
		if _, err := repo.Add(ctx, s); err != nil {
			errs <- err
		}
	}

	wg.Add(1)
	go add(domain.Stock{Name: "Apple Inc", Symbol: "AAPL", Exchange: "NASDAQ"})
	select {
	case <-gated.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first refresh never started")
	}

	// The second add starts while the first is still between its insert
	// and its publish.
	wg.Add(1)
	go add(domain.Stock{Name: "Microsoft Corp", Symbol: "MSFT", Exchange: "NASDAQ"})
	time.Sleep(50 * time.Millisecond)
	close(gated.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Add: %v", err)
	}

	want, _ := st.ListStocks(ctx)
	snap := repo.Feed().Snapshot()
	if len(want) != 2 || len(snap) != len(want) {
		t.Fatalf("store has %d rows, feed snapshot has %d", len(want), len(snap))
	}
	for i := range want {
		if snap[i].Symbol != want[i].Symbol {
			t.Errorf("snapshot[%d] = %s, store has %s", i, snap[i].Symbol, want[i].Symbol)
		}
	}
}
