package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"stockwatch/internal/domain"
)

// Compile-time interface check.
var _ GraphStore = (*ParquetStore)(nil)

// ParquetStore implements GraphStore using Parquet files on disk. Writes
// are serialised so that concurrent merges into one day file keep every
// point.
type ParquetStore struct {
	DataDir string

	mu sync.Mutex
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// GraphRecord is the Parquet schema for one archived price point.
type GraphRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Price     float64 `parquet:"price"`
	Label     string  `parquet:"label"`
}

// ---------------------------------------------------------------------------
// GraphStore implementation
// ---------------------------------------------------------------------------

// WriteGraph writes nodes to Parquet files organized by symbol and UTC day:
//
//	<DataDir>/graphs/<SYMBOL>/<YYYY-MM-DD>.parquet
//
// Existing points with the same timestamp are replaced.
func (s *ParquetStore) WriteGraph(_ context.Context, symbol string, nodes []domain.GraphNode) error {
	if len(nodes) == 0 {
		return nil
	}
	symbol = strings.ToUpper(symbol)
	if !ValidSymbol(symbol) {
		return fmt.Errorf("writing graph for %q: %w", symbol, ErrInvalidSymbol)
	}

	groups := make(map[string][]GraphRecord)
	for _, n := range nodes {
		if n.Time.IsZero() {
			continue
		}
		day := n.Time.UTC().Format("2006-01-02")
		groups[day] = append(groups[day], GraphRecord{
			Symbol:    symbol,
			Timestamp: n.Time.UnixMilli(),
			Price:     n.Price,
			Label:     n.Date,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for day, records := range groups {
		t, _ := time.Parse("2006-01-02", day)
		path := s.graphPath(symbol, t)

		existing, err := readParquetFile[GraphRecord](path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("reading graph for %s/%s: %w", symbol, day, err)
		}
		merged := mergeGraphRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing graph for %s/%s: %w", symbol, day, err)
		}
	}
	return nil
}

// ReadGraph reads the archived nodes for symbol on the given UTC day.
// A day with no archive yields an empty slice.
func (s *ParquetStore) ReadGraph(_ context.Context, symbol string, day time.Time) ([]domain.GraphNode, error) {
	if !ValidSymbol(symbol) {
		return nil, fmt.Errorf("reading graph for %q: %w", symbol, ErrInvalidSymbol)
	}
	path := s.graphPath(symbol, day)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return []domain.GraphNode{}, nil
	}
	records, err := readParquetFile[GraphRecord](path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	nodes := make([]domain.GraphNode, 0, len(records))
	for _, r := range records {
		nodes = append(nodes, domain.GraphNode{
			Price: r.Price,
			Date:  r.Label,
			Time:  time.UnixMilli(r.Timestamp).UTC(),
		})
	}
	return nodes, nil
}

// ListDays lists the archived days for symbol, oldest first.
func (s *ParquetStore) ListDays(_ context.Context, symbol string) ([]string, error) {
	if !ValidSymbol(symbol) {
		return nil, fmt.Errorf("listing days for %q: %w", symbol, ErrInvalidSymbol)
	}
	dir := filepath.Join(s.DataDir, "graphs", strings.ToUpper(symbol))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	days := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".parquet") {
			continue
		}
		day := strings.TrimSuffix(e.Name(), ".parquet")
		if len(day) == 10 && day[4] == '-' && day[7] == '-' {
			days = append(days, day)
		}
	}
	sort.Strings(days)
	return days, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// graphPath returns the filesystem path for a graph Parquet file. symbol
// must already have passed ValidSymbol.
func (s *ParquetStore) graphPath(symbol string, t time.Time) string {
	date := t.UTC().Format("2006-01-02")
	return filepath.Join(s.DataDir, "graphs", strings.ToUpper(symbol), date+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

// writeParquetFile writes records to a temporary file next to path and
// renames it into place, so readers never see a partly written file.
func writeParquetFile[T any](path string, records []T) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := parquet.Write(tmp, records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// mergeGraphRecords deduplicates records by timestamp, preferring incoming
// records over existing ones. Results are sorted by timestamp.
func mergeGraphRecords(existing, incoming []GraphRecord) []GraphRecord {
	seen := make(map[int64]GraphRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]GraphRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
