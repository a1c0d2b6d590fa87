package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stockwatch/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var (
	_ WatchlistStore  = (*SQLiteStore)(nil)
	_ PreferenceStore = (*SQLiteStore)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS stocks (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	name     TEXT    NOT NULL,
	symbol   TEXT    NOT NULL UNIQUE,
	exchange TEXT    NOT NULL,
	added_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS preferences (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// SQLiteStore implements WatchlistStore backed by a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates
// the schema, and returns a ready-to-use SQLiteStore. ":memory:" opens a
// private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection serialises writers and keeps :memory: databases
	// from being split across connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (s *SQLiteStore) addedAt(stock domain.Stock) int64 {
	if !stock.AddedAt.IsZero() {
		return stock.AddedAt.UnixMilli()
	}
	return s.now().UnixMilli()
}

// InsertStock inserts a stock, ignoring the insert when the symbol exists.
func (s *SQLiteStore) InsertStock(ctx context.Context, stock domain.Stock) (bool, error) {
	symbol := normalizeSymbol(stock.Symbol)
	if symbol == "" {
		return false, errors.New("store: empty symbol")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO stocks (name, symbol, exchange, added_at) VALUES (?, ?, ?, ?)`,
		stock.Name, symbol, stock.Exchange, s.addedAt(stock))
	if err != nil {
		return false, fmt.Errorf("inserting %s: %w", symbol, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpsertStock inserts a stock, replacing any row with the same symbol.
func (s *SQLiteStore) UpsertStock(ctx context.Context, stock domain.Stock) error {
	symbol := normalizeSymbol(stock.Symbol)
	if symbol == "" {
		return errors.New("store: empty symbol")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO stocks (name, symbol, exchange, added_at) VALUES (?, ?, ?, ?)`,
		stock.Name, symbol, stock.Exchange, s.addedAt(stock))
	if err != nil {
		return fmt.Errorf("upserting %s: %w", symbol, err)
	}
	return nil
}

// ListStocks returns all stocks ordered by id.
func (s *SQLiteStore) ListStocks(ctx context.Context) ([]domain.Stock, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, symbol, exchange, added_at FROM stocks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing stocks: %w", err)
	}
	defer rows.Close()

	stocks := []domain.Stock{}
	for rows.Next() {
		st, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		stocks = append(stocks, *st)
	}
	return stocks, rows.Err()
}

// GetStock returns a single stock by symbol.
func (s *SQLiteStore) GetStock(ctx context.Context, symbol string) (*domain.Stock, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, symbol, exchange, added_at FROM stocks WHERE symbol = ?`,
		normalizeSymbol(symbol))
	st, err := scanStock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return st, err
}

// DeleteStock removes a stock by symbol.
func (s *SQLiteStore) DeleteStock(ctx context.Context, symbol string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM stocks WHERE symbol = ?`, normalizeSymbol(symbol))
	if err != nil {
		return false, fmt.Errorf("deleting %s: %w", symbol, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStock(sc scanner) (*domain.Stock, error) {
	var (
		st      domain.Stock
		addedAt int64
	)
	if err := sc.Scan(&st.ID, &st.Name, &st.Symbol, &st.Exchange, &addedAt); err != nil {
		return nil, err
	}
	st.AddedAt = time.UnixMilli(addedAt).UTC()
	return &st, nil
}

// GetPreference returns the value stored under key, or ErrNotFound.
func (s *SQLiteStore) GetPreference(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading preference %s: %w", key, err)
	}
	return value, nil
}

// SetPreference stores value under key, replacing any previous value.
func (s *SQLiteStore) SetPreference(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO preferences (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("writing preference %s: %w", key, err)
	}
	return nil
}
