package broker

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Compile-time interface check.
var _ Mirror = (*MemoryMirror)(nil)

// MemoryMirror keeps the mirrored watchlist in memory without making
// external API calls.
type MemoryMirror struct {
	mu      sync.Mutex
	symbols map[string]bool
}

// NewMemoryMirror creates an empty MemoryMirror.
func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{symbols: make(map[string]bool)}
}

// Name returns "memory".
func (m *MemoryMirror) Name() string {
	return "memory"
}

// Add records symbol.
func (m *MemoryMirror) Add(_ context.Context, symbol string) error {
	m.mu.Lock()
	m.symbols[strings.ToUpper(symbol)] = true
	m.mu.Unlock()
	return nil
}

// Remove forgets symbol.
func (m *MemoryMirror) Remove(_ context.Context, symbol string) error {
	m.mu.Lock()
	delete(m.symbols, strings.ToUpper(symbol))
	m.mu.Unlock()
	return nil
}

// Symbols returns the recorded symbols, sorted.
func (m *MemoryMirror) Symbols(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.symbols))
	for s := range m.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}
