// Package live provides the push-based watchlist feed: an in-memory copy of
// the current watchlist with pub/sub, plus gRPC streaming of the same feed.
package live

import (
	"context"
	"sync"

	"stockwatch/internal/domain"
)

// Feed holds the latest watchlist and fans it out to subscribers. Every
// subscriber receives the full list, never a diff.
type Feed struct {
	mu     sync.RWMutex
	latest []domain.Stock

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan []domain.Stock
}

// NewFeed creates a Feed whose initial list is empty.
func NewFeed() *Feed {
	return &Feed{
		latest: []domain.Stock{},
		subs:   make(map[int]chan []domain.Stock),
	}
}

// Snapshot returns a copy of the current list.
func (f *Feed) Snapshot() []domain.Stock {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return clone(f.latest)
}

// Publish replaces the current list and notifies every subscriber. The
// update and the fan-out happen under subsMu, so concurrent publishes reach
// subscribers in the same order they replace the list.
func (f *Feed) Publish(stocks []domain.Stock) {
	f.subsMu.Lock()
	defer f.subsMu.Unlock()

	f.mu.Lock()
	f.latest = clone(stocks)
	f.mu.Unlock()

	for _, ch := range f.subs {
		offer(ch, clone(stocks))
	}
}

// Subscribe returns a channel that first receives the current list and then
// every published list. A slow subscriber loses intermediate lists but
// always ends up with the latest one.
func (f *Feed) Subscribe(bufSize int) (int, <-chan []domain.Stock) {
	if bufSize < 1 {
		bufSize = 1
	}
	ch := make(chan []domain.Stock, bufSize)

	f.subsMu.Lock()
	defer f.subsMu.Unlock()
	id := f.nextSubID
	f.nextSubID++
	f.subs[id] = ch
	ch <- f.Snapshot()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (f *Feed) Unsubscribe(id int) {
	f.subsMu.Lock()
	if ch, ok := f.subs[id]; ok {
		delete(f.subs, id)
		close(ch)
	}
	f.subsMu.Unlock()
}

// Watch subscribes until ctx is done, then unsubscribes and closes the
// returned channel.
func (f *Feed) Watch(ctx context.Context) <-chan []domain.Stock {
	id, ch := f.Subscribe(1)
	go func() {
		<-ctx.Done()
		f.Unsubscribe(id)
	}()
	return ch
}

// Subscribers returns the number of active subscribers.
func (f *Feed) Subscribers() int {
	f.subsMu.Lock()
	defer f.subsMu.Unlock()
	return len(f.subs)
}

// offer sends v without blocking. When the buffer is full the oldest queued
// list is dropped to make room. Must be called with subsMu held so that no
// other sender can refill the slot.
func offer(ch chan []domain.Stock, v []domain.Stock) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

func clone(stocks []domain.Stock) []domain.Stock {
	out := make([]domain.Stock, len(stocks))
	copy(out, stocks)
	return out
}
