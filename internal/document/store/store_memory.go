package store

import (
	"context"
	"sync"
	"time"

	"agegate/internal/document"
	"agegate/pkg/platform/sentinel"
)

// DefaultLatency approximates a physical card read.
const DefaultLatency = 1500 * time.Millisecond

// InMemoryRegistry is a process-local registry with a simulated read delay.
type InMemoryRegistry struct {
	mu      sync.RWMutex
	cards   map[string]document.IdentityRecord
	latency time.Duration
}

// NewInMemoryRegistry creates an empty registry. A zero latency answers
// immediately.
func NewInMemoryRegistry(latency time.Duration) *InMemoryRegistry {
	return &InMemoryRegistry{
		cards:   make(map[string]document.IdentityRecord),
		latency: latency,
	}
}

// NewSeededRegistry creates a registry holding the demo cards.
func NewSeededRegistry(latency time.Duration) *InMemoryRegistry {
	r := NewInMemoryRegistry(latency)
	for _, c := range document.DemoCards() {
		r.cards[document.NormalizeCardID(c.ID)] = c.Identity
	}
	return r
}

// Put stores or replaces a card.
func (r *InMemoryRegistry) Put(_ context.Context, cardID string, record document.IdentityRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cards[cardID] = record
	return nil
}

// Resolve waits out the configured latency, then looks up cardID. The wait
// ends early when ctx is done.
func (r *InMemoryRegistry) Resolve(ctx context.Context, cardID string) (*document.IdentityRecord, error) {
	if r.latency > 0 {
		timer := time.NewTimer(r.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.cards[cardID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &record, nil
}

// Len reports the number of stored cards.
func (r *InMemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cards)
}
