package memory

import (
	"context"
	"sync"

	"agegate/pkg/platform/events"
)

// InMemoryStore keeps events per run. Used by tests and single-process deployments.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]events.Event
	order  []events.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]events.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string][]events.Event)
	s.order = nil
}

func (s *InMemoryStore) Append(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.RunID] = append(s.events[event.RunID], event)
	s.order = append(s.order, event)
	return nil
}

func (s *InMemoryStore) ListByRun(_ context.Context, runID string) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Event{}, s.events[runID]...), nil
}

// ListRecent returns the last limit events in append order.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.order) - limit
	if start < 0 {
		start = 0
	}
	return append([]events.Event{}, s.order[start:]...), nil
}
