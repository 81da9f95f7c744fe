// Package publisher emits verification events to a store, synchronously or
// through a bounded buffer drained by a background goroutine.
package publisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"agegate/pkg/platform/events"
)

// ErrBufferFull is returned by Emit in async mode when the buffer is full.
var ErrBufferFull = errors.New("event buffer full")

// Lister is implemented by stores that can return a run's history.
type Lister interface {
	ListByRun(ctx context.Context, runID string) ([]events.Event, error)
}

// Publisher implements events.Publisher over an events.Store.
type Publisher struct {
	store  events.Store
	logger *slog.Logger
	now    func() time.Time

	buffer int
	queue  chan events.Event
	wg     sync.WaitGroup
	once   sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking with a buffer of n events.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPublisher(store events.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer > 0 {
		p.queue = make(chan events.Event, p.buffer)
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit stamps the event and hands it to the store.
func (p *Publisher) Emit(ctx context.Context, event events.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if p.queue == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.queue <- event:
		return nil
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.queue <- event:
		return nil
	default:
		p.logger.WarnContext(ctx, "event dropped, buffer full",
			"type", event.Type,
			"run_id", event.RunID,
		)
		return ErrBufferFull
	}
}

// List returns a run's events if the store supports listing.
func (p *Publisher) List(ctx context.Context, runID string) ([]events.Event, error) {
	l, ok := p.store.(Lister)
	if !ok {
		return nil, errors.New("event store does not support listing")
	}
	return l.ListByRun(ctx, runID)
}

// Close drains buffered events. Safe to call more than once.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.queue != nil {
			close(p.queue)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.store.Append(ctx, event); err != nil {
			p.logger.ErrorContext(ctx, "failed to append event",
				"type", event.Type,
				"run_id", event.RunID,
				"error", err,
			)
		}
		cancel()
	}
}
