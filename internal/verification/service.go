package verification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"agegate/internal/cart"
	"agegate/internal/policy"
	"agegate/internal/verification/metrics"
	"agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
	"agegate/pkg/platform/events"
	"agegate/pkg/requestcontext"
)

const defaultRetention = 2 * time.Minute

// deps is shared by every run a Service creates.
type deps struct {
	policy     policy.Policy
	newSampler SamplerFactory
	lookup     DocumentLookup
	publisher  events.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
	hashKey    []byte
	now        func() time.Time
}

// Service owns the runs of this process: at most one active run per lane.
// Finished runs are kept for a retention window so the presentation layer
// can read the final snapshot, then forgotten.
type Service struct {
	deps        *deps
	defaultLane domain.LaneID
	retention   time.Duration
	exclusive   bool

	mu     sync.Mutex
	runs   map[domain.RunID]*Run
	active map[domain.LaneID]*Run
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.deps.publisher = p
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.deps.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.deps.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.deps.tracer = t
		}
	}
}

// WithHashKey sets the key for card id hashes in events.
func WithHashKey(key []byte) Option {
	return func(s *Service) {
		s.deps.hashKey = key
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.deps.now = now
		}
	}
}

// WithRetention sets how long finished runs stay readable.
func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.retention = d
		}
	}
}

// WithDefaultLane is used when the request carries no lane id.
func WithDefaultLane(lane domain.LaneID) Option {
	return func(s *Service) {
		if lane != "" {
			s.defaultLane = lane
		}
	}
}

// WithExclusiveDevice limits the process to one active run across all lanes,
// for deployments where every lane shares the same camera.
func WithExclusiveDevice() Option {
	return func(s *Service) {
		s.exclusive = true
	}
}

func NewService(p policy.Policy, newSampler SamplerFactory, lookup DocumentLookup, opts ...Option) (*Service, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if newSampler == nil {
		return nil, errors.New("sampler factory is required")
	}
	if lookup == nil {
		return nil, errors.New("document lookup is required")
	}
	s := &Service{
		deps: &deps{
			policy:     p,
			newSampler: newSampler,
			lookup:     lookup,
			publisher:  events.Nop{},
			logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
			tracer:     otel.Tracer("agegate/verification"),
			now:        time.Now,
		},
		defaultLane: "lane-1",
		retention:   defaultRetention,
		runs:        make(map[domain.RunID]*Run),
		active:      make(map[domain.LaneID]*Run),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Begin starts a run for a payment attempt on the request's lane.
func (s *Service) Begin(ctx context.Context, lines []cart.Line) (Snapshot, error) {
	return s.BeginWith(ctx, cart.StaticQuery(lines))
}

// BeginWith starts a run for whatever cart the query reports.
func (s *Service) BeginWith(ctx context.Context, query cart.Query) (Snapshot, error) {
	summary, err := query.Summary(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	lane := s.defaultLane
	if raw := requestcontext.LaneID(ctx); raw != "" {
		parsed, err := domain.ParseLaneID(raw)
		if err != nil {
			return Snapshot{}, err
		}
		lane = parsed
	}

	s.mu.Lock()
	s.pruneLocked()
	if current, ok := s.active[lane]; ok && !current.terminal() {
		s.mu.Unlock()
		return Snapshot{}, dErrors.New(dErrors.CodeConflict, "lane already has an active verification")
	}
	if s.exclusive {
		for other, current := range s.active {
			if !current.terminal() {
				s.mu.Unlock()
				return Snapshot{}, dErrors.New(dErrors.CodeConflict, "camera is in use by "+other.String())
			}
		}
	}
	run := newRun(domain.NewRunID(), lane, summary, s.deps)
	s.runs[run.ID()] = run
	s.active[lane] = run
	s.mu.Unlock()

	return run.Start(ctx)
}

// Get returns the current snapshot of a run.
func (s *Service) Get(_ context.Context, id domain.RunID) (Snapshot, error) {
	run, err := s.find(id)
	if err != nil {
		return Snapshot{}, err
	}
	return run.Snapshot(), nil
}

func (s *Service) Confirm(ctx context.Context, id domain.RunID) (Snapshot, error) {
	run, err := s.find(id)
	if err != nil {
		return Snapshot{}, err
	}
	return run.Confirm(ctx)
}

func (s *Service) SubmitDocument(ctx context.Context, id domain.RunID, cardID string) (Snapshot, error) {
	run, err := s.find(id)
	if err != nil {
		return Snapshot{}, err
	}
	return run.SubmitDocument(ctx, cardID)
}

func (s *Service) Cancel(ctx context.Context, id domain.RunID) (Snapshot, error) {
	run, err := s.find(id)
	if err != nil {
		return Snapshot{}, err
	}
	return run.Cancel(ctx)
}

// Active returns the lane's running verification, if any.
func (s *Service) Active(_ context.Context, lane domain.LaneID) (Snapshot, bool) {
	s.mu.Lock()
	run, ok := s.active[lane]
	s.mu.Unlock()
	if !ok || run.terminal() {
		return Snapshot{}, false
	}
	return run.Snapshot(), true
}

// Shutdown aborts every active run with DEVICE_UNAVAILABLE so cameras are
// released before the process exits.
func (s *Service) Shutdown(ctx context.Context) {
	s.mu.Lock()
	runs := make([]*Run, 0, len(s.active))
	for _, run := range s.active {
		runs = append(runs, run)
	}
	s.mu.Unlock()

	for _, run := range runs {
		if _, err := run.abort(ctx, AbortDeviceUnavailable); err == nil {
			s.deps.logger.InfoContext(ctx, "run aborted on shutdown", "run_id", run.ID().String())
		}
	}
}

func (s *Service) find(id domain.RunID) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	run, ok := s.runs[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "verification not found")
	}
	return run, nil
}

func (s *Service) pruneLocked() {
	cutoff := s.deps.now().Add(-s.retention)
	for id, run := range s.runs {
		finishedAt, done := run.finished()
		if !done || finishedAt.After(cutoff) {
			continue
		}
		delete(s.runs, id)
		if s.active[run.Lane()] == run {
			delete(s.active, run.Lane())
		}
	}
}
