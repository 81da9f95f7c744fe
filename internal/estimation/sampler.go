package estimation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"agegate/internal/estimation/metrics"
	"agegate/internal/policy"
)

// Sampler turns frames into age samples on a fixed tick.
//
// The latest sample lives in a single atomically swapped slot. Each processed
// tick is also offered on a capacity-one channel; an unread tick is replaced
// by the newer one, so readers never see stale backlog.
type Sampler struct {
	source    FrameSource
	estimator Estimator
	policy    policy.Policy
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	latest atomic.Pointer[AgeSample]
	ticks  chan Tick

	// failures is only touched by the goroutine running Step.
	failures int

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a Sampler.
type Option func(*Sampler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sampler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sampler) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sampler) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an idle sampler. The policy must already be validated.
func New(source FrameSource, estimator Estimator, p policy.Policy, opts ...Option) (*Sampler, error) {
	if source == nil {
		return nil, errors.New("frame source is required")
	}
	if estimator == nil {
		return nil, errors.New("estimator is required")
	}
	if p.SamplingInterval <= 0 {
		return nil, errors.New("sampling interval must be positive")
	}
	s := &Sampler{
		source:    source,
		estimator: estimator,
		policy:    p,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
		ticks:     make(chan Tick, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start opens the frame source and launches the tick loop. A source that
// cannot be opened yields ErrDeviceUnavailable. A sampler runs at most once.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return ErrAlreadyStarted
	}
	if err := s.source.Open(ctx); err != nil {
		s.logger.ErrorContext(ctx, "frame source unavailable", "error", err)
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	s.started = true

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.loop(loopCtx)
	return nil
}

// Stop halts the loop, waits for it to exit, releases the frame source and
// discards the latest sample. Safe to call any number of times, including
// before Start.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	cancel := s.cancel
	s.mu.Unlock()

	if !started {
		return
	}
	cancel()
	<-s.done
	if err := s.source.Close(); err != nil {
		s.logger.Warn("failed to release frame source", "error", err)
	}
	s.latest.Store(nil)
}

// Latest returns the most recent sample, if a face is currently seen.
func (s *Sampler) Latest() (AgeSample, bool) {
	p := s.latest.Load()
	if p == nil {
		return AgeSample{}, false
	}
	return *p, true
}

// Ticks delivers the most recent unread tick. The channel is never closed.
func (s *Sampler) Ticks() <-chan Tick {
	return s.ticks
}

func (s *Sampler) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.policy.SamplingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick, ok := s.Step(ctx)
			if !ok {
				continue
			}
			// a tick computed while stopping must not repopulate the slot
			if ctx.Err() != nil {
				return
			}
			s.publish(tick)
			if tick.Err != nil {
				return
			}
		}
	}
}

// Step runs one sampling iteration and updates the latest slot. ok is false
// when the tick was skipped (no frame, or a tolerated estimator error). Step
// must not run concurrently with the loop; tests call it on an unstarted
// sampler.
func (s *Sampler) Step(ctx context.Context) (Tick, bool) {
	frame, ok := s.source.Next()
	if !ok {
		s.metrics.IncrementMissedFrame()
		return Tick{}, false
	}

	start := s.now()
	defer func() { s.metrics.ObserveTickLatency(s.now().Sub(start)) }()

	faces, err := s.estimator.DetectFaces(ctx, frame)
	if err != nil {
		return s.failure(ctx, "detect", err)
	}
	if len(faces) == 0 {
		s.failures = 0
		s.latest.Store(nil)
		s.metrics.IncrementTick(string(SignalNoFace))
		return Tick{Signal: SignalNoFace, At: start}, true
	}

	face, _ := SelectPrimary(faces)
	bracket, err := s.estimator.ClassifyAge(ctx, frame, face)
	if err != nil {
		return s.failure(ctx, "classify", err)
	}
	sample, err := SampleFor(s.policy, bracket, start)
	if err != nil {
		return s.failure(ctx, "classify", err)
	}

	s.failures = 0
	s.latest.Store(&sample)
	signal := SignalFor(s.policy, sample)
	s.metrics.IncrementTick(string(signal))
	return Tick{Signal: signal, Sample: &sample, Faces: len(faces), At: start}, true
}

func (s *Sampler) failure(ctx context.Context, stage string, err error) (Tick, bool) {
	s.metrics.IncrementEstimatorError(stage)
	s.failures++
	if s.failures < s.policy.MaxEstimatorFailures {
		s.logger.DebugContext(ctx, "estimator error, skipping tick",
			"stage", stage,
			"consecutive", s.failures,
			"error", err,
		)
		return Tick{}, false
	}
	s.logger.ErrorContext(ctx, "estimator failing repeatedly, giving up",
		"stage", stage,
		"consecutive", s.failures,
		"error", err,
	)
	s.latest.Store(nil)
	return Tick{Err: fmt.Errorf("%w: %w", ErrDeviceUnavailable, err), At: s.now()}, true
}

func (s *Sampler) publish(t Tick) {
	select {
	case s.ticks <- t:
		return
	default:
	}
	// drop the unread tick and replace it
	select {
	case <-s.ticks:
	default:
	}
	select {
	case s.ticks <- t:
	default:
	}
}
