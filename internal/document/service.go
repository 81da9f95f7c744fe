package document

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"agegate/internal/document/metrics"
	dErrors "agegate/pkg/domain-errors"
	"agegate/pkg/platform/circuit"
	"agegate/pkg/platform/events"
	"agegate/pkg/platform/sentinel"
)

const defaultLookupTimeout = 5 * time.Second

// Service is the document lookup used by verification runs. It bounds each
// call with a timeout, guards the registry with a circuit breaker and maps
// every registry failure onto a ProviderError.
type Service struct {
	registry Registry
	name     string
	timeout  time.Duration
	breaker  *circuit.Breaker
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	hashKey  []byte
	now      func() time.Time
}

type Option func(*Service)

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		if b != nil {
			s.breaker = b
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHashKey sets the key used to hash card ids in logs and spans.
func WithHashKey(key []byte) Option {
	return func(s *Service) {
		s.hashKey = key
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wraps registry. name identifies the backend in errors and logs.
func NewService(registry Registry, name string, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		name:     name,
		timeout:  defaultLookupTimeout,
		breaker:  circuit.New("document-registry", circuit.WithFailureThreshold(3), circuit.WithCooldown(5*time.Second)),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:   otel.Tracer("agegate/document"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup resolves a raw card id. An unknown card yields Found=false with a
// nil error. A blank id is a validation error and never reaches the
// registry. Cancellation of ctx abandons the call and returns ctx.Err().
func (s *Service) Lookup(ctx context.Context, rawCardID string) (Result, error) {
	cardID := NormalizeCardID(rawCardID)
	if cardID == "" {
		return Result{}, dErrors.New(dErrors.CodeValidation, "card id is required")
	}
	cardHash := events.HashCardID(s.hashKey, cardID)

	ctx, span := s.tracer.Start(ctx, "document.lookup",
		trace.WithAttributes(
			attribute.String("document.registry", s.name),
			attribute.String("document.card_hash", cardHash),
		))
	defer span.End()

	if !s.breaker.Allow() {
		err := NewProviderError(ErrorOutage, s.name, "circuit open", sentinel.ErrUnavailable)
		s.fail(ctx, span, err, cardHash)
		return Result{CardID: cardID}, err
	}

	start := s.now()
	lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
	record, err := s.registry.Resolve(lookupCtx, cardID)
	cancel()
	elapsed := s.now().Sub(start)
	s.metrics.ObserveLookup(elapsed)

	result := Result{CardID: cardID, Latency: elapsed}

	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrNotFound):
		s.success()
		s.metrics.IncrementLookup("unknown")
		span.SetAttributes(attribute.Bool("document.found", false))
		s.logger.InfoContext(ctx, "document not found",
			"registry", s.name,
			"card_hash", cardHash,
			"latency_ms", elapsed.Milliseconds(),
		)
		return result, nil
	case ctx.Err() != nil:
		s.breaker.Release()
		span.SetStatus(codes.Error, "abandoned")
		return result, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sentinel.ErrTimeout):
		perr := NewProviderError(ErrorTimeout, s.name, "lookup timed out", err)
		s.failure()
		s.fail(ctx, span, perr, cardHash)
		return result, perr
	default:
		perr := NewProviderError(ErrorOutage, s.name, "lookup failed", err)
		s.failure()
		s.fail(ctx, span, perr, cardHash)
		return result, perr
	}

	if record == nil || record.FullName == "" || record.Age < 0 {
		perr := NewProviderError(ErrorBadData, s.name, "registry returned an incomplete record", nil)
		s.failure()
		s.fail(ctx, span, perr, cardHash)
		return result, perr
	}

	s.success()
	s.metrics.IncrementLookup("found")
	span.SetAttributes(attribute.Bool("document.found", true))
	s.logger.InfoContext(ctx, "document resolved",
		"registry", s.name,
		"card_hash", cardHash,
		"latency_ms", elapsed.Milliseconds(),
	)
	identity := *record
	result.Found = true
	result.Identity = &identity
	return result, nil
}

func (s *Service) success() {
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.metrics.SetCircuitOpen(false)
		s.logger.Info("document registry circuit closed", "registry", s.name)
	}
}

func (s *Service) failure() {
	if _, change := s.breaker.RecordFailure(); change.Opened {
		s.metrics.SetCircuitOpen(true)
		s.logger.Warn("document registry circuit opened", "registry", s.name)
	}
}

func (s *Service) fail(ctx context.Context, span trace.Span, err *ProviderError, cardHash string) {
	s.metrics.IncrementLookup("error")
	s.metrics.IncrementFailure(string(err.Category))
	span.RecordError(err)
	span.SetStatus(codes.Error, string(err.Category))
	s.logger.WarnContext(ctx, "document lookup failed",
		"registry", s.name,
		"card_hash", cardHash,
		"category", err.Category,
		"error", err,
	)
}
