package verification

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"agegate/internal/cart"
	"agegate/internal/document"
	"agegate/internal/estimation"
	"agegate/internal/policy"
	"agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
	"agegate/pkg/platform/events"
	"agegate/pkg/requestcontext"
)

// Run is one verification attempt for one cart. All methods are safe for
// concurrent use. Once terminal, the outcome never changes.
type Run struct {
	id   domain.RunID
	lane domain.LaneID
	cart cart.Summary
	deps *deps

	// emitMu keeps events in transition order; taken before mu is released.
	emitMu sync.Mutex

	mu             sync.Mutex
	state          State
	status         Status
	signal         estimation.Signal
	sampler        Sampler
	stopWatch      context.CancelFunc
	sample         *estimation.AgeSample
	lookupPending  bool
	lookupCancel   context.CancelFunc
	lastUnknown    bool
	lookupAttempts int
	outcome        *Outcome
	startedAt      time.Time
	finishedAt     time.Time
	span           trace.Span
	done           chan struct{}
}

func newRun(id domain.RunID, lane domain.LaneID, summary cart.Summary, d *deps) *Run {
	return &Run{
		id:     id,
		lane:   lane,
		cart:   summary,
		deps:   d,
		state:  StateIdle,
		status: statusReady,
		done:   make(chan struct{}),
	}
}

func (r *Run) ID() domain.RunID { return r.id }

func (r *Run) Lane() domain.LaneID { return r.lane }

// Done is closed when the run reaches TERMINAL.
func (r *Run) Done() <-chan struct{} { return r.done }

// Outcome returns the terminal value, if any.
func (r *Run) Outcome() (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcome == nil {
		return Outcome{}, false
	}
	return *r.outcome, true
}

// Start activates the run. A cart without restricted items is approved at
// once without touching the camera. A camera that cannot be started aborts
// the run with DEVICE_UNAVAILABLE; that is an outcome, not an error.
func (r *Run) Start(ctx context.Context) (Snapshot, error) {
	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return r.Snapshot(), dErrors.New(dErrors.CodeInvalidState, "run already started")
	}
	r.startedAt = r.deps.now()
	if t, ok := requestcontext.Time(ctx); ok {
		r.startedAt = t
	}
	terminal := requestcontext.TerminalInfo(ctx)
	_, r.span = r.deps.tracer.Start(context.WithoutCancel(ctx), "verification.run",
		trace.WithAttributes(
			attribute.String("run.id", r.id.String()),
			attribute.String("run.lane", r.lane.String()),
			attribute.Bool("cart.restricted", r.cart.HasRestrictedItem),
			attribute.String("terminal.name", terminal.Name),
		))
	r.deps.metrics.IncrementRunStarted(r.cart.HasRestrictedItem)
	r.deps.logger.InfoContext(ctx, "verification run started",
		"run_id", r.id.String(),
		"lane_id", r.lane.String(),
		"restricted", r.cart.HasRestrictedItem,
		"item_count", r.cart.ItemCount,
		"client_ip", requestcontext.ClientIP(ctx),
		"terminal", terminal.Name,
		"terminal_version", terminal.Version,
		"terminal_os", terminal.OS,
	)
	pending := []events.Event{r.event(events.TypeRunStarted)}

	if !r.cart.HasRestrictedItem {
		pending = append(pending, r.terminate(ctx, ApprovedNone())...)
		r.unlockAndEmit(ctx, pending)
		return r.Snapshot(), nil
	}

	sampler, err := r.deps.newSampler()
	if err == nil {
		if err = sampler.Start(ctx); err != nil {
			sampler.Stop()
		}
	}
	if err != nil {
		r.deps.logger.ErrorContext(ctx, "camera unavailable",
			"run_id", r.id.String(),
			"error", err,
		)
		pending = append(pending, r.terminate(ctx, Aborted(AbortDeviceUnavailable))...)
		r.unlockAndEmit(ctx, pending)
		return r.Snapshot(), nil
	}

	r.sampler = sampler
	r.state = StateSampling
	pending = append(pending, r.setStatus(statusDetecting))
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.stopWatch = cancel
	go r.watch(watchCtx, sampler)

	r.unlockAndEmit(ctx, pending)
	return r.Snapshot(), nil
}

// Confirm is the operator's "decide now". In SAMPLING it reads the latest
// sample; with none the run aborts NO_FACE_DETECTED. In AWAITING_DOCUMENT it
// gives up after an unrecognized card (UNKNOWN_DOCUMENT).
func (r *Run) Confirm(ctx context.Context) (Snapshot, error) {
	r.mu.Lock()
	var (
		pending []events.Event
		err     error
	)
	switch r.state {
	case StateSampling:
		if sample, ok := r.sampler.Latest(); ok {
			pending = r.decide(ctx, sample)
		} else {
			pending = r.terminate(ctx, Aborted(AbortNoFaceDetected))
		}
	case StateAwaitingDocument:
		switch {
		case r.lookupPending:
			err = dErrors.New(dErrors.CodeInvalidState, "document lookup in progress")
		case !r.lastUnknown:
			err = dErrors.New(dErrors.CodeInvalidState, "scan an identity document first")
		default:
			pending = r.terminate(ctx, Aborted(AbortUnknownDocument))
		}
	default:
		err = dErrors.New(dErrors.CodeInvalidState, "nothing to confirm in state "+string(r.state))
	}
	r.unlockAndEmit(ctx, pending)
	return r.Snapshot(), err
}

// SubmitDocument looks up a scanned card and decides the run. It blocks for
// the lookup's latency. An unknown card leaves the run waiting for another
// scan. The lookup is only abandoned by Cancel, not by ctx.
func (r *Run) SubmitDocument(ctx context.Context, rawCardID string) (Snapshot, error) {
	cardID := document.NormalizeCardID(rawCardID)
	if cardID == "" {
		return r.Snapshot(), dErrors.New(dErrors.CodeValidation, "card id is required")
	}

	r.mu.Lock()
	if r.state != StateAwaitingDocument {
		state := r.state
		r.mu.Unlock()
		return r.Snapshot(), dErrors.New(dErrors.CodeInvalidState, "document not expected in state "+string(state))
	}
	if r.lookupPending {
		r.mu.Unlock()
		return r.Snapshot(), dErrors.New(dErrors.CodeInvalidState, "document lookup in progress")
	}
	cardHash := events.HashCardID(r.deps.hashKey, cardID)
	lookupCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.lookupPending = true
	r.lookupCancel = cancel
	r.lastUnknown = false
	r.lookupAttempts++
	attempt := r.lookupAttempts
	reading := r.setStatus(statusReadingCard)
	reading.CardIDHash = cardHash
	r.unlockAndEmit(ctx, []events.Event{reading})

	r.deps.logger.InfoContext(ctx, "document lookup started",
		"run_id", r.id.String(),
		"card_hash", cardHash,
		"attempt", attempt,
	)
	result, lookupErr := r.deps.lookup.Lookup(lookupCtx, cardID)
	cancel()

	r.mu.Lock()
	r.lookupPending = false
	r.lookupCancel = nil
	if r.state != StateAwaitingDocument {
		// cancelled while the lookup was in flight
		r.mu.Unlock()
		return r.Snapshot(), nil
	}

	var (
		pending []events.Event
		err     error
	)
	switch {
	case lookupErr != nil && dErrors.HasCode(lookupErr, dErrors.CodeValidation):
		r.status = statusPlaceCard
		err = lookupErr
	case lookupErr != nil:
		r.deps.logger.ErrorContext(ctx, "document lookup failed",
			"run_id", r.id.String(),
			"card_hash", cardHash,
			"category", document.GetCategory(lookupErr),
			"error", lookupErr,
		)
		pending = r.terminate(ctx, Aborted(AbortDeviceUnavailable))
	case !result.Found || result.Identity == nil:
		r.lastUnknown = true
		unknown := r.setStatus(statusCardUnknown)
		unknown.CardIDHash = cardHash
		pending = []events.Event{unknown}
		r.deps.logger.InfoContext(ctx, "document not recognized",
			"run_id", r.id.String(),
			"card_hash", cardHash,
			"attempt", r.lookupAttempts,
		)
	default:
		outcome, oerr := documentOutcome(r.deps.policy, *result.Identity)
		if oerr != nil {
			err = dErrors.Wrap(oerr, dErrors.CodeInternal, "failed to decide document outcome")
			break
		}
		pending = r.terminate(ctx, outcome)
		for i := range pending {
			pending[i].CardIDHash = cardHash
		}
	}
	r.unlockAndEmit(ctx, pending)
	return r.Snapshot(), err
}

// Cancel aborts the run with USER_CANCELLED from any non-terminal state. It
// stops sampling and abandons an in-flight lookup.
func (r *Run) Cancel(ctx context.Context) (Snapshot, error) {
	return r.abort(ctx, AbortUserCancelled)
}

func (r *Run) abort(ctx context.Context, reason AbortReason) (Snapshot, error) {
	r.mu.Lock()
	if r.state == StateTerminal {
		r.mu.Unlock()
		return r.Snapshot(), dErrors.New(dErrors.CodeInvalidState, "run already finished")
	}
	pending := r.terminate(ctx, Aborted(reason))
	r.unlockAndEmit(ctx, pending)
	return r.Snapshot(), nil
}

// Snapshot copies the run for the presentation layer.
func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		RunID:          r.id.String(),
		LaneID:         r.lane.String(),
		State:          r.state,
		Status:         r.status,
		Signal:         r.signal,
		Cart:           r.cart,
		LookupAttempts: r.lookupAttempts,
		LookupPending:  r.lookupPending,
		Actions:        r.actions(),
		StartedAt:      r.startedAt,
	}
	if r.state == StateSampling && r.sampler != nil {
		if sample, ok := r.sampler.Latest(); ok {
			snap.Sample = &sample
		}
	} else if r.sample != nil {
		sample := *r.sample
		snap.Sample = &sample
	}
	if r.outcome != nil {
		outcome := *r.outcome
		snap.Outcome = &outcome
		finished := r.finishedAt
		snap.FinishedAt = &finished
		if outcome.Approved() {
			snap.Receipt = &Receipt{ItemCount: r.cart.ItemCount, TotalAmount: r.cart.TotalAmount}
			if outcome.Identity != nil {
				snap.Receipt.VerifiedName = outcome.Identity.FullName
			}
		}
	}
	return snap
}

func (r *Run) terminal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateTerminal
}

func (r *Run) finished() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finishedAt, r.state == StateTerminal
}

// watch forwards sampler ticks and enforces the sampling timeout until the
// run leaves SAMPLING.
func (r *Run) watch(ctx context.Context, s Sampler) {
	var timeout <-chan time.Time
	if d := r.deps.policy.SamplingTimeout; d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-s.Ticks():
			r.onTick(ctx, tick)
		case <-timeout:
			r.onSamplingTimeout(ctx)
			return
		}
	}
}

func (r *Run) onTick(ctx context.Context, tick estimation.Tick) {
	r.mu.Lock()
	if r.state != StateSampling {
		r.mu.Unlock()
		return
	}
	var pending []events.Event
	switch {
	case tick.Err != nil:
		r.deps.logger.ErrorContext(ctx, "camera failed during sampling",
			"run_id", r.id.String(),
			"error", tick.Err,
		)
		pending = r.terminate(ctx, Aborted(AbortDeviceUnavailable))
	default:
		label := ""
		if tick.Sample != nil {
			label = tick.Sample.Label
		}
		next := cameraStatus(tick.Signal, label)
		if tick.Signal != r.signal || next != r.status {
			if tick.Signal != r.signal {
				r.deps.logger.DebugContext(ctx, "sampler signal changed",
					"run_id", r.id.String(),
					"signal", tick.Signal,
					"faces", tick.Faces,
				)
			}
			r.signal = tick.Signal
			pending = append(pending, r.setStatus(next))
		}
		if r.deps.policy.AutoDecide && tick.Sample != nil {
			pending = append(pending, r.decide(ctx, *tick.Sample)...)
		}
	}
	r.unlockAndEmit(ctx, pending)
}

func (r *Run) onSamplingTimeout(ctx context.Context) {
	r.mu.Lock()
	if r.state != StateSampling {
		r.mu.Unlock()
		return
	}
	r.deps.logger.InfoContext(ctx, "sampling timed out",
		"run_id", r.id.String(),
		"timeout", r.deps.policy.SamplingTimeout,
	)
	var pending []events.Event
	if sample, ok := r.sampler.Latest(); ok {
		pending = r.decide(ctx, sample)
	} else {
		pending = r.terminate(ctx, Aborted(AbortNoFaceDetected))
	}
	r.unlockAndEmit(ctx, pending)
}

// decide applies the camera thresholds to sample. Caller holds mu and the
// run is SAMPLING.
func (r *Run) decide(ctx context.Context, sample estimation.AgeSample) []events.Event {
	r.sample = &sample
	band := r.deps.policy.Classify(sample.RepresentativeAge)
	if band == policy.BandConfident {
		return r.terminate(ctx, ApprovedCamera())
	}

	r.releaseSampler()
	r.state = StateAwaitingDocument
	r.deps.metrics.IncrementEscalation()
	r.deps.logger.InfoContext(ctx, "document check required",
		"run_id", r.id.String(),
		"band", band.String(),
		"representative_age", sample.RepresentativeAge,
	)
	return []events.Event{r.setStatus(statusPlaceCard)}
}

// terminate sets the outcome once and releases every resource the run
// holds. Caller holds mu. Returns nil when already terminal.
func (r *Run) terminate(ctx context.Context, o Outcome) []events.Event {
	if r.state == StateTerminal {
		return nil
	}
	from := r.state
	r.state = StateTerminal
	r.outcome = &o
	r.finishedAt = r.deps.now()
	if r.lookupCancel != nil {
		r.lookupCancel()
		r.lookupCancel = nil
	}
	r.releaseSampler()
	close(r.done)

	statusEvent := r.setStatus(outcomeStatus(o))
	terminated := r.event(events.TypeRunTerminated)
	terminated.Outcome = o.Summary()

	duration := r.finishedAt.Sub(r.startedAt)
	r.deps.metrics.ObserveRunFinished(o.Label(), string(o.Kind), r.lookupAttempts, duration)
	r.deps.logger.InfoContext(ctx, "verification run terminated",
		"run_id", r.id.String(),
		"lane_id", r.lane.String(),
		"from_state", from,
		"outcome", o.Label(),
		"lookup_attempts", r.lookupAttempts,
		"duration_ms", duration.Milliseconds(),
	)
	if r.span != nil {
		r.span.SetAttributes(
			attribute.String("run.outcome", o.Label()),
			attribute.Int("run.lookup_attempts", r.lookupAttempts),
		)
		if o.AbortReason == AbortDeviceUnavailable {
			r.span.SetStatus(codes.Error, string(o.AbortReason))
		}
		r.span.End()
	}
	return []events.Event{statusEvent, terminated}
}

func (r *Run) releaseSampler() {
	if r.stopWatch != nil {
		r.stopWatch()
		r.stopWatch = nil
	}
	if r.sampler != nil {
		r.sampler.Stop()
		r.sampler = nil
	}
}

func (r *Run) setStatus(s Status) events.Event {
	r.status = s
	return r.event(events.TypeStatusChanged)
}

func (r *Run) event(t events.Type) events.Event {
	return events.Event{
		Type:           t,
		RunID:          r.id.String(),
		LaneID:         r.lane.String(),
		State:          string(r.state),
		Signal:         string(r.signal),
		Message:        r.status.Text,
		Severity:       r.status.Severity,
		LookupAttempts: r.lookupAttempts,
	}
}

func (r *Run) actions() []Action {
	switch r.state {
	case StateSampling:
		return []Action{ActionConfirm, ActionCancel}
	case StateAwaitingDocument:
		if r.lookupPending {
			return []Action{ActionCancel}
		}
		if r.lastUnknown {
			return []Action{ActionSubmitDocument, ActionConfirm, ActionCancel}
		}
		return []Action{ActionSubmitDocument, ActionCancel}
	default:
		return []Action{}
	}
}

// unlockAndEmit releases mu and publishes pending in order. emitMu is taken
// first so concurrent transitions cannot reorder their events.
func (r *Run) unlockAndEmit(ctx context.Context, pending []events.Event) {
	if len(pending) == 0 {
		r.mu.Unlock()
		return
	}
	r.emitMu.Lock()
	r.mu.Unlock()
	defer r.emitMu.Unlock()

	requestID := requestcontext.RequestID(ctx)
	for _, ev := range pending {
		ev.RequestID = requestID
		if err := r.deps.publisher.Emit(ctx, ev); err != nil {
			r.deps.logger.WarnContext(ctx, "failed to emit run event",
				"run_id", r.id.String(),
				"type", ev.Type,
				"error", err,
			)
		}
	}
}

func documentOutcome(p policy.Policy, identity document.IdentityRecord) (Outcome, error) {
	if p.IsLegal(identity.Age) {
		return ApprovedDocument(identity, p.LegalAge)
	}
	return Denied(identity, p.LegalAge)
}
