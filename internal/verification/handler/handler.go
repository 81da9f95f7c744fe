package handler

//go:generate mockgen -source=handler.go -destination=mocks/handler-mocks.go -package=mocks Service,EventLog

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"agegate/internal/cart"
	"agegate/internal/verification"
	"agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
	"agegate/pkg/platform/events"
	"agegate/pkg/platform/httputil"
	"agegate/pkg/platform/middleware/admin"
	"agegate/pkg/requestcontext"
)

// Service is the verification surface the presentation layer drives.
type Service interface {
	Begin(ctx context.Context, lines []cart.Line) (verification.Snapshot, error)
	Get(ctx context.Context, id domain.RunID) (verification.Snapshot, error)
	Confirm(ctx context.Context, id domain.RunID) (verification.Snapshot, error)
	SubmitDocument(ctx context.Context, id domain.RunID, cardID string) (verification.Snapshot, error)
	Cancel(ctx context.Context, id domain.RunID) (verification.Snapshot, error)
	Active(ctx context.Context, lane domain.LaneID) (verification.Snapshot, bool)
}

// EventLog lists a run's emitted events for operators.
type EventLog interface {
	List(ctx context.Context, runID string) ([]events.Event, error)
}

// BeginRequest starts a verification for the lane's cart.
type BeginRequest struct {
	Items []cart.Line `json:"items"`
}

func (r *BeginRequest) Validate() error {
	for i := range r.Items {
		r.Items[i].Name = strings.TrimSpace(r.Items[i].Name)
	}
	return cart.Validate(r.Items)
}

// DocumentRequest submits a scanned card.
type DocumentRequest struct {
	CardID string `json:"card_id"`
}

func (r *DocumentRequest) Validate() error {
	r.CardID = strings.TrimSpace(r.CardID)
	if r.CardID == "" {
		return dErrors.New(dErrors.CodeValidation, "card_id is required")
	}
	return nil
}

type eventsResponse struct {
	RunID  string         `json:"run_id"`
	Events []events.Event `json:"events"`
}

// Handler serves the verification endpoints.
type Handler struct {
	logger     *slog.Logger
	service    Service
	eventLog   EventLog
	adminToken string
}

type Option func(*Handler)

// WithEventLog exposes GET /admin/verifications/{id}/events behind token.
func WithEventLog(log EventLog, token string) Option {
	return func(h *Handler) {
		h.eventLog = log
		h.adminToken = token
	}
}

func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{logger: logger, service: service}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the verification routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verifications", h.handleBegin)
	r.Get("/verifications/{id}", h.handleGet)
	r.Post("/verifications/{id}/confirm", h.handleConfirm)
	r.Post("/verifications/{id}/document", h.handleDocument)
	r.Post("/verifications/{id}/cancel", h.handleCancel)
	r.Get("/lanes/{lane}/verification", h.handleActive)

	if h.eventLog != nil && h.adminToken != "" {
		r.With(admin.RequireAdminToken(h.adminToken, h.logger)).
			Get("/admin/verifications/{id}/events", h.handleEvents)
	}
}

func (h *Handler) handleBegin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[BeginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	snap, err := h.service.Begin(ctx, req.Items)
	if err != nil {
		h.writeError(ctx, w, "begin verification", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, snap)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.withRun(w, r, "get verification", h.service.Get)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	h.withRun(w, r, "confirm verification", h.service.Confirm)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.withRun(w, r, "cancel verification", h.service.Cancel)
}

func (h *Handler) handleDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[DocumentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	snap, err := h.service.SubmitDocument(ctx, id, req.CardID)
	if err != nil {
		h.writeError(ctx, w, "submit document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// handleActive lets a restarted terminal pick up its lane's running
// verification.
func (h *Handler) handleActive(w http.ResponseWriter, r *http.Request) {
	lane, err := domain.ParseLaneID(chi.URLParam(r, "lane"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	snap, ok := h.service.Active(r.Context(), lane)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no active verification on "+lane.String()))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	list, err := h.eventLog.List(ctx, id.String())
	if err != nil {
		h.writeError(ctx, w, "list run events", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, eventsResponse{RunID: id.String(), Events: list})
}

func (h *Handler) withRun(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	call func(context.Context, domain.RunID) (verification.Snapshot, error),
) {
	ctx := r.Context()
	id, err := domain.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	snap, err := call(ctx, id)
	if err != nil {
		h.writeError(ctx, w, op, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code := dErrors.CodeOf(err)
	if httputil.StatusFor(code) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "failed to "+op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	} else {
		h.logger.WarnContext(ctx, op+" rejected",
			"request_id", requestcontext.RequestID(ctx),
			"code", code,
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
