package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agegate/internal/platform/metrics"
	"agegate/pkg/platform/httputil"
	"agegate/pkg/platform/middleware/metadata"
	"agegate/pkg/platform/middleware/requesttime"
)

// HealthCheck probes one backend. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// Registrar mounts a feature's routes.
type Registrar interface {
	Register(r chi.Router)
}

// RouterDeps is everything the process router needs.
type RouterDeps struct {
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	DefaultLane string
	Health      map[string]HealthCheck
	Handlers    []Registrar
}

const healthTimeout = 2 * time.Second

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewRouter wires the shared middleware chain, the operational endpoints and
// every feature handler.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(metadata.ClientMetadata(deps.DefaultLane))
	r.Use(requesttime.Middleware)
	r.Use(deps.Metrics.Middleware)

	r.Get("/healthz", healthHandler(deps.Health, logger))
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	for _, h := range deps.Handlers {
		h.Register(r)
	}
	return r
}

func healthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
