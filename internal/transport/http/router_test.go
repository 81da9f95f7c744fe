package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"agegate/internal/platform/metrics"
	"agegate/pkg/platform/middleware/metadata"
	"agegate/pkg/requestcontext"
	"agegate/pkg/testutil"
)

type laneEcho struct{}

func (laneEcho) Register(r chi.Router) {
	r.Get("/lane", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, requestcontext.LaneID(r.Context()))
	})
	r.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("handler bug")
	})
}

func newTestRouter(checks map[string]HealthCheck) http.Handler {
	reg := prometheus.NewRegistry()
	return NewRouter(RouterDeps{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:     metrics.New(reg),
		Gatherer:    reg,
		DefaultLane: "lane-1",
		Health:      checks,
		Handlers:    []Registrar{laneEcho{}},
	})
}

func TestRouter(t *testing.T) {
	testutil.Given(t, "the process router with healthy backends", func(t *testing.T) {
		router := newTestRouter(map[string]HealthCheck{
			"redis": func(context.Context) error { return nil },
		})

		testutil.When(t, "calling GET /healthz", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))

			testutil.Then(t, "it reports ok for every check", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONContains(t, rr, "status", "ok")
			})
		})

		testutil.When(t, "a handler is called without a lane header", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/lane"))

			testutil.Then(t, "the default lane and a request id are attached", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				assert.Equal(t, "lane-1", rr.Body.String())
				assert.NotEmpty(t, rr.Header().Get(metadata.HeaderRequestID))
			})
		})

		testutil.When(t, "a handler is called with a lane header", func(t *testing.T) {
			req := testutil.NewRequest(t, http.MethodGet, "/lane")
			req.Header.Set(metadata.HeaderLaneID, "lane-7")
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "the header lane is used", func(t *testing.T) {
				assert.Equal(t, "lane-7", rr.Body.String())
			})
		})

		testutil.When(t, "a handler panics", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/boom"))

			testutil.Then(t, "the panic is recovered as a 500", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusInternalServerError)
			})
		})

		testutil.When(t, "scraping /metrics after traffic", func(t *testing.T) {
			testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/lane"))
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))

			testutil.Then(t, "the request counter is exposed", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				assert.Contains(t, rr.Body.String(), "agegate_http_requests_total")
			})
		})
	})

	testutil.Given(t, "a router with a failing backend", func(t *testing.T) {
		router := newTestRouter(map[string]HealthCheck{
			"postgres": func(context.Context) error { return errors.New("connection refused") },
		})

		testutil.When(t, "calling GET /healthz", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))

			testutil.Then(t, "it reports degraded with 503", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
				testutil.AssertJSONContains(t, rr, "status", "degraded")
			})
		})
	})
}
