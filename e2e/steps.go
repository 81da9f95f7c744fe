// Package e2e runs the checkout feature files against the fully wired gate,
// in process, through its HTTP router.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/cucumber/godog"
	"github.com/prometheus/client_golang/prometheus"

	"agegate/e2e/steps/checkout"
	"agegate/e2e/steps/common"
	"agegate/internal/app"
	"agegate/internal/platform/config"
)

// baseEnv keeps scenarios fast: a short sampling period and a small lookup
// latency. Scenarios add their own overrides.
var baseEnv = map[string]string{
	"AGEGATE_SAMPLING_INTERVAL": "5ms",
	"AGEGATE_DOCUMENT_LATENCY":  "10ms",
	"AGEGATE_EVENT_BUFFER":      "0",
	"AGEGATE_ADMIN_TOKEN":       "e2e-operator",
}

// TestContext holds the gate and the last HTTP exchange of one scenario.
type TestContext struct {
	app        *app.App
	lastStatus int
	lastBody   []byte
}

// RegisterSteps registers all step definitions from modular packages.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	checkout.RegisterSteps(ctx, tc)

	ctx.After(func(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
		return ctx, tc.Close()
	})
}

// Start builds a gate from baseEnv plus overrides.
func (tc *TestContext) Start(overrides map[string]string) error {
	if tc.app != nil {
		return fmt.Errorf("gate already running")
	}
	vars := make(map[string]string, len(baseEnv)+len(overrides))
	for k, v := range baseEnv {
		vars[k] = v
	}
	for k, v := range overrides {
		vars[config.Prefix+k] = v
	}
	cfg, err := config.Parse(env.Options{Prefix: config.Prefix, Environment: vars})
	if err != nil {
		return err
	}
	a, err := app.New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), prometheus.NewRegistry())
	if err != nil {
		return err
	}
	tc.app = a
	return nil
}

// Close shuts the gate down. Safe when the gate never started.
func (tc *TestContext) Close() error {
	if tc.app == nil {
		return nil
	}
	err := tc.app.Shutdown(context.Background())
	tc.app = nil
	return err
}

// SetCameraScript replaces the scripted camera's bracket sequence.
func (tc *TestContext) SetCameraScript(brackets ...int) error {
	if tc.app == nil || tc.app.Camera == nil {
		return fmt.Errorf("gate is not running with the scripted camera")
	}
	tc.app.Camera.SetScript(brackets...)
	return nil
}

func (tc *TestContext) POST(path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(http.MethodPost, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return tc.do(req)
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return tc.do(req)
}

func (tc *TestContext) do(req *http.Request) error {
	if tc.app == nil {
		return fmt.Errorf("gate is not running")
	}
	rr := httptest.NewRecorder()
	tc.app.Router.ServeHTTP(rr, req)
	tc.lastStatus = rr.Code
	tc.lastBody = rr.Body.Bytes()
	return nil
}

// GetResponseField reads a dotted path such as "outcome.kind" from the last
// JSON response.
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var cur interface{}
	if err := json.Unmarshal(tc.lastBody, &cur); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	for _, part := range strings.Split(field, ".") {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, part)
		}
		cur, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not found in response", field)
		}
	}
	return cur, nil
}

func (tc *TestContext) GetLastResponseStatus() int  { return tc.lastStatus }
func (tc *TestContext) GetLastResponseBody() []byte { return tc.lastBody }
