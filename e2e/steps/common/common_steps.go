package common

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Start(overrides map[string]string) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers background and generic assertion steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the gate is running$`, steps.gateIsRunning)
	ctx.Step(`^the gate is running with:$`, steps.gateIsRunningWith)
	ctx.Step(`^I GET "([^"]*)"$`, steps.get)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the response should not contain "([^"]*)"$`, steps.bodyShouldNotContain)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) gateIsRunning(ctx context.Context) error {
	return s.tc.Start(nil)
}

// gateIsRunningWith takes a two column table of setting names (without the
// AGEGATE_ prefix) and values.
func (s *commonSteps) gateIsRunningWith(ctx context.Context, table *godog.Table) error {
	overrides := make(map[string]string, len(table.Rows))
	for _, row := range table.Rows {
		if len(row.Cells) != 2 {
			return fmt.Errorf("expected two columns, got %d", len(row.Cells))
		}
		overrides[row.Cells[0].Value] = row.Cells[1].Value
	}
	return s.tc.Start(overrides)
}

func (s *commonSteps) get(ctx context.Context, path string) error {
	return s.tc.GET(path, nil)
}

func (s *commonSteps) statusShouldBe(ctx context.Context, expected int) error {
	if got := s.tc.GetLastResponseStatus(); got != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, got, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) fieldShouldBe(ctx context.Context, field, expected string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	var got string
	switch t := v.(type) {
	case string:
		got = t
	case float64:
		got = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		got = strconv.FormatBool(t)
	default:
		got = fmt.Sprint(t)
	}
	if got != expected {
		return fmt.Errorf("expected %s to be %q, got %q", field, expected, got)
	}
	return nil
}

func (s *commonSteps) bodyShouldNotContain(ctx context.Context, text string) error {
	if strings.Contains(string(s.tc.GetLastResponseBody()), text) {
		return fmt.Errorf("response unexpectedly contains %q", text)
	}
	return nil
}
