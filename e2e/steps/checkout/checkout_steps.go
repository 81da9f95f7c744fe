package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	SetCameraScript(brackets ...int) error
}

const (
	pollInterval = 5 * time.Millisecond
	pollTimeout  = 3 * time.Second
	noFace       = -1
)

// RegisterSteps registers checkout step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &checkoutSteps{tc: tc}

	// Arrange
	ctx.Step(`^the camera shows a face in bracket (\d+)$`, steps.cameraShowsBracket)
	ctx.Step(`^the camera shows no face$`, steps.cameraShowsNoFace)

	// Act
	ctx.Step(`^a customer checks out a cart with a restricted item$`, steps.checkoutRestricted)
	ctx.Step(`^a customer checks out a cart without restricted items$`, steps.checkoutUnrestricted)
	ctx.Step(`^an age sample has been taken$`, steps.waitForSample)
	ctx.Step(`^the operator confirms$`, steps.confirm)
	ctx.Step(`^the operator cancels$`, steps.cancel)
	ctx.Step(`^the customer presents card "([^"]*)"$`, steps.presentCard)
	ctx.Step(`^the run finishes on its own$`, steps.waitForTerminal)
	ctx.Step(`^I read the run's event log$`, steps.readEventLog)

	// Assert
	ctx.Step(`^the run should be in state "([^"]*)"$`, steps.runShouldBeInState)
	ctx.Step(`^the run should be approved by "([^"]*)"$`, steps.runShouldBeApprovedBy)
	ctx.Step(`^the run should be denied as underage$`, steps.runShouldBeDenied)
	ctx.Step(`^the run should be aborted with "([^"]*)"$`, steps.runShouldBeAborted)
	ctx.Step(`^the receipt should name "([^"]*)"$`, steps.receiptShouldName)
	ctx.Step(`^no receipt should be issued$`, steps.noReceipt)
}

type checkoutSteps struct {
	tc    TestContext
	runID string
}

func (s *checkoutSteps) cameraShowsBracket(ctx context.Context, bracket int) error {
	return s.tc.SetCameraScript(bracket)
}

func (s *checkoutSteps) cameraShowsNoFace(ctx context.Context) error {
	return s.tc.SetCameraScript(noFace)
}

func (s *checkoutSteps) checkoutRestricted(ctx context.Context) error {
	return s.begin(true)
}

func (s *checkoutSteps) checkoutUnrestricted(ctx context.Context) error {
	return s.begin(false)
}

func (s *checkoutSteps) begin(restricted bool) error {
	body := map[string]interface{}{
		"items": []map[string]interface{}{
			{"name": "sake", "price": 1200, "restricted": restricted},
			{"name": "rice crackers", "price": 250},
		},
	}
	if err := s.tc.POST("/verifications", body); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 201 {
		return fmt.Errorf("begin failed with %d: %s", s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
	}
	id, err := s.tc.GetResponseField("run_id")
	if err != nil {
		return err
	}
	s.runID, _ = id.(string)
	return nil
}

func (s *checkoutSteps) waitForSample(ctx context.Context) error {
	return s.poll(func() bool {
		_, err := s.tc.GetResponseField("sample")
		return err == nil
	}, "an age sample")
}

func (s *checkoutSteps) waitForTerminal(ctx context.Context) error {
	return s.poll(func() bool {
		state, err := s.tc.GetResponseField("state")
		return err == nil && state == "terminal"
	}, "the run to finish")
}

func (s *checkoutSteps) poll(done func() bool, what string) error {
	deadline := time.Now().Add(pollTimeout)
	for time.Now().Before(deadline) {
		if err := s.tc.GET(s.path(""), nil); err != nil {
			return err
		}
		if done() {
			return nil
		}
		time.Sleep(pollInterval)
	}
	return fmt.Errorf("timed out waiting for %s", what)
}

func (s *checkoutSteps) confirm(ctx context.Context) error {
	return s.tc.POST(s.path("/confirm"), nil)
}

func (s *checkoutSteps) cancel(ctx context.Context) error {
	return s.tc.POST(s.path("/cancel"), nil)
}

func (s *checkoutSteps) presentCard(ctx context.Context, cardID string) error {
	return s.tc.POST(s.path("/document"), map[string]string{"card_id": cardID})
}

func (s *checkoutSteps) readEventLog(ctx context.Context) error {
	return s.tc.GET("/admin/verifications/"+s.runID+"/events", map[string]string{
		"X-Admin-Token": "e2e-operator",
	})
}

func (s *checkoutSteps) path(suffix string) string {
	return "/verifications/" + s.runID + suffix
}

func (s *checkoutSteps) runShouldBeInState(ctx context.Context, state string) error {
	return s.expect("state", state)
}

func (s *checkoutSteps) runShouldBeApprovedBy(ctx context.Context, by string) error {
	if err := s.expect("outcome.kind", "approved"); err != nil {
		return err
	}
	return s.expect("outcome.verified_by", by)
}

func (s *checkoutSteps) runShouldBeDenied(ctx context.Context) error {
	if err := s.expect("outcome.kind", "denied"); err != nil {
		return err
	}
	return s.expect("outcome.deny_reason", "underage")
}

func (s *checkoutSteps) runShouldBeAborted(ctx context.Context, reason string) error {
	if err := s.expect("outcome.kind", "aborted"); err != nil {
		return err
	}
	return s.expect("outcome.abort_reason", reason)
}

func (s *checkoutSteps) receiptShouldName(ctx context.Context, name string) error {
	return s.expect("receipt.verified_name", name)
}

func (s *checkoutSteps) noReceipt(ctx context.Context) error {
	if _, err := s.tc.GetResponseField("receipt"); err == nil {
		return fmt.Errorf("expected no receipt, got %s", s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *checkoutSteps) expect(field, want string) error {
	got, err := s.tc.GetResponseField(field)
	if err != nil {
		return fmt.Errorf("%w: %s", err, s.tc.GetLastResponseBody())
	}
	if got != want {
		return fmt.Errorf("expected %s %q, got %v", field, want, got)
	}
	return nil
}
