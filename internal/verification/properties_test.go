package verification_test

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/mock/gomock"

	"agegate/internal/document"
	"agegate/internal/estimation"
	"agegate/internal/policy"
	"agegate/internal/verification"
	"agegate/internal/verification/mocks"
	"agegate/pkg/domain"
)

func newPropertyService(t *testing.T, sampler *fakeSampler, lookup verification.DocumentLookup) *verification.Service {
	p := policy.Default()
	p.SamplingTimeout = 0
	svc, err := verification.NewService(p,
		func() (verification.Sampler, error) { return sampler, nil },
		lookup,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

// TestCameraDecision_Properties checks the camera path for every estimated age.
// Property: age >= ConfidentAge approves by camera without identity; anything
// lower waits for a document and never terminates on its own.
func TestCameraDecision_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)
	legal, confident := policy.Default().LegalAge, policy.Default().ConfidentAge

	properties.Property("camera decision follows the confident threshold", prop.ForAll(
		func(age int) bool {
			sampler := newFakeSampler()
			svc := newPropertyService(t, sampler, unusedLookup{})
			sampler.see(estimation.AgeSample{RepresentativeAge: age})

			ctx := context.Background()
			snap, err := svc.Begin(ctx, restrictedCart)
			if err != nil {
				return false
			}
			id, _ := domain.ParseRunID(snap.RunID)
			snap, err = svc.Confirm(ctx, id)
			if err != nil {
				return false
			}
			if age >= confident {
				return snap.Outcome != nil &&
					snap.Outcome.VerifiedBy == verification.VerifiedByCamera &&
					snap.Outcome.Identity == nil &&
					snap.Outcome.Validate(legal) == nil
			}
			return snap.State == verification.StateAwaitingDocument && snap.Outcome == nil
		},
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

// TestDocumentDecision_Properties checks the document path for every resolved age.
// Property: age < LegalAge is Denied with the identity, otherwise Approved by
// document, and the outcome always satisfies the identity invariants.
func TestDocumentDecision_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)
	legal := policy.Default().LegalAge

	properties.Property("document decision follows the legal threshold", prop.ForAll(
		func(age int) bool {
			ctrl := gomock.NewController(t)
			lookup := mocks.NewMockDocumentLookup(ctrl)
			lookup.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return(document.Result{
				Found:    true,
				Identity: &document.IdentityRecord{FullName: "P", Age: age, DateOfBirth: time.Now()},
			}, nil)

			sampler := newFakeSampler()
			sampler.see(estimation.AgeSample{RepresentativeAge: 16})
			svc := newPropertyService(t, sampler, lookup)

			ctx := context.Background()
			snap, err := svc.Begin(ctx, restrictedCart)
			if err != nil {
				return false
			}
			id, _ := domain.ParseRunID(snap.RunID)
			if _, err := svc.Confirm(ctx, id); err != nil {
				return false
			}
			snap, err = svc.SubmitDocument(ctx, id, "NFC-X")
			if err != nil || snap.Outcome == nil {
				return false
			}
			if snap.Outcome.Validate(legal) != nil {
				return false
			}
			if age < legal {
				return snap.Outcome.Kind == verification.OutcomeDenied
			}
			return snap.Outcome.Kind == verification.OutcomeApproved &&
				snap.Outcome.VerifiedBy == verification.VerifiedByDocument
		},
		gen.IntRange(0, 120),
	))

	properties.TestingRun(t)
}

// TestCancel_Properties checks that cancellation wins from every non-terminal state.
func TestCancel_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("cancel always aborts with user_cancelled", prop.ForAll(
		func(age int, escalate bool) bool {
			sampler := newFakeSampler()
			sampler.see(estimation.AgeSample{RepresentativeAge: age})
			svc := newPropertyService(t, sampler, unusedLookup{})

			ctx := context.Background()
			snap, err := svc.Begin(ctx, restrictedCart)
			if err != nil {
				return false
			}
			id, _ := domain.ParseRunID(snap.RunID)
			if escalate {
				snap, err = svc.Confirm(ctx, id)
				if err != nil {
					return false
				}
				if snap.State == verification.StateTerminal {
					// camera-approved runs cannot be cancelled afterwards
					_, err = svc.Cancel(ctx, id)
					return err != nil && snap.Outcome.Kind == verification.OutcomeApproved
				}
			}
			snap, err = svc.Cancel(ctx, id)
			return err == nil &&
				snap.Outcome != nil &&
				*snap.Outcome == verification.Aborted(verification.AbortUserCancelled)
		},
		gen.IntRange(0, 100),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestOutcomeConstructors(t *testing.T) {
	const legal = 20
	if _, err := verification.ApprovedDocument(document.IdentityRecord{Age: 19}, legal); err == nil {
		t.Fatal("document approval below legal age must fail")
	}
	if _, err := verification.Denied(document.IdentityRecord{Age: 20}, legal); err == nil {
		t.Fatal("denial at legal age must fail")
	}
	o, err := verification.ApprovedDocument(document.IdentityRecord{Age: 20}, legal)
	if err != nil || o.Validate(legal) != nil {
		t.Fatalf("boundary age must approve: %v", err)
	}
	bad := verification.ApprovedCamera()
	bad.Identity = &document.IdentityRecord{Age: 40}
	if bad.Validate(legal) == nil {
		t.Fatal("camera approval with identity must be invalid")
	}
}
