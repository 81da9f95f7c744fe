package verification

import (
	"agegate/internal/estimation"
	"agegate/pkg/platform/events"
)

var (
	statusReady          = Status{Text: "Ready", Severity: events.SeverityInfo}
	statusDetecting      = Status{Text: "Detecting face...", Severity: events.SeverityInfo}
	statusPlaceCard      = Status{Text: "Place your ID card on the reader", Severity: events.SeverityInfo}
	statusReadingCard    = Status{Text: "Reading card...", Severity: events.SeverityInfo}
	statusCardUnknown    = Status{Text: "Card not recognized, scan again", Severity: events.SeverityWarning}
	statusPaymentOK      = Status{Text: "Payment approved", Severity: events.SeveritySuccess}
	statusIdentityOK     = Status{Text: "Identity verified", Severity: events.SeveritySuccess}
	statusUnderage       = Status{Text: "Age restricted: purchase not allowed", Severity: events.SeverityDanger}
	statusCancelled      = Status{Text: "Verification cancelled", Severity: events.SeverityInfo}
	statusNoFace         = Status{Text: "No face detected", Severity: events.SeverityWarning}
	statusDeviceDown     = Status{Text: "Verification device unavailable", Severity: events.SeverityDanger}
	statusUnknownAborted = Status{Text: "Card not recognized", Severity: events.SeverityWarning}
)

// cameraStatus renders a sampler signal. label is the bracket label of the
// current sample, if any.
func cameraStatus(signal estimation.Signal, label string) Status {
	switch signal {
	case estimation.SignalCameraEligible:
		return Status{Text: "Age OK, estimated " + label, Severity: events.SeveritySuccess}
	case estimation.SignalDocumentRequired:
		return Status{Text: "Estimated " + label + ", ID card check required", Severity: events.SeverityWarning}
	case estimation.SignalDenyCandidate:
		return Status{Text: "Under age, estimated " + label, Severity: events.SeverityDanger}
	default:
		return statusDetecting
	}
}

func outcomeStatus(o Outcome) Status {
	switch o.Kind {
	case OutcomeApproved:
		if o.VerifiedBy == VerifiedByDocument {
			return statusIdentityOK
		}
		return statusPaymentOK
	case OutcomeDenied:
		return statusUnderage
	}
	switch o.AbortReason {
	case AbortNoFaceDetected:
		return statusNoFace
	case AbortDeviceUnavailable:
		return statusDeviceDown
	case AbortUnknownDocument:
		return statusUnknownAborted
	default:
		return statusCancelled
	}
}
