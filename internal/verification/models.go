package verification

import (
	"fmt"
	"time"

	"agegate/internal/cart"
	"agegate/internal/document"
	"agegate/internal/estimation"
	"agegate/pkg/platform/events"
)

// State is the position of a run in IDLE -> SAMPLING -> (AWAITING_DOCUMENT)? -> TERMINAL.
type State string

const (
	StateIdle             State = "idle"
	StateSampling         State = "sampling"
	StateAwaitingDocument State = "awaiting_document"
	StateTerminal         State = "terminal"
)

type OutcomeKind string

const (
	OutcomeApproved OutcomeKind = "approved"
	OutcomeDenied   OutcomeKind = "denied"
	OutcomeAborted  OutcomeKind = "aborted"
)

// VerifiedBy records which check approved a run.
type VerifiedBy string

const (
	VerifiedByNone     VerifiedBy = "none"
	VerifiedByCamera   VerifiedBy = "camera"
	VerifiedByDocument VerifiedBy = "document"
)

type DenyReason string

const DenyUnderage DenyReason = "underage"

type AbortReason string

const (
	AbortUserCancelled     AbortReason = "user_cancelled"
	AbortNoFaceDetected    AbortReason = "no_face_detected"
	AbortDeviceUnavailable AbortReason = "device_unavailable"
	AbortUnknownDocument   AbortReason = "unknown_document"
)

// Outcome is the terminal value of a run. Build it with the constructors;
// they enforce which outcomes may carry an identity.
type Outcome struct {
	Kind        OutcomeKind              `json:"kind"`
	VerifiedBy  VerifiedBy               `json:"verified_by,omitempty"`
	DenyReason  DenyReason               `json:"deny_reason,omitempty"`
	AbortReason AbortReason              `json:"abort_reason,omitempty"`
	Identity    *document.IdentityRecord `json:"identity,omitempty"`
}

// ApprovedNone approves a cart without restricted items.
func ApprovedNone() Outcome {
	return Outcome{Kind: OutcomeApproved, VerifiedBy: VerifiedByNone}
}

// ApprovedCamera approves on the estimate alone. No identity is attached.
func ApprovedCamera() Outcome {
	return Outcome{Kind: OutcomeApproved, VerifiedBy: VerifiedByCamera}
}

// ApprovedDocument approves on a resolved identity of at least legalAge.
func ApprovedDocument(identity document.IdentityRecord, legalAge int) (Outcome, error) {
	if identity.Age < legalAge {
		return Outcome{}, fmt.Errorf("document approval requires age >= %d, got %d", legalAge, identity.Age)
	}
	return Outcome{Kind: OutcomeApproved, VerifiedBy: VerifiedByDocument, Identity: &identity}, nil
}

// Denied rejects on a resolved identity below legalAge.
func Denied(identity document.IdentityRecord, legalAge int) (Outcome, error) {
	if identity.Age >= legalAge {
		return Outcome{}, fmt.Errorf("underage denial requires age < %d, got %d", legalAge, identity.Age)
	}
	return Outcome{Kind: OutcomeDenied, DenyReason: DenyUnderage, Identity: &identity}, nil
}

func Aborted(reason AbortReason) Outcome {
	return Outcome{Kind: OutcomeAborted, AbortReason: reason}
}

// Validate checks the identity rules for o under legalAge.
func (o Outcome) Validate(legalAge int) error {
	switch o.Kind {
	case OutcomeApproved:
		switch o.VerifiedBy {
		case VerifiedByNone, VerifiedByCamera:
			if o.Identity != nil {
				return fmt.Errorf("%s approval must not carry an identity", o.VerifiedBy)
			}
		case VerifiedByDocument:
			if o.Identity == nil || o.Identity.Age < legalAge {
				return fmt.Errorf("document approval requires an identity aged >= %d", legalAge)
			}
		default:
			return fmt.Errorf("unknown verifier %q", o.VerifiedBy)
		}
	case OutcomeDenied:
		if o.Identity == nil || o.Identity.Age >= legalAge {
			return fmt.Errorf("denial requires an identity aged < %d", legalAge)
		}
	case OutcomeAborted:
		if o.Identity != nil {
			return fmt.Errorf("aborted outcome must not carry an identity")
		}
	default:
		return fmt.Errorf("unknown outcome kind %q", o.Kind)
	}
	return nil
}

// Approved reports whether payment may complete.
func (o Outcome) Approved() bool {
	return o.Kind == OutcomeApproved
}

// Summary strips the identity for events.
func (o Outcome) Summary() *events.Outcome {
	reason := string(o.AbortReason)
	if o.Kind == OutcomeDenied {
		reason = string(o.DenyReason)
	}
	verifiedBy := ""
	if o.Kind == OutcomeApproved {
		verifiedBy = string(o.VerifiedBy)
	}
	return &events.Outcome{
		Kind:        string(o.Kind),
		VerifiedBy:  verifiedBy,
		Reason:      reason,
		AgeVerified: o.Kind == OutcomeApproved && o.VerifiedBy != VerifiedByNone,
	}
}

// Label is a compact "kind[/detail]" form for logs and metrics.
func (o Outcome) Label() string {
	switch o.Kind {
	case OutcomeApproved:
		return string(o.Kind) + "/" + string(o.VerifiedBy)
	case OutcomeDenied:
		return string(o.Kind) + "/" + string(o.DenyReason)
	default:
		return string(o.Kind) + "/" + string(o.AbortReason)
	}
}

// Status is the operator-facing text for the current step.
type Status struct {
	Text     string          `json:"text"`
	Severity events.Severity `json:"severity"`
}

// Action is an operator action the presentation layer may enable.
type Action string

const (
	ActionConfirm        Action = "confirm"
	ActionSubmitDocument Action = "submit_document"
	ActionCancel         Action = "cancel"
)

// Receipt is what the payment step renders for an approved run.
type Receipt struct {
	ItemCount    int    `json:"item_count"`
	TotalAmount  int64  `json:"total_amount"`
	VerifiedName string `json:"verified_name,omitempty"`
}

// Snapshot is a point-in-time copy of a run for the presentation layer.
type Snapshot struct {
	RunID          string                `json:"run_id"`
	LaneID         string                `json:"lane_id"`
	State          State                 `json:"state"`
	Status         Status                `json:"status"`
	Signal         estimation.Signal     `json:"signal,omitempty"`
	Sample         *estimation.AgeSample `json:"sample,omitempty"`
	Cart           cart.Summary          `json:"cart"`
	LookupAttempts int                   `json:"lookup_attempts"`
	LookupPending  bool                  `json:"lookup_pending"`
	Actions        []Action              `json:"actions"`
	Outcome        *Outcome              `json:"outcome,omitempty"`
	Receipt        *Receipt              `json:"receipt,omitempty"`
	StartedAt      time.Time             `json:"started_at"`
	FinishedAt     *time.Time            `json:"finished_at,omitempty"`
}
