// Package events carries verification run events from the state machine to
// the presentation layer, the event log and downstream consumers.
//
// Events never contain identity data (names, dates of birth). Card ids only
// appear as keyed hashes produced by HashCardID.
package events

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Type names an event kind.
type Type string

const (
	TypeRunStarted    Type = "run_started"
	TypeStatusChanged Type = "status_changed"
	TypeRunTerminated Type = "run_terminated"
)

// Severity is the display tone of a status message.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Outcome is the identity-free summary of a terminated run.
type Outcome struct {
	Kind        string `json:"kind"`
	VerifiedBy  string `json:"verified_by,omitempty"`
	Reason      string `json:"reason,omitempty"`
	AgeVerified bool   `json:"age_verified"`
}

// Event is emitted by verification runs. Keep it transport-agnostic so
// stores and sinks can fan out.
type Event struct {
	Type           Type      `json:"type"`
	RunID          string    `json:"run_id"`
	LaneID         string    `json:"lane_id"`
	State          string    `json:"state"`
	Signal         string    `json:"signal,omitempty"`
	Message        string    `json:"message,omitempty"`
	Severity       Severity  `json:"severity,omitempty"`
	CardIDHash     string    `json:"card_id_hash,omitempty"`
	LookupAttempts int       `json:"lookup_attempts,omitempty"`
	Outcome        *Outcome  `json:"outcome,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Store persists or forwards events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher is what emitters depend on.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Emit(context.Context, Event) error { return nil }

// MultiStore appends to every store and returns the first error.
type MultiStore []Store

func (m MultiStore) Append(ctx context.Context, event Event) error {
	var first error
	for _, s := range m {
		if err := s.Append(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ListByRun reads from the first store that can list a run's history.
func (m MultiStore) ListByRun(ctx context.Context, runID string) ([]Event, error) {
	for _, s := range m {
		if l, ok := s.(interface {
			ListByRun(context.Context, string) ([]Event, error)
		}); ok {
			return l.ListByRun(ctx, runID)
		}
	}
	return nil, errors.New("no event store supports listing")
}

// HashCardID pseudonymises a normalised card id with a keyed BLAKE2b-256.
// An empty key produces an unkeyed digest.
func HashCardID(key []byte, cardID string) string {
	if cardID == "" {
		return ""
	}
	h, err := blake2b.New256(key)
	if err != nil {
		// key longer than 64 bytes; fall back to hashing the key in
		sum := blake2b.Sum256(append(append([]byte{}, key...), cardID...))
		return hex.EncodeToString(sum[:])
	}
	_, _ = h.Write([]byte(cardID))
	return hex.EncodeToString(h.Sum(nil))
}
