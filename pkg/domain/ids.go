package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "agegate/pkg/domain-errors"
)

// RunID identifies one verification run.
type RunID uuid.UUID

// NewRunID returns a random run identifier.
func NewRunID() RunID {
	return RunID(uuid.New())
}

// ParseRunID parses a non-nil UUID.
func ParseRunID(s string) (RunID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return RunID{}, err
	}
	return RunID(u), nil
}

func (id RunID) String() string { return uuid.UUID(id).String() }

func (id RunID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id RunID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// LaneID identifies a checkout lane (one kiosk).
type LaneID string

const maxLaneIDLength = 64

// ParseLaneID accepts letters, digits, '-', '_' and '.'.
func ParseLaneID(s string) (LaneID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "lane id is required")
	}
	if len(s) > maxLaneIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "lane id is too long")
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return "", dErrors.New(dErrors.CodeInvalidInput, "lane id contains invalid characters")
		}
	}
	return LaneID(s), nil
}

func (l LaneID) String() string { return string(l) }

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid id format")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be nil")
	}
	return u, nil
}
