package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "agegate/pkg/domain-errors"
)

// TestParseRunID_Invariants validates the parsing invariant:
// "run IDs must be valid, non-empty, non-nil UUIDs"
//
// Justification: run IDs arrive in URL paths and are a trust boundary.
func TestParseRunID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseRunID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseRunID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseRunID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts generated ID", func(t *testing.T) {
		runID := NewRunID()
		parsed, err := ParseRunID(runID.String())
		require.NoError(t, err)
		assert.Equal(t, runID, parsed)
		assert.False(t, parsed.IsNil())
	})
}

// TestParseID_SecurityInvariants validates trust-boundary parsing rules.
//
// Justification: both IDs come from HTTP input.
func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE runs;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "lane\x00-1", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Unicode zero-width space", "lane\u200B1", true},
		{"Whitespace only", "   ", true},
		{"Valid lane", "lane-1", false},
		{"Dotted lane", "store-12.lane_3", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLaneID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestParseLaneID_Trims(t *testing.T) {
	lane, err := ParseLaneID("  lane-7 ")
	require.NoError(t, err)
	assert.Equal(t, LaneID("lane-7"), lane)
}
