//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseRunID tests that parsing never panics on arbitrary input
// and always returns either a valid ID or an error.
//
// Justification: Trust boundary functions must handle arbitrary input safely.
func FuzzParseRunID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseRunID(input)
		if err == nil {
			roundTrip, err2 := ParseRunID(id.String())
			if err2 != nil {
				t.Errorf("Valid ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("Round-trip changed ID value")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("Non-UTF8 input was accepted")
		}
	})
}

// FuzzParseLaneID checks accepted lanes are stable under re-parsing.
func FuzzParseLaneID(f *testing.F) {
	f.Add("lane-1")
	f.Add("")
	f.Add(" lane ")

	f.Fuzz(func(t *testing.T, input string) {
		lane, err := ParseLaneID(input)
		if err != nil {
			return
		}
		again, err := ParseLaneID(lane.String())
		if err != nil || again != lane {
			t.Errorf("lane %q not stable: %v", lane, err)
		}
	})
}
