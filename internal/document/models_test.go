package document

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCardID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"already normal", "NFC-001-TANAKA", "NFC-001-TANAKA"},
		{"lower case", "nfc-001-tanaka", "NFC-001-TANAKA"},
		{"surrounding whitespace", "\t NFC-002-SUZUKI \n", "NFC-002-SUZUKI"},
		{"blank", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCardID(tt.raw))
		})
	}
}

func TestDemoCards(t *testing.T) {
	cards := DemoCards()
	require.Len(t, cards, 6)

	byID := make(map[string]IdentityRecord, len(cards))
	for _, c := range cards {
		assert.Equal(t, NormalizeCardID(c.ID), c.ID)
		byID[c.ID] = c.Identity
	}
	assert.Equal(t, 17, byID["NFC-002-SUZUKI"].Age)
	assert.Equal(t, "2008-07-22", byID["NFC-002-SUZUKI"].DOB())
	assert.Equal(t, 22, byID["NFC-001-TANAKA"].Age)
}

type recordingWriter struct {
	ids []string
	err error
}

func (w *recordingWriter) Put(_ context.Context, cardID string, _ IdentityRecord) error {
	w.ids = append(w.ids, cardID)
	return w.err
}

func TestSeed(t *testing.T) {
	t.Run("normalizes ids", func(t *testing.T) {
		w := &recordingWriter{}
		err := Seed(context.Background(), w, []Card{{ID: " nfc-x "}})
		require.NoError(t, err)
		assert.Equal(t, []string{"NFC-X"}, w.ids)
	})

	t.Run("rejects blank id", func(t *testing.T) {
		err := Seed(context.Background(), &recordingWriter{}, []Card{{ID: " "}})
		assert.Error(t, err)
	})

	t.Run("stops at first write error", func(t *testing.T) {
		w := &recordingWriter{err: errors.New("boom")}
		err := Seed(context.Background(), w, DemoCards())
		require.Error(t, err)
		assert.Len(t, w.ids, 1)
	})
}
