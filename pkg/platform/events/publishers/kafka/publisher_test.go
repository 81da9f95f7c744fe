package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"agegate/pkg/platform/events"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	var results kgo.ProduceResults
	for _, r := range rs {
		f.records = append(f.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(nil, "topic")
	assert.Error(t, err)
	_, err = New(&fakeProducer{}, "")
	assert.Error(t, err)
}

func TestAppend_KeysByRunAndCarriesNoIdentity(t *testing.T) {
	producer := &fakeProducer{}
	pub, err := New(producer, "agegate.verifications")
	require.NoError(t, err)

	event := events.Event{
		Type:       events.TypeRunTerminated,
		RunID:      "run-42",
		LaneID:     "lane-3",
		State:      "terminal",
		CardIDHash: events.HashCardID([]byte("k"), "NFC-002-SUZUKI"),
		Outcome:    &events.Outcome{Kind: "denied", Reason: "underage"},
	}
	require.NoError(t, pub.Append(context.Background(), event))

	require.Len(t, producer.records, 1)
	rec := producer.records[0]
	assert.Equal(t, "agegate.verifications", rec.Topic)
	assert.Equal(t, []byte("run-42"), rec.Key)
	assert.Contains(t, rec.Headers, kgo.RecordHeader{Key: "event_type", Value: []byte("run_terminated")})

	var decoded events.Event
	require.NoError(t, json.Unmarshal(rec.Value, &decoded))
	assert.Equal(t, "denied", decoded.Outcome.Kind)
	assert.NotContains(t, string(rec.Value), "SUZUKI")
}

func TestAppend_PropagatesProduceError(t *testing.T) {
	boom := errors.New("not enough replicas")
	pub, err := New(&fakeProducer{err: boom}, "t")
	require.NoError(t, err)

	err = pub.Append(context.Background(), events.Event{RunID: "run-1"})
	require.ErrorIs(t, err, boom)
}
