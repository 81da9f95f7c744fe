//go:build integration

package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"agegate/pkg/platform/events"
	"agegate/pkg/testutil/containers"
)

func TestPublisher_RoundTripThroughRedpanda(t *testing.T) {
	broker := containers.NewRedpandaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const topic = "agegate.verifications.test"
	client, err := NewClient([]string{broker.Broker}, topic)
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, EnsureTopic(ctx, client, topic, 1, 1))
	require.NoError(t, EnsureTopic(ctx, client, topic, 1, 1), "second call must tolerate an existing topic")

	pub, err := New(client, topic)
	require.NoError(t, err)
	require.NoError(t, pub.Append(ctx, events.Event{Type: events.TypeRunStarted, RunID: "run-1", LaneID: "lane-1"}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	var keys []string
	fetches.EachRecord(func(r *kgo.Record) { keys = append(keys, string(r.Key)) })
	assert.Contains(t, keys, "run-1")
}
