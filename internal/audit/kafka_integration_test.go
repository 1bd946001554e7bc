//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"flightclaim/internal/audit"
	"flightclaim/pkg/testutil/containers"
)

func TestKafkaSinkPublishesEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	broker := containers.NewRedpandaContainer(t)
	const topic = "claim-audit-test"

	sink, err := audit.NewKafkaSink(broker.Brokers, topic)
	require.NoError(t, err)
	defer sink.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sent := audit.Event{
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		SessionID: "s1",
		Action:    audit.ActionClaimSubmitted,
		Phase:     5,
	}
	require.NoError(t, sink.Write(ctx, sent))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)
	require.Equal(t, "s1", string(records[0].Key), "events are keyed by session")

	var got audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, sent.Action, got.Action)
	require.Equal(t, sent.Phase, got.Phase)
	require.Equal(t, sent.SessionID, got.SessionID)
}
