package audit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerDrainsToSink(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := NewPublisher(8, logger)
	sink := NewMemorySink()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewWorker(publisher, sink, logger).Run(ctx)

	publisher.Emit(ctx, Event{SessionID: "s1", Action: ActionSessionStarted})
	publisher.Emit(ctx, Event{SessionID: "s1", Action: ActionPhaseEntered, Phase: 1})

	require.Eventually(t, func() bool {
		return len(sink.Events()) == 2
	}, time.Second, 10*time.Millisecond)

	events := sink.Events()
	assert.Equal(t, ActionSessionStarted, events[0].Action)
	assert.False(t, events[0].Timestamp.IsZero(), "timestamp is stamped on emit")
}

func TestEmitDropsWhenBufferFull(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := NewPublisher(1, logger)

	// No worker is draining; the second emit must not block.
	done := make(chan struct{})
	go func() {
		publisher.Emit(context.Background(), Event{SessionID: "s1", Action: ActionPhaseEntered})
		publisher.Emit(context.Background(), Event{SessionID: "s1", Action: ActionPhaseEntered})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full buffer")
	}
}
