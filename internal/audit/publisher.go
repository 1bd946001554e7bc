package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sink receives events at the end of the pipeline.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// Publisher accepts events from domain code and queues them for the worker.
// Emit never blocks: when the buffer is full the event is dropped with a
// warning, which is preferable to stalling a wizard mutation.
type Publisher struct {
	inbox  chan Event
	logger *slog.Logger
}

func NewPublisher(buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Publisher{inbox: make(chan Event, buffer), logger: logger}
}

// Emit queues an event, stamping the time when the caller left it zero.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", string(event.Action), "session_id", event.SessionID)
	}
}

// Worker drains the publisher's inbox into a sink until the context ends.
type Worker struct {
	publisher *Publisher
	sink      Sink
	logger    *slog.Logger
}

func NewWorker(publisher *Publisher, sink Sink, logger *slog.Logger) *Worker {
	return &Worker{publisher: publisher, sink: sink, logger: logger}
}

// Run consumes events; sink failures are logged and the event dropped, so
// the audit trail degrades instead of backing up into the wizard.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-w.publisher.inbox:
			if err := w.sink.Write(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "audit sink write failed",
					"action", string(event.Action), "error", err.Error())
			}
		}
	}
}

// MemorySink collects events in memory for tests and local runs.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything written so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event{}, s.events...)
}
