// Package report takes in "flight not listed" reports: a user could not find
// their flight in search results and describes it manually so the schedule
// data can be corrected.
package report

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"flightclaim/internal/audit"
	dErrors "flightclaim/pkg/domain-errors"
)

// FlightNotListed is the submitted report payload.
type FlightNotListed struct {
	Salutation  string `json:"salutation"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Description string `json:"description"`
}

// Accepted is returned for a stored report.
type Accepted struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"receivedAt"`
}

var emailShape = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Validate rejects reports with any empty field or an email that is not
// shaped like an address. Only shape is checked; deliverability is not.
func (r FlightNotListed) Validate() error {
	fields := map[string]string{
		"salutation":  r.Salutation,
		"firstName":   r.FirstName,
		"lastName":    r.LastName,
		"email":       r.Email,
		"description": r.Description,
	}
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			return dErrors.New(dErrors.CodeBadRequest, name+" must not be empty")
		}
	}
	if !emailShape.MatchString(strings.TrimSpace(r.Email)) {
		return dErrors.New(dErrors.CodeBadRequest, "email is not a valid address")
	}
	return nil
}

// Store persists accepted reports.
type Store interface {
	Save(ctx context.Context, id string, r FlightNotListed, receivedAt time.Time) error
}

// Service validates and stores reports and emits an audit event per accepted
// one.
type Service struct {
	store     Store
	publisher *audit.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(store Store, publisher *audit.Publisher, logger *slog.Logger) *Service {
	return &Service{store: store, publisher: publisher, logger: logger, now: time.Now}
}

// Accept validates the report and stores it under a fresh ID.
func (s *Service) Accept(ctx context.Context, sessionID string, r FlightNotListed) (Accepted, error) {
	if err := r.Validate(); err != nil {
		return Accepted{}, err
	}
	acc := Accepted{ID: uuid.NewString(), ReceivedAt: s.now()}
	if err := s.store.Save(ctx, acc.ID, r, acc.ReceivedAt); err != nil {
		return Accepted{}, dErrors.Wrap(dErrors.CodeInternal, "save report", err)
	}
	s.logger.InfoContext(ctx, "flight-not-listed report accepted",
		"report_id", acc.ID, "session_id", sessionID)
	s.publisher.Emit(ctx, audit.Event{
		SessionID: sessionID,
		Action:    audit.ActionReportReceived,
		Detail:    acc.ID,
	})
	return acc, nil
}

// InMemoryStore keeps reports in process memory for tests and local runs.
type InMemoryStore struct {
	mu      sync.Mutex
	reports map[string]FlightNotListed
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{reports: make(map[string]FlightNotListed)}
}

func (s *InMemoryStore) Save(_ context.Context, id string, r FlightNotListed, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[id] = r
	return nil
}
