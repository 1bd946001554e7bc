package wizard

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"flightclaim/internal/audit"
	"flightclaim/internal/itinerary"
	"flightclaim/internal/platform/metrics"
	dErrors "flightclaim/pkg/domain-errors"
)

// CompensationCalculator is the external collaborator that prices a claim.
// The service caches its result per itinerary fingerprint.
type CompensationCalculator interface {
	Estimate(ctx context.Context, it itinerary.Itinerary) (float64, error)
}

// sessionState pairs one session's canonical state with its lock. Every
// mutation runs fully under the lock: linker, validity, cache, persistence.
// A reader right after a mutation therefore never sees stale validity.
type sessionState struct {
	mu sync.Mutex
	State
}

// Service is the itinerary store. It exclusively owns the canonical
// itinerary and validation state per session; durable phase snapshots belong
// to the Synchronizer and are always copies.
type Service struct {
	mu     sync.Mutex
	states map[string]*sessionState

	synchronizer *Synchronizer
	claims       ClaimStore
	calculator   CompensationCalculator
	publisher    *audit.Publisher
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	now          func() time.Time
}

func NewService(
	synchronizer *Synchronizer,
	claims ClaimStore,
	calculator CompensationCalculator,
	publisher *audit.Publisher,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		states:       make(map[string]*sessionState),
		synchronizer: synchronizer,
		claims:       claims,
		calculator:   calculator,
		publisher:    publisher,
		logger:       logger,
		metrics:      m,
		tracer:       otel.Tracer("flightclaim/wizard"),
		now:          time.Now,
	}
}

func (s *Service) session(sessionID string) *sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[sessionID]
	if !ok {
		st = &sessionState{State: State{
			Phase:      itinerary.PhaseAssessment,
			Itinerary:  itinerary.NewItinerary(itinerary.KindDirect),
			Validation: NewValidationState(),
		}}
		s.states[sessionID] = st
	}
	return st
}

// view returns a deep copy safe to hand to callers.
func (st *sessionState) view() State {
	out := State{
		Phase:     st.Phase,
		Itinerary: st.Itinerary.Clone(),
		CompCache: st.CompCache,
		Validation: ValidationState{
			StepValidation:  make(map[itinerary.Phase]bool, len(st.Validation.StepValidation)),
			StepInteraction: make(map[itinerary.Phase]bool, len(st.Validation.StepInteraction)),
			Errors:          make(map[itinerary.Phase][]string, len(st.Validation.Errors)),
			CompletedSteps:  append([]itinerary.Phase{}, st.Validation.CompletedSteps...),
		},
	}
	for k, v := range st.Validation.StepValidation {
		out.Validation.StepValidation[k] = v
	}
	for k, v := range st.Validation.StepInteraction {
		out.Validation.StepInteraction[k] = v
	}
	for k, v := range st.Validation.Errors {
		out.Validation.Errors[k] = append([]string{}, v...)
	}
	return out
}

// State returns the current view for a session.
func (s *Service) State(ctx context.Context, sessionID string) State {
	st := s.session(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.view()
}

// mutate is the single mutation path: apply edits the segments (returning
// false for a rejected no-op), then validity, validation state, compensation
// cache, and durable persistence all run before the lock is released.
func (s *Service) mutate(ctx context.Context, sessionID, operation string, apply func(st *sessionState) bool) State {
	ctx, span := s.tracer.Start(ctx, "wizard."+operation,
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	st := s.session(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if !apply(st) {
		// Rejected edits leave state untouched.
		return st.view()
	}

	valid := itinerary.IsItineraryValid(st.Itinerary, st.Phase)
	st.Validation.StepValidation[st.Phase] = valid
	st.Validation.StepInteraction[st.Phase] = true
	st.Validation.Errors[st.Phase] = itinerary.ValidationIssues(st.Itinerary, st.Phase)
	st.Validation.markCompleted(st.Phase, valid)

	if fp := st.Itinerary.Fingerprint(); fp != st.CompCache.Fingerprint {
		st.CompCache = CompCache{Fingerprint: fp}
	}

	if err := s.synchronizer.Persist(ctx, sessionID, st.Phase, st.Itinerary); err != nil {
		s.logger.ErrorContext(ctx, "snapshot persist failed",
			"session_id", sessionID, "operation", operation, "error", err.Error())
	}
	s.persistCompletedPhases(ctx, sessionID, st)

	s.metrics.CountMutation(operation, strconv.Itoa(int(st.Phase)), valid)
	return st.view()
}

func (s *Service) persistCompletedPhases(ctx context.Context, sessionID string, st *sessionState) {
	raw, err := json.Marshal(st.Validation.CompletedSteps)
	if err != nil {
		return
	}
	if err := s.synchronizer.SaveShared(ctx, sessionID, KeyCompletedPhases, string(raw)); err != nil {
		s.logger.WarnContext(ctx, "completed phases persist failed",
			"session_id", sessionID, "error", err.Error())
	}
}

// SetKind toggles between direct and multi-city. The segment list resets to
// the empty layout for the new kind; nothing carries over.
func (s *Service) SetKind(ctx context.Context, sessionID string, kind itinerary.Kind) State {
	return s.mutate(ctx, sessionID, "set_kind", func(st *sessionState) bool {
		if kind != itinerary.KindDirect && kind != itinerary.KindMulti {
			return false
		}
		st.Itinerary = itinerary.Itinerary{Kind: kind, Segments: itinerary.ResetForKind(kind)}
		return true
	})
}

// SetSegments replaces the whole segment list, clamping to the kind's
// allowed counts.
func (s *Service) SetSegments(ctx context.Context, sessionID string, segs []itinerary.Segment) State {
	return s.mutate(ctx, sessionID, "set_segments", func(st *sessionState) bool {
		n := len(segs)
		switch st.Itinerary.Kind {
		case itinerary.KindDirect:
			if n != 1 {
				return false
			}
		case itinerary.KindMulti:
			if n < itinerary.MinMultiSegments || n > itinerary.MaxSegments {
				return false
			}
		}
		it := itinerary.Itinerary{Kind: st.Itinerary.Kind, Segments: segs}
		st.Itinerary = it.Clone()
		return true
	})
}

// SetSegmentLocation edits one endpoint; the linker keeps neighbors
// consistent.
func (s *Service) SetSegmentLocation(ctx context.Context, sessionID string, index int, field itinerary.LocationField, loc *itinerary.Location) State {
	return s.mutate(ctx, sessionID, "set_location", func(st *sessionState) bool {
		next := itinerary.SetLocation(st.Itinerary.Segments, index, field, loc)
		if sameSlice(next, st.Itinerary.Segments) {
			return false
		}
		st.Itinerary.Segments = next
		return true
	})
}

// SetSegmentDate sets a segment's travel date.
func (s *Service) SetSegmentDate(ctx context.Context, sessionID string, index int, date *time.Time) State {
	return s.mutate(ctx, sessionID, "set_date", func(st *sessionState) bool {
		next := itinerary.SetDate(st.Itinerary.Segments, index, date)
		if sameSlice(next, st.Itinerary.Segments) {
			return false
		}
		st.Itinerary.Segments = next
		return true
	})
}

// BeginFlightSearch bumps the session's search generation. Responses carry
// it back through SelectFlight, where stale generations are discarded.
func (s *Service) BeginFlightSearch(sessionID string) uint64 {
	st := s.session(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.searchGen++
	return st.searchGen
}

// SelectFlight records a chosen flight from search results. Generation 0
// bypasses the staleness check for direct selections not tied to a search.
func (s *Service) SelectFlight(ctx context.Context, sessionID string, index int, flight itinerary.Flight, generation uint64) State {
	return s.mutate(ctx, sessionID, "select_flight", func(st *sessionState) bool {
		if generation != 0 && generation != st.searchGen {
			s.logger.InfoContext(ctx, "discarding stale flight selection",
				"session_id", sessionID, "generation", generation, "current", st.searchGen)
			return false
		}
		next := itinerary.SelectFlight(st.Itinerary.Segments, index, flight)
		if sameSlice(next, st.Itinerary.Segments) {
			return false
		}
		st.Itinerary.Segments = next
		return true
	})
}

// DeleteFlight clears a chosen flight.
func (s *Service) DeleteFlight(ctx context.Context, sessionID string, index int) State {
	return s.mutate(ctx, sessionID, "delete_flight", func(st *sessionState) bool {
		if index < 0 || index >= len(st.Itinerary.Segments) || st.Itinerary.Segments[index].Flight == nil {
			return false
		}
		st.Itinerary.Segments = itinerary.DeleteFlight(st.Itinerary.Segments, index)
		return true
	})
}

// AddSegment appends a segment to a multi-city itinerary.
func (s *Service) AddSegment(ctx context.Context, sessionID string) State {
	return s.mutate(ctx, sessionID, "add_segment", func(st *sessionState) bool {
		if st.Itinerary.Kind != itinerary.KindMulti {
			return false
		}
		next := itinerary.AddSegment(st.Itinerary.Segments)
		if len(next) == len(st.Itinerary.Segments) {
			return false
		}
		st.Itinerary.Segments = next
		return true
	})
}

// DeleteSegment removes a segment; the first two of a multi itinerary are
// protected.
func (s *Service) DeleteSegment(ctx context.Context, sessionID string, index int) State {
	return s.mutate(ctx, sessionID, "delete_segment", func(st *sessionState) bool {
		if st.Itinerary.Kind != itinerary.KindMulti {
			return false
		}
		next := itinerary.DeleteSegment(st.Itinerary.Segments, index)
		if len(next) == len(st.Itinerary.Segments) {
			return false
		}
		st.Itinerary.Segments = next
		return true
	})
}

// EnterPhase loads the itinerary for a phase from durable storage, runs the
// adjacency repair pass where flights are already authoritative, and makes
// the phase current. Entering a phase records no interaction; only edits do.
func (s *Service) EnterPhase(ctx context.Context, sessionID string, phase itinerary.Phase) (State, error) {
	ctx, span := s.tracer.Start(ctx, "wizard.enter_phase",
		trace.WithAttributes(attribute.Int("wizard.phase", int(phase))))
	defer span.End()

	if !phase.Valid() {
		return State{}, dErrors.New(dErrors.CodeBadRequest, "unknown wizard phase")
	}

	st := s.session(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	loaded, found, err := s.synchronizer.Load(ctx, sessionID, phase)
	if err != nil {
		return State{}, err
	}
	if !found {
		loaded = itinerary.NewItinerary(itinerary.KindDirect)
	}

	if found && phase.RequiresFlights() && itinerary.NeedsRepair(loaded.Segments) {
		s.logger.WarnContext(ctx, "corrupted adjacency on load, running repair pass",
			"session_id", sessionID, "phase", int(phase))
		if s.metrics != nil {
			s.metrics.AdjacencyRepairs.Inc()
		}
		prior := s.synchronizer.PriorRecording(ctx, sessionID, phase, len(loaded.Segments))
		loaded.Segments = itinerary.Repair(loaded.Segments, prior)
		if err := s.synchronizer.Persist(ctx, sessionID, phase, loaded); err != nil {
			s.logger.ErrorContext(ctx, "post-repair persist failed",
				"session_id", sessionID, "error", err.Error())
		}
	}

	st.Phase = phase
	st.Itinerary = loaded
	st.Validation.StepValidation[phase] = itinerary.IsItineraryValid(loaded, phase)
	st.Validation.Errors[phase] = itinerary.ValidationIssues(loaded, phase)

	if err := s.synchronizer.SaveShared(ctx, sessionID, KeyActivePhase, strconv.Itoa(int(phase))); err != nil {
		s.logger.WarnContext(ctx, "active phase persist failed",
			"session_id", sessionID, "error", err.Error())
	}
	if s.metrics != nil {
		s.metrics.PhaseEntered.WithLabelValues(strconv.Itoa(int(phase))).Inc()
	}
	s.publisher.Emit(ctx, audit.Event{
		SessionID: sessionID, Action: audit.ActionPhaseEntered, Phase: int(phase),
	})
	return st.view(), nil
}

// CompletePhase records that the user left the phase through its continue
// action. Requires the phase to be satisfied: valid and actually touched.
func (s *Service) CompletePhase(ctx context.Context, sessionID string, phase itinerary.Phase) (State, error) {
	st := s.session(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.Validation.Satisfied(phase) {
		return st.view(), dErrors.New(dErrors.CodeUnprocessable, "phase is not yet valid")
	}

	var completed []int
	if raw, ok := s.synchronizer.LoadShared(ctx, sessionID, KeyContinuePhases); ok {
		_ = json.Unmarshal([]byte(raw), &completed)
	}
	for _, p := range completed {
		if p == int(phase) {
			return st.view(), nil
		}
	}
	completed = append(completed, int(phase))
	raw, _ := json.Marshal(completed)
	if err := s.synchronizer.SaveShared(ctx, sessionID, KeyContinuePhases, string(raw)); err != nil {
		s.logger.WarnContext(ctx, "continue phases persist failed",
			"session_id", sessionID, "error", err.Error())
	}
	s.publisher.Emit(ctx, audit.Event{
		SessionID: sessionID, Action: audit.ActionPhaseCompleted, Phase: int(phase),
	})
	return st.view(), nil
}

// SetTermsAccepted and SetPrivacyAccepted persist the acceptance booleans
// that survive the final-phase purge.
func (s *Service) SetTermsAccepted(ctx context.Context, sessionID string, accepted bool) error {
	return s.synchronizer.SaveShared(ctx, sessionID, KeyTermsAccepted, strconv.FormatBool(accepted))
}

func (s *Service) SetPrivacyAccepted(ctx context.Context, sessionID string, accepted bool) error {
	return s.synchronizer.SaveShared(ctx, sessionID, KeyPrivacyAccepted, strconv.FormatBool(accepted))
}

func (s *Service) accepted(ctx context.Context, sessionID, key string) bool {
	v, ok := s.synchronizer.LoadShared(ctx, sessionID, key)
	return ok && v == "true"
}

// Compensation returns the cached amount when the itinerary has not changed
// since it was computed, otherwise asks the calculator and refills the
// cache.
func (s *Service) Compensation(ctx context.Context, sessionID string) (float64, error) {
	ctx, span := s.tracer.Start(ctx, "wizard.compensation")
	defer span.End()

	st := s.session(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	fp := st.Itinerary.Fingerprint()
	if st.CompCache.Amount != nil && st.CompCache.Fingerprint == fp {
		return *st.CompCache.Amount, nil
	}
	amount, err := s.calculator.Estimate(ctx, st.Itinerary.Clone())
	if err != nil {
		return 0, dErrors.Wrap(dErrors.CodeInternal, "compensation estimate failed", err)
	}
	st.CompCache = CompCache{Amount: &amount, Fingerprint: fp}
	return amount, nil
}

// Submit finalizes the claim from the final phase. The final itinerary must
// be satisfied and both acceptances recorded.
func (s *Service) Submit(ctx context.Context, sessionID string) (Claim, error) {
	ctx, span := s.tracer.Start(ctx, "wizard.submit")
	defer span.End()

	st := s.session(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.Phase != itinerary.PhaseFinal {
		return Claim{}, dErrors.New(dErrors.CodeConflict, "claims are submitted from the final phase")
	}
	if !st.Validation.Satisfied(itinerary.PhaseFinal) {
		return Claim{}, dErrors.New(dErrors.CodeUnprocessable, "final phase is not yet valid")
	}
	if !s.accepted(ctx, sessionID, KeyTermsAccepted) || !s.accepted(ctx, sessionID, KeyPrivacyAccepted) {
		return Claim{}, dErrors.New(dErrors.CodeUnprocessable, "terms and privacy must be accepted")
	}

	claim := Claim{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Snapshot:    NewSnapshot(st.Itinerary, s.now()),
		Amount:      st.CompCache.Amount,
		SubmittedAt: s.now(),
	}
	if err := s.claims.Save(ctx, claim); err != nil {
		return Claim{}, dErrors.Wrap(dErrors.CodeInternal, "save claim", err)
	}
	if s.metrics != nil {
		s.metrics.ClaimsSubmitted.Inc()
	}
	s.publisher.Emit(ctx, audit.Event{
		SessionID: sessionID, Action: audit.ActionClaimSubmitted, Phase: int(itinerary.PhaseFinal),
	})
	return claim, nil
}

// sameSlice reports whether the linker returned its input unchanged, which
// is how rejected edits are signalled.
func sameSlice(a, b []itinerary.Segment) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}
