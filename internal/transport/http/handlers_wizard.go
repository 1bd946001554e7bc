package httptransport

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"flightclaim/internal/itinerary"
	"flightclaim/internal/platform/middleware"
	"flightclaim/internal/wizard"
	dErrors "flightclaim/pkg/domain-errors"
	"flightclaim/pkg/platform/httputil"
)

// WizardHandler exposes the itinerary store operations per session.
type WizardHandler struct {
	service *wizard.Service
	logger  *slog.Logger
}

func NewWizardHandler(service *wizard.Service, logger *slog.Logger) *WizardHandler {
	return &WizardHandler{service: service, logger: logger}
}

func (h *WizardHandler) Register(r chi.Router) {
	r.Get("/wizard/state", h.HandleState)
	r.Post("/wizard/kind", h.HandleSetKind)
	r.Post("/wizard/segments/{index}/location", h.HandleSetLocation)
	r.Post("/wizard/segments/{index}/date", h.HandleSetDate)
	r.Post("/wizard/segments/{index}/flight", h.HandleSelectFlight)
	r.Delete("/wizard/segments/{index}/flight", h.HandleDeleteFlight)
	r.Post("/wizard/segments", h.HandleAddSegment)
	r.Delete("/wizard/segments/{index}", h.HandleDeleteSegment)
	r.Post("/wizard/phase/{phase}/enter", h.HandleEnterPhase)
	r.Post("/wizard/phase/{phase}/complete", h.HandleCompletePhase)
	r.Post("/wizard/acceptance", h.HandleAcceptance)
	r.Get("/wizard/compensation", h.HandleCompensation)
	r.Post("/wizard/submit", h.HandleSubmit)
}

// stateResponse is the wire form of the wizard state handed to the UI.
type stateResponse struct {
	Phase           int                 `json:"phase"`
	Kind            itinerary.Kind      `json:"kind"`
	Segments        []segmentResponse   `json:"segments"`
	SelectedFlights []itinerary.Flight  `json:"selectedFlights"`
	StepValidation  map[string]bool     `json:"stepValidation"`
	StepInteraction map[string]bool     `json:"stepInteraction"`
	Errors          map[string][]string `json:"errors"`
	CompletedSteps  []int               `json:"completedSteps"`
}

type segmentResponse struct {
	From   *itinerary.Location `json:"fromLocation"`
	To     *itinerary.Location `json:"toLocation"`
	Date   string              `json:"date,omitempty"`
	Flight *itinerary.Flight   `json:"selectedFlight,omitempty"`
}

func toStateResponse(st wizard.State) stateResponse {
	resp := stateResponse{
		Phase:           int(st.Phase),
		Kind:            st.Itinerary.Kind,
		Segments:        make([]segmentResponse, len(st.Itinerary.Segments)),
		SelectedFlights: st.Itinerary.SelectedFlights(),
		StepValidation:  make(map[string]bool, len(st.Validation.StepValidation)),
		StepInteraction: make(map[string]bool, len(st.Validation.StepInteraction)),
		Errors:          make(map[string][]string, len(st.Validation.Errors)),
		CompletedSteps:  make([]int, 0, len(st.Validation.CompletedSteps)),
	}
	for i, seg := range st.Itinerary.Segments {
		sr := segmentResponse{From: seg.From, To: seg.To, Flight: seg.Flight}
		if seg.Date != nil {
			sr.Date = seg.Date.Format("2006-01-02")
		}
		resp.Segments[i] = sr
	}
	for p, v := range st.Validation.StepValidation {
		resp.StepValidation[strconv.Itoa(int(p))] = v
	}
	for p, v := range st.Validation.StepInteraction {
		resp.StepInteraction[strconv.Itoa(int(p))] = v
	}
	for p, v := range st.Validation.Errors {
		resp.Errors[strconv.Itoa(int(p))] = v
	}
	for _, p := range st.Validation.CompletedSteps {
		resp.CompletedSteps = append(resp.CompletedSteps, int(p))
	}
	return resp
}

// HandleState handles GET /wizard/state.
func (h *WizardHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())
	httputil.WriteJSON(w, http.StatusOK, toStateResponse(h.service.State(r.Context(), sessionID)))
}

type setKindRequest struct {
	Kind string `json:"kind"`
}

// HandleSetKind handles POST /wizard/kind.
func (h *WizardHandler) HandleSetKind(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[setKindRequest](w, r)
	if !ok {
		return
	}
	kind := itinerary.Kind(req.Kind)
	if kind != itinerary.KindDirect && kind != itinerary.KindMulti {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "kind must be direct or multi"))
		return
	}
	sessionID := middleware.GetSessionID(r.Context())
	httputil.WriteJSON(w, http.StatusOK, toStateResponse(h.service.SetKind(r.Context(), sessionID, kind)))
}

type setLocationRequest struct {
	Field    string              `json:"field"`
	Location *itinerary.Location `json:"location"`
}

// HandleSetLocation handles POST /wizard/segments/{index}/location.
func (h *WizardHandler) HandleSetLocation(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[setLocationRequest](w, r)
	if !ok {
		return
	}
	var field itinerary.LocationField
	switch req.Field {
	case "from", string(itinerary.FieldFrom):
		field = itinerary.FieldFrom
	case "to", string(itinerary.FieldTo):
		field = itinerary.FieldTo
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "field must be from or to"))
		return
	}
	sessionID := middleware.GetSessionID(r.Context())
	st := h.service.SetSegmentLocation(r.Context(), sessionID, index, field, req.Location)
	httputil.WriteJSON(w, http.StatusOK, toStateResponse(st))
}

type setDateRequest struct {
	Date string `json:"date"` // YYYY-MM-DD, empty clears
}

// HandleSetDate handles POST /wizard/segments/{index}/date.
func (h *WizardHandler) HandleSetDate(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[setDateRequest](w, r)
	if !ok {
		return
	}
	var date *time.Time
	if req.Date != "" {
		d, err := time.ParseInLocation("2006-01-02", req.Date, time.UTC)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "date must be YYYY-MM-DD"))
			return
		}
		date = &d
	}
	sessionID := middleware.GetSessionID(r.Context())
	st := h.service.SetSegmentDate(r.Context(), sessionID, index, date)
	httputil.WriteJSON(w, http.StatusOK, toStateResponse(st))
}

type selectFlightRequest struct {
	Flight     itinerary.Flight `json:"flight"`
	Generation uint64           `json:"generation"`
}

// HandleSelectFlight handles POST /wizard/segments/{index}/flight.
func (h *WizardHandler) HandleSelectFlight(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[selectFlightRequest](w, r)
	if !ok {
		return
	}
	sessionID := middleware.GetSessionID(r.Context())
	st := h.service.SelectFlight(r.Context(), sessionID, index, req.Flight, req.Generation)
	httputil.WriteJSON(w, http.StatusOK, toStateResponse(st))
}

// HandleDeleteFlight handles DELETE /wizard/segments/{index}/flight.
func (h *WizardHandler) HandleDeleteFlight(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	sessionID := middleware.GetSessionID(r.Context())
	httputil.WriteJSON(w, http.StatusOK, toStateResponse(h.service.DeleteFlight(r.Context(), sessionID, index)))
}

// HandleAddSegment handles POST /wizard/segments.
func (h *WizardHandler) HandleAddSegment(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())
	httputil.WriteJSON(w, http.StatusOK, toStateResponse(h.service.AddSegment(r.Context(), sessionID)))
}

// HandleDeleteSegment handles DELETE /wizard/segments/{index}.
func (h *WizardHandler) HandleDeleteSegment(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	sessionID := middleware.GetSessionID(r.Context())
	httputil.WriteJSON(w, http.StatusOK, toStateResponse(h.service.DeleteSegment(r.Context(), sessionID, index)))
}

// HandleEnterPhase handles POST /wizard/phase/{phase}/enter.
func (h *WizardHandler) HandleEnterPhase(w http.ResponseWriter, r *http.Request) {
	phase, ok := pathPhase(w, r)
	if !ok {
		return
	}
	sessionID := middleware.GetSessionID(r.Context())
	st, err := h.service.EnterPhase(r.Context(), sessionID, phase)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "phase entry failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"session_id", sessionID, "phase", int(phase), "error", err.Error())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStateResponse(st))
}

// HandleCompletePhase handles POST /wizard/phase/{phase}/complete.
func (h *WizardHandler) HandleCompletePhase(w http.ResponseWriter, r *http.Request) {
	phase, ok := pathPhase(w, r)
	if !ok {
		return
	}
	sessionID := middleware.GetSessionID(r.Context())
	st, err := h.service.CompletePhase(r.Context(), sessionID, phase)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStateResponse(st))
}

type acceptanceRequest struct {
	Terms   *bool `json:"termsAccepted,omitempty"`
	Privacy *bool `json:"privacyAccepted,omitempty"`
}

// HandleAcceptance handles POST /wizard/acceptance.
func (h *WizardHandler) HandleAcceptance(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[acceptanceRequest](w, r)
	if !ok {
		return
	}
	if req.Terms == nil && req.Privacy == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "nothing to accept"))
		return
	}
	ctx := r.Context()
	sessionID := middleware.GetSessionID(ctx)
	if req.Terms != nil {
		if err := h.service.SetTermsAccepted(ctx, sessionID, *req.Terms); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	if req.Privacy != nil {
		if err := h.service.SetPrivacyAccepted(ctx, sessionID, *req.Privacy); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

type compensationResponse struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// HandleCompensation handles GET /wizard/compensation.
func (h *WizardHandler) HandleCompensation(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())
	amount, err := h.service.Compensation(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, compensationResponse{Amount: amount, Currency: "EUR"})
}

// HandleSubmit handles POST /wizard/submit.
func (h *WizardHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())
	claim, err := h.service.Submit(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "claim submitted",
		"request_id", middleware.GetRequestID(r.Context()),
		"session_id", sessionID, "claim_id", claim.ID)
	httputil.WriteJSON(w, http.StatusCreated, claim)
}

func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "segment index must be a non-negative integer"))
		return 0, false
	}
	return index, true
}

func pathPhase(w http.ResponseWriter, r *http.Request) (itinerary.Phase, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "phase"))
	if err != nil || !itinerary.Phase(n).Valid() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown wizard phase"))
		return 0, false
	}
	return itinerary.Phase(n), true
}
