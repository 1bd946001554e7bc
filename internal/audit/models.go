// Package audit records claim lifecycle events. Emission is fire-and-forget
// through a buffered channel so a slow sink never blocks a wizard mutation.
package audit

import "time"

// Action names a claim lifecycle step.
type Action string

const (
	ActionSessionStarted Action = "session_started"
	ActionPhaseEntered   Action = "phase_entered"
	ActionPhaseCompleted Action = "phase_completed"
	ActionClaimSubmitted Action = "claim_submitted"
	ActionReportReceived Action = "report_received"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionId"`
	Action    Action    `json:"action"`
	Phase     int       `json:"phase,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}
