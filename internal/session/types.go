package session

import "time"

// State is a step of the session lifecycle
type State string

const (
	StateIdle               State = "idle"
	StateAcquiringResources State = "acquiring_resources"
	StateCreatingSession    State = "creating_session"
	StateActive             State = "active"
	StateEnding             State = "ending"
)

// EndReason records why a session ended
type EndReason string

const (
	ReasonUser     EndReason = "user"
	ReasonCeiling  EndReason = "ceiling"
	ReasonProvider EndReason = "provider"
	ReasonDevice   EndReason = "device"
	ReasonShutdown EndReason = "shutdown"
)

// Session is one live video consultation
type Session struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Personality    string    `json:"personality,omitempty"`
	ProviderURL    string    `json:"provider_url"`
	StartedAt      time.Time `json:"started_at"`
	CeilingSeconds int       `json:"ceiling_seconds"`
}

// Status is a point-in-time view of an orchestrator
type Status struct {
	State            State    `json:"state"`
	Session          *Session `json:"session,omitempty"`
	ElapsedSeconds   int      `json:"elapsed_seconds"`
	RemainingSeconds int      `json:"remaining_seconds"`
}

// Ended is emitted once per End that left a non-idle state
type Ended struct {
	SessionID       string
	UserID          string
	StartedAt       time.Time
	EndedAt         time.Time
	DurationSeconds int
	CeilingSeconds  int
	Reason          EndReason
	ReachedActive   bool
}
