package model

import "encoding/json"

// Phase is the lifecycle phase of a query session.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseConnecting Phase = "connecting"
	PhaseStreaming  Phase = "streaming"
	PhaseCompleted  Phase = "completed"
	PhaseErrored    Phase = "errored"
)

// InFlight reports whether a stream is still expected to deliver events.
func (p Phase) InFlight() bool {
	return p == PhaseConnecting || p == PhaseStreaming
}

// Terminal reports whether the session has finished.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseErrored
}

// StatusUpdate is the reasoning phase currently shown instead of the answer.
type StatusUpdate struct {
	Step    StatusStep
	Message string
}

// SessionError is the terminal failure of a session.
type SessionError struct {
	Message string
	Code    string
}

// Snapshot is the view model exposed to presentation adapters.
type Snapshot struct {
	Query          string
	PriorSessionID string
	SessionID      string
	Phase          Phase
	Status         *StatusUpdate
	Answer         string
	Sources        []string
	Citations      []Citation
	Metadata       map[string]json.RawMessage
	Error          *SessionError
	Agents         []AgentEntry
}

// HasAnswer reports whether there is answer text to display.
func (s Snapshot) HasAnswer() bool {
	return s.Answer != ""
}

// RunningAgents counts agents still visibly running.
func (s Snapshot) RunningAgents() int {
	n := 0
	for _, a := range s.Agents {
		if a.Running() {
			n++
		}
	}
	return n
}
