package model

import "encoding/json"

// EventKind names an event on the answer stream.
type EventKind string

const (
	KindSession       EventKind = "session"
	KindStatus        EventKind = "status"
	KindToken         EventKind = "token"
	KindSources       EventKind = "sources"
	KindAgentProgress EventKind = "agent_progress"
	KindComplete      EventKind = "complete"
	KindError         EventKind = "error"
)

// Terminal reports whether the kind ends a session.
func (k EventKind) Terminal() bool {
	return k == KindComplete || k == KindError
}

// Event is the sum type carried by the answer stream. Exactly one of the
// concrete types below implements it per kind.
type Event interface {
	Kind() EventKind
}

// StatusStep is the reasoning phase reported by a status event.
type StatusStep string

const (
	StepIntent     StatusStep = "intent"
	StepRouting    StatusStep = "routing"
	StepSearching  StatusStep = "searching"
	StepGenerating StatusStep = "generating"
)

// AgentProgressType distinguishes agent start and completion reports.
type AgentProgressType string

const (
	AgentProgressStart    AgentProgressType = "start"
	AgentProgressComplete AgentProgressType = "complete"
)

type SessionStartedEvent struct {
	SessionID string `json:"session_id"`
}

type StatusEvent struct {
	Step    StatusStep `json:"step"`
	Message string     `json:"message"`
}

type TokenEvent struct {
	Content string `json:"content"`
}

type SourcesEvent struct {
	Sources []string `json:"sources"`
}

// AgentProgressEvent carries both start and complete payloads; Type selects
// which fields are meaningful.
type AgentProgressEvent struct {
	Type             AgentProgressType `json:"type"`
	AgentType        string            `json:"agent_type"`
	AgentName        string            `json:"agent_name,omitempty"`
	AgentDescription string            `json:"agent_description,omitempty"`
	Icon             string            `json:"icon,omitempty"`
	Color            string            `json:"color,omitempty"`
	IsFallback       bool              `json:"is_fallback,omitempty"`
	Status           AgentStatus       `json:"status,omitempty"`
	ExecutionTimeMs  *int64            `json:"execution_time_ms,omitempty"`
	Error            string            `json:"error,omitempty"`
}

// CompleteEvent ends a session successfully. Metadata holds the whole
// payload as sent by the server.
type CompleteEvent struct {
	SessionID string
	Answer    string
	Metadata  map[string]json.RawMessage
}

// ErrorEvent ends a session with a failure.
type ErrorEvent struct {
	Message string
	Code    string
}

func (SessionStartedEvent) Kind() EventKind { return KindSession }
func (StatusEvent) Kind() EventKind         { return KindStatus }
func (TokenEvent) Kind() EventKind          { return KindToken }
func (SourcesEvent) Kind() EventKind        { return KindSources }
func (AgentProgressEvent) Kind() EventKind  { return KindAgentProgress }
func (CompleteEvent) Kind() EventKind       { return KindComplete }
func (ErrorEvent) Kind() EventKind          { return KindError }
