package model

import "time"

// AgentStatus is the lifecycle state of a server-side sub-task.
type AgentStatus string

const (
	AgentRunning AgentStatus = "running"
	AgentSuccess AgentStatus = "success"
	AgentFailed  AgentStatus = "failed"
	AgentTimeout AgentStatus = "timeout"
)

// Valid reports whether s is a known completion status.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentSuccess, AgentFailed, AgentTimeout:
		return true
	}
	return false
}

// AgentStart describes an agent that began executing.
type AgentStart struct {
	Type        string
	Name        string
	Description string
	Icon        string
	Color       string
	IsFallback  bool
}

// AgentCompletion describes the outcome reported for an agent.
type AgentCompletion struct {
	Type            string
	Status          AgentStatus
	ExecutionTimeMs *int64
	Error           string
}

// AgentEntry is one named sub-task shown to the user while a session runs.
type AgentEntry struct {
	Type            string
	Name            string
	Description     string
	Icon            string
	Color           string
	Status          AgentStatus
	ExecutionTimeMs *int64
	Error           string
	IsFallback      bool
	StartedAt       time.Time
	CompletedAt     *time.Time
}

// Running reports whether the entry has not visibly completed yet.
func (e AgentEntry) Running() bool {
	return e.Status == AgentRunning
}

// StartFromEvent projects a start report.
func StartFromEvent(ev AgentProgressEvent) AgentStart {
	return AgentStart{
		Type:        ev.AgentType,
		Name:        ev.AgentName,
		Description: ev.AgentDescription,
		Icon:        ev.Icon,
		Color:       ev.Color,
		IsFallback:  ev.IsFallback,
	}
}

// CompletionFromEvent projects a completion report.
func CompletionFromEvent(ev AgentProgressEvent) AgentCompletion {
	return AgentCompletion{
		Type:            ev.AgentType,
		Status:          ev.Status,
		ExecutionTimeMs: ev.ExecutionTimeMs,
		Error:           ev.Error,
	}
}
