package model

import "time"

// ================ Config ================
type TransportConfig struct {
	BaseURL     string        `envconfig:"ANSWER_API_BASE_URL" required:"true"`
	StreamPath  string        `envconfig:"ANSWER_API_STREAM_PATH" default:"/api/search/stream"`
	Token       string        `envconfig:"ANSWER_API_TOKEN"`
	DialTimeout time.Duration `envconfig:"ANSWER_API_DIAL_TIMEOUT" default:"10s"`
	Buffer      int           `envconfig:"ANSWER_STREAM_BUFFER" default:"64"`
}

type SessionConfig struct {
	AgentMinDisplay time.Duration `envconfig:"AGENT_MIN_DISPLAY" default:"2500ms"`
}

type HistoryConfig struct {
	TTL      string `envconfig:"HISTORY_TTL" default:"15m"`
	MaxTurns int    `envconfig:"HISTORY_MAX_TURNS" default:"5"`
}

// DefaultAgentMinDisplay keeps fast agents visible long enough to read.
const DefaultAgentMinDisplay = 2500 * time.Millisecond
