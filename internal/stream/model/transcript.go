package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

type TranscriptRepository interface {
	// AddMessage appends a message to the transcript of the given session
	AddMessage(ctx context.Context, sessionID string, message *schema.Message) error

	// LoadTranscript retrieves the transcript of a session
	LoadTranscript(ctx context.Context, sessionID string) (*Transcript, error)

	// ClearTranscript removes the transcript of a session
	ClearTranscript(ctx context.Context, sessionID string) error
}

// Transcript is the recorded question/answer history of one session.
type Transcript struct {
	SessionID string
	Messages  []*schema.Message
}

// Turn is one question and its final answer.
type Turn struct {
	Query  string
	Answer string
}
