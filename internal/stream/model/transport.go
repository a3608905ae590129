package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// StreamRequest is what the controller asks the answer service for.
type StreamRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// Transport opens one answer stream. Implementations must close the writer
// side of the returned reader once ctx is cancelled, and must stop producing
// once the reader is closed.
type Transport interface {
	Open(ctx context.Context, req StreamRequest) (*schema.StreamReader[Event], error)
}
