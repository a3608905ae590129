package session

import (
	"context"

	"github.com/careerlink/answer-stream/internal/stream/model"
	"github.com/careerlink/answer-stream/internal/stream/tracker"
)

// Recorder persists a finished turn.
type Recorder interface {
	RecordTurn(ctx context.Context, sessionID string, turn model.Turn) error
}

type Option func(*Controller)

// WithOnChange registers the re-render hook. It runs on a dedicated goroutine
// and bursts of changes are coalesced into one call with the latest snapshot.
func WithOnChange(fn func(model.Snapshot)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// WithOnLoginRequired registers the hook fired when the server answers with
// the unauthorized code.
func WithOnLoginRequired(fn func(model.SessionError)) Option {
	return func(c *Controller) { c.onLoginRequired = fn }
}

// WithTracker replaces the default agent tracker.
func WithTracker(t *tracker.Tracker) Option {
	return func(c *Controller) {
		if t != nil {
			c.tracker = t
		}
	}
}

// WithRecorder records completed turns.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}
