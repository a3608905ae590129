package session

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/careerlink/answer-stream/internal/stream/model"
)

// handle is the stream owned by one generation. Releasing it is idempotent.
type handle struct {
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	reader   *schema.StreamReader[model.Event]
	released bool
}

func newHandle(gen uint64, cancel context.CancelFunc) *handle {
	return &handle{gen: gen, cancel: cancel, done: make(chan struct{})}
}

// attach binds the opened reader. It closes sr and returns false when the
// handle was released while the stream was being opened.
func (h *handle) attach(sr *schema.StreamReader[model.Event]) bool {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		sr.Close()
		return false
	}
	h.reader = sr
	h.mu.Unlock()
	return true
}

func (h *handle) release() {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	sr := h.reader
	h.mu.Unlock()

	h.cancel()
	if sr != nil {
		sr.Close()
	}
	close(h.done)
}
