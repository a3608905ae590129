// Package tracker keeps the agent progress entries of one session and holds
// fast completions back until they have been visible for a minimum time.
package tracker

import (
	"sync"
	"time"

	"github.com/careerlink/answer-stream/internal/stream/model"
	logx "github.com/careerlink/answer-stream/pkg/logger"
)

type pendingUpdate struct {
	timer Timer
	seq   uint64
}

// Tracker is safe for concurrent use. Deferred completions run on timer
// goroutines and take the same lock as event handling.
type Tracker struct {
	mu         sync.Mutex
	clock      Clock
	minDisplay time.Duration
	onChange   func()

	order   []string
	entries map[string]*model.AgentEntry
	pending map[string]pendingUpdate
	seq     uint64
	epoch   uint64
}

type Option func(*Tracker)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithMinDisplay sets how long a running entry stays visible at least.
func WithMinDisplay(d time.Duration) Option {
	return func(t *Tracker) {
		if d >= 0 {
			t.minDisplay = d
		}
	}
}

// WithOnChange registers a hook fired after every applied mutation.
func WithOnChange(fn func()) Option {
	return func(t *Tracker) { t.onChange = fn }
}

func New(opts ...Option) *Tracker {
	t := &Tracker{
		clock:      SystemClock,
		minDisplay: model.DefaultAgentMinDisplay,
		entries:    map[string]*model.AgentEntry{},
		pending:    map[string]pendingUpdate{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetOnChange replaces the change hook.
func (t *Tracker) SetOnChange(fn func()) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// Start inserts or resets the entry for s.Type as running.
func (t *Tracker) Start(s model.AgentStart) {
	t.mu.Lock()
	t.cancelPendingLocked(s.Type)
	if _, ok := t.entries[s.Type]; !ok {
		t.order = append(t.order, s.Type)
	}
	t.entries[s.Type] = &model.AgentEntry{
		Type:        s.Type,
		Name:        s.Name,
		Description: s.Description,
		Icon:        s.Icon,
		Color:       s.Color,
		IsFallback:  s.IsFallback,
		Status:      model.AgentRunning,
		StartedAt:   t.clock.Now(),
	}
	fn := t.onChange
	t.mu.Unlock()

	notify(fn)
}

// Complete applies c now if the entry has been visible for the minimum
// display time, otherwise schedules it for when it has. It reports whether an
// entry for c.Type exists.
func (t *Tracker) Complete(c model.AgentCompletion) bool {
	t.mu.Lock()
	entry, ok := t.entries[c.Type]
	if !ok {
		t.mu.Unlock()
		logx.Debug().Str("agent_type", c.Type).Msg("ignoring completion for unknown agent")
		return false
	}

	t.cancelPendingLocked(c.Type)
	elapsed := t.clock.Now().Sub(entry.StartedAt)
	if elapsed >= t.minDisplay {
		t.applyLocked(entry, c)
		fn := t.onChange
		t.mu.Unlock()
		notify(fn)
		return true
	}

	t.seq++
	seq, epoch := t.seq, t.epoch
	timer := t.clock.AfterFunc(t.minDisplay-elapsed, func() {
		t.fire(c, seq, epoch)
	})
	t.pending[c.Type] = pendingUpdate{timer: timer, seq: seq}
	t.mu.Unlock()
	return true
}

func (t *Tracker) fire(c model.AgentCompletion, seq, epoch uint64) {
	t.mu.Lock()
	p, ok := t.pending[c.Type]
	if !ok || p.seq != seq || t.epoch != epoch {
		t.mu.Unlock()
		return
	}
	delete(t.pending, c.Type)
	entry, ok := t.entries[c.Type]
	if !ok {
		t.mu.Unlock()
		return
	}
	t.applyLocked(entry, c)
	fn := t.onChange
	t.mu.Unlock()

	notify(fn)
}

func (t *Tracker) applyLocked(entry *model.AgentEntry, c model.AgentCompletion) {
	now := t.clock.Now()
	entry.Status = c.Status
	entry.Error = c.Error
	entry.ExecutionTimeMs = c.ExecutionTimeMs
	entry.CompletedAt = &now
}

func (t *Tracker) cancelPendingLocked(agentType string) {
	if p, ok := t.pending[agentType]; ok {
		p.timer.Stop()
		delete(t.pending, agentType)
	}
}

// Reset drops every entry and cancels every deferred update.
func (t *Tracker) Reset() {
	t.mu.Lock()
	for agentType := range t.pending {
		t.cancelPendingLocked(agentType)
	}
	t.epoch++
	t.order = nil
	t.entries = map[string]*model.AgentEntry{}
	t.mu.Unlock()
}

// Entries returns copies of the entries in first-start order.
func (t *Tracker) Entries() []model.AgentEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.order) == 0 {
		return nil
	}
	out := make([]model.AgentEntry, 0, len(t.order))
	for _, agentType := range t.order {
		e := *t.entries[agentType]
		if e.ExecutionTimeMs != nil {
			v := *e.ExecutionTimeMs
			e.ExecutionTimeMs = &v
		}
		if e.CompletedAt != nil {
			v := *e.CompletedAt
			e.CompletedAt = &v
		}
		out = append(out, e)
	}
	return out
}

// Pending reports the number of scheduled deferred updates.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func notify(fn func()) {
	if fn != nil {
		fn()
	}
}
