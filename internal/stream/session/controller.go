// Package session turns an answer stream into the view model shared by the
// search page and the chat panel.
//
// Each Start opens a new generation. Events are applied by one dispatch loop
// per generation and every mutation first checks that its generation is
// still the active one, so a superseded stream can never touch the view.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"maps"
	"net/http"
	"strings"
	"sync"
	"time"

	errx "github.com/careerlink/answer-stream/internal/core/error"
	"github.com/careerlink/answer-stream/internal/stream/model"
	"github.com/careerlink/answer-stream/internal/stream/tracker"
	logx "github.com/careerlink/answer-stream/pkg/logger"
)

const recordTimeout = 5 * time.Second

type sessionState struct {
	query          string
	priorSessionID string
	sessionID      string
	sessionStarted bool
	phase          model.Phase
	status         *model.StatusUpdate
	answer         strings.Builder
	tokens         int
	sources        []string
	metadata       map[string]json.RawMessage
	err            *model.SessionError
}

type Controller struct {
	transport       model.Transport
	tracker         *tracker.Tracker
	recorder        Recorder
	onChange        func(model.Snapshot)
	onLoginRequired func(model.SessionError)

	mu     sync.Mutex
	gen    uint64
	active *handle
	state  sessionState
	closed bool

	wg        sync.WaitGroup
	changes   chan struct{}
	quit      chan struct{}
	closeOnce sync.Once
}

// New builds a controller reading streams from t.
func New(t model.Transport, opts ...Option) *Controller {
	c := &Controller{
		transport: t,
		changes:   make(chan struct{}, 1),
		quit:      make(chan struct{}),
	}
	c.state.phase = model.PhaseIdle
	for _, opt := range opts {
		opt(c)
	}
	if c.tracker == nil {
		c.tracker = tracker.New()
	}
	c.tracker.SetOnChange(c.notify)
	if c.onChange != nil {
		c.wg.Add(1)
		go c.notifyLoop()
	}
	return c
}

// Start opens a session for query. Follow-ups and retries pass the session id
// the server assigned earlier. It returns false for an empty query, for a
// query identical to the one still in flight, and after Close.
func (c *Controller) Start(query, priorSessionID string) bool {
	q := strings.TrimSpace(query)
	if q == "" {
		return false
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if c.active != nil && c.state.query == q && c.state.phase.InFlight() {
		c.mu.Unlock()
		logx.Debug().Str("query", q).Msg("query already streaming; ignoring duplicate start")
		return false
	}

	prev := c.active
	c.gen++
	ctx, cancel := context.WithCancel(context.Background())
	h := newHandle(c.gen, cancel)
	c.active = h
	c.state = sessionState{
		query:          q,
		priorSessionID: priorSessionID,
		phase:          model.PhaseConnecting,
	}
	c.tracker.Reset()
	c.wg.Add(1)
	c.mu.Unlock()

	if prev != nil {
		prev.release()
	}
	logx.Debug().Uint64("generation", h.gen).Str("prior_session_id", priorSessionID).Msg("starting answer session")
	c.notify()

	go c.run(ctx, h, model.StreamRequest{Query: q, SessionID: priorSessionID})
	return true
}

// FollowUp starts query in the context of the last known session.
func (c *Controller) FollowUp(query string) bool {
	return c.Start(query, c.lastSessionID())
}

// Retry re-runs the last query with the last known session id.
func (c *Controller) Retry() bool {
	c.mu.Lock()
	q := c.state.query
	c.mu.Unlock()
	return c.Start(q, c.lastSessionID())
}

func (c *Controller) lastSessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.sessionID != "" {
		return c.state.sessionID
	}
	return c.state.priorSessionID
}

// Cancel stops listening to the active session. The view keeps what it has
// shown so far; late events of the abandoned stream are ignored.
func (c *Controller) Cancel() {
	c.mu.Lock()
	h := c.active
	c.gen++
	c.active = nil
	if c.state.phase.InFlight() {
		c.state.phase = model.PhaseIdle
		c.state.status = nil
	}
	c.tracker.Reset()
	c.mu.Unlock()

	if h != nil {
		h.release()
	}
	c.notify()
}

// Close cancels the active session, waits for stream goroutines to finish and
// stops change notifications. Start is a no-op afterwards.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.Cancel()
		close(c.quit)
		c.wg.Wait()
	})
}

// Snapshot returns the current view model.
func (c *Controller) Snapshot() model.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := model.Snapshot{
		Query:          c.state.query,
		PriorSessionID: c.state.priorSessionID,
		SessionID:      c.state.sessionID,
		Phase:          c.state.phase,
		Answer:         c.state.answer.String(),
		Metadata:       maps.Clone(c.state.metadata),
		Agents:         c.tracker.Entries(),
	}
	if c.state.status != nil {
		st := *c.state.status
		s.Status = &st
	}
	if c.state.err != nil {
		e := *c.state.err
		s.Error = &e
	}
	if len(c.state.sources) > 0 {
		s.Sources = append([]string(nil), c.state.sources...)
		s.Citations = model.BuildCitations(s.Sources)
	}
	return s
}

// Await blocks until the active session finishes or is released, then
// returns the view model.
func (c *Controller) Await(ctx context.Context) (model.Snapshot, error) {
	c.mu.Lock()
	h := c.active
	c.mu.Unlock()

	if h != nil {
		select {
		case <-h.done:
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		}
	}
	return c.Snapshot(), nil
}

func (c *Controller) run(ctx context.Context, h *handle, req model.StreamRequest) {
	defer c.wg.Done()

	sr, err := c.transport.Open(ctx, req)
	if err != nil {
		c.fail(h, err)
		return
	}
	if !h.attach(sr) {
		return
	}

	for {
		ev, err := sr.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = errx.ErrStreamClosed
			}
			c.fail(h, err)
			return
		}
		if ev == nil {
			continue
		}
		if stop := c.dispatch(h, ev); stop {
			return
		}
	}
}

// dispatch applies one event of generation h. It reports whether the loop
// should stop, either because the session ended or because h is stale.
func (c *Controller) dispatch(h *handle, ev model.Event) bool {
	c.mu.Lock()
	if h.gen != c.gen {
		c.mu.Unlock()
		return true
	}

	var (
		terminal = ev.Kind().Terminal()
		login    *model.SessionError
		turn     *model.Turn
	)
	st := &c.state

	switch e := ev.(type) {
	case model.SessionStartedEvent:
		if st.sessionStarted {
			logx.Warn().Str("session_id", e.SessionID).Str("current", st.sessionID).Msg("duplicate session event ignored")
			break
		}
		st.sessionStarted = true
		st.sessionID = e.SessionID

	case model.StatusEvent:
		st.status = &model.StatusUpdate{Step: e.Step, Message: e.Message}
		st.phase = model.PhaseStreaming

	case model.TokenEvent:
		st.status = nil
		st.phase = model.PhaseStreaming
		// an empty fragment must not suppress the answer carried by complete
		if e.Content != "" {
			st.answer.WriteString(e.Content)
			st.tokens++
		}

	case model.SourcesEvent:
		st.sources = append([]string(nil), e.Sources...)

	case model.AgentProgressEvent:
		switch e.Type {
		case model.AgentProgressStart:
			c.tracker.Start(model.StartFromEvent(e))
		case model.AgentProgressComplete:
			c.tracker.Complete(model.CompletionFromEvent(e))
		}

	case model.CompleteEvent:
		if st.tokens == 0 {
			st.answer.Reset()
			st.answer.WriteString(e.Answer)
		}
		if st.sessionID == "" {
			st.sessionID = e.SessionID
		}
		st.metadata = e.Metadata
		st.status = nil
		st.phase = model.PhaseCompleted
		if st.sessionID != "" {
			turn = &model.Turn{Query: st.query, Answer: st.answer.String()}
		}

	case model.ErrorEvent:
		// error events arrive on an accepted stream
		login = c.failLocked(errx.New(nil, http.StatusOK, e.Message).WithCode(e.Code))

	default:
		logx.Warn().Str("kind", string(ev.Kind())).Msg("unhandled stream event")
	}
	sessionID := st.sessionID
	c.mu.Unlock()

	if turn != nil && c.recorder != nil {
		c.record(sessionID, *turn)
	}
	if login != nil {
		c.promptLogin(h, *login)
	}
	if terminal {
		h.release()
	}
	c.notify()
	return terminal
}

// fail ends generation h with a transport level error.
func (c *Controller) fail(h *handle, err error) {
	c.mu.Lock()
	if h.gen != c.gen || c.state.phase.Terminal() {
		c.mu.Unlock()
		h.release()
		return
	}
	logx.Warn().Err(err).Uint64("generation", h.gen).Str("session_id", c.state.sessionID).Msg("answer stream failed")
	login := c.failLocked(err)
	c.mu.Unlock()

	if login != nil {
		c.promptLogin(h, *login)
	}
	h.release()
	c.notify()
}

// failLocked moves the session to the errored phase and drops the partial
// answer. It returns the session error when err asks for login.
func (c *Controller) failLocked(err error) *model.SessionError {
	message := errx.MessageOf(err)
	if message == "" {
		message = errx.SystemErrorMessage
	}
	st := &c.state
	st.phase = model.PhaseErrored
	st.status = nil
	st.answer.Reset()
	st.err = &model.SessionError{Message: message, Code: errx.CodeOf(err)}
	if errx.IsUnauthorized(err) {
		e := *st.err
		return &e
	}
	return nil
}

// promptLogin runs the login hook unless h was superseded after its error
// was applied. A Start racing with the hook itself can still interleave;
// the hook only receives the error it was decided for.
func (c *Controller) promptLogin(h *handle, e model.SessionError) {
	if c.onLoginRequired == nil {
		return
	}
	c.mu.Lock()
	current := h.gen == c.gen
	c.mu.Unlock()
	if !current {
		logx.Debug().Uint64("generation", h.gen).Msg("login prompt dropped for superseded session")
		return
	}
	c.onLoginRequired(e)
}

func (c *Controller) record(sessionID string, turn model.Turn) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := c.recorder.RecordTurn(ctx, sessionID, turn); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to record turn")
	}
}

func (c *Controller) notify() {
	if c.onChange == nil {
		return
	}
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

func (c *Controller) notifyLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.changes:
			c.onChange(c.Snapshot())
		case <-c.quit:
			return
		}
	}
}
