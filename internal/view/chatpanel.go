package view

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/careerlink/answer-stream/internal/stream/model"
	logx "github.com/careerlink/answer-stream/pkg/logger"
)

const historyTimeout = 3 * time.Second

// TurnHistory loads and clears the recorded turns of a session.
type TurnHistory interface {
	Recent(ctx context.Context, sessionID string) ([]model.Turn, error)
	Forget(ctx context.Context, sessionID string) error
}

// SnapshotMsg carries a controller change into the bubbletea loop.
type SnapshotMsg struct {
	Snapshot model.Snapshot
}

type historyMsg struct {
	sessionID string
	turns     []model.Turn
}

// ChatPanel is the embedded panel layout: scrollback of earlier turns, the
// live turn, and an input line for follow-ups.
type ChatPanel struct {
	session  Session
	history  TurnHistory
	renderer *Renderer
	resume   string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	snap       model.Snapshot
	turns      []model.Turn
	historyFor string
	local      localState
	width      int
	height     int
}

type PanelOption func(*ChatPanel)

// WithHistory shows recorded turns of the session above the live turn.
func WithHistory(h TurnHistory) PanelOption {
	return func(m *ChatPanel) { m.history = h }
}

// WithResume continues an existing session with the first query.
func WithResume(sessionID string) PanelOption {
	return func(m *ChatPanel) { m.resume = strings.TrimSpace(sessionID) }
}

func NewChatPanel(s Session, r *Renderer, opts ...PanelOption) ChatPanel {
	ti := textinput.New()
	ti.Placeholder = "Ask anything... (Enter to send, Ctrl+C to exit)"
	ti.Prompt = "| "
	ti.CharLimit = 4096
	ti.Width = 80
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = r.Styles().Status

	vp := viewport.New(80, 20)
	vp.SetContent("")

	m := ChatPanel{
		session:  s,
		renderer: r,
		input:    ti,
		viewport: vp,
		spinner:  sp,
		snap:     s.Snapshot(),
		local:    localState{mode: ModeAnswer},
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m ChatPanel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.loadHistory(m.resume))
}

func (m ChatPanel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = msg.Width - 4
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-4, 1)
		m.renderer.SetWidth(msg.Width)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		next, cmd, handled := m.handleKey(msg)
		if handled {
			return next, cmd
		}
		m = next

	case SnapshotMsg:
		prev := m.snap
		m.snap = msg.Snapshot
		m.refresh()
		if m.snap.Phase == model.PhaseCompleted && prev.Phase != model.PhaseCompleted {
			return m, m.loadHistory(m.snap.SessionID)
		}
		return m, nil

	case historyMsg:
		m.turns = msg.turns
		m.historyFor = msg.sessionID
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// handleKey reports handled=false when the key should reach the input.
func (m ChatPanel) handleKey(msg tea.KeyMsg) (ChatPanel, tea.Cmd, bool) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit, true

	case tea.KeyEnter:
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil, true
		}
		if m.submit(text) {
			m.input.Reset()
			m.local.resetForQuery()
			m.snap = m.session.Snapshot()
			m.refresh()
		}
		return m, nil, true

	case tea.KeyCtrlR:
		if m.session.Retry() {
			m.local.resetForQuery()
			m.snap = m.session.Snapshot()
			m.refresh()
		}
		return m, nil, true

	case tea.KeyCtrlB:
		m.local.bookmarked = !m.local.bookmarked
		m.refresh()
		return m, nil, true

	case tea.KeyTab:
		m.local.mode = m.local.mode.Toggle()
		m.refresh()
		return m, nil, true

	case tea.KeyCtrlE:
		m.local.expanded = !m.local.expanded
		m.refresh()
		return m, nil, true

	case tea.KeyCtrlX:
		id := m.snap.SessionID
		if id == "" {
			id = m.historyFor
		}
		m.turns = nil
		m.refresh()
		return m, m.forgetHistory(id), true

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd, true
	}
	return m, nil, false
}

// submit starts the first query, resuming a session when asked to, and sends
// later queries as follow-ups.
func (m ChatPanel) submit(text string) bool {
	if m.snap.Query == "" {
		return m.session.Start(text, m.resume)
	}
	return m.session.FollowUp(text)
}

func (m ChatPanel) loadHistory(sessionID string) tea.Cmd {
	if m.history == nil || sessionID == "" {
		return nil
	}
	h := m.history
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		defer cancel()
		turns, err := h.Recent(ctx, sessionID)
		if err != nil {
			logx.Warn().Err(err).Str("session_id", sessionID).Msg("failed to load session history")
			return nil
		}
		return historyMsg{sessionID: sessionID, turns: turns}
	}
}

func (m ChatPanel) forgetHistory(sessionID string) tea.Cmd {
	if m.history == nil || sessionID == "" {
		return nil
	}
	h := m.history
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		defer cancel()
		if err := h.Forget(ctx, sessionID); err != nil {
			logx.Warn().Err(err).Str("session_id", sessionID).Msg("failed to clear session history")
			return nil
		}
		return historyMsg{sessionID: sessionID}
	}
}

// scrollback returns recorded turns that precede the live one.
func (m ChatPanel) scrollback() []model.Turn {
	turns := m.turns
	if n := len(turns); n > 0 && m.snap.Phase == model.PhaseCompleted &&
		m.historyFor == m.snap.SessionID && turns[n-1].Query == m.snap.Query {
		turns = turns[:n-1]
	}
	return turns
}

func (m *ChatPanel) refresh() {
	st := m.renderer.Styles()
	var parts []string
	for _, t := range m.scrollback() {
		parts = append(parts, st.Query.Render(t.Query), m.renderer.Markdown(t.Answer))
	}
	if m.snap.Query != "" {
		parts = append(parts, renderSnapshot(m.renderer, m.snap, m.local))
	}
	m.viewport.SetContent(strings.Join(parts, "\n\n"))
	m.viewport.GotoBottom()
}

func (m ChatPanel) View() string {
	st := m.renderer.Styles()
	status := ""
	switch {
	case m.snap.Phase.InFlight():
		status = m.spinner.View() + " " + st.Faint.Render(string(m.snap.Phase))
		if n := m.snap.RunningAgents(); n > 0 {
			status += st.Faint.Render(" · " + pluralAgents(n))
		}
	case m.snap.Phase == model.PhaseErrored:
		status = st.Faint.Render("ctrl+r retry")
	default:
		status = st.Faint.Render("tab answer/sources · ctrl+b bookmark · ctrl+e expand · ctrl+x clear history")
	}
	return strings.Join([]string{m.viewport.View(), status, m.input.View()}, "\n")
}

func pluralAgents(n int) string {
	if n == 1 {
		return "1 agent running"
	}
	return strconv.Itoa(n) + " agents running"
}
