package view

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careerlink/answer-stream/internal/stream/model"
)

type startCall struct {
	query string
	prior string
}

type fakeSession struct {
	snap      model.Snapshot
	reject    bool
	starts    []startCall
	followUps []string
	retries   int
}

func (f *fakeSession) Start(query, prior string) bool {
	q := strings.TrimSpace(query)
	if q == "" || f.reject {
		return false
	}
	f.starts = append(f.starts, startCall{query: q, prior: prior})
	f.snap = model.Snapshot{Query: q, PriorSessionID: prior, Phase: model.PhaseConnecting}
	return true
}

func (f *fakeSession) FollowUp(query string) bool {
	if strings.TrimSpace(query) == "" || f.reject {
		return false
	}
	f.followUps = append(f.followUps, query)
	f.snap = model.Snapshot{Query: strings.TrimSpace(query), PriorSessionID: f.snap.SessionID, Phase: model.PhaseConnecting}
	return true
}

func (f *fakeSession) Retry() bool {
	f.retries++
	return !f.reject
}

func (f *fakeSession) Snapshot() model.Snapshot { return f.snap }

func newTestRenderer() *Renderer { return NewRenderer(80, "notty") }

func TestSearchPageLocalState(t *testing.T) {
	s := &fakeSession{}
	p := NewSearchPage(s, newTestRenderer())

	assert.Equal(t, ModeAnswer, p.Mode())
	p.SetViewMode(ModeSources)
	assert.Equal(t, ModeSources, p.Mode())
	p.SetViewMode("bogus")
	assert.Equal(t, ModeAnswer, p.Mode())

	assert.True(t, p.ToggleBookmark())
	assert.True(t, p.ToggleExpanded())

	require.True(t, p.Submit("  salary  "))
	assert.Equal(t, []startCall{{query: "salary"}}, s.starts)
	assert.False(t, p.Bookmarked())
	assert.False(t, p.Expanded())

	p.SetFollowUp("and for seniors?")
	require.True(t, p.FollowUp())
	assert.Equal(t, []string{"and for seniors?"}, s.followUps)
	assert.Empty(t, p.FollowUpText())

	assert.True(t, p.Retry())
	assert.Equal(t, 1, s.retries)
}

func TestSearchPageRejectedSubmitKeepsState(t *testing.T) {
	s := &fakeSession{reject: true}
	p := NewSearchPage(s, newTestRenderer())
	p.ToggleBookmark()
	p.SetFollowUp("draft")

	assert.False(t, p.Submit("q"))
	assert.False(t, p.FollowUp())
	assert.True(t, p.Bookmarked())
	assert.Equal(t, "draft", p.FollowUpText())
}

func TestSearchPageRender(t *testing.T) {
	ms := int64(1500)
	s := &fakeSession{snap: model.Snapshot{
		Query:     "best laptop",
		SessionID: "sess-1",
		Phase:     model.PhaseCompleted,
		Answer:    "Buy the lighter one",
		Citations: model.BuildCitations([]string{"https://www.example.com/a", "https://docs.test/b"}),
		Agents: []model.AgentEntry{
			{Type: "search", Name: "Search", Status: model.AgentSuccess, ExecutionTimeMs: &ms, Color: "#3b82f6"},
		},
	}}
	p := NewSearchPage(s, newTestRenderer())

	out := p.Render(80)
	assert.Contains(t, out, "best laptop")
	assert.Contains(t, out, "sess-1")
	assert.Contains(t, out, "lighter")
	assert.Contains(t, out, "Search ✓ 1.5s")
	assert.Contains(t, out, "sources (2)")
	assert.NotContains(t, out, "example.com")

	p.SetViewMode(ModeSources)
	out = p.Render(80)
	assert.Contains(t, out, "1. example.com")
	assert.Contains(t, out, "2. docs.test")
	assert.NotContains(t, out, "lighter")
}

func TestSearchPageRenderPhases(t *testing.T) {
	s := &fakeSession{}
	p := NewSearchPage(s, newTestRenderer())

	s.snap = model.Snapshot{Query: "q", Phase: model.PhaseConnecting}
	assert.Contains(t, p.Render(80), "Connecting")

	s.snap = model.Snapshot{Query: "q", Phase: model.PhaseStreaming, Status: &model.StatusUpdate{Step: model.StepSearching, Message: "Searching the web"}}
	assert.Contains(t, p.Render(80), "Searching the web")

	s.snap = model.Snapshot{Query: "q", Phase: model.PhaseCompleted}
	assert.Contains(t, p.Render(80), "No answer was returned.")

	s.snap = model.Snapshot{Query: "q", Phase: model.PhaseErrored, Error: &model.SessionError{Message: "boom"}}
	out := p.Render(80)
	assert.Contains(t, out, "Error: boom")
	assert.Contains(t, out, "ctrl+r to retry")

	s.snap = model.Snapshot{Query: "q", Phase: model.PhaseErrored, Error: &model.SessionError{Message: "login", Code: "401"}}
	assert.Contains(t, p.Render(80), "Sign in to continue")
}

func TestLongAnswerCollapses(t *testing.T) {
	long := strings.Repeat("word ", 200)
	s := &fakeSession{snap: model.Snapshot{Query: "q", Phase: model.PhaseCompleted, Answer: long}}
	p := NewSearchPage(s, newTestRenderer())

	assert.Contains(t, p.Render(80), "ctrl+e to expand")
	p.ToggleExpanded()
	assert.NotContains(t, p.Render(80), "ctrl+e to expand")
}

func TestCollapse(t *testing.T) {
	short, cut := collapse("short", false)
	assert.Equal(t, "short", short)
	assert.False(t, cut)

	long := strings.Repeat("x", previewRunes+10)
	out, cut := collapse(long, false)
	assert.True(t, cut)
	assert.Len(t, []rune(out), previewRunes)

	out, cut = collapse(long, true)
	assert.False(t, cut)
	assert.Equal(t, long, out)

	lines := strings.Repeat("y", previewRunes-100) + "\n" + strings.Repeat("z", 200)
	out, cut = collapse(lines, false)
	assert.True(t, cut)
	assert.NotContains(t, out, "z")
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "250ms", formatElapsed(250))
	assert.Equal(t, "1.5s", formatElapsed(1500))
}

type fakeHistory struct {
	turns     []model.Turn
	asked     []string
	forgotten []string
}

func (f *fakeHistory) Forget(_ context.Context, sessionID string) error {
	f.forgotten = append(f.forgotten, sessionID)
	f.turns = nil
	return nil
}

func (f *fakeHistory) Recent(_ context.Context, sessionID string) ([]model.Turn, error) {
	f.asked = append(f.asked, sessionID)
	return f.turns, nil
}

func update(t *testing.T, m ChatPanel, msg tea.Msg) (ChatPanel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	panel, ok := next.(ChatPanel)
	require.True(t, ok)
	return panel, cmd
}

func TestChatPanelSubmitAndFollowUp(t *testing.T) {
	s := &fakeSession{}
	m := NewChatPanel(s, newTestRenderer(), WithResume("old-session"))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, s.starts)

	m.input.SetValue("first question")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, []startCall{{query: "first question", prior: "old-session"}}, s.starts)
	assert.Empty(t, m.input.Value())

	s.snap.SessionID = "sess-1"
	s.snap.Phase = model.PhaseCompleted
	m, _ = update(t, m, SnapshotMsg{Snapshot: s.snap})

	m.input.SetValue("second")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, []string{"second"}, s.followUps)
	assert.Len(t, s.starts, 1)

	_, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.Equal(t, 1, s.retries)
}

func TestChatPanelLocalToggles(t *testing.T) {
	s := &fakeSession{snap: model.Snapshot{
		Query:     "q",
		Phase:     model.PhaseCompleted,
		Answer:    "answer text",
		Citations: model.BuildCitations([]string{"https://example.org/x"}),
	}}
	m := NewChatPanel(s, newTestRenderer())
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, ModeSources, m.local.mode)
	assert.Contains(t, m.View(), "example.org")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlB})
	assert.True(t, m.local.bookmarked)
	assert.Contains(t, m.View(), "★")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlE})
	assert.True(t, m.local.expanded)
}

func TestChatPanelQuit(t *testing.T) {
	m := NewChatPanel(&fakeSession{}, newTestRenderer())
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestChatPanelLoadsHistoryOnCompletion(t *testing.T) {
	h := &fakeHistory{turns: []model.Turn{
		{Query: "earlier question", Answer: "earlier answer"},
		{Query: "now", Answer: "fresh"},
	}}
	s := &fakeSession{}
	m := NewChatPanel(s, newTestRenderer(), WithHistory(h))
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	streaming := model.Snapshot{Query: "now", SessionID: "sess-9", Phase: model.PhaseStreaming, Answer: "fre"}
	m, cmd := update(t, m, SnapshotMsg{Snapshot: streaming})
	assert.Nil(t, cmd)

	done := streaming
	done.Phase = model.PhaseCompleted
	done.Answer = "fresh"
	m, cmd = update(t, m, SnapshotMsg{Snapshot: done})
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, historyMsg{}, msg)
	assert.Equal(t, []string{"sess-9"}, h.asked)

	m, _ = update(t, m, msg)
	require.Len(t, m.scrollback(), 1)
	assert.Equal(t, "earlier question", m.scrollback()[0].Query)
	assert.Contains(t, m.View(), "earlier question")
}

func TestChatPanelClearsHistory(t *testing.T) {
	h := &fakeHistory{turns: []model.Turn{{Query: "earlier question", Answer: "earlier answer"}}}
	s := &fakeSession{}
	m := NewChatPanel(s, newTestRenderer(), WithHistory(h), WithResume("sess-3"))
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	m, _ = update(t, m, m.loadHistory("sess-3")())
	require.Len(t, m.turns, 1)
	assert.Contains(t, m.View(), "earlier question")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlX})
	assert.Empty(t, m.turns)
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Equal(t, []string{"sess-3"}, h.forgotten)
	assert.NotContains(t, m.View(), "earlier question")
}
