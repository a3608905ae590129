package view

import (
	"strconv"
	"strings"

	"github.com/careerlink/answer-stream/internal/stream/model"
)

// Session is the part of the session controller the layouts drive.
type Session interface {
	Start(query, priorSessionID string) bool
	FollowUp(query string) bool
	Retry() bool
	Snapshot() model.Snapshot
}

type ViewMode string

const (
	ModeAnswer  ViewMode = "answer"
	ModeSources ViewMode = "sources"
)

// Toggle switches between the answer and the sources list.
func (m ViewMode) Toggle() ViewMode {
	if m == ModeSources {
		return ModeAnswer
	}
	return ModeSources
}

// localState is UI state that never reaches the controller.
type localState struct {
	mode       ViewMode
	bookmarked bool
	followUp   string
	expanded   bool
}

func (s *localState) resetForQuery() {
	s.mode = ModeAnswer
	s.expanded = false
	s.bookmarked = false
}

// SearchPage is the full page layout: one query with its answer, sources
// and a follow-up box.
type SearchPage struct {
	session  Session
	renderer *Renderer
	local    localState
}

func NewSearchPage(s Session, r *Renderer) *SearchPage {
	return &SearchPage{session: s, renderer: r, local: localState{mode: ModeAnswer}}
}

// Submit starts a new query. An accepted query resets the local state.
func (p *SearchPage) Submit(query string) bool {
	return p.Resume(query, "")
}

// Resume starts query inside an existing session.
func (p *SearchPage) Resume(query, sessionID string) bool {
	if !p.session.Start(query, sessionID) {
		return false
	}
	p.local.resetForQuery()
	return true
}

// SetFollowUp stores the follow-up draft.
func (p *SearchPage) SetFollowUp(text string) { p.local.followUp = text }

// FollowUp sends the draft in the context of the current session and clears
// it when accepted.
func (p *SearchPage) FollowUp() bool {
	if !p.session.FollowUp(p.local.followUp) {
		return false
	}
	p.local.followUp = ""
	p.local.resetForQuery()
	return true
}

func (p *SearchPage) Retry() bool {
	return p.session.Retry()
}

func (p *SearchPage) ToggleBookmark() bool {
	p.local.bookmarked = !p.local.bookmarked
	return p.local.bookmarked
}

func (p *SearchPage) SetViewMode(m ViewMode) {
	if m != ModeSources {
		m = ModeAnswer
	}
	p.local.mode = m
}

func (p *SearchPage) ToggleExpanded() bool {
	p.local.expanded = !p.local.expanded
	return p.local.expanded
}

func (p *SearchPage) Mode() ViewMode       { return p.local.mode }
func (p *SearchPage) Bookmarked() bool     { return p.local.bookmarked }
func (p *SearchPage) FollowUpText() string { return p.local.followUp }
func (p *SearchPage) Expanded() bool       { return p.local.expanded }

// Render lays out the current snapshot at the given width.
func (p *SearchPage) Render(width int) string {
	p.renderer.SetWidth(width)
	return renderSnapshot(p.renderer, p.session.Snapshot(), p.local)
}

func renderSnapshot(r *Renderer, s model.Snapshot, local localState) string {
	st := r.Styles()
	var sections []string

	header := st.Query.Render(s.Query)
	if local.bookmarked {
		header = st.Marker.Render("★ ") + header
	}
	if s.SessionID != "" {
		header += "  " + st.Faint.Render(s.SessionID)
	}
	sections = append(sections, header)

	if agents := r.Agents(s.Agents); agents != "" {
		sections = append(sections, agents)
	}

	if s.Error != nil {
		sections = append(sections, r.Error(s.Error))
		sections = append(sections, st.Faint.Render("ctrl+r to retry"))
		return strings.Join(sections, "\n\n")
	}

	switch local.mode {
	case ModeSources:
		sections = append(sections, r.Citations(s.Citations))
	default:
		switch {
		case s.HasAnswer():
			sections = append(sections, r.Answer(s.Answer, local.expanded))
		case s.Status != nil:
			sections = append(sections, r.Status(s.Status))
		case s.Phase == model.PhaseConnecting:
			sections = append(sections, st.Status.Render("Connecting…"))
		case s.Phase == model.PhaseCompleted:
			sections = append(sections, st.Faint.Render("No answer was returned."))
		}
	}

	if s.Phase == model.PhaseCompleted {
		hint := "tab: answer/sources"
		if n := len(s.Citations); n > 0 {
			hint = strings.Replace(hint, "sources", "sources ("+strconv.Itoa(n)+")", 1)
		}
		sections = append(sections, st.Faint.Render(hint))
	}
	return strings.Join(sections, "\n\n")
}
