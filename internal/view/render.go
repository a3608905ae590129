// Package view binds the session view model to terminal layouts.
package view

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	errx "github.com/careerlink/answer-stream/internal/core/error"
	"github.com/careerlink/answer-stream/internal/stream/model"
	logx "github.com/careerlink/answer-stream/pkg/logger"
)

// previewRunes is how much of a long answer is shown while collapsed.
const previewRunes = 600

type Styles struct {
	Query    lipgloss.Style
	Faint    lipgloss.Style
	Status   lipgloss.Style
	Error    lipgloss.Style
	Chip     lipgloss.Style
	Citation lipgloss.Style
	Link     lipgloss.Style
	Marker   lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Query:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		Faint:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Status:   lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("39")),
		Error:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Chip:     lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()),
		Citation: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Link:     lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("33")),
		Marker:   lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
	}
}

// Renderer turns snapshot pieces into styled terminal text.
type Renderer struct {
	styles Styles
	style  string
	width  int
	md     *glamour.TermRenderer
}

// NewRenderer builds a renderer wrapping at width. An empty style picks the
// glamour style from the terminal background.
func NewRenderer(width int, style string) *Renderer {
	r := &Renderer{styles: DefaultStyles(), style: style}
	r.SetWidth(width)
	return r
}

func (r *Renderer) Styles() Styles { return r.styles }

func (r *Renderer) Width() int { return r.width }

// SetWidth rebuilds the markdown renderer for a new wrap width.
func (r *Renderer) SetWidth(width int) {
	if width <= 0 {
		width = 80
	}
	if width == r.width && r.md != nil {
		return
	}
	r.width = width

	styleOpt := glamour.WithAutoStyle()
	if r.style != "" {
		styleOpt = glamour.WithStandardStyle(r.style)
	}
	md, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width-4))
	if err != nil {
		logx.Warn().Err(err).Int("width", width).Msg("markdown renderer unavailable; falling back to plain text")
		r.md = nil
		return
	}
	r.md = md
}

// Markdown renders answer text. Rendering failures fall back to the raw text.
func (r *Renderer) Markdown(text string) string {
	if text == "" {
		return ""
	}
	if r.md == nil {
		return lipgloss.NewStyle().Width(r.width).Render(text)
	}
	out, err := r.md.Render(text)
	if err != nil {
		logx.Warn().Err(err).Msg("failed to render markdown")
		return lipgloss.NewStyle().Width(r.width).Render(text)
	}
	return strings.TrimRight(out, "\n")
}

// Answer renders the answer, cut to a preview unless expanded.
func (r *Renderer) Answer(text string, expanded bool) string {
	body, cut := collapse(text, expanded)
	out := r.Markdown(body)
	if cut {
		out += "\n" + r.styles.Faint.Render("… (ctrl+e to expand)")
	}
	return out
}

// Agents renders one chip per agent in first-start order.
func (r *Renderer) Agents(entries []model.AgentEntry) string {
	if len(entries) == 0 {
		return ""
	}
	chips := make([]string, 0, len(entries))
	for _, e := range entries {
		chips = append(chips, r.chip(e))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, chips...)
}

func (r *Renderer) chip(e model.AgentEntry) string {
	style := r.styles.Chip
	if e.Color != "" {
		style = style.BorderForeground(lipgloss.Color(e.Color)).Foreground(lipgloss.Color(e.Color))
	}

	var b strings.Builder
	if e.Icon != "" {
		b.WriteString(e.Icon)
		b.WriteString(" ")
	}
	name := e.Name
	if name == "" {
		name = e.Type
	}
	b.WriteString(name)
	if e.IsFallback {
		b.WriteString(" (fallback)")
	}
	b.WriteString(" ")
	b.WriteString(statusMark(e.Status))
	if e.ExecutionTimeMs != nil {
		b.WriteString(" ")
		b.WriteString(formatElapsed(*e.ExecutionTimeMs))
	}
	return style.Render(b.String())
}

func statusMark(s model.AgentStatus) string {
	switch s {
	case model.AgentSuccess:
		return "✓"
	case model.AgentFailed:
		return "✗"
	case model.AgentTimeout:
		return "timeout"
	default:
		return "…"
	}
}

func formatElapsed(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// Status renders the reasoning step shown before tokens arrive.
func (r *Renderer) Status(st *model.StatusUpdate) string {
	if st == nil {
		return ""
	}
	msg := st.Message
	if msg == "" {
		msg = string(st.Step)
	}
	return r.styles.Status.Render(msg)
}

// Citations renders a numbered source list.
func (r *Renderer) Citations(cs []model.Citation) string {
	if len(cs) == 0 {
		return r.styles.Faint.Render("No sources.")
	}
	lines := make([]string, 0, len(cs))
	for i, c := range cs {
		lines = append(lines, fmt.Sprintf("%d. %s  %s", i+1, r.styles.Citation.Render(c.Title), r.styles.Link.Render(c.URL)))
	}
	return strings.Join(lines, "\n")
}

// Error renders a terminal session error.
func (r *Renderer) Error(e *model.SessionError) string {
	if e == nil {
		return ""
	}
	if e.Code == errx.CodeUnauthorized {
		return r.styles.Error.Render("Sign in to continue: " + e.Message)
	}
	return r.styles.Error.Render("Error: " + e.Message)
}

func collapse(text string, expanded bool) (string, bool) {
	if expanded || utf8.RuneCountInString(text) <= previewRunes {
		return text, false
	}
	runes := []rune(text)
	cut := string(runes[:previewRunes])
	// prefer to cut on a line break so markdown blocks stay intact
	if i := strings.LastIndex(cut, "\n"); i > previewRunes/2 {
		cut = cut[:i]
	}
	return cut, true
}
