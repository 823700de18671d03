// Package results shows section and test results between sections and at
// the end of an attempt.
package results

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/adaptest/internal/engine"
	"github.com/abhisek/adaptest/internal/router"
	"github.com/abhisek/adaptest/internal/screen"
	"github.com/abhisek/adaptest/internal/session"
	"github.com/abhisek/adaptest/internal/ui/components"
	"github.com/abhisek/adaptest/internal/ui/layout"
	"github.com/abhisek/adaptest/internal/ui/theme"
)

// ResultsScreen is the interstitial after CompleteSection. Between sections
// it pops back to the exam once dismissed; after the last section it is final.
type ResultsScreen struct {
	engine *engine.Engine
	snap   *session.Session
	final  bool
}

var _ screen.Screen = (*ResultsScreen)(nil)
var _ screen.KeyHintProvider = (*ResultsScreen)(nil)

// New captures the session as it is now.
func New(e *engine.Engine) *ResultsScreen {
	snap := e.Snapshot()
	return &ResultsScreen{engine: e, snap: snap, final: snap.TestCompleted}
}

func (s *ResultsScreen) Init() tea.Cmd {
	return nil
}

func (s *ResultsScreen) Title() string {
	if s.final {
		return "Test complete"
	}
	return "Section complete"
}

func (s *ResultsScreen) KeyHints() []layout.KeyHint {
	if s.final {
		return []layout.KeyHint{{Key: "q", Description: "Quit"}}
	}
	return []layout.KeyHint{{Key: "Enter", Description: "Start next section"}}
}

func (s *ResultsScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return s, nil
	}
	ctx := context.Background()
	if s.final {
		switch kmsg.String() {
		case "q", "esc", "enter":
			s.engine.DismissResults(ctx)
			return s, tea.Quit
		}
		return s, nil
	}
	switch kmsg.String() {
	case "enter", "space":
		// Dismissing starts the next section's countdown.
		s.engine.DismissResults(ctx)
		return s, func() tea.Msg { return router.PopScreenMsg{} }
	}
	return s, nil
}

func (s *ResultsScreen) View(width, height int) string {
	if s.snap.Test == nil || len(s.snap.SectionOrder) == 0 {
		return ""
	}
	if s.final {
		return s.renderFinal(width)
	}
	return s.renderInterstitial(width)
}

func (s *ResultsScreen) renderInterstitial(width int) string {
	lastID := s.snap.SectionOrder[len(s.snap.SectionOrder)-1]
	last, _ := s.snap.Test.Section(lastID)
	r := s.snap.SectionResults[lastID]

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(theme.Title.Width(width).Render(last.Title + " complete"))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
		components.NewProgressBar("Correct", r.Correct, r.Total, min(width-8, 50)).View()))
	b.WriteString("\n\n")
	b.WriteString(theme.Subtitle.Width(width).Render(fmt.Sprintf("%d of %d correct (%d%%)", r.Correct, r.Total, r.Percentage)))
	b.WriteString("\n\n")

	if next := s.snap.CurrentSection(); next != nil {
		line := fmt.Sprintf("Next: %s · %d questions", next.Title, len(next.Questions))
		if !s.snap.PracticeMode {
			line += " · " + layout.FormatClock(next.DurationSeconds)
		}
		b.WriteString(lipgloss.NewStyle().Width(width).Align(lipgloss.Center).Foreground(theme.Text).Render(line))
		b.WriteString("\n\n")
		b.WriteString(theme.Hint.Width(width).Align(lipgloss.Center).Render("The clock starts when you continue."))
	}
	return b.String()
}

func (s *ResultsScreen) renderFinal(width int) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(theme.Title.Width(width).Render(s.snap.Test.Title))
	b.WriteString("\n\n")

	overall := s.snap.Overall()
	b.WriteString(lipgloss.NewStyle().Width(width).Align(lipgloss.Center).Foreground(theme.Text).Bold(true).
		Render(fmt.Sprintf("Overall: %d of %d correct (%d%%)", overall.Correct, overall.Total, overall.Percentage)))
	b.WriteString("\n\n")

	divider := lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", min(width-8, 60)))
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
		lipgloss.NewStyle().Foreground(theme.TextDim).Render("Sections")))
	b.WriteString("\n")
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, divider))
	b.WriteString("\n\n")

	for _, id := range s.snap.SectionOrder {
		sec, ok := s.snap.Test.Section(id)
		if !ok {
			continue
		}
		r := s.snap.SectionResults[id]
		line := fmt.Sprintf("%-28s %-13s %3d/%-3d %4d%%", sec.Title, sec.Type, r.Correct, r.Total, r.Percentage)
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, theme.Body.Render(line)))
		b.WriteString("\n")
	}
	return b.String()
}
