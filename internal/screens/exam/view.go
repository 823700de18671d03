package exam

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/adaptest/internal/session"
	"github.com/abhisek/adaptest/internal/testdef"
	"github.com/abhisek/adaptest/internal/ui/components"
	"github.com/abhisek/adaptest/internal/ui/theme"
)

func (s *ExamScreen) View(width, height int) string {
	var body string
	switch {
	case s.snap.Phase() == session.PhaseNotStarted:
		body = renderMessage(width, "No test in progress.", "Start one with: adaptest take <test.json>")
	case s.snap.Phase() != session.PhaseInSection:
		body = renderMessage(width, "Section complete.", "Loading results...")
	case s.confirm == confirmSubmit:
		body = s.renderConfirm(width, "Submit this section?",
			fmt.Sprintf("%d of %d answered. Answers cannot be changed afterwards.",
				s.snap.AnsweredCount(), len(s.snap.CurrentSection().Questions)),
			"Submit", "Keep working")
	case s.confirm == confirmQuit:
		body = s.renderConfirm(width, "Quit?", "Your progress is saved. Run take again to resume.", "Quit", "Stay")
	case s.snap.ReviewScreenOpen:
		body = s.renderReview(width)
	case s.snap.CalculatorOpen:
		body = s.renderQuestion(width) + "\n" + s.renderCalculator(width)
	default:
		body = s.renderQuestion(width)
	}

	if s.errMsg != "" {
		body += "\n" + lipgloss.NewStyle().Foreground(theme.Error).Render("  "+s.errMsg)
	}
	return lipgloss.NewStyle().MaxHeight(height).Render(body)
}

func renderMessage(width int, title, hint string) string {
	return "\n\n" + theme.Title.Width(width).Render(title) + "\n\n" + theme.Subtitle.Width(width).Render(hint)
}

func (s *ExamScreen) renderQuestion(width int) string {
	sec := s.snap.CurrentSection()
	q := s.snap.CurrentQuestion()
	if sec == nil || q == nil {
		return ""
	}
	inner := max(width-4, 20)

	var b strings.Builder

	// Info line: section type, badges and answered progress.
	info := lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true).
		Render(fmt.Sprintf("  %s · Question %d of %d", sec.Type, s.snap.CurrentQuestionIndex+1, len(sec.Questions)))
	var badges []string
	if s.snap.Flags[q.ID] {
		badges = append(badges, theme.Flagged.Render("⚑ flagged"))
	}
	if s.snap.Bookmarks[q.ID] {
		badges = append(badges, lipgloss.NewStyle().Foreground(theme.Primary).Render("★ bookmarked"))
	}
	if s.snap.Mode == session.ModeStudy {
		badges = append(badges, theme.Hint.Render("study"))
	}
	if len(badges) > 0 {
		info += "   " + strings.Join(badges, "  ")
	}
	b.WriteString(info)
	b.WriteString("\n  ")
	b.WriteString(components.NewProgressBar("Answered", s.snap.AnsweredCount(), len(sec.Questions), min(inner, 60)).View())
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.Border).Render("  " + strings.Repeat("─", inner)))
	b.WriteString("\n\n")

	if p, ok := sec.Passage(q.PassageID); ok && q.PassageID != "" {
		text := p.Content
		if p.Title != "" {
			text = lipgloss.NewStyle().Bold(true).Render(p.Title) + "\n" + text
		}
		b.WriteString(lipgloss.NewStyle().MarginLeft(2).Render(theme.Passage.Width(inner - 2).Render(text)))
		b.WriteString("\n\n")
	}

	b.WriteString(lipgloss.NewStyle().MarginLeft(2).Width(inner).Foreground(theme.Text).Bold(true).Render(q.Prompt))
	b.WriteString("\n\n")

	answer, answered := s.snap.Answers[q.ID]
	if q.Type == testdef.NumericEntry {
		b.WriteString("  " + s.input.View())
		b.WriteString("\n")
		if answered {
			b.WriteString(theme.Hint.Render("  Saved: " + answer.String()))
			b.WriteString("\n")
		}
	} else {
		chosen := func(id string) bool {
			if !answered {
				return false
			}
			if answer.Kind == testdef.MultiSelect {
				return answer.Has(id)
			}
			return answer.Choice == id
		}
		var correct func(string) bool
		if s.revealed != nil {
			key := s.revealed.CorrectAnswer
			correct = func(id string) bool {
				if key.Kind == testdef.MultiSelect {
					return key.Has(id)
				}
				return key.Choice == id
			}
		}
		for _, line := range strings.Split(strings.TrimRight(s.options.View(chosen, correct), "\n"), "\n") {
			b.WriteString("  " + line + "\n")
		}
		if q.Type == testdef.MultiSelect {
			b.WriteString(theme.Hint.Render("  Select every option that applies."))
			b.WriteString("\n")
		}
	}

	if s.revealed != nil {
		b.WriteString("\n")
		b.WriteString(s.renderReveal(inner))
	}

	if s.editingNote {
		b.WriteString("\n  Note: " + s.note.View() + "\n")
	} else if note := s.snap.Notes[q.ID]; note != "" {
		b.WriteString("\n")
		b.WriteString(theme.Hint.Render("  Note: " + note))
		b.WriteString("\n")
	}
	return b.String()
}

func (s *ExamScreen) renderReveal(width int) string {
	rv := s.revealed
	verdict := theme.Hint.Render("Not answered.")
	if rv.Answered && rv.Correct {
		verdict = theme.Correct.Render("✓ Correct")
	} else if rv.Answered {
		verdict = theme.Incorrect.Render("✗ Incorrect")
	}
	text := verdict + "  Answer: " + rv.CorrectAnswer.String()
	if rv.Explanation != "" {
		text += "\n" + rv.Explanation
	}
	return lipgloss.NewStyle().MarginLeft(2).Width(width).Render(text) + "\n"
}

func (s *ExamScreen) renderCalculator(width int) string {
	content := lipgloss.NewStyle().Bold(true).Foreground(theme.Primary).Render("Calculator") + "\n\n" +
		s.calc.View() + "\n"
	if s.calcOut != "" {
		style := lipgloss.NewStyle().Foreground(theme.Success).Bold(true)
		if strings.HasPrefix(s.calcOut, "error") {
			style = lipgloss.NewStyle().Foreground(theme.Error)
		}
		content += "\n= " + style.Render(s.calcOut) + "\n"
	}
	return lipgloss.NewStyle().MarginLeft(2).Render(theme.Overlay.Width(min(width-4, 50)).Render(content))
}

// renderReview draws the question grid: ● answered, ○ unanswered, ⚑ flagged.
func (s *ExamScreen) renderReview(width int) string {
	sec := s.snap.CurrentSection()
	var b strings.Builder
	b.WriteString(theme.Title.Width(width).Render("Review " + sec.Title))
	b.WriteString("\n")
	b.WriteString(theme.Subtitle.Width(width).Render(fmt.Sprintf("%d answered · %d flagged · %d unanswered",
		s.snap.AnsweredCount(), len(s.snap.FlaggedIDs()), len(sec.Questions)-s.snap.AnsweredCount())))
	b.WriteString("\n\n")

	var rows []string
	var row []string
	for i, q := range sec.Questions {
		mark := "○"
		if _, ok := s.snap.Answers[q.ID]; ok {
			mark = "●"
		}
		if s.snap.Flags[q.ID] {
			mark += "⚑"
		} else {
			mark += " "
		}
		cell := fmt.Sprintf(" %2d %s ", i+1, mark)
		style := theme.Unselected
		switch {
		case i == s.reviewCursor:
			style = lipgloss.NewStyle().Background(theme.Primary).Foreground(theme.Text).Bold(true)
		case s.snap.Flags[q.ID]:
			style = theme.Flagged
		}
		row = append(row, style.Render(cell))
		if len(row) == reviewColumns {
			rows = append(rows, strings.Join(row, " "))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, strings.Join(row, " "))
	}
	grid := strings.Join(rows, "\n\n")
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, theme.Card.Render(grid)))
	b.WriteString("\n")
	return b.String()
}

func (s *ExamScreen) renderConfirm(width int, title, detail, yes, no string) string {
	content := lipgloss.NewStyle().Bold(true).Foreground(theme.Text).Render(title) + "\n\n" +
		theme.Hint.Render(detail) + "\n\n" +
		components.ButtonRow(s.confirmChoice, yes, no)
	return "\n\n" + lipgloss.PlaceHorizontal(width, lipgloss.Center, theme.Overlay.Render(content))
}
