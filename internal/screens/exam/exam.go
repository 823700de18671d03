// Package exam is the screen a candidate takes a section on.
package exam

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/adaptest/internal/engine"
	"github.com/abhisek/adaptest/internal/router"
	"github.com/abhisek/adaptest/internal/screen"
	"github.com/abhisek/adaptest/internal/screens/results"
	"github.com/abhisek/adaptest/internal/session"
	"github.com/abhisek/adaptest/internal/testdef"
	"github.com/abhisek/adaptest/internal/ui/components"
	"github.com/abhisek/adaptest/internal/ui/layout"
	"github.com/abhisek/adaptest/internal/ui/theme"
)

// reviewColumns is the width of the review grid.
const reviewColumns = 10

type confirmKind int

const (
	confirmNone confirmKind = iota
	confirmSubmit
	confirmQuit
)

// ExamScreen renders the engine's current section and turns keys into
// engine commands. It holds no attempt state of its own beyond widgets.
type ExamScreen struct {
	engine *engine.Engine
	ctx    context.Context
	snap   *session.Session

	boundTo string // question id the widgets were built for
	options components.OptionList
	input   components.TextInput

	calc    components.TextInput
	calcOut string

	note        components.TextInput
	editingNote bool

	reviewCursor  int
	confirm       confirmKind
	confirmChoice int
	revealed      *session.Revealed
	errMsg        string
	resultsShown  bool
}

var _ screen.Screen = (*ExamScreen)(nil)

// New creates an exam screen driving e.
func New(e *engine.Engine) *ExamScreen {
	s := &ExamScreen{
		engine: e,
		ctx:    context.Background(),
		calc:   components.NewTextInput("e.g. 12 / 4", components.CalculatorChars, 40),
		note:   components.NewTextInput("Write a note", "", 200),
	}
	s.refresh()
	return s
}

// Init triggers an immediate refresh so a resumed attempt that already
// shows results goes straight to them.
func (s *ExamScreen) Init() tea.Cmd {
	return func() tea.Msg { return screen.TickMsg(time.Now()) }
}

func (s *ExamScreen) Title() string {
	if sec := s.snap.CurrentSection(); sec != nil {
		return sec.Title
	}
	if s.snap.TestCompleted {
		return "Test complete"
	}
	return "adaptest"
}

// Status shows the question position, flag count and section clock.
func (s *ExamScreen) Status() string {
	sec := s.snap.CurrentSection()
	if sec == nil || s.snap.ShowResults {
		return ""
	}
	pos := fmt.Sprintf("Q %d/%d", s.snap.CurrentQuestionIndex+1, len(sec.Questions))
	flags := theme.Flagged.Render(fmt.Sprintf("⚑ %d", len(s.snap.FlaggedIDs())))
	if s.snap.PracticeMode {
		return pos + "   " + flags + "   " + theme.Hint.Render("practice")
	}
	clock := "⏱ " + layout.FormatClock(s.snap.TimeLeftSeconds)
	if s.snap.TimeLeftSeconds < 60 {
		clock = theme.ClockLow.Render(clock)
	}
	return pos + "   " + flags + "   " + clock
}

func (s *ExamScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case screen.TickMsg:
		s.refresh()
		return s.checkResults()

	case tea.KeyMsg:
		s.refresh()
		if s.snap.ShowResults || s.snap.TestCompleted {
			return s.checkResults()
		}
		s.errMsg = ""
		return s.handleKey(msg)
	}

	// Cursor blink and similar messages for the focused input.
	var cmd tea.Cmd
	switch {
	case s.editingNote:
		s.note, cmd = s.note.Update(msg)
	case s.snap.CalculatorOpen:
		s.calc, cmd = s.calc.Update(msg)
	case s.isNumeric():
		s.input, cmd = s.input.Update(msg)
	}
	return s, cmd
}

// refresh re-reads the session and rebinds widgets when the current
// question changed.
func (s *ExamScreen) refresh() {
	s.snap = s.engine.Snapshot()
	if !s.snap.ShowResults && !s.snap.TestCompleted {
		s.resultsShown = false
	}
	q := s.snap.CurrentQuestion()
	if q == nil {
		s.boundTo = ""
		return
	}
	if q.ID != s.boundTo {
		s.bind(q)
	}
}

func (s *ExamScreen) bind(q *testdef.Question) {
	s.boundTo = q.ID
	s.revealed = nil
	s.editingNote = false

	if q.Type == testdef.NumericEntry {
		s.input = components.NewTextInput("Type a number, Enter to save", components.NumericChars, 32)
		if a, ok := s.snap.Answers[q.ID]; ok {
			s.input.SetValue(a.String())
		}
		return
	}

	choices := make([]components.Choice, len(q.Options))
	for i, o := range q.Options {
		choices[i] = components.Choice{ID: o.ID, Text: o.Text}
	}
	s.options = components.NewOptionList(choices, q.Type == testdef.MultiSelect)
	if a, ok := s.snap.Answers[q.ID]; ok && q.Type != testdef.MultiSelect {
		for i, c := range choices {
			if c.ID == a.Choice {
				s.options.Cursor = i
			}
		}
	}
}

// checkResults leaves for the results screen once the engine reports a
// completed section, whether completed by the candidate or the clock.
func (s *ExamScreen) checkResults() (screen.Screen, tea.Cmd) {
	if s.resultsShown {
		return s, nil
	}
	switch {
	case s.snap.TestCompleted:
		s.resultsShown = true
		next := results.New(s.engine)
		return s, func() tea.Msg { return router.ReplaceScreenMsg{Screen: next} }
	case s.snap.ShowResults:
		s.resultsShown = true
		next := results.New(s.engine)
		return s, func() tea.Msg { return router.PushScreenMsg{Screen: next} }
	}
	return s, nil
}

func (s *ExamScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	key := msg.String()

	if s.confirm != confirmNone {
		return s.handleConfirmKey(key)
	}
	if s.snap.Phase() != session.PhaseInSection {
		switch key {
		case "q", "esc":
			return s, tea.Quit
		}
		return s, nil
	}
	if s.editingNote {
		return s.handleNoteKey(msg)
	}
	if s.snap.CalculatorOpen {
		return s.handleCalculatorKey(msg)
	}
	if s.snap.ReviewScreenOpen {
		return s.handleReviewKey(key)
	}

	q := s.snap.CurrentQuestion()
	switch key {
	case "esc":
		s.confirm, s.confirmChoice = confirmQuit, 1
		return s, nil
	case "tab", "]":
		s.commitInput()
		return s.apply(s.engine.NextQuestion(s.ctx))
	case "shift+tab", "[":
		s.commitInput()
		return s.apply(s.engine.PrevQuestion(s.ctx))
	case "f":
		return s.apply(s.engine.ToggleFlag(s.ctx, q.ID))
	case "b":
		return s.apply(s.engine.ToggleBookmark(s.ctx, q.ID))
	case "c":
		s.commitInput()
		s.calc.Reset()
		s.calcOut = ""
		return s.apply(s.engine.ToggleCalculator(s.ctx))
	case "r":
		s.commitInput()
		s.reviewCursor = s.snap.CurrentQuestionIndex
		return s.apply(s.engine.ToggleReviewScreen(s.ctx))
	case "s":
		s.commitInput()
		s.confirm, s.confirmChoice = confirmSubmit, 1
		return s, nil
	case "n":
		s.editingNote = true
		s.note.SetValue(s.snap.Notes[q.ID])
		return s, s.note.Init()
	case "?":
		rv, err := s.engine.Reveal(q.ID)
		if err != nil {
			return s.apply(err)
		}
		s.revealed = &rv
		return s, nil
	case "x", "delete":
		if q.Type == testdef.NumericEntry {
			s.input.Reset()
		}
		return s.apply(s.engine.ClearAnswer(s.ctx, q.ID))
	}

	if q.Type == testdef.NumericEntry {
		if key == "enter" {
			return s.apply(s.commitInput())
		}
		var cmd tea.Cmd
		s.input, cmd = s.input.Update(msg)
		return s, cmd
	}

	switch key {
	case "left", "h":
		return s.apply(s.engine.PrevQuestion(s.ctx))
	case "right", "l":
		return s.apply(s.engine.NextQuestion(s.ctx))
	case "enter", "space":
		if c, ok := s.options.Current(); ok {
			return s.apply(s.choose(q, c))
		}
		return s, nil
	}
	if n, err := strconv.Atoi(key); err == nil {
		if c, ok := s.options.At(n); ok {
			s.options.Cursor = n - 1
			return s.apply(s.choose(q, c))
		}
		return s, nil
	}
	s.options, _ = s.options.Update(msg)
	return s, nil
}

// choose records c for a choice question. Multi-select toggles membership.
func (s *ExamScreen) choose(q *testdef.Question, c components.Choice) error {
	if q.Type == testdef.MultiSelect {
		a := s.snap.Answers[q.ID]
		if a.Kind != testdef.MultiSelect {
			a = testdef.ChoicesAnswer()
		}
		return s.engine.SetAnswer(s.ctx, q.ID, a.Toggle(c.ID))
	}
	return s.engine.SetAnswer(s.ctx, q.ID, testdef.ChoiceAnswer(q.Type, c.ID))
}

// commitInput saves pending numeric input. An empty input clears the answer.
func (s *ExamScreen) commitInput() error {
	q := s.snap.CurrentQuestion()
	if q == nil || q.Type != testdef.NumericEntry || s.snap.Phase() != session.PhaseInSection {
		return nil
	}
	a, err := testdef.ParseAnswer(q.Type, s.input.Value())
	if errors.Is(err, testdef.ErrEmptyAnswer) {
		if _, answered := s.snap.Answers[q.ID]; !answered {
			return nil
		}
		return s.engine.ClearAnswer(s.ctx, q.ID)
	}
	if err != nil {
		return err
	}
	if prev, ok := s.snap.Answers[q.ID]; ok && prev.Equal(a) {
		return nil
	}
	return s.engine.SetAnswer(s.ctx, q.ID, a)
}

// apply refreshes after an engine command and surfaces its error.
func (s *ExamScreen) apply(err error) (screen.Screen, tea.Cmd) {
	if err != nil {
		s.errMsg = err.Error()
	}
	s.refresh()
	return s.checkResults()
}

func (s *ExamScreen) handleConfirmKey(key string) (screen.Screen, tea.Cmd) {
	kind := s.confirm
	yes := false
	switch key {
	case "left", "right", "tab", "h", "l":
		s.confirmChoice = 1 - s.confirmChoice
		return s, nil
	case "y", "Y":
		yes = true
	case "n", "N", "esc":
	case "enter":
		yes = s.confirmChoice == 0
	default:
		return s, nil
	}
	s.confirm = confirmNone
	if !yes {
		return s, nil
	}
	if kind == confirmQuit {
		return s, tea.Quit
	}
	_, err := s.engine.CompleteSection(s.ctx)
	return s.apply(err)
}

func (s *ExamScreen) handleNoteKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	switch msg.String() {
	case "esc":
		s.editingNote = false
		return s, nil
	case "enter":
		s.editingNote = false
		return s.apply(s.engine.SetNote(s.ctx, s.boundTo, s.note.Value()))
	}
	var cmd tea.Cmd
	s.note, cmd = s.note.Update(msg)
	return s, cmd
}

func (s *ExamScreen) handleCalculatorKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	switch msg.String() {
	case "esc", "c":
		return s.apply(s.engine.ToggleCalculator(s.ctx))
	case "enter":
		v, err := Evaluate(s.calc.Value())
		if err != nil {
			s.calcOut = "error: " + err.Error()
		} else {
			s.calcOut = formatResult(v)
		}
		return s, nil
	case "tab":
		// Copy the result into a numeric answer and close.
		if _, err := strconv.ParseFloat(s.calcOut, 64); err == nil && s.isNumeric() {
			s.input.SetValue(s.calcOut)
			if err := s.engine.ToggleCalculator(s.ctx); err != nil {
				return s.apply(err)
			}
			return s.apply(s.commitInput())
		}
		return s, nil
	}
	var cmd tea.Cmd
	s.calc, cmd = s.calc.Update(msg)
	return s, cmd
}

func (s *ExamScreen) handleReviewKey(key string) (screen.Screen, tea.Cmd) {
	n := len(s.snap.CurrentSection().Questions)
	switch key {
	case "esc", "r":
		return s.apply(s.engine.ToggleReviewScreen(s.ctx))
	case "left", "h":
		s.reviewCursor = max(s.reviewCursor-1, 0)
	case "right", "l":
		s.reviewCursor = min(s.reviewCursor+1, n-1)
	case "up", "k":
		if s.reviewCursor-reviewColumns >= 0 {
			s.reviewCursor -= reviewColumns
		}
	case "down", "j":
		if s.reviewCursor+reviewColumns < n {
			s.reviewCursor += reviewColumns
		}
	case "f":
		id := s.snap.CurrentSection().Questions[s.reviewCursor].ID
		return s.apply(s.engine.ToggleFlag(s.ctx, id))
	case "enter":
		return s.apply(s.engine.NavigateQuestion(s.ctx, s.reviewCursor))
	}
	return s, nil
}

func (s *ExamScreen) isNumeric() bool {
	q := s.snap.CurrentQuestion()
	return q != nil && q.Type == testdef.NumericEntry
}

// KeyHints returns context-sensitive footer hints.
func (s *ExamScreen) KeyHints() []layout.KeyHint {
	switch {
	case s.confirm != confirmNone:
		return []layout.KeyHint{{Key: "y", Description: "Yes"}, {Key: "n", Description: "No"}}
	case s.snap.Phase() != session.PhaseInSection:
		return []layout.KeyHint{{Key: "q", Description: "Quit"}}
	case s.editingNote:
		return []layout.KeyHint{{Key: "Enter", Description: "Save note"}, {Key: "Esc", Description: "Cancel"}}
	case s.snap.CalculatorOpen:
		return []layout.KeyHint{
			{Key: "Enter", Description: "Evaluate"},
			{Key: "Tab", Description: "Use result"},
			{Key: "Esc", Description: "Close"},
		}
	case s.snap.ReviewScreenOpen:
		return []layout.KeyHint{
			{Key: "←↑↓→", Description: "Move"},
			{Key: "Enter", Description: "Go to question"},
			{Key: "f", Description: "Flag"},
			{Key: "Esc", Description: "Close"},
		}
	}
	hints := []layout.KeyHint{{Key: "Tab", Description: "Next"}}
	if s.isNumeric() {
		hints = append(hints, layout.KeyHint{Key: "Enter", Description: "Save"})
	} else {
		hints = append(hints, layout.KeyHint{Key: "1-9", Description: "Choose"})
	}
	hints = append(hints,
		layout.KeyHint{Key: "f", Description: "Flag"},
		layout.KeyHint{Key: "r", Description: "Review"},
		layout.KeyHint{Key: "c", Description: "Calculator"},
		layout.KeyHint{Key: "s", Description: "Submit"},
	)
	if s.snap.Mode == session.ModeStudy {
		hints = append(hints, layout.KeyHint{Key: "?", Description: "Reveal"})
	}
	return hints
}
