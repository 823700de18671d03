package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/adaptest/internal/routing"
	"github.com/abhisek/adaptest/internal/scoring"
	"github.com/abhisek/adaptest/internal/spacedrep"
	"github.com/abhisek/adaptest/internal/testdef"
)

// InitTest validates t and starts a new attempt in its starting section.
// On error the session is left unchanged.
func (s *Session) InitTest(t *testdef.Test, opts InitOptions) error {
	if err := testdef.Validate(t); err != nil {
		return err
	}
	start, err := t.StartingSection(opts.SectionType)
	if err != nil {
		return fmt.Errorf("init test %s: %w", t.ID, err)
	}
	sec, _ := t.Section(start)

	mode := opts.Mode
	if mode == "" {
		mode = ModeTest
	}
	if !mode.Valid() {
		return fmt.Errorf("init test %s: unknown mode %q", t.ID, mode)
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}

	s.clearAttempt()
	s.ID = id
	s.Test = t
	s.CurrentSectionID = start
	s.TimeLeftSeconds = sec.DurationSeconds
	s.Mode = mode
	s.PracticeMode = opts.Practice
	s.StartedAt = now.UTC()
	return nil
}

func (s *Session) requireActive() error {
	if s.Phase() != PhaseInSection {
		return ErrNotActive
	}
	return nil
}

// questionInSection resolves id within the current section.
func (s *Session) questionInSection(id string) (*testdef.Question, error) {
	if err := s.requireActive(); err != nil {
		return nil, err
	}
	q, ok := s.CurrentSection().Question(id)
	if !ok {
		return nil, fmt.Errorf("question %s: %w", id, ErrQuestionNotInSection)
	}
	return q, nil
}

// SetAnswer records or overwrites the answer to a question of the current
// section. It does not grade. The zero Answer, or an empty multi-select
// set, clears the answer.
func (s *Session) SetAnswer(questionID string, a testdef.Answer) error {
	q, err := s.questionInSection(questionID)
	if err != nil {
		return err
	}
	if a.IsZero() || (a.Kind == testdef.MultiSelect && len(a.Choices) == 0) {
		delete(s.Answers, questionID)
		return nil
	}
	if a.Kind != q.Type {
		return fmt.Errorf("question %s is %s, got %s: %w", questionID, q.Type, a.Kind, ErrAnswerKind)
	}
	if len(q.Options) > 0 {
		choices := a.Choices
		if a.Kind != testdef.MultiSelect {
			choices = []string{a.Choice}
		}
		for _, c := range choices {
			if _, ok := q.Option(c); !ok {
				return fmt.Errorf("question %s option %q: %w", questionID, c, ErrUnknownOption)
			}
		}
	}
	if a.Kind == testdef.MultiSelect {
		a = testdef.ChoicesAnswer(a.Choices...)
	} else {
		a = a.Clone()
	}
	s.Answers[questionID] = a
	return nil
}

// ClearAnswer removes the answer to a question of the current section.
func (s *Session) ClearAnswer(questionID string) error {
	if _, err := s.questionInSection(questionID); err != nil {
		return err
	}
	delete(s.Answers, questionID)
	return nil
}

// ToggleFlag inverts the review flag of a question in the current section.
func (s *Session) ToggleFlag(questionID string) error {
	if _, err := s.questionInSection(questionID); err != nil {
		return err
	}
	if s.Flags[questionID] {
		delete(s.Flags, questionID)
	} else {
		s.Flags[questionID] = true
	}
	return nil
}

// NavigateQuestion moves to index and closes the review screen in the same
// transition. Out-of-range indexes leave the session unchanged.
func (s *Session) NavigateQuestion(index int) error {
	if err := s.requireActive(); err != nil {
		return err
	}
	n := len(s.CurrentSection().Questions)
	if index < 0 || index >= n {
		return fmt.Errorf("navigate to %d of %d: %w", index, n, ErrIndexOutOfRange)
	}
	s.CurrentQuestionIndex = index
	s.ReviewScreenOpen = false
	return nil
}

// NextQuestion advances one question, staying on the last.
func (s *Session) NextQuestion() error {
	if err := s.requireActive(); err != nil {
		return err
	}
	last := len(s.CurrentSection().Questions) - 1
	return s.NavigateQuestion(min(s.CurrentQuestionIndex+1, last))
}

// PrevQuestion goes back one question, staying on the first.
func (s *Session) PrevQuestion() error {
	if err := s.requireActive(); err != nil {
		return err
	}
	return s.NavigateQuestion(max(s.CurrentQuestionIndex-1, 0))
}

// ToggleCalculator flips the calculator overlay.
func (s *Session) ToggleCalculator() error {
	if err := s.requireActive(); err != nil {
		return err
	}
	s.CalculatorOpen = !s.CalculatorOpen
	return nil
}

// ToggleReviewScreen flips the review screen overlay.
func (s *Session) ToggleReviewScreen() error {
	if err := s.requireActive(); err != nil {
		return err
	}
	s.ReviewScreenOpen = !s.ReviewScreenOpen
	return nil
}

// TickTimer decrements the countdown, floored at zero, and returns the
// seconds left. Reaching zero does not complete the section.
func (s *Session) TickTimer() (int, error) {
	if err := s.requireActive(); err != nil {
		return 0, err
	}
	if s.TimeLeftSeconds > 0 {
		s.TimeLeftSeconds--
	}
	return s.TimeLeftSeconds, nil
}

// Completion describes the outcome of CompleteSection.
type Completion struct {
	SectionID     string
	Result        scoring.SectionResult
	NextSectionID string
	TestCompleted bool
}

// CompleteSection scores the current section, records its result and
// routes to the next section or completes the test. Answers and flags are
// kept. It returns ErrNotActive while results are showing, so a repeated
// call never records a section twice.
func (s *Session) CompleteSection(scorer scoring.Scorer, now time.Time) (Completion, error) {
	if err := s.requireActive(); err != nil {
		return Completion{}, err
	}
	sec := s.CurrentSection()
	if prev, done := s.SectionResults[sec.ID]; done {
		return Completion{SectionID: sec.ID, Result: prev}, nil
	}

	result := scorer.Result(sec, s.Answers)
	s.SectionResults[sec.ID] = result
	s.SectionOrder = append(s.SectionOrder, sec.ID)
	s.ShowResults = true
	s.CalculatorOpen = false
	s.ReviewScreenOpen = false

	c := Completion{SectionID: sec.ID, Result: result}
	next, ok := routing.Resolve(sec.RoutingRules, result.Correct)
	if nextSec, found := s.Test.Section(next); ok && found {
		s.CurrentSectionID = next
		s.CurrentQuestionIndex = 0
		s.TimeLeftSeconds = nextSec.DurationSeconds
		c.NextSectionID = next
		return c, nil
	}

	s.TestCompleted = true
	s.CurrentSectionID = ""
	s.CurrentQuestionIndex = 0
	s.TimeLeftSeconds = 0
	if now.IsZero() {
		now = time.Now()
	}
	s.CompletedAt = now.UTC()
	c.TestCompleted = true
	return c, nil
}

// DismissResults hides the results interstitial. It reports whether the
// session was showing results.
func (s *Session) DismissResults() bool {
	if !s.ShowResults {
		return false
	}
	s.ShowResults = false
	return true
}

// ResetTest discards the attempt. Flashcard progress, bookmarks and notes
// are kept.
func (s *Session) ResetTest() {
	s.clearAttempt()
}

func (s *Session) requireQuestion(id string) error {
	if s.Test == nil {
		return ErrNoTest
	}
	if _, _, ok := s.Test.Question(id); !ok {
		return fmt.Errorf("question %s: %w", id, ErrUnknownQuestion)
	}
	return nil
}

// ToggleBookmark inverts the bookmark on any question of the test.
func (s *Session) ToggleBookmark(questionID string) error {
	if err := s.requireQuestion(questionID); err != nil {
		return err
	}
	if s.Bookmarks[questionID] {
		delete(s.Bookmarks, questionID)
	} else {
		s.Bookmarks[questionID] = true
	}
	return nil
}

// SetNote stores a trimmed note for a question; empty text deletes it.
func (s *Session) SetNote(questionID, text string) error {
	if err := s.requireQuestion(questionID); err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		delete(s.Notes, questionID)
		return nil
	}
	s.Notes[questionID] = text
	return nil
}

// Rate records a flashcard review. With a test loaded the question must
// belong to it.
func (s *Session) Rate(questionID string, level int, now time.Time) (spacedrep.Progress, error) {
	if s.Test != nil {
		if err := s.requireQuestion(questionID); err != nil {
			return spacedrep.Progress{}, err
		}
	}
	if s.Flashcards == nil {
		s.Flashcards = spacedrep.NewScheduler(nil)
	}
	return s.Flashcards.Rate(questionID, level, now.UTC())
}

// Revealed is the study-mode view of a question's key.
type Revealed struct {
	QuestionID    string
	Answered      bool
	Correct       bool
	CorrectAnswer testdef.Answer
	Explanation   string
}

// Reveal grades the current answer to a question of the current section
// and exposes its key. Only available in study mode.
func (s *Session) Reveal(questionID string, scorer scoring.Scorer) (Revealed, error) {
	q, err := s.questionInSection(questionID)
	if err != nil {
		return Revealed{}, err
	}
	if s.Mode != ModeStudy {
		return Revealed{}, ErrRevealInTestMode
	}
	a, answered := s.Answers[questionID]
	return Revealed{
		QuestionID:    questionID,
		Answered:      answered,
		Correct:       answered && scorer.Check(q, a),
		CorrectAnswer: q.CorrectAnswer.Clone(),
		Explanation:   q.Explanation,
	}, nil
}
