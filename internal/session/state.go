package session

import (
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/abhisek/adaptest/internal/scoring"
	"github.com/abhisek/adaptest/internal/spacedrep"
	"github.com/abhisek/adaptest/internal/testdef"
)

var (
	// ErrNotActive is returned for attempt commands issued outside a section.
	ErrNotActive = errors.New("no section in progress")
	// ErrQuestionNotInSection rejects changes to questions of other sections.
	ErrQuestionNotInSection = errors.New("question is not in the current section")
	// ErrIndexOutOfRange rejects navigation past the section bounds.
	ErrIndexOutOfRange = errors.New("question index out of range")
	// ErrAnswerKind rejects an answer whose kind differs from the question type.
	ErrAnswerKind = errors.New("answer kind does not match question type")
	// ErrUnknownOption rejects a choice that is not one of the question's options.
	ErrUnknownOption = errors.New("unknown option")
	// ErrUnknownQuestion is returned for ids not present in the test.
	ErrUnknownQuestion = errors.New("unknown question")
	// ErrNoTest is returned when a command needs a loaded test.
	ErrNoTest = errors.New("no test loaded")
	// ErrRevealInTestMode is returned by Reveal outside study mode.
	ErrRevealInTestMode = errors.New("answers can only be revealed in study mode")
)

// Phase is the coarse state of an attempt, derived from Session fields.
type Phase int

const (
	PhaseNotStarted      Phase = iota // No test loaded, or reset
	PhaseInSection                    // Answering the current section
	PhaseSectionComplete              // Results interstitial before the next section
	PhaseTestComplete                 // Routing ended the test
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not-started"
	case PhaseInSection:
		return "in-section"
	case PhaseSectionComplete:
		return "section-complete"
	case PhaseTestComplete:
		return "test-complete"
	}
	return "unknown"
}

// Mode selects between timed testing and study.
type Mode string

const (
	ModeTest  Mode = "test"
	ModeStudy Mode = "study"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeTest || m == ModeStudy
}

// InitOptions configures a new attempt.
type InitOptions struct {
	// SectionType picks the first entry section of that type. Empty means
	// the test's starting section.
	SectionType testdef.SectionType

	// Mode defaults to ModeTest.
	Mode Mode

	// Practice disables the countdown.
	Practice bool

	// Now stamps StartedAt. Zero means time.Now.
	Now time.Time

	// ID overrides the generated attempt id.
	ID string
}

// Session is the mutable state of one candidate's attempt. It has a single
// owner and is not safe for concurrent use; engine.Engine serializes access.
type Session struct {
	// ID identifies the attempt. Assigned by InitTest.
	ID string

	// Test is the definition being taken. Never mutated.
	Test *testdef.Test

	// CurrentSectionID is empty before start and after completion.
	CurrentSectionID string

	// CurrentQuestionIndex is 0-based within the current section.
	CurrentQuestionIndex int

	// Answers holds the latest answer per question id. Answers from
	// completed sections are kept for final scoring but can no longer change.
	Answers map[string]testdef.Answer

	// Flags marks questions flagged for review.
	Flags map[string]bool

	// Bookmarks and Notes are study aids that survive ResetTest.
	Bookmarks map[string]bool
	Notes     map[string]string

	TimeLeftSeconds  int
	CalculatorOpen   bool
	ReviewScreenOpen bool

	Mode         Mode
	PracticeMode bool

	// ShowResults is set by CompleteSection until DismissResults.
	ShowResults   bool
	TestCompleted bool

	// SectionResults is append-only: a section's result is never overwritten.
	SectionResults map[string]scoring.SectionResult

	// SectionOrder lists completed section ids in completion order.
	SectionOrder []string

	StartedAt   time.Time
	CompletedAt time.Time

	// Flashcards is the spaced repetition progress; it outlives attempts.
	Flashcards *spacedrep.Scheduler
}

// New returns a session in PhaseNotStarted.
func New() *Session {
	s := &Session{
		Bookmarks:  make(map[string]bool),
		Notes:      make(map[string]string),
		Flashcards: spacedrep.NewScheduler(nil),
	}
	s.clearAttempt()
	return s
}

// clearAttempt returns every attempt field to its initial value.
func (s *Session) clearAttempt() {
	s.ID = ""
	s.Test = nil
	s.CurrentSectionID = ""
	s.CurrentQuestionIndex = 0
	s.Answers = make(map[string]testdef.Answer)
	s.Flags = make(map[string]bool)
	s.TimeLeftSeconds = 0
	s.CalculatorOpen = false
	s.ReviewScreenOpen = false
	s.Mode = ModeTest
	s.PracticeMode = false
	s.ShowResults = false
	s.TestCompleted = false
	s.SectionResults = make(map[string]scoring.SectionResult)
	s.SectionOrder = nil
	s.StartedAt = time.Time{}
	s.CompletedAt = time.Time{}
}

// Phase derives the attempt phase.
func (s *Session) Phase() Phase {
	switch {
	case s.TestCompleted:
		return PhaseTestComplete
	case s.Test == nil || s.CurrentSectionID == "":
		return PhaseNotStarted
	case s.ShowResults:
		return PhaseSectionComplete
	default:
		return PhaseInSection
	}
}

// CurrentSection returns the section in progress, or nil.
func (s *Session) CurrentSection() *testdef.Section {
	if s.Test == nil || s.CurrentSectionID == "" {
		return nil
	}
	sec, ok := s.Test.Section(s.CurrentSectionID)
	if !ok {
		return nil
	}
	return sec
}

// CurrentQuestion returns the question at CurrentQuestionIndex, or nil.
func (s *Session) CurrentQuestion() *testdef.Question {
	sec := s.CurrentSection()
	if sec == nil || s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(sec.Questions) {
		return nil
	}
	return &sec.Questions[s.CurrentQuestionIndex]
}

// Overall sums the results of every completed section.
func (s *Session) Overall() scoring.SectionResult {
	var total scoring.SectionResult
	for _, id := range s.SectionOrder {
		total = total.Add(s.SectionResults[id])
	}
	return total
}

// AnsweredCount returns how many questions of the current section have an answer.
func (s *Session) AnsweredCount() int {
	sec := s.CurrentSection()
	if sec == nil {
		return 0
	}
	n := 0
	for _, q := range sec.Questions {
		if _, ok := s.Answers[q.ID]; ok {
			n++
		}
	}
	return n
}

// FlaggedIDs returns the flagged questions of the current section in order.
func (s *Session) FlaggedIDs() []string {
	sec := s.CurrentSection()
	if sec == nil {
		return nil
	}
	var ids []string
	for _, q := range sec.Questions {
		if s.Flags[q.ID] {
			ids = append(ids, q.ID)
		}
	}
	return ids
}

// Clone returns a deep copy. The Test is shared since it is immutable.
func (s *Session) Clone() *Session {
	c := *s
	c.Answers = make(map[string]testdef.Answer, len(s.Answers))
	for id, a := range s.Answers {
		c.Answers[id] = a.Clone()
	}
	c.Flags = maps.Clone(s.Flags)
	c.Bookmarks = maps.Clone(s.Bookmarks)
	c.Notes = maps.Clone(s.Notes)
	c.SectionResults = maps.Clone(s.SectionResults)
	c.SectionOrder = slices.Clone(s.SectionOrder)
	if s.Flashcards != nil {
		c.Flashcards = s.Flashcards.Clone()
	}
	return &c
}

// StudyAids returns a NotStarted session carrying copies of the bookmarks,
// notes and flashcard progress of s and nothing else.
func (s *Session) StudyAids() *Session {
	aids := New()
	s.copyStudyAidsTo(aids)
	return aids
}

// AdoptStudyAids replaces the bookmarks, notes and flashcard progress of s
// with copies of those in from. Attempt fields are left alone.
func (s *Session) AdoptStudyAids(from *Session) {
	from.copyStudyAidsTo(s)
}

func (s *Session) copyStudyAidsTo(dst *Session) {
	dst.Bookmarks = maps.Clone(s.Bookmarks)
	if dst.Bookmarks == nil {
		dst.Bookmarks = make(map[string]bool)
	}
	dst.Notes = maps.Clone(s.Notes)
	if dst.Notes == nil {
		dst.Notes = make(map[string]string)
	}
	if s.Flashcards != nil {
		dst.Flashcards = s.Flashcards.Clone()
	} else {
		dst.Flashcards = spacedrep.NewScheduler(nil)
	}
}
