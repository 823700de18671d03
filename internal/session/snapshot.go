package session

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/abhisek/adaptest/internal/scoring"
	"github.com/abhisek/adaptest/internal/spacedrep"
	"github.com/abhisek/adaptest/internal/store"
	"github.com/abhisek/adaptest/internal/testdef"
)

// SnapshotData exports the session, including the test it runs and the
// flashcard progress, for persistence.
func (s *Session) SnapshotData() (*store.SnapshotData, error) {
	sd := &store.SessionData{
		ID:                   s.ID,
		CurrentSectionID:     s.CurrentSectionID,
		CurrentQuestionIndex: s.CurrentQuestionIndex,
		Answers:              make(map[string]store.AnswerData, len(s.Answers)),
		Flags:                trueKeys(s.Flags),
		Bookmarks:            trueKeys(s.Bookmarks),
		Notes:                maps.Clone(s.Notes),
		TimeLeftSeconds:      s.TimeLeftSeconds,
		CalculatorOpen:       s.CalculatorOpen,
		ReviewScreenOpen:     s.ReviewScreenOpen,
		Mode:                 string(s.Mode),
		PracticeMode:         s.PracticeMode,
		ShowResults:          s.ShowResults,
		TestCompleted:        s.TestCompleted,
		SectionResults:       make(map[string]store.SectionResultData, len(s.SectionResults)),
		SectionOrder:         slices.Clone(s.SectionOrder),
		StartedAt:            formatTime(s.StartedAt),
		CompletedAt:          formatTime(s.CompletedAt),
	}
	if s.Test != nil {
		raw, err := json.Marshal(s.Test)
		if err != nil {
			return nil, fmt.Errorf("marshal test: %w", err)
		}
		sd.Test = raw
	}
	for id, a := range s.Answers {
		sd.Answers[id] = store.AnswerData{
			Kind:    string(a.Kind),
			Choice:  a.Choice,
			Number:  a.Number,
			Choices: slices.Clone(a.Choices),
		}
	}
	for id, r := range s.SectionResults {
		sd.SectionResults[id] = store.SectionResultData{Correct: r.Correct, Total: r.Total, Percentage: r.Percentage}
	}

	data := &store.SnapshotData{Version: store.SnapshotVersion, Session: sd}
	if s.Flashcards != nil {
		data.Flashcards = s.Flashcards.SnapshotData()
	}
	return data, nil
}

// FromSnapshot reconstructs a session. A snapshot without session data
// yields a NotStarted session that still carries the flashcard progress.
func FromSnapshot(data *store.SnapshotData) (*Session, error) {
	s := New()
	if data == nil {
		return s, nil
	}
	if data.Version > store.SnapshotVersion {
		return nil, fmt.Errorf("restore session: snapshot version %d is newer than %d", data.Version, store.SnapshotVersion)
	}
	s.Flashcards = spacedrep.NewScheduler(data.Flashcards)

	sd := data.Session
	if sd == nil {
		return s, nil
	}

	if len(sd.Test) > 0 {
		var t testdef.Test
		if err := json.Unmarshal(sd.Test, &t); err != nil {
			return nil, fmt.Errorf("restore test: %w", err)
		}
		if err := testdef.Validate(&t); err != nil {
			return nil, fmt.Errorf("restore test: %w", err)
		}
		s.Test = &t
	}

	s.ID = sd.ID
	s.CurrentSectionID = sd.CurrentSectionID
	s.CurrentQuestionIndex = sd.CurrentQuestionIndex
	s.TimeLeftSeconds = sd.TimeLeftSeconds
	s.CalculatorOpen = sd.CalculatorOpen
	s.ReviewScreenOpen = sd.ReviewScreenOpen
	s.Mode = Mode(sd.Mode)
	if !s.Mode.Valid() {
		s.Mode = ModeTest
	}
	s.PracticeMode = sd.PracticeMode
	s.ShowResults = sd.ShowResults
	s.TestCompleted = sd.TestCompleted
	s.SectionOrder = slices.Clone(sd.SectionOrder)

	for id, ad := range sd.Answers {
		a, err := answerFromData(ad)
		if err != nil {
			return nil, fmt.Errorf("restore answer %s: %w", id, err)
		}
		s.Answers[id] = a
	}
	for _, id := range sd.Flags {
		s.Flags[id] = true
	}
	for _, id := range sd.Bookmarks {
		s.Bookmarks[id] = true
	}
	for id, n := range sd.Notes {
		s.Notes[id] = n
	}
	for id, r := range sd.SectionResults {
		s.SectionResults[id] = scoring.SectionResult{Correct: r.Correct, Total: r.Total, Percentage: r.Percentage}
	}

	var err error
	if s.StartedAt, err = parseTime(sd.StartedAt); err != nil {
		return nil, fmt.Errorf("restore started_at: %w", err)
	}
	if s.CompletedAt, err = parseTime(sd.CompletedAt); err != nil {
		return nil, fmt.Errorf("restore completed_at: %w", err)
	}

	if s.CurrentSectionID != "" {
		sec := s.CurrentSection()
		if sec == nil {
			return nil, fmt.Errorf("restore session: current section %q not in test", s.CurrentSectionID)
		}
		if s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(sec.Questions) {
			s.CurrentQuestionIndex = 0
		}
	}
	return s, nil
}

func answerFromData(ad store.AnswerData) (testdef.Answer, error) {
	kind := testdef.QuestionType(ad.Kind)
	switch kind {
	case testdef.NumericEntry:
		return testdef.NumberAnswer(ad.Number), nil
	case testdef.MultiSelect:
		return testdef.ChoicesAnswer(ad.Choices...), nil
	case testdef.SingleChoice, testdef.TextSelect:
		return testdef.ChoiceAnswer(kind, ad.Choice), nil
	}
	return testdef.Answer{}, fmt.Errorf("unknown answer kind %q", ad.Kind)
}

func trueKeys(m map[string]bool) []string {
	var out []string
	for k, v := range m {
		if v {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
