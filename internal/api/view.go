package api

import (
	"slices"
	"time"

	"github.com/abhisek/adaptest/internal/engine"
	"github.com/abhisek/adaptest/internal/testdef"
)

type sectionResultView struct {
	Correct    int `json:"correct"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// questionView is a question as a client may see it: no answer key.
type questionView struct {
	ID        string           `json:"id"`
	Type      string           `json:"type"`
	Prompt    string           `json:"prompt"`
	Passage   *testdef.Passage `json:"passage,omitempty"`
	Options   []testdef.Option `json:"options,omitempty"`
	Flagged   bool             `json:"flagged"`
	Bookmark  bool             `json:"bookmarked"`
	Note      string           `json:"note,omitempty"`
	Answer    *testdef.Answer  `json:"answer,omitempty"`
	Position  int              `json:"position"`
	Questions int              `json:"questions"`
}

type sessionView struct {
	ID                   string                       `json:"id"`
	TestID               string                       `json:"testId,omitempty"`
	Phase                string                       `json:"phase"`
	Mode                 string                       `json:"mode"`
	PracticeMode         bool                         `json:"practiceMode"`
	CurrentSectionID     string                       `json:"currentSectionId,omitempty"`
	CurrentQuestionIndex int                          `json:"currentQuestionIndex"`
	CurrentQuestion      *questionView                `json:"currentQuestion,omitempty"`
	TimeLeftSeconds      int                          `json:"timeLeftSeconds"`
	CalculatorOpen       bool                         `json:"isCalculatorOpen"`
	ReviewScreenOpen     bool                         `json:"isReviewScreenOpen"`
	ShowResults          bool                         `json:"showResults"`
	TestCompleted        bool                         `json:"testCompleted"`
	Answers              map[string]testdef.Answer    `json:"answers"`
	Flags                []string                     `json:"flags"`
	Bookmarks            []string                     `json:"bookmarks"`
	Notes                map[string]string            `json:"notes"`
	SectionResults       map[string]sectionResultView `json:"sectionResults"`
	SectionOrder         []string                     `json:"sectionOrder"`
	Overall              sectionResultView            `json:"overall"`
	StartedAt            *time.Time                   `json:"startedAt,omitempty"`
	CompletedAt          *time.Time                   `json:"completedAt,omitempty"`
	PersistWarning       string                       `json:"persistWarning,omitempty"`
}

func newSessionView(e *engine.Engine) sessionView {
	s := e.Snapshot()
	v := sessionView{
		ID:                   s.ID,
		Phase:                s.Phase().String(),
		Mode:                 string(s.Mode),
		PracticeMode:         s.PracticeMode,
		CurrentSectionID:     s.CurrentSectionID,
		CurrentQuestionIndex: s.CurrentQuestionIndex,
		TimeLeftSeconds:      s.TimeLeftSeconds,
		CalculatorOpen:       s.CalculatorOpen,
		ReviewScreenOpen:     s.ReviewScreenOpen,
		ShowResults:          s.ShowResults,
		TestCompleted:        s.TestCompleted,
		Answers:              s.Answers,
		Flags:                keys(s.Flags),
		Bookmarks:            keys(s.Bookmarks),
		Notes:                s.Notes,
		SectionResults:       make(map[string]sectionResultView, len(s.SectionResults)),
		SectionOrder:         s.SectionOrder,
		Overall:              sectionResultView(s.Overall()),
	}
	if v.SectionOrder == nil {
		v.SectionOrder = []string{}
	}
	if s.Test != nil {
		v.TestID = s.Test.ID
	}
	for id, r := range s.SectionResults {
		v.SectionResults[id] = sectionResultView(r)
	}
	if !s.StartedAt.IsZero() {
		v.StartedAt = &s.StartedAt
	}
	if !s.CompletedAt.IsZero() {
		v.CompletedAt = &s.CompletedAt
	}
	if err := e.PersistWarning(); err != nil {
		v.PersistWarning = err.Error()
	}

	sec := s.CurrentSection()
	if q := s.CurrentQuestion(); q != nil && sec != nil {
		qv := &questionView{
			ID:        q.ID,
			Type:      string(q.Type),
			Prompt:    q.Prompt,
			Options:   q.Options,
			Flagged:   s.Flags[q.ID],
			Bookmark:  s.Bookmarks[q.ID],
			Note:      s.Notes[q.ID],
			Position:  s.CurrentQuestionIndex + 1,
			Questions: len(sec.Questions),
		}
		if p, ok := sec.Passage(q.PassageID); ok {
			qv.Passage = p
		}
		if a, ok := s.Answers[q.ID]; ok {
			qv.Answer = &a
		}
		v.CurrentQuestion = qv
	}
	return v
}

func keys(m map[string]bool) []string {
	out := []string{}
	for k, on := range m {
		if on {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}
