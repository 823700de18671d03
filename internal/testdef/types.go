package testdef

// SectionType identifies which half of the exam a section belongs to.
type SectionType string

const (
	SectionVerbal       SectionType = "verbal"
	SectionQuantitative SectionType = "quantitative"
)

// Valid reports whether t is a known section type.
func (t SectionType) Valid() bool {
	return t == SectionVerbal || t == SectionQuantitative
}

// QuestionType determines the answer shape a question accepts.
type QuestionType string

const (
	SingleChoice QuestionType = "single-choice"
	MultiSelect  QuestionType = "multi-select"
	NumericEntry QuestionType = "numeric-entry"
	TextSelect   QuestionType = "text-select"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case SingleChoice, MultiSelect, NumericEntry, TextSelect:
		return true
	}
	return false
}

// NeedsOptions reports whether questions of this type must declare options.
func (t QuestionType) NeedsOptions() bool {
	return t == SingleChoice || t == MultiSelect
}

// Test is the immutable definition of an adaptive exam.
type Test struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	SchemaVersion     string    `json:"schemaVersion,omitempty"`
	StartingSectionID string    `json:"startingSectionId"`
	EntrySectionIDs   []string  `json:"entrySectionIds,omitempty"`
	Sections          []Section `json:"sections"`
}

// Section is one timed stage of the exam.
type Section struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Type            SectionType   `json:"sectionType"`
	DurationSeconds int           `json:"durationSeconds"`
	Questions       []Question    `json:"questions"`
	Passages        []Passage     `json:"passages,omitempty"`
	RoutingRules    []RoutingRule `json:"routingRules,omitempty"`
}

// Passage is reading material shared by questions of one section.
type Passage struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// Option is a selectable answer choice.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is a single exam item. CorrectAnswer carries the answer key in
// the same tagged form candidates answer with.
type Question struct {
	ID            string       `json:"id"`
	Type          QuestionType `json:"type"`
	Prompt        string       `json:"prompt"`
	PassageID     string       `json:"passageId,omitempty"`
	Options       []Option     `json:"options,omitempty"`
	CorrectAnswer Answer       `json:"correctAnswer"`
	Explanation   string       `json:"explanation,omitempty"`

	keyErr string
}

// RoutingRule maps a section score range to the next section.
// An empty NextSectionID ends the test.
type RoutingRule struct {
	NextSectionID string `json:"nextSectionId,omitempty"`
	MinScore      *int   `json:"minScore,omitempty"`
	MaxScore      *int   `json:"maxScore,omitempty"`
	Default       bool   `json:"default,omitempty"`
}

// Matches reports whether the rule's inclusive bounds contain score.
// Default rules match every score.
func (r RoutingRule) Matches(score int) bool {
	if r.Default {
		return true
	}
	if r.MinScore != nil && score < *r.MinScore {
		return false
	}
	if r.MaxScore != nil && score > *r.MaxScore {
		return false
	}
	return true
}

// Section returns the section with the given id.
func (t *Test) Section(id string) (*Section, bool) {
	for i := range t.Sections {
		if t.Sections[i].ID == id {
			return &t.Sections[i], true
		}
	}
	return nil, false
}

// Question looks up a question anywhere in the test along with its section.
func (t *Test) Question(id string) (*Question, *Section, bool) {
	for i := range t.Sections {
		s := &t.Sections[i]
		if q, ok := s.Question(id); ok {
			return q, s, true
		}
	}
	return nil, nil, false
}

// QuestionCount returns the total number of questions across all sections.
func (t *Test) QuestionCount() int {
	n := 0
	for _, s := range t.Sections {
		n += len(s.Questions)
	}
	return n
}

// Question returns the question with the given id if it belongs to s.
func (s *Section) Question(id string) (*Question, bool) {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			return &s.Questions[i], true
		}
	}
	return nil, false
}

// QuestionIndex returns the position of question id in s, or -1.
func (s *Section) QuestionIndex(id string) int {
	for i, q := range s.Questions {
		if q.ID == id {
			return i
		}
	}
	return -1
}

// Passage returns the passage with the given id.
func (s *Section) Passage(id string) (*Passage, bool) {
	for i := range s.Passages {
		if s.Passages[i].ID == id {
			return &s.Passages[i], true
		}
	}
	return nil, false
}

// Option returns the option with the given id.
func (q *Question) Option(id string) (*Option, bool) {
	for i := range q.Options {
		if q.Options[i].ID == id {
			return &q.Options[i], true
		}
	}
	return nil, false
}
