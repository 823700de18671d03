// Package scoring grades a section's answers against its answer keys.
// Every function here is pure: inputs are never mutated and repeated calls
// return the same result.
package scoring

import (
	"math"

	"github.com/abhisek/adaptest/internal/testdef"
)

// NumericPolicy controls how numeric-entry answers are compared.
type NumericPolicy struct {
	// Tolerance is the absolute difference still accepted as correct.
	// Zero means exact equality.
	Tolerance float64
}

// Scorer grades answers under a numeric policy. The zero Scorer is exact.
type Scorer struct {
	Numeric NumericPolicy
}

// SectionResult is the recorded outcome of one completed section.
type SectionResult struct {
	Correct    int `json:"correct"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Check reports whether answer is correct for q. Unanswered is never correct.
func (s Scorer) Check(q *testdef.Question, answer testdef.Answer) bool {
	if q == nil || answer.IsZero() || answer.Kind != q.Type {
		return false
	}
	key := q.CorrectAnswer
	switch q.Type {
	case testdef.NumericEntry:
		if s.Numeric.Tolerance > 0 {
			return math.Abs(answer.Number-key.Number) <= s.Numeric.Tolerance
		}
		return answer.Number == key.Number
	case testdef.MultiSelect:
		// Sets are normalized on construction; Equal compares exact sets so
		// subsets and supersets of the key are both wrong.
		return key.Equal(answer)
	default:
		return answer.Choice == key.Choice
	}
}

// Score counts the correct answers among section's questions.
func (s Scorer) Score(section *testdef.Section, answers map[string]testdef.Answer) int {
	if section == nil {
		return 0
	}
	correct := 0
	for i := range section.Questions {
		q := &section.Questions[i]
		if a, ok := answers[q.ID]; ok && s.Check(q, a) {
			correct++
		}
	}
	return correct
}

// Result scores section and derives its percentage.
func (s Scorer) Result(section *testdef.Section, answers map[string]testdef.Answer) SectionResult {
	if section == nil {
		return SectionResult{}
	}
	correct := s.Score(section, answers)
	return NewResult(correct, len(section.Questions))
}

// NewResult builds a result; percentage is rounded and 0 when total is 0.
func NewResult(correct, total int) SectionResult {
	r := SectionResult{Correct: correct, Total: total}
	if total > 0 {
		r.Percentage = int(math.Round(float64(correct) / float64(total) * 100))
	}
	return r
}

// Add sums two results and recomputes the percentage.
func (r SectionResult) Add(o SectionResult) SectionResult {
	return NewResult(r.Correct+o.Correct, r.Total+o.Total)
}

var exact Scorer

// Score grades section with exact comparison.
func Score(section *testdef.Section, answers map[string]testdef.Answer) int {
	return exact.Score(section, answers)
}

// Result grades section with exact comparison.
func Result(section *testdef.Section, answers map[string]testdef.Answer) SectionResult {
	return exact.Result(section, answers)
}

// Check grades one answer with exact comparison.
func Check(q *testdef.Question, answer testdef.Answer) bool {
	return exact.Check(q, answer)
}
