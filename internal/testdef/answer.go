package testdef

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// ErrEmptyAnswer is returned when parsing input that carries no answer.
var ErrEmptyAnswer = errors.New("empty answer")

// Answer is a tagged union keyed by the question type it answers.
// single-choice and text-select carry Choice, numeric-entry carries Number,
// multi-select carries Choices as a sorted set. The zero Answer means
// "unanswered".
type Answer struct {
	Kind    QuestionType
	Choice  string
	Number  float64
	Choices []string
}

// ChoiceAnswer builds a scalar answer for single-choice or text-select.
func ChoiceAnswer(kind QuestionType, choice string) Answer {
	return Answer{Kind: kind, Choice: choice}
}

// NumberAnswer builds a numeric-entry answer.
func NumberAnswer(n float64) Answer {
	return Answer{Kind: NumericEntry, Number: n}
}

// ChoicesAnswer builds a multi-select answer. Duplicates are dropped and
// the set is stored sorted so equal sets compare equal.
func ChoicesAnswer(choices ...string) Answer {
	return Answer{Kind: MultiSelect, Choices: normalizeSet(choices)}
}

func normalizeSet(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		out = append(out, c)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// IsZero reports whether a is the unanswered value.
func (a Answer) IsZero() bool {
	return a.Kind == ""
}

// Equal reports structural equality. Multi-select answers compare as sets.
func (a Answer) Equal(b Answer) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case NumericEntry:
		return a.Number == b.Number
	case MultiSelect:
		return slices.Equal(normalizeSet(a.Choices), normalizeSet(b.Choices))
	case "":
		return true
	default:
		return a.Choice == b.Choice
	}
}

// Clone returns a deep copy of a.
func (a Answer) Clone() Answer {
	if a.Choices != nil {
		a.Choices = slices.Clone(a.Choices)
	}
	return a
}

// Has reports whether a multi-select answer contains choice.
func (a Answer) Has(choice string) bool {
	return slices.Contains(a.Choices, choice)
}

// Toggle returns a multi-select answer with choice added or removed.
func (a Answer) Toggle(choice string) Answer {
	if a.Has(choice) {
		rest := make([]string, 0, len(a.Choices))
		for _, c := range a.Choices {
			if c != choice {
				rest = append(rest, c)
			}
		}
		return ChoicesAnswer(rest...)
	}
	return ChoicesAnswer(append(slices.Clone(a.Choices), choice)...)
}

// Value returns the untagged payload: string, float64, []string or nil.
func (a Answer) Value() any {
	switch a.Kind {
	case "":
		return nil
	case NumericEntry:
		return a.Number
	case MultiSelect:
		if a.Choices == nil {
			return []string{}
		}
		return a.Choices
	default:
		return a.Choice
	}
}

func (a Answer) String() string {
	switch a.Kind {
	case "":
		return "-"
	case NumericEntry:
		return strconv.FormatFloat(a.Number, 'f', -1, 64)
	case MultiSelect:
		return strings.Join(a.Choices, ", ")
	default:
		return a.Choice
	}
}

// ParseAnswer converts free-text input into an answer of the given kind.
// Multi-select input is a comma separated list of option ids.
func ParseAnswer(kind QuestionType, input string) (Answer, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Answer{}, ErrEmptyAnswer
	}
	switch kind {
	case NumericEntry:
		n, err := parseNumber(input)
		if err != nil {
			return Answer{}, fmt.Errorf("parse numeric answer %q: %w", input, err)
		}
		return NumberAnswer(n), nil
	case MultiSelect:
		return ChoicesAnswer(strings.Split(input, ",")...), nil
	case SingleChoice, TextSelect:
		return ChoiceAnswer(kind, input), nil
	default:
		return Answer{}, fmt.Errorf("unknown question type %q", kind)
	}
}

// parseNumber accepts decimals and simple fractions such as "3/4".
func parseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(s, ",", "")
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil {
			return 0, err
		}
		d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err != nil {
			return 0, err
		}
		if d == 0 {
			return 0, errors.New("division by zero")
		}
		return n / d, nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, errors.New("not a finite number")
	}
	return n, nil
}

type answerJSON struct {
	Kind    QuestionType `json:"kind"`
	Choice  *string      `json:"choice,omitempty"`
	Number  *float64     `json:"number,omitempty"`
	Choices []string     `json:"choices,omitempty"`
}

// MarshalJSON encodes a as {"kind": ..., <payload>}; the unanswered value
// encodes as null.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.IsZero() {
		return []byte("null"), nil
	}
	out := answerJSON{Kind: a.Kind}
	switch a.Kind {
	case NumericEntry:
		n := a.Number
		out.Number = &n
	case MultiSelect:
		out.Choices = a.Choices
		if out.Choices == nil {
			out.Choices = []string{}
		}
	default:
		c := a.Choice
		out.Choice = &c
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the tagged object form written by MarshalJSON.
func (a *Answer) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = Answer{}
		return nil
	}
	var in answerJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Kind {
	case NumericEntry:
		if in.Number == nil {
			return fmt.Errorf("numeric-entry answer missing number")
		}
		*a = NumberAnswer(*in.Number)
	case MultiSelect:
		*a = ChoicesAnswer(in.Choices...)
	case SingleChoice, TextSelect:
		if in.Choice == nil {
			return fmt.Errorf("%s answer missing choice", in.Kind)
		}
		*a = ChoiceAnswer(in.Kind, *in.Choice)
	default:
		return fmt.Errorf("unknown answer kind %q", in.Kind)
	}
	return nil
}

// decodeKey decodes an untagged answer key ("A", 42, ["A","C"]) for a
// question of the given type.
func decodeKey(kind QuestionType, raw json.RawMessage) (Answer, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Answer{}, errors.New("missing correctAnswer")
	}
	switch kind {
	case NumericEntry:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return Answer{}, fmt.Errorf("correctAnswer must be a number")
		}
		return NumberAnswer(n), nil
	case MultiSelect:
		var cs []string
		if err := json.Unmarshal(raw, &cs); err != nil {
			return Answer{}, fmt.Errorf("correctAnswer must be an array of option ids")
		}
		return ChoicesAnswer(cs...), nil
	case SingleChoice, TextSelect:
		var c string
		if err := json.Unmarshal(raw, &c); err != nil {
			return Answer{}, fmt.Errorf("correctAnswer must be a string")
		}
		return ChoiceAnswer(kind, c), nil
	default:
		return Answer{}, fmt.Errorf("unknown question type %q", kind)
	}
}
