package testdef

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrInvalidTest is matched by every *ValidationError.
var ErrInvalidTest = errors.New("invalid test definition")

// SupportedMajor is the schemaVersion major this engine understands.
const SupportedMajor = "v1"

// ValidationError lists every structural problem found in a test.
type ValidationError struct {
	TestID   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("test %q validation failed:\n  %s", e.TestID, strings.Join(e.Problems, "\n  "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidTest
}

// Validate performs all structural checks on t. It returns a
// *ValidationError describing every problem, or nil if t is valid.
func Validate(t *Test) error {
	if t == nil {
		return &ValidationError{Problems: []string{"test is nil"}}
	}

	var errs []string
	addf := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if t.ID == "" {
		addf("test id is empty")
	}
	if t.SchemaVersion != "" {
		v := CanonicalVersion(t.SchemaVersion)
		switch {
		case !semver.IsValid(v):
			addf("schemaVersion %q is not a semantic version", t.SchemaVersion)
		case semver.Major(v) != SupportedMajor:
			addf("schemaVersion %q is not supported (want %s.x.y)", t.SchemaVersion, SupportedMajor)
		}
	}
	if len(t.Sections) == 0 {
		addf("test has no sections")
	}

	sectionIDs := make(map[string]bool, len(t.Sections))
	questionIDs := make(map[string]string)
	for _, s := range t.Sections {
		if s.ID == "" {
			addf("section with empty id")
			continue
		}
		if sectionIDs[s.ID] {
			addf("duplicate section id %q", s.ID)
		}
		sectionIDs[s.ID] = true
	}

	for _, s := range t.Sections {
		prefix := fmt.Sprintf("section %q", s.ID)
		if !s.Type.Valid() {
			addf("%s: unknown sectionType %q", prefix, s.Type)
		}
		if s.DurationSeconds < 0 {
			addf("%s: durationSeconds must be >= 0, got %d", prefix, s.DurationSeconds)
		}
		if len(s.Questions) == 0 {
			addf("%s: has no questions", prefix)
		}

		passageIDs := make(map[string]bool, len(s.Passages))
		for _, p := range s.Passages {
			if p.ID == "" {
				addf("%s: passage with empty id", prefix)
				continue
			}
			if passageIDs[p.ID] {
				addf("%s: duplicate passage id %q", prefix, p.ID)
			}
			passageIDs[p.ID] = true
		}

		for _, q := range s.Questions {
			if q.ID == "" {
				addf("%s: question with empty id", prefix)
				continue
			}
			if owner, dup := questionIDs[q.ID]; dup {
				addf("%s: duplicate question id %q (also in section %q)", prefix, q.ID, owner)
			}
			questionIDs[q.ID] = s.ID
			for _, p := range validateQuestion(q) {
				addf("%s question %q: %s", prefix, q.ID, p)
			}
			if q.PassageID != "" && !passageIDs[q.PassageID] {
				addf("%s question %q: passage %q not found in section", prefix, q.ID, q.PassageID)
			}
		}

		defaults := 0
		for i, r := range s.RoutingRules {
			rp := fmt.Sprintf("%s rule %d", prefix, i)
			if r.NextSectionID != "" && !sectionIDs[r.NextSectionID] {
				addf("%s: nextSectionId %q does not exist", rp, r.NextSectionID)
			}
			if r.Default {
				defaults++
				if r.MinScore != nil || r.MaxScore != nil {
					addf("%s: default rule must not declare score bounds", rp)
				}
				continue
			}
			if r.MinScore == nil && r.MaxScore == nil {
				addf("%s: rule needs minScore, maxScore or default", rp)
			}
			if r.MinScore != nil && r.MaxScore != nil && *r.MinScore > *r.MaxScore {
				addf("%s: minScore %d > maxScore %d", rp, *r.MinScore, *r.MaxScore)
			}
		}
		if defaults > 1 {
			addf("%s: has %d default routing rules, at most one allowed", prefix, defaults)
		}
	}

	entries := t.EntryPoints()
	if t.StartingSectionID == "" {
		addf("startingSectionId is empty")
	}
	for _, id := range entries {
		if !sectionIDs[id] {
			addf("entry section %q does not exist", id)
		}
	}

	errs = append(errs, checkRoutingGraph(t, entries, sectionIDs)...)

	if len(errs) > 0 {
		return &ValidationError{TestID: t.ID, Problems: errs}
	}
	return nil
}

func validateQuestion(q Question) []string {
	var errs []string
	if !q.Type.Valid() {
		return append(errs, fmt.Sprintf("unknown type %q", q.Type))
	}
	if strings.TrimSpace(q.Prompt) == "" {
		errs = append(errs, "prompt is empty")
	}
	if q.keyErr != "" {
		return append(errs, q.keyErr)
	}
	if q.CorrectAnswer.Kind != q.Type {
		return append(errs, fmt.Sprintf("correctAnswer kind %q does not match type", q.CorrectAnswer.Kind))
	}

	optionIDs := make(map[string]bool, len(q.Options))
	for _, o := range q.Options {
		if o.ID == "" {
			errs = append(errs, "option with empty id")
			continue
		}
		if optionIDs[o.ID] {
			errs = append(errs, fmt.Sprintf("duplicate option id %q", o.ID))
		}
		optionIDs[o.ID] = true
	}
	if q.Type.NeedsOptions() && len(q.Options) == 0 {
		errs = append(errs, "options are required for "+string(q.Type))
	}

	switch q.Type {
	case MultiSelect:
		if len(q.CorrectAnswer.Choices) == 0 {
			errs = append(errs, "correctAnswer must list at least one option")
		}
		for _, c := range q.CorrectAnswer.Choices {
			if !optionIDs[c] {
				errs = append(errs, fmt.Sprintf("correctAnswer references unknown option %q", c))
			}
		}
	case SingleChoice, TextSelect:
		if q.CorrectAnswer.Choice == "" {
			errs = append(errs, "correctAnswer is empty")
		} else if len(q.Options) > 0 && !optionIDs[q.CorrectAnswer.Choice] {
			errs = append(errs, fmt.Sprintf("correctAnswer references unknown option %q", q.CorrectAnswer.Choice))
		}
	}
	return errs
}

// checkRoutingGraph reports sections unreachable from any entry point and
// cycles in the routing graph (Kahn's algorithm).
func checkRoutingGraph(t *Test, entries []string, known map[string]bool) []string {
	var errs []string

	adj := make(map[string][]string, len(t.Sections))
	inDegree := make(map[string]int, len(t.Sections))
	for _, s := range t.Sections {
		if _, ok := inDegree[s.ID]; !ok {
			inDegree[s.ID] = 0
		}
		seen := make(map[string]bool)
		for _, r := range s.RoutingRules {
			next := r.NextSectionID
			if next == "" || !known[next] || seen[next] {
				continue
			}
			seen[next] = true
			adj[s.ID] = append(adj[s.ID], next)
			inDegree[next]++
		}
	}

	reached := make(map[string]bool, len(t.Sections))
	stack := slices.Clone(entries)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reached[id] || !known[id] {
			continue
		}
		reached[id] = true
		stack = append(stack, adj[id]...)
	}
	for _, s := range t.Sections {
		if s.ID != "" && !reached[s.ID] {
			errs = append(errs, fmt.Sprintf("section %q is unreachable from any entry section", s.ID))
		}
	}

	var queue []string
	for _, s := range t.Sections {
		if inDegree[s.ID] == 0 {
			queue = append(queue, s.ID)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adj[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited < len(inDegree) {
		var cycle []string
		for _, s := range t.Sections {
			if inDegree[s.ID] > 0 {
				cycle = append(cycle, s.ID)
			}
		}
		errs = append(errs, fmt.Sprintf("routing cycle detected involving sections: %s", strings.Join(cycle, ", ")))
	}
	return errs
}

// CanonicalVersion returns v with the "v" prefix semver expects.
func CanonicalVersion(v string) string {
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
