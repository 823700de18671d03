// Package routing picks the next section from a completed section's score.
package routing

import "github.com/abhisek/adaptest/internal/testdef"

// Resolve returns the next section for score. Bounded rules are tried in
// declaration order and the first match wins; the default rule is used only
// when no bounded rule matches, wherever it is declared. ok is false when
// the test ends: no rule applies, or the chosen rule has no target.
func Resolve(rules []testdef.RoutingRule, score int) (nextSectionID string, ok bool) {
	var fallback *testdef.RoutingRule
	for i := range rules {
		r := &rules[i]
		if r.Default {
			if fallback == nil {
				fallback = r
			}
			continue
		}
		if r.Matches(score) {
			return r.NextSectionID, r.NextSectionID != ""
		}
	}
	if fallback != nil {
		return fallback.NextSectionID, fallback.NextSectionID != ""
	}
	return "", false
}

// Gaps lists the scores in [0, maxScore] that no rule matches. A section
// with no rules at all is terminal and has no gaps.
func Gaps(rules []testdef.RoutingRule, maxScore int) []int {
	if len(rules) == 0 {
		return nil
	}
	var gaps []int
	for score := 0; score <= maxScore; score++ {
		matched := false
		for _, r := range rules {
			if r.Matches(score) {
				matched = true
				break
			}
		}
		if !matched {
			gaps = append(gaps, score)
		}
	}
	return gaps
}

// Warnings describes every section whose rules leave achievable scores
// unrouted. Such scores end the test, which is usually unintended.
func Warnings(t *testdef.Test) []Warning {
	var out []Warning
	for _, s := range t.Sections {
		if g := Gaps(s.RoutingRules, len(s.Questions)); len(g) > 0 {
			out = append(out, Warning{SectionID: s.ID, Scores: g})
		}
	}
	return out
}

// Warning reports unrouted scores for one section.
type Warning struct {
	SectionID string
	Scores    []int
}
