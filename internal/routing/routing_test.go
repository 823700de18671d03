package routing

import (
	"testing"

	"github.com/abhisek/adaptest/internal/testdef"
)

func intp(n int) *int { return &n }

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		rules  []testdef.RoutingRule
		score  int
		want   string
		wantOK bool
	}{
		{
			name:  "no rules ends test",
			score: 5,
		},
		{
			name: "first match wins on overlap",
			rules: []testdef.RoutingRule{
				{MinScore: intp(5), MaxScore: intp(10), NextSectionID: "X"},
				{MinScore: intp(3), MaxScore: intp(8), NextSectionID: "Y"},
			},
			score: 6, want: "X", wantOK: true,
		},
		{
			name: "second rule when first misses",
			rules: []testdef.RoutingRule{
				{MinScore: intp(5), MaxScore: intp(10), NextSectionID: "X"},
				{MinScore: intp(3), MaxScore: intp(8), NextSectionID: "Y"},
			},
			score: 4, want: "Y", wantOK: true,
		},
		{
			name: "inclusive bounds",
			rules: []testdef.RoutingRule{
				{MinScore: intp(3), MaxScore: intp(3), NextSectionID: "X"},
			},
			score: 3, want: "X", wantOK: true,
		},
		{
			name: "open ended max",
			rules: []testdef.RoutingRule{
				{MinScore: intp(7), NextSectionID: "hard"},
			},
			score: 99, want: "hard", wantOK: true,
		},
		{
			name: "default declared first is still a fallback",
			rules: []testdef.RoutingRule{
				{Default: true, NextSectionID: "easy"},
				{MinScore: intp(7), NextSectionID: "hard"},
			},
			score: 8, want: "hard", wantOK: true,
		},
		{
			name: "default when nothing matches",
			rules: []testdef.RoutingRule{
				{MinScore: intp(7), NextSectionID: "hard"},
				{Default: true, NextSectionID: "easy"},
			},
			score: 2, want: "easy", wantOK: true,
		},
		{
			name: "no match and no default",
			rules: []testdef.RoutingRule{
				{MinScore: intp(7), NextSectionID: "hard"},
			},
			score: 2,
		},
		{
			name: "matched rule without target ends test",
			rules: []testdef.RoutingRule{
				{MaxScore: intp(2)},
				{Default: true, NextSectionID: "easy"},
			},
			score: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(tt.rules, tt.score)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Resolve(score=%d) = (%q, %v), want (%q, %v)", tt.score, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestGaps(t *testing.T) {
	rules := []testdef.RoutingRule{
		{MinScore: intp(0), MaxScore: intp(2), NextSectionID: "easy"},
		{MinScore: intp(5), NextSectionID: "hard"},
	}
	got := Gaps(rules, 6)
	want := []int{3, 4}
	if len(got) != len(want) || got[0] != 3 || got[1] != 4 {
		t.Errorf("Gaps = %v, want %v", got, want)
	}

	rules = append(rules, testdef.RoutingRule{Default: true})
	if g := Gaps(rules, 6); len(g) != 0 {
		t.Errorf("Gaps with default = %v, want none", g)
	}
	if g := Gaps(nil, 6); g != nil {
		t.Errorf("Gaps(nil) = %v, want nil", g)
	}
}

func TestWarnings(t *testing.T) {
	def := &testdef.Test{Sections: []testdef.Section{
		{ID: "a", Questions: make([]testdef.Question, 2), RoutingRules: []testdef.RoutingRule{{MinScore: intp(2), NextSectionID: "b"}}},
		{ID: "b", Questions: make([]testdef.Question, 1)},
	}}
	w := Warnings(def)
	if len(w) != 1 || w[0].SectionID != "a" || len(w[0].Scores) != 2 {
		t.Errorf("Warnings = %+v, want gaps 0 and 1 for section a", w)
	}
}
