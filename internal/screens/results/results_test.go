package results

import (
	"context"
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/adaptest/internal/engine"
	"github.com/abhisek/adaptest/internal/router"
	"github.com/abhisek/adaptest/internal/session"
	"github.com/abhisek/adaptest/internal/testdef"
)

func completedFirstSection(t *testing.T) *engine.Engine {
	t.Helper()
	def, err := testdef.Load("../../testdef/testdata/mst.json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	e := engine.New(engine.Options{})
	t.Cleanup(e.Close)
	ctx := context.Background()
	if err := e.InitTest(ctx, def, session.InitOptions{Practice: true}); err != nil {
		t.Fatalf("InitTest: %v", err)
	}
	if err := e.SetAnswer(ctx, "v1q1", testdef.ChoiceAnswer(testdef.SingleChoice, "A")); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}
	if _, err := e.CompleteSection(ctx); err != nil {
		t.Fatalf("CompleteSection: %v", err)
	}
	return e
}

func TestResultsScreen_Interstitial(t *testing.T) {
	e := completedFirstSection(t)
	s := New(e)

	if s.Title() != "Section complete" {
		t.Errorf("Title = %q", s.Title())
	}
	view := s.View(100, 30)
	if !strings.Contains(view, "1 of 3 correct") {
		t.Errorf("view missing score:\n%s", view)
	}
	if !strings.Contains(view, "Next:") {
		t.Errorf("view missing next section:\n%s", view)
	}
}

func TestResultsScreen_EnterDismisses(t *testing.T) {
	e := completedFirstSection(t)
	s := New(e)

	// Other keys do nothing.
	if _, cmd := s.Update(tea.KeyPressMsg{Code: 'x', Text: "x"}); cmd != nil {
		t.Error("expected no command for x")
	}

	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a command")
	}
	if _, ok := cmd().(router.PopScreenMsg); !ok {
		t.Error("expected PopScreenMsg")
	}
	if e.Snapshot().Phase() != session.PhaseInSection {
		t.Errorf("phase = %v, want in-section", e.Snapshot().Phase())
	}
}

func TestResultsScreen_KeyHints(t *testing.T) {
	s := New(completedFirstSection(t))
	if len(s.KeyHints()) == 0 {
		t.Error("expected key hints")
	}
}
