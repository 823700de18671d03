package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/abhisek/adaptest/internal/session"
	"github.com/abhisek/adaptest/internal/store"
	"github.com/abhisek/adaptest/internal/testdef"
	"github.com/abhisek/adaptest/internal/timer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var t0 = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func intp(n int) *int { return &n }

func fixedNow() time.Time { return t0 }

// shortTest has a three second first stage routing to a second stage on any
// score, and a second stage that ends the test.
func shortTest() *testdef.Test {
	opts := []testdef.Option{{ID: "A", Text: "a"}, {ID: "B", Text: "b"}}
	return &testdef.Test{
		ID:                "short",
		Title:             "Short",
		StartingSectionID: "S1",
		Sections: []testdef.Section{
			{
				ID: "S1", Title: "One", Type: testdef.SectionQuantitative, DurationSeconds: 3,
				Questions: []testdef.Question{
					{ID: "q1", Type: testdef.SingleChoice, Prompt: "p", Options: opts, CorrectAnswer: testdef.ChoiceAnswer(testdef.SingleChoice, "A")},
					{ID: "q2", Type: testdef.NumericEntry, Prompt: "n", CorrectAnswer: testdef.NumberAnswer(12)},
				},
				RoutingRules: []testdef.RoutingRule{{MinScore: intp(0), NextSectionID: "S2"}},
			},
			{
				ID: "S2", Title: "Two", Type: testdef.SectionQuantitative, DurationSeconds: 5,
				Questions: []testdef.Question{
					{ID: "q3", Type: testdef.SingleChoice, Prompt: "p", Options: opts, CorrectAnswer: testdef.ChoiceAnswer(testdef.SingleChoice, "B")},
				},
			},
		},
	}
}

func newFakeEngine(t *testing.T, opts Options) (*Engine, *timer.FakeClock) {
	t.Helper()
	clock := timer.NewFakeClock()
	opts.Timer = timer.New(timer.WithTickerFunc(clock.TickerFunc()))
	if opts.Now == nil {
		opts.Now = fixedNow
	}
	e := New(opts)
	t.Cleanup(e.Close)
	return e, clock
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	s, err := store.Open(store.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCountdown_ExpiryCompletesSectionOnce(t *testing.T) {
	e, clock := newFakeEngine(t, Options{})
	ctx := context.Background()
	require.NoError(t, e.InitTest(ctx, shortTest(), session.InitOptions{}))
	require.Equal(t, 3, e.Snapshot().TimeLeftSeconds)

	for i := 0; i < 3; i++ {
		require.True(t, clock.Tick(), "tick %d", i)
	}
	require.Eventually(t, func() bool {
		return e.Snapshot().Phase() == session.PhaseSectionComplete
	}, time.Second, time.Millisecond)

	s := e.Snapshot()
	assert.Len(t, s.SectionResults, 1)
	assert.Equal(t, []string{"S1"}, s.SectionOrder)
	assert.Equal(t, "S2", s.CurrentSectionID)
	assert.Equal(t, 5, s.TimeLeftSeconds)

	require.Eventually(t, func() bool { return clock.Current() == nil }, time.Second, time.Millisecond)
	assert.False(t, clock.Tick(), "countdown must stop after completing the section")

	// The next section's countdown starts once results are dismissed.
	require.True(t, e.DismissResults(ctx))
	assert.Equal(t, 2, clock.Created())
	require.True(t, clock.Tick())
	require.Eventually(t, func() bool { return e.Snapshot().TimeLeftSeconds == 4 }, time.Second, time.Millisecond)
}

func TestCountdown_ReplacedCountdownNeverFires(t *testing.T) {
	e, clock := newFakeEngine(t, Options{})
	ctx := context.Background()
	require.NoError(t, e.InitTest(ctx, shortTest(), session.InitOptions{}))
	first := clock.Current()
	require.NotNil(t, first)

	require.NoError(t, e.InitTest(ctx, shortTest(), session.InitOptions{}))
	require.Eventually(t, first.Stopped, time.Second, time.Millisecond)
	assert.False(t, first.Tick())

	for i := 0; i < 3; i++ {
		require.True(t, clock.Tick())
	}
	require.Eventually(t, func() bool {
		return e.Snapshot().Phase() == session.PhaseSectionComplete
	}, time.Second, time.Millisecond)
	assert.Len(t, e.Snapshot().SectionResults, 1)
}

func TestCountdown_PracticeModeHasNoTimer(t *testing.T) {
	e, clock := newFakeEngine(t, Options{})
	require.NoError(t, e.InitTest(context.Background(), shortTest(), session.InitOptions{Practice: true}))
	assert.Equal(t, 0, clock.Created())
	assert.Equal(t, 3, e.Snapshot().TimeLeftSeconds)
}

func TestCountdown_ResetStopsTimer(t *testing.T) {
	e, clock := newFakeEngine(t, Options{})
	ctx := context.Background()
	require.NoError(t, e.InitTest(ctx, shortTest(), session.InitOptions{}))
	e.ResetTest(ctx)
	require.Eventually(t, func() bool { return clock.Current() == nil }, time.Second, time.Millisecond)
	assert.Equal(t, session.PhaseNotStarted, e.Snapshot().Phase())
}

func TestManualTick_CompletesAtZero(t *testing.T) {
	e, _ := newFakeEngine(t, Options{})
	ctx := context.Background()
	require.NoError(t, e.InitTest(ctx, shortTest(), session.InitOptions{Practice: true}))

	for want := 2; want >= 0; want-- {
		left, err := e.TickTimer(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, left)
	}
	assert.Equal(t, session.PhaseSectionComplete, e.Snapshot().Phase())

	_, err := e.TickTimer(ctx)
	assert.ErrorIs(t, err, session.ErrNotActive)
}

func TestCommandsBeforeInit(t *testing.T) {
	e, _ := newFakeEngine(t, Options{})
	ctx := context.Background()
	assert.ErrorIs(t, e.SetAnswer(ctx, "q1", testdef.ChoiceAnswer(testdef.SingleChoice, "A")), session.ErrNotActive)
	assert.ErrorIs(t, e.NextQuestion(ctx), session.ErrNotActive)
	_, err := e.CompleteSection(ctx)
	assert.ErrorIs(t, err, session.ErrNotActive)
	assert.False(t, e.DismissResults(ctx))
}

func TestInitTest_InvalidKeepsSession(t *testing.T) {
	e, _ := newFakeEngine(t, Options{})
	ctx := context.Background()
	require.NoError(t, e.InitTest(ctx, shortTest(), session.InitOptions{}))
	before := e.Snapshot()

	bad := shortTest()
	bad.StartingSectionID = "nope"
	err := e.InitTest(ctx, bad, session.InitOptions{})
	assert.ErrorIs(t, err, testdef.ErrInvalidTest)
	assert.Equal(t, before.ID, e.Snapshot().ID)
}

func TestPersistence_ResumeRestoresSession(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	opts := Options{StorageKey: "candidate-1", Snapshots: st.SnapshotRepo(), Events: st.EventRepo()}

	e, _ := newFakeEngine(t, opts)
	require.NoError(t, e.InitTest(ctx, shortTest(), session.InitOptions{Mode: session.ModeStudy}))
	require.NoError(t, e.SetAnswer(ctx, "q1", testdef.ChoiceAnswer(testdef.SingleChoice, "A")))
	require.NoError(t, e.SetAnswer(ctx, "q2", testdef.NumberAnswer(12)))
	require.NoError(t, e.ToggleFlag(ctx, "q2"))
	require.NoError(t, e.SetNote(ctx, "q1", "check units"))
	_, err := e.Rate(ctx, "q1", 3)
	require.NoError(t, err)
	_, err = e.CompleteSection(ctx)
	require.NoError(t, err)
	require.NoError(t, e.PersistWarning())
	want := e.Snapshot()

	resumed, _ := newFakeEngine(t, opts)
	found, err := resumed.Resume(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, resumed.Snapshot())

	other, _ := newFakeEngine(t, Options{StorageKey: "candidate-2", Snapshots: st.SnapshotRepo()})
	found, err = other.Resume(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	events, err := st.EventRepo().QuerySessionEvents(ctx, store.QueryOpts{SessionID: want.ID})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, store.ActionSectionComplete, events[0].Action)
	assert.Equal(t, 2, events[0].Correct)
	assert.Equal(t, store.ActionStart, events[1].Action)

	counts, err := st.EventRepo().ReviewCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"q1": 1}, counts)
}

func TestPersistence_ResumeRestartsCountdown(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	opts := Options{Snapshots: st.SnapshotRepo()}

	e, _ := newFakeEngine(t, opts)
	require.NoError(t, e.InitTest(ctx, shortTest(), session.InitOptions{}))
	_, err := e.TickTimer(ctx)
	require.NoError(t, err)
	e.Close()

	resumed, clock := newFakeEngine(t, opts)
	_, err = resumed.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, resumed.Snapshot().TimeLeftSeconds)
	assert.Equal(t, 1, clock.Created())
}

func TestPersistence_PrunesOldSnapshots(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	e, _ := newFakeEngine(t, Options{Snapshots: st.SnapshotRepo(), PruneEvery: 3, PruneKeep: 2})
	require.NoError(t, e.InitTest(ctx, shortTest(), session.InitOptions{Practice: true}))
	require.NoError(t, e.ToggleFlag(ctx, "q1"))
	require.NoError(t, e.ToggleFlag(ctx, "q2"))

	var n int
	require.NoError(t, st.DB().QueryRow("SELECT COUNT(*) FROM session_snapshots").Scan(&n))
	assert.Equal(t, 2, n)
}

type failingSnapshots struct {
	mu   sync.Mutex
	fail bool
	n    int
}

func (f *failingSnapshots) Save(ctx context.Context, snap *store.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("disk full")
	}
	f.n++
	return nil
}

func (f *failingSnapshots) Latest(context.Context, string) (*store.Snapshot, error) { return nil, nil }
func (f *failingSnapshots) Prune(context.Context, string, int) (int, error)       { return 0, nil }
func (f *failingSnapshots) Delete(context.Context, string) error                  { return nil }
func (f *failingSnapshots) Keys(context.Context) ([]string, error)                { return nil, nil }

func TestPersistence_FailureIsBestEffort(t *testing.T) {
	repo := &failingSnapshots{fail: true}
	e, _ := newFakeEngine(t, Options{Snapshots: repo})
	ctx := context.Background()

	require.NoError(t, e.InitTest(ctx, shortTest(), session.InitOptions{Practice: true}))
	require.NoError(t, e.ToggleFlag(ctx, "q1"))
	assert.True(t, e.Snapshot().Flags["q1"], "command applies even when saving fails")
	assert.ErrorContains(t, e.PersistWarning(), "disk full")

	repo.mu.Lock()
	repo.fail = false
	repo.mu.Unlock()
	require.NoError(t, e.ToggleFlag(ctx, "q1"))
	assert.NoError(t, e.PersistWarning())
	assert.Equal(t, 1, repo.n)
}

func TestRateAndDue(t *testing.T) {
	now := t0
	e, _ := newFakeEngine(t, Options{Now: func() time.Time { return now }})
	ctx := context.Background()

	_, err := e.Rate(ctx, "q1", 9)
	assert.Error(t, err)

	_, err = e.Rate(ctx, "q1", 0)
	require.NoError(t, err)
	p, err := e.Rate(ctx, "q2", 2)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(4*time.Hour), p.NextReview)

	assert.Equal(t, []string{"q1"}, e.Due())
	now = t0.Add(5 * time.Hour)
	assert.Equal(t, []string{"q1", "q2"}, e.Due())
}

func TestReveal(t *testing.T) {
	e, _ := newFakeEngine(t, Options{})
	ctx := context.Background()
	require.NoError(t, e.InitTest(ctx, shortTest(), session.InitOptions{Mode: session.ModeStudy, Practice: true}))
	require.NoError(t, e.SetAnswer(ctx, "q2", testdef.NumberAnswer(11)))

	r, err := e.Reveal("q2")
	require.NoError(t, err)
	assert.True(t, r.Answered)
	assert.False(t, r.Correct)
	assert.Equal(t, testdef.NumberAnswer(12), r.CorrectAnswer)
}

func TestConcurrentCommands(t *testing.T) {
	e, _ := newFakeEngine(t, Options{})
	ctx := context.Background()
	require.NoError(t, e.InitTest(ctx, shortTest(), session.InitOptions{Practice: true}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.ToggleFlag(ctx, "q1")
			_ = e.NextQuestion(ctx)
			_ = e.Snapshot()
		}()
	}
	wg.Wait()
	assert.False(t, e.Snapshot().Flags["q1"], "an even number of toggles leaves the flag off")
}

func TestStudyAids_SurviveNewAttempt(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	opts := Options{Snapshots: st.SnapshotRepo()}

	first, _ := newFakeEngine(t, opts)
	require.NoError(t, first.InitTest(ctx, shortTest(), session.InitOptions{Practice: true}))
	_, err := first.Rate(ctx, "q1", 5)
	require.NoError(t, err)
	require.NoError(t, first.ToggleBookmark(ctx, "q1"))
	require.NoError(t, first.SetNote(ctx, "q2", "carry the one"))
	first.Close()

	second, _ := newFakeEngine(t, opts)
	require.NoError(t, second.InitTest(ctx, shortTest(), session.InitOptions{Practice: true}))
	got := second.Snapshot()
	require.Equal(t, 1, got.Flashcards.Len())
	p, ok := got.Flashcards.Get("q1")
	require.True(t, ok)
	assert.Equal(t, t0.Add(30*24*time.Hour), p.NextReview)
	assert.Equal(t, map[string]bool{"q1": true}, got.Bookmarks)
	assert.Equal(t, map[string]string{"q2": "carry the one"}, got.Notes)
	assert.Empty(t, got.Answers)
	second.Close()

	resumed, _ := newFakeEngine(t, opts)
	found, err := resumed.Resume(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, resumed.Snapshot().Flashcards.Len())
}

func TestStudyAids_SharedAcrossStorageKeys(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	aids := NewStudyAids(st.SnapshotRepo(), "candidate-7")

	a, _ := newFakeEngine(t, Options{StorageKey: "attempt-a", Snapshots: st.SnapshotRepo(), StudyAids: aids})
	require.NoError(t, a.InitTest(ctx, shortTest(), session.InitOptions{Practice: true}))
	_, err := a.Rate(ctx, "q1", 0)
	require.NoError(t, err)

	b, _ := newFakeEngine(t, Options{StorageKey: "attempt-b", Snapshots: st.SnapshotRepo(), StudyAids: aids})
	require.NoError(t, b.InitTest(ctx, shortTest(), session.InitOptions{Practice: true}))
	assert.Equal(t, []string{"q1"}, b.Due())

	// Both engines write through; neither overwrites the other's change.
	require.NoError(t, a.ToggleBookmark(ctx, "q2"))
	_, err = b.Rate(ctx, "q3", 2)
	require.NoError(t, err)

	stored, found, err := aids.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"q1", "q3"}, stored.Flashcards.IDs())
	assert.Equal(t, map[string]bool{"q2": true}, stored.Bookmarks)
}

func TestPersistence_SequenceContinuesAcrossEngines(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	opts := Options{Snapshots: st.SnapshotRepo()}

	first, _ := newFakeEngine(t, opts)
	require.NoError(t, first.InitTest(ctx, shortTest(), session.InitOptions{Practice: true}))
	require.NoError(t, first.ToggleFlag(ctx, "q1"))
	first.Close()

	second, _ := newFakeEngine(t, opts)
	require.NoError(t, second.InitTest(ctx, shortTest(), session.InitOptions{Practice: true}))

	latest, err := st.SnapshotRepo().Latest(ctx, DefaultStorageKey)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(3), latest.Sequence)
}

func TestClose_NoCountdownAfterwards(t *testing.T) {
	e, clock := newFakeEngine(t, Options{})
	ctx := context.Background()
	require.NoError(t, e.InitTest(ctx, shortTest(), session.InitOptions{}))
	require.Equal(t, 1, clock.Created())

	e.Close()
	require.NoError(t, e.InitTest(ctx, shortTest(), session.InitOptions{}))
	assert.Equal(t, 1, clock.Created())
	assert.False(t, clock.Tick())
}
