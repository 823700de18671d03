// Package engine serializes every command against one candidate's session,
// persists the result after each mutation and drives the section countdown.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abhisek/adaptest/internal/scoring"
	"github.com/abhisek/adaptest/internal/session"
	"github.com/abhisek/adaptest/internal/spacedrep"
	"github.com/abhisek/adaptest/internal/store"
	"github.com/abhisek/adaptest/internal/testdef"
	"github.com/abhisek/adaptest/internal/timer"
)

// DefaultStorageKey is the snapshot key used when Options.StorageKey is empty.
const DefaultStorageKey = "adaptest-session"

// Pruning defaults.
const (
	DefaultPruneEvery = 50
	DefaultPruneKeep  = 5
)

// Options configures an Engine. Every field is optional.
type Options struct {
	StorageKey string

	// Snapshots receives a snapshot after every successful mutation. Nil
	// disables persistence.
	Snapshots store.SnapshotRepo

	// Events receives lifecycle and review events. Nil disables them.
	Events store.EventRepo

	// StudyAids holds flashcard progress, bookmarks and notes across
	// attempts. Nil with Snapshots set keeps them under DefaultStudyAidsKey.
	StudyAids *StudyAids

	Scorer scoring.Scorer

	// Timer runs the section countdown. Nil creates a one-second timer.
	Timer *timer.Scheduler

	Logger *slog.Logger

	// Now is the clock for timestamps. Nil means time.Now.
	Now func() time.Time

	// PruneEvery prunes old snapshots after this many saves; negative
	// disables pruning. PruneKeep is how many snapshots survive a prune.
	PruneEvery int
	PruneKeep  int
}

// Engine owns a single session. All methods are safe for concurrent use.
type Engine struct {
	mu   sync.Mutex
	sess *session.Session

	key        string
	snapshots  store.SnapshotRepo
	events     store.EventRepo
	aids       *StudyAids
	scorer     scoring.Scorer
	timer      *timer.Scheduler
	log        *slog.Logger
	now        func() time.Time
	pruneEvery int
	pruneKeep  int

	// seq is the sequence of the latest snapshot under key; seqLoaded is
	// false until it has been read from storage.
	seq         int64
	seqLoaded   bool
	saves       int
	persistWarn error
}

// New creates an engine with an empty session. Call Resume to restore the
// latest snapshot.
func New(opts Options) *Engine {
	e := &Engine{
		sess:       session.New(),
		key:        opts.StorageKey,
		snapshots:  opts.Snapshots,
		events:     opts.Events,
		aids:       opts.StudyAids,
		scorer:     opts.Scorer,
		timer:      opts.Timer,
		log:        opts.Logger,
		now:        opts.Now,
		pruneEvery: opts.PruneEvery,
		pruneKeep:  opts.PruneKeep,
	}
	if e.key == "" {
		e.key = DefaultStorageKey
	}
	if e.timer == nil {
		e.timer = timer.New()
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.aids == nil && e.snapshots != nil {
		e.aids = NewStudyAids(e.snapshots, DefaultStudyAidsKey)
	}
	if e.pruneEvery == 0 {
		e.pruneEvery = DefaultPruneEvery
	}
	if e.pruneKeep <= 0 {
		e.pruneKeep = DefaultPruneKeep
	}
	e.log = e.log.With("storage_key", e.key)
	return e
}

// StorageKey returns the key snapshots are saved under.
func (e *Engine) StorageKey() string {
	return e.key
}

// Resume restores the latest snapshot for the storage key, if any, and
// restarts the countdown when a timed section is in progress. It reports
// whether a snapshot was found.
func (e *Engine) Resume(ctx context.Context) (bool, error) {
	if e.snapshots == nil {
		return false, nil
	}
	snap, err := e.snapshots.Latest(ctx, e.key)
	if err != nil {
		return false, fmt.Errorf("resume %s: %w", e.key, err)
	}
	if snap == nil {
		return false, nil
	}
	s, err := session.FromSnapshot(&snap.Data)
	if err != nil {
		return false, fmt.Errorf("resume %s: %w", e.key, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.timer.Stop()
	e.sess = s
	e.seq = snap.Sequence
	e.seqLoaded = true
	e.loadStudyAidsLocked(ctx)
	e.startCountdownLocked()
	e.log.Info("session resumed", "session_id", s.ID, "phase", s.Phase().String(), "sequence", snap.Sequence)
	return true, nil
}

// InitTest starts a new attempt and its countdown. An invalid test leaves
// the current session untouched.
func (e *Engine) InitTest(ctx context.Context, t *testdef.Test, opts session.InitOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if opts.Now.IsZero() {
		opts.Now = e.now()
	}
	if err := e.sess.InitTest(t, opts); err != nil {
		e.log.Warn("init test rejected", "error", err)
		return err
	}
	e.timer.Stop()
	e.loadStudyAidsLocked(ctx)
	e.log.Info("test started", "session_id", e.sess.ID, "test_id", t.ID,
		"section_id", e.sess.CurrentSectionID, "mode", string(e.sess.Mode), "practice", e.sess.PracticeMode)
	e.appendSessionEvent(ctx, store.ActionStart, "", scoring.SectionResult{})
	e.persistLocked(ctx)
	e.startCountdownLocked()
	return nil
}

// SetAnswer records an answer for a question of the current section.
func (e *Engine) SetAnswer(ctx context.Context, questionID string, a testdef.Answer) error {
	return e.do(ctx, "set answer", func(s *session.Session) error {
		return s.SetAnswer(questionID, a)
	})
}

// ClearAnswer removes an answer from the current section.
func (e *Engine) ClearAnswer(ctx context.Context, questionID string) error {
	return e.do(ctx, "clear answer", func(s *session.Session) error {
		return s.ClearAnswer(questionID)
	})
}

// ToggleFlag flips a question's review flag.
func (e *Engine) ToggleFlag(ctx context.Context, questionID string) error {
	return e.do(ctx, "toggle flag", func(s *session.Session) error {
		return s.ToggleFlag(questionID)
	})
}

// NavigateQuestion jumps to a question and closes the review screen.
func (e *Engine) NavigateQuestion(ctx context.Context, index int) error {
	return e.do(ctx, "navigate", func(s *session.Session) error {
		return s.NavigateQuestion(index)
	})
}

func (e *Engine) NextQuestion(ctx context.Context) error {
	return e.do(ctx, "next question", (*session.Session).NextQuestion)
}

func (e *Engine) PrevQuestion(ctx context.Context) error {
	return e.do(ctx, "previous question", (*session.Session).PrevQuestion)
}

func (e *Engine) ToggleCalculator(ctx context.Context) error {
	return e.do(ctx, "toggle calculator", (*session.Session).ToggleCalculator)
}

func (e *Engine) ToggleReviewScreen(ctx context.Context) error {
	return e.do(ctx, "toggle review screen", (*session.Session).ToggleReviewScreen)
}

// TickTimer applies one countdown tick by hand. When the clock reaches zero
// the section is completed, exactly as the running countdown would.
func (e *Engine) TickTimer(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tickLocked(ctx)
}

func (e *Engine) tickLocked(ctx context.Context) (int, error) {
	left, err := e.sess.TickTimer()
	if err != nil {
		e.logCommandError("tick", err)
		return 0, err
	}
	if left > 0 {
		e.persistLocked(ctx)
		return left, nil
	}
	e.log.Info("section time expired", "section_id", e.sess.CurrentSectionID)
	if _, err := e.completeLocked(ctx); err != nil {
		return 0, err
	}
	return 0, nil
}

// CompleteSection scores the current section and routes to the next one.
// The countdown stops until the results are dismissed.
func (e *Engine) CompleteSection(ctx context.Context) (session.Completion, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.completeLocked(ctx)
}

func (e *Engine) completeLocked(ctx context.Context) (session.Completion, error) {
	c, err := e.sess.CompleteSection(e.scorer, e.now())
	if err != nil {
		e.logCommandError("complete section", err)
		return c, err
	}
	e.timer.Stop()

	e.log.Info("section completed", "section_id", c.SectionID,
		"correct", c.Result.Correct, "total", c.Result.Total, "next_section_id", c.NextSectionID)
	e.appendSessionEvent(ctx, store.ActionSectionComplete, c.SectionID, c.Result)
	if c.TestCompleted {
		overall := e.sess.Overall()
		e.log.Info("test completed", "session_id", e.sess.ID,
			"correct", overall.Correct, "total", overall.Total, "percentage", overall.Percentage)
		e.appendSessionEvent(ctx, store.ActionTestComplete, "", overall)
	}
	e.persistLocked(ctx)
	return c, nil
}

// DismissResults leaves the results interstitial and starts the next
// section's countdown. It reports whether results were showing.
func (e *Engine) DismissResults(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.sess.DismissResults() {
		return false
	}
	e.persistLocked(ctx)
	e.startCountdownLocked()
	return true
}

// ResetTest discards the attempt and stops the countdown. Flashcards,
// bookmarks and notes are kept.
func (e *Engine) ResetTest(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timer.Stop()
	id := e.sess.ID
	e.sess.ResetTest()
	e.log.Info("test reset", "session_id", id)
	if id != "" {
		e.appendSessionEventFor(ctx, id, store.ActionReset, "", scoring.SectionResult{})
	}
	e.persistLocked(ctx)
}

// ToggleBookmark flips a bookmark and saves it with the study aids.
func (e *Engine) ToggleBookmark(ctx context.Context, questionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.sess.ToggleBookmark(questionID); err != nil {
		e.logCommandError("toggle bookmark", err)
		return err
	}
	e.persistLocked(ctx)
	on := e.sess.Bookmarks[questionID]
	e.saveStudyAidLocked(ctx, "bookmark", func(aids *session.Session) {
		if on {
			aids.Bookmarks[questionID] = true
		} else {
			delete(aids.Bookmarks, questionID)
		}
	})
	return nil
}

// SetNote stores or, for empty text, removes a note.
func (e *Engine) SetNote(ctx context.Context, questionID, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.sess.SetNote(questionID, text); err != nil {
		e.logCommandError("set note", err)
		return err
	}
	e.persistLocked(ctx)
	note, ok := e.sess.Notes[questionID]
	e.saveStudyAidLocked(ctx, "note", func(aids *session.Session) {
		if ok {
			aids.Notes[questionID] = note
		} else {
			delete(aids.Notes, questionID)
		}
	})
	return nil
}

// Rate records a flashcard review at the engine's clock.
func (e *Engine) Rate(ctx context.Context, questionID string, level int) (spacedrep.Progress, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.sess.Rate(questionID, level, e.now())
	if err != nil {
		e.logCommandError("rate", err)
		return p, err
	}
	if e.events != nil {
		err := e.events.AppendReviewEvent(ctx, store.ReviewEventData{
			QuestionID: questionID,
			Level:      level,
			NextReview: p.NextReview,
		})
		if err != nil {
			e.warnPersist("append review event", err)
		}
	}
	e.persistLocked(ctx)
	e.saveStudyAidLocked(ctx, "flashcard", func(aids *session.Session) {
		aids.Flashcards.Put(p)
	})
	return p, nil
}

// Due lists the flashcards due now, most overdue first.
func (e *Engine) Due() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Flashcards.Due(e.now())
}

// Reveal exposes a question's key in study mode. It does not mutate state.
func (e *Engine) Reveal(questionID string) (session.Revealed, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.sess.Reveal(questionID, e.scorer)
	if err != nil {
		e.logCommandError("reveal", err)
	}
	return r, err
}

// Snapshot returns a deep copy of the session.
func (e *Engine) Snapshot() *session.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Clone()
}

// PersistWarning returns the last persistence failure, cleared by the next
// successful save.
func (e *Engine) PersistWarning() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.persistWarn
}

// Close stops the countdown and waits for its goroutine to exit.
func (e *Engine) Close() {
	e.mu.Lock()
	e.timer.Close()
	e.mu.Unlock()
	e.timer.Wait()
}

// do runs a plain command under the lock and persists on success.
func (e *Engine) do(ctx context.Context, name string, fn func(*session.Session) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := fn(e.sess); err != nil {
		e.logCommandError(name, err)
		return err
	}
	e.persistLocked(ctx)
	return nil
}

func (e *Engine) logCommandError(name string, err error) {
	level := slog.LevelDebug
	if errors.Is(err, session.ErrNotActive) {
		level = slog.LevelWarn
	}
	e.log.Log(context.Background(), level, "command rejected", "command", name, "phase", e.sess.Phase().String(), "error", err)
}

// startCountdownLocked starts the countdown for a timed section in progress.
func (e *Engine) startCountdownLocked() {
	if e.sess.Phase() != session.PhaseInSection || e.sess.PracticeMode {
		return
	}
	e.timer.Start(e.onTick)
}

// onTick is the countdown callback. A tick from a countdown that has since
// been replaced or stopped is dropped.
func (e *Engine) onTick(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ctx.Err() != nil || e.sess.Phase() != session.PhaseInSection {
		return false
	}
	left, err := e.tickLocked(context.Background())
	return err == nil && left > 0
}

func (e *Engine) persistLocked(ctx context.Context) {
	if e.snapshots == nil {
		return
	}
	data, err := e.sess.SnapshotData()
	if err != nil {
		e.warnPersist("encode snapshot", err)
		return
	}
	if !e.seqLoaded {
		latest, err := e.snapshots.Latest(ctx, e.key)
		if err != nil {
			e.warnPersist("read snapshot sequence", err)
			return
		}
		if latest != nil {
			e.seq = latest.Sequence
		}
		e.seqLoaded = true
	}
	e.seq++
	snap := &store.Snapshot{
		StorageKey: e.key,
		Sequence:   e.seq,
		Timestamp:  e.now(),
		Data:       *data,
	}
	if err := e.snapshots.Save(ctx, snap); err != nil {
		e.warnPersist("save snapshot", err)
		return
	}
	e.persistWarn = nil

	e.saves++
	if e.pruneEvery > 0 && e.saves%e.pruneEvery == 0 {
		n, err := e.snapshots.Prune(ctx, e.key, e.pruneKeep)
		if err != nil {
			e.log.Warn("prune snapshots failed", "error", err)
		} else if n > 0 {
			e.log.Debug("pruned snapshots", "deleted", n)
		}
	}
}

// loadStudyAidsLocked replaces the session's study aids with the stored
// ones. Nothing stored, or a failed read, keeps what the session has.
func (e *Engine) loadStudyAidsLocked(ctx context.Context) {
	if e.aids == nil {
		return
	}
	aids, found, err := e.aids.Load(ctx)
	if err != nil {
		e.warnPersist("load study aids", err)
		return
	}
	if found {
		e.sess.AdoptStudyAids(aids)
	}
}

// saveStudyAidLocked writes one changed study aid through to the shared
// store. The change is applied to the latest stored aids, not to this
// session's copy, so changes made by other engines are kept.
func (e *Engine) saveStudyAidLocked(ctx context.Context, what string, apply func(*session.Session)) {
	if e.aids == nil {
		return
	}
	if err := e.aids.Update(ctx, apply); err != nil {
		e.warnPersist("save "+what, err)
	}
}

func (e *Engine) warnPersist(what string, err error) {
	e.persistWarn = fmt.Errorf("%s: %w", what, err)
	e.log.Warn("persistence failed; continuing without it", "op", what, "error", err)
}

func (e *Engine) appendSessionEvent(ctx context.Context, action, sectionID string, r scoring.SectionResult) {
	e.appendSessionEventFor(ctx, e.sess.ID, action, sectionID, r)
}

func (e *Engine) appendSessionEventFor(ctx context.Context, sessionID, action, sectionID string, r scoring.SectionResult) {
	if e.events == nil {
		return
	}
	err := e.events.AppendSessionEvent(ctx, store.SessionEventData{
		SessionID:  sessionID,
		Action:     action,
		SectionID:  sectionID,
		Correct:    r.Correct,
		Total:      r.Total,
		Percentage: r.Percentage,
	})
	if err != nil {
		e.warnPersist("append session event", err)
	}
}
