package spacedrep

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/abhisek/adaptest/internal/store"
)

// ErrInvalidLevel is returned by Rate for a level outside [MinLevel, MaxLevel].
var ErrInvalidLevel = errors.New("invalid mastery level")

// Scheduler tracks flashcard progress per question. The next review time
// depends only on the latest rating. It is not safe for concurrent use.
type Scheduler struct {
	cards map[string]*Progress
}

// NewScheduler creates a scheduler, loading progress from the snapshot.
// Cards with unparseable timestamps are skipped.
func NewScheduler(data *store.FlashcardSnapshotData) *Scheduler {
	s := &Scheduler{cards: make(map[string]*Progress)}
	if data == nil {
		return s
	}
	for id, cd := range data.Cards {
		if cd == nil {
			continue
		}
		last, err := time.Parse(time.RFC3339Nano, cd.LastReviewed)
		if err != nil {
			continue
		}
		next, err := time.Parse(time.RFC3339Nano, cd.NextReview)
		if err != nil {
			continue
		}
		s.cards[id] = &Progress{
			QuestionID:   id,
			MasteryLevel: cd.MasteryLevel,
			LastReviewed: last,
			NextReview:   next,
			ReviewCount:  cd.ReviewCount,
		}
	}
	return s
}

// Rate records a review of questionID at the given mastery level.
func (s *Scheduler) Rate(questionID string, level int, now time.Time) (Progress, error) {
	if questionID == "" {
		return Progress{}, fmt.Errorf("rate: empty question id")
	}
	interval, ok := IntervalFor(level)
	if !ok {
		return Progress{}, fmt.Errorf("rate %s at %d: %w", questionID, level, ErrInvalidLevel)
	}
	p := s.cards[questionID]
	if p == nil {
		p = &Progress{QuestionID: questionID}
		s.cards[questionID] = p
	}
	p.MasteryLevel = level
	p.LastReviewed = now
	p.NextReview = now.Add(interval)
	p.ReviewCount++
	return *p, nil
}

// Put stores p as the progress of p.QuestionID, replacing any earlier
// progress for that question.
func (s *Scheduler) Put(p Progress) {
	if p.QuestionID == "" {
		return
	}
	s.cards[p.QuestionID] = &p
}

// Get returns the progress for a question.
func (s *Scheduler) Get(questionID string) (Progress, bool) {
	p, ok := s.cards[questionID]
	if !ok {
		return Progress{}, false
	}
	return *p, true
}

// All returns a copy of every tracked card, keyed by question id.
func (s *Scheduler) All() map[string]Progress {
	out := make(map[string]Progress, len(s.cards))
	for id, p := range s.cards {
		out[id] = *p
	}
	return out
}

// Len returns the number of tracked cards.
func (s *Scheduler) Len() int {
	return len(s.cards)
}

// Due returns the ids of cards due at now, most overdue first, ties by id.
func (s *Scheduler) Due(now time.Time) []string {
	type dueCard struct {
		id      string
		overdue time.Duration
	}
	var due []dueCard
	for id, p := range s.cards {
		if p.IsDue(now) {
			due = append(due, dueCard{id: id, overdue: p.OverdueBy(now)})
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].overdue != due[j].overdue {
			return due[i].overdue > due[j].overdue
		}
		return due[i].id < due[j].id
	})

	ids := make([]string, len(due))
	for i, d := range due {
		ids[i] = d.id
	}
	return ids
}

// Clone returns an independent copy of the scheduler.
func (s *Scheduler) Clone() *Scheduler {
	c := &Scheduler{cards: make(map[string]*Progress, len(s.cards))}
	for id, p := range s.cards {
		cp := *p
		c.cards[id] = &cp
	}
	return c
}

// IDs returns the tracked question ids in sorted order.
func (s *Scheduler) IDs() []string {
	return slices.Sorted(maps.Keys(s.cards))
}

// SnapshotData exports the current progress for persistence.
func (s *Scheduler) SnapshotData() *store.FlashcardSnapshotData {
	data := &store.FlashcardSnapshotData{
		Cards: make(map[string]*store.FlashcardData, len(s.cards)),
	}
	for id, p := range s.cards {
		data.Cards[id] = &store.FlashcardData{
			QuestionID:   p.QuestionID,
			MasteryLevel: p.MasteryLevel,
			LastReviewed: p.LastReviewed.UTC().Format(time.RFC3339Nano),
			NextReview:   p.NextReview.UTC().Format(time.RFC3339Nano),
			ReviewCount:  p.ReviewCount,
		}
	}
	return data
}
