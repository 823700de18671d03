package store

import (
	"context"
	"encoding/json"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit     int       // max results (0 = unlimited)
	After     int64     // sequence > After
	Before    int64     // sequence < Before
	From      time.Time // timestamp >= From
	To        time.Time // timestamp <= To
	SessionID string    // session events only
}

// SnapshotVersion is the current SnapshotData layout version.
const SnapshotVersion = 1

// SnapshotData captures a candidate's full session state at a point in time.
type SnapshotData struct {
	Version    int                    `json:"version"`
	Session    *SessionData           `json:"session,omitempty"`
	Flashcards *FlashcardSnapshotData `json:"flashcards,omitempty"`
}

// SessionData is the serialized form of one test attempt. Times are
// RFC3339Nano strings in UTC.
type SessionData struct {
	ID                   string                       `json:"id"`
	Test                 json.RawMessage              `json:"test,omitempty"`
	CurrentSectionID     string                       `json:"current_section_id,omitempty"`
	CurrentQuestionIndex int                          `json:"current_question_index"`
	Answers              map[string]AnswerData        `json:"answers,omitempty"`
	Flags                []string                     `json:"flags,omitempty"`
	Bookmarks            []string                     `json:"bookmarks,omitempty"`
	Notes                map[string]string            `json:"notes,omitempty"`
	TimeLeftSeconds      int                          `json:"time_left_seconds"`
	CalculatorOpen       bool                         `json:"calculator_open,omitempty"`
	ReviewScreenOpen     bool                         `json:"review_screen_open,omitempty"`
	Mode                 string                       `json:"mode"`
	PracticeMode         bool                         `json:"practice_mode,omitempty"`
	ShowResults          bool                         `json:"show_results,omitempty"`
	TestCompleted        bool                         `json:"test_completed,omitempty"`
	SectionResults       map[string]SectionResultData `json:"section_results,omitempty"`
	SectionOrder         []string                     `json:"section_order,omitempty"`
	StartedAt            string                       `json:"started_at,omitempty"`
	CompletedAt          string                       `json:"completed_at,omitempty"`
}

// AnswerData is the serialized form of a tagged answer.
type AnswerData struct {
	Kind    string   `json:"kind"`
	Choice  string   `json:"choice,omitempty"`
	Number  float64  `json:"number,omitempty"`
	Choices []string `json:"choices,omitempty"`
}

// SectionResultData is the serialized score of a completed section.
type SectionResultData struct {
	Correct    int `json:"correct"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// FlashcardSnapshotData holds review progress keyed by question id.
type FlashcardSnapshotData struct {
	Cards map[string]*FlashcardData `json:"cards"`
}

// FlashcardData is the serialized review progress of one question.
type FlashcardData struct {
	QuestionID   string `json:"question_id"`
	MasteryLevel int    `json:"mastery_level"`
	LastReviewed string `json:"last_reviewed"`
	NextReview   string `json:"next_review"`
	ReviewCount  int    `json:"review_count"`
}

// Snapshot represents a point-in-time capture of session state.
type Snapshot struct {
	ID         int
	StorageKey string
	Sequence   int64
	Timestamp  time.Time
	Data       SnapshotData
}

// SnapshotRepo manages session snapshots. Snapshots are append-only and
// grouped by storage key; the latest one per key is the live state.
type SnapshotRepo interface {
	// Save stores a new snapshot under snap.StorageKey.
	Save(ctx context.Context, snap *Snapshot) error

	// Latest returns the most recent snapshot for key, or nil if none exist.
	Latest(ctx context.Context, key string) (*Snapshot, error)

	// Prune deletes all but the keep most recent snapshots for key.
	Prune(ctx context.Context, key string, keep int) (int, error)

	// Delete removes every snapshot stored under key.
	Delete(ctx context.Context, key string) error

	// Keys lists the distinct storage keys in use.
	Keys(ctx context.Context) ([]string, error)
}

// Session event actions.
const (
	ActionStart           = "start"
	ActionSectionComplete = "section-complete"
	ActionTestComplete    = "test-complete"
	ActionReset           = "reset"
)

// SessionEventData captures a test attempt lifecycle event.
type SessionEventData struct {
	SessionID  string
	Action     string
	SectionID  string
	Correct    int
	Total      int
	Percentage int
}

// SessionEventRecord is a persisted session event.
type SessionEventRecord struct {
	SessionEventData
	Sequence  int64
	Timestamp time.Time
}

// ReviewEventData captures one flashcard rating.
type ReviewEventData struct {
	QuestionID string
	Level      int
	NextReview time.Time
}

// ReviewEventRecord is a persisted review event.
type ReviewEventRecord struct {
	ReviewEventData
	Sequence  int64
	Timestamp time.Time
}

// EventRepo provides append and query access to domain events.
type EventRepo interface {
	// AppendSessionEvent records a session lifecycle event.
	AppendSessionEvent(ctx context.Context, data SessionEventData) error

	// AppendReviewEvent records a flashcard rating.
	AppendReviewEvent(ctx context.Context, data ReviewEventData) error

	// QuerySessionEvents returns session events, newest first.
	QuerySessionEvents(ctx context.Context, opts QueryOpts) ([]SessionEventRecord, error)

	// QueryReviewEvents returns review events, newest first.
	QueryReviewEvents(ctx context.Context, opts QueryOpts) ([]ReviewEventRecord, error)

	// ReviewCounts returns the number of ratings per question.
	ReviewCounts(ctx context.Context) (map[string]int, error)
}
