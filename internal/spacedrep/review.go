package spacedrep

import "time"

// Progress holds the spaced repetition state for a single question.
type Progress struct {
	QuestionID   string    `json:"question_id"`
	MasteryLevel int       `json:"mastery_level"`
	LastReviewed time.Time `json:"last_reviewed"`
	NextReview   time.Time `json:"next_review"`
	ReviewCount  int       `json:"review_count"`
}

// IsDue returns true if the card is due for review (at or past NextReview).
func (p Progress) IsDue(now time.Time) bool {
	return !now.Before(p.NextReview)
}

// OverdueBy returns how long past due the card is. Returns 0 if not yet due.
func (p Progress) OverdueBy(now time.Time) time.Duration {
	if now.Before(p.NextReview) {
		return 0
	}
	return now.Sub(p.NextReview)
}

// Status describes a card's review status for display.
type Status string

const (
	StatusNew      Status = "new"
	StatusLearning Status = "learning"
	StatusDue      Status = "due"
	StatusMastered Status = "mastered"
)

// Status returns the review status for UI display.
func (p Progress) Status(now time.Time) Status {
	switch {
	case p.ReviewCount == 0:
		return StatusNew
	case p.IsDue(now):
		return StatusDue
	case p.MasteryLevel >= MaxLevel:
		return StatusMastered
	default:
		return StatusLearning
	}
}
