package spacedrep

import "time"

// Intervals maps a mastery level to the delay before the next review.
// Level 0 means "again" and is due immediately.
var Intervals = []time.Duration{
	0,
	time.Hour,
	4 * time.Hour,
	24 * time.Hour,
	7 * 24 * time.Hour,
	30 * 24 * time.Hour,
}

// MinLevel and MaxLevel bound the ratings Rate accepts.
const (
	MinLevel = 0
	MaxLevel = 5
)

// IntervalFor returns the review delay for level, or false if level is
// outside [MinLevel, MaxLevel].
func IntervalFor(level int) (time.Duration, bool) {
	if level < MinLevel || level > MaxLevel {
		return 0, false
	}
	return Intervals[level], true
}
