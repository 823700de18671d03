package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abhisek/adaptest/internal/session"
	"github.com/abhisek/adaptest/internal/store"
)

// DefaultStudyAidsKey is the storage key study aids are kept under when
// Options.StudyAids is nil.
const DefaultStudyAidsKey = "adaptest-study-aids"

// StudyAids keeps flashcard progress, bookmarks and notes under a storage
// key of their own, apart from any attempt. Every engine sharing a
// StudyAids starts its attempts from the same aids and writes its changes
// back through it. Safe for concurrent use.
type StudyAids struct {
	mu        sync.Mutex
	key       string
	snapshots store.SnapshotRepo
	now       func() time.Time
	saves     int

	// mem holds the aids when there is no repo.
	mem *session.Session
}

// NewStudyAids creates study aids stored in snapshots under key. An empty
// key means DefaultStudyAidsKey; nil snapshots keeps them in memory.
func NewStudyAids(snapshots store.SnapshotRepo, key string) *StudyAids {
	if key == "" {
		key = DefaultStudyAidsKey
	}
	return &StudyAids{key: key, snapshots: snapshots, now: time.Now}
}

// Key returns the storage key.
func (a *StudyAids) Key() string {
	return a.key
}

// Load returns a NotStarted session holding the stored aids. found is false
// when nothing has been stored yet.
func (a *StudyAids) Load(ctx context.Context) (*session.Session, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, _, found, err := a.loadLocked(ctx)
	return s, found, err
}

// Update applies fn to the latest stored aids and saves the result.
func (a *StudyAids) Update(ctx context.Context, fn func(*session.Session)) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, seq, _, err := a.loadLocked(ctx)
	if err != nil {
		return err
	}
	fn(s)
	if a.snapshots == nil {
		a.mem = s
		return nil
	}

	data, err := s.SnapshotData()
	if err != nil {
		return fmt.Errorf("encode study aids: %w", err)
	}
	snap := &store.Snapshot{
		StorageKey: a.key,
		Sequence:   seq + 1,
		Timestamp:  a.now(),
		Data:       *data,
	}
	if err := a.snapshots.Save(ctx, snap); err != nil {
		return fmt.Errorf("save study aids: %w", err)
	}

	a.saves++
	if a.saves%DefaultPruneEvery == 0 {
		if _, err := a.snapshots.Prune(ctx, a.key, DefaultPruneKeep); err != nil {
			return fmt.Errorf("prune study aids: %w", err)
		}
	}
	return nil
}

func (a *StudyAids) loadLocked(ctx context.Context) (s *session.Session, seq int64, found bool, err error) {
	if a.snapshots == nil {
		if a.mem == nil {
			return session.New(), 0, false, nil
		}
		return a.mem.StudyAids(), 0, true, nil
	}

	snap, err := a.snapshots.Latest(ctx, a.key)
	if err != nil {
		return nil, 0, false, fmt.Errorf("load study aids: %w", err)
	}
	if snap == nil {
		return session.New(), 0, false, nil
	}
	restored, err := session.FromSnapshot(&snap.Data)
	if err != nil {
		return nil, 0, false, fmt.Errorf("load study aids: %w", err)
	}
	return restored.StudyAids(), snap.Sequence, true, nil
}
