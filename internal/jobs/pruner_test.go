package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/adaptest/internal/store"
)

func seed(t *testing.T, repo store.SnapshotRepo, key string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		err := repo.Save(context.Background(), &store.Snapshot{
			StorageKey: key,
			Sequence:   int64(i),
			Data:       store.SnapshotData{Version: store.SnapshotVersion},
		})
		require.NoError(t, err)
	}
}

func countRows(t *testing.T, st *store.Store, key string) int {
	t.Helper()
	var n int
	err := st.DB().QueryRow("SELECT COUNT(*) FROM session_snapshots WHERE storage_key = ?", key).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestRunOnce_PrunesEveryKey(t *testing.T) {
	st, err := store.Open(store.DriverSQLite, "file:jobs_runonce?mode=memory&cache=shared")
	require.NoError(t, err)
	defer st.Close()

	repo := st.SnapshotRepo()
	seed(t, repo, "a", 6)
	seed(t, repo, "b", 2)

	p := NewPruner(repo, 3, time.Hour, nil)
	n, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, countRows(t, st, "a"))
	assert.Equal(t, 2, countRows(t, st, "b"))

	latest, err := repo.Latest(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, int64(6), latest.Sequence)
}

func TestStart_RunsOnSchedule(t *testing.T) {
	st, err := store.Open(store.DriverSQLite, "file:jobs_schedule?mode=memory&cache=shared")
	require.NoError(t, err)
	defer st.Close()

	repo := st.SnapshotRepo()
	seed(t, repo, "a", 4)

	p := NewPruner(repo, 1, 10*time.Millisecond, nil)
	require.NoError(t, p.Start())
	defer p.Stop()

	require.Eventually(t, func() bool { return countRows(t, st, "a") == 1 }, 2*time.Second, 10*time.Millisecond)
}
