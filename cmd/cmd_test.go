package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", "../internal/testdef/testdata/mst.json")
	require.NoError(t, err)
	assert.Contains(t, out, "mst.json: ok")
}

func TestValidate_Invalid(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"id":"x","title":"x","startingSectionId":"nope","sections":[]}`), 0o644))

	out, err := execute(t, "validate", bad)
	require.Error(t, err)
	assert.Contains(t, out, "bad.json: invalid")
}

func TestStats_EmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "adaptest.db")
	out, err := execute(t, "stats", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No attempts recorded.")
}

func TestExport_NoSavedAttempt(t *testing.T) {
	db := filepath.Join(t.TempDir(), "adaptest.db")
	_, err := execute(t, "export", filepath.Join(t.TempDir(), "out.xlsx"), "--db", db, "--key", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no saved attempt under key "missing"`)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "adaptest")
}

func TestCards_WithoutSavedAttempt(t *testing.T) {
	db := filepath.Join(t.TempDir(), "adaptest.db")
	out, err := execute(t, "cards", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No flashcards yet.")

	out, err = execute(t, "cards", "due", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing due.")
}
