package report

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/abhisek/adaptest/internal/scoring"
	"github.com/abhisek/adaptest/internal/session"
	"github.com/abhisek/adaptest/internal/testdef"
)

func completedSession(t *testing.T) *session.Session {
	t.Helper()
	def, err := testdef.Load("../testdef/testdata/mst.json")
	require.NoError(t, err)

	s := session.New()
	require.NoError(t, s.InitTest(def, session.InitOptions{SectionType: testdef.SectionQuantitative}))
	require.NoError(t, s.SetAnswer("q1q1", testdef.NumberAnswer(12)))
	require.NoError(t, s.SetAnswer("q1q2", testdef.ChoiceAnswer(testdef.SingleChoice, "B")))
	require.NoError(t, s.ToggleFlag("q1q2"))
	_, err = s.CompleteSection(scoring.Scorer{}, time.Now())
	require.NoError(t, err)
	require.True(t, s.TestCompleted)
	return s
}

func TestWriteWorkbook(t *testing.T) {
	s := completedSession(t)
	path := filepath.Join(t.TempDir(), "results.xlsx")
	require.NoError(t, WriteWorkbook(path, s, scoring.Scorer{}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	results, err := f.GetRows(SheetResults)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"q1", "Quantitative Reasoning 1", "quantitative", "1", "2", "50"}, results[1])
	assert.Equal(t, "Overall", results[2][0])

	answers, err := f.GetRows(SheetAnswers)
	require.NoError(t, err)
	require.Len(t, answers, 3)
	assert.Equal(t, []string{"q1q1", "q1", "numeric-entry", "12", "12", "yes", "no", "no"}, answers[1])
	assert.Equal(t, "B", answers[2][3])
	assert.Equal(t, "no", answers[2][5])
	assert.Equal(t, "yes", answers[2][6])
}

func TestWriteWorkbook_NoTest(t *testing.T) {
	err := WriteWorkbook(filepath.Join(t.TempDir(), "x.xlsx"), session.New(), scoring.Scorer{})
	assert.True(t, errors.Is(err, session.ErrNoTest))
}
