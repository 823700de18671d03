package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/adaptest/internal/engine"
	"github.com/abhisek/adaptest/internal/store"
	"github.com/abhisek/adaptest/internal/timer"
)

func sampleTest(t *testing.T) json.RawMessage {
	t.Helper()
	raw, err := os.ReadFile("../testdef/testdata/mst.json")
	require.NoError(t, err)
	return raw
}

// factory builds engines whose countdowns never tick on their own. Every
// engine shares one set of study aids.
func factory(snapshots store.SnapshotRepo) EngineFactory {
	aids := engine.NewStudyAids(snapshots, "")
	return func(key string) *engine.Engine {
		clock := timer.NewFakeClock()
		return engine.New(engine.Options{
			StorageKey: key,
			Snapshots:  snapshots,
			StudyAids:  aids,
			Timer:      timer.New(timer.WithTickerFunc(clock.TickerFunc())),
		})
	}
}

func newTestServer(t *testing.T, snapshots store.SnapshotRepo) (*Server, *Registry) {
	t.Helper()
	reg := NewRegistry(factory(snapshots), snapshots)
	t.Cleanup(reg.Close)
	return NewServer(Options{Registry: reg, CORSOrigins: []string{"http://localhost:3000"}}), reg
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func createSession(t *testing.T, h http.Handler, extra map[string]any) string {
	t.Helper()
	body := map[string]any{"test": sampleTest(t)}
	for k, v := range extra {
		body[k] = v
	}
	rec, out := do(t, h, http.MethodPost, "/sessions", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id, _ := out["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, out := do(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
}

func TestCreateSession_InvalidTest(t *testing.T) {
	srv, reg := newTestServer(t, nil)
	bad := strings.Replace(string(sampleTest(t)), `"startingSectionId": "v1"`, `"startingSectionId": "nope"`, 1)

	rec, out := do(t, srv, http.MethodPost, "/sessions", map[string]any{"test": json.RawMessage(bad)})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.NotEmpty(t, out["problems"])
	assert.Equal(t, 0, reg.Len())

	rec, _ = do(t, srv, http.MethodPost, "/sessions", map[string]any{"test": json.RawMessage(`{"id": 1}`)})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSessionFlow(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	id := createSession(t, srv, nil)
	base := "/sessions/" + id

	rec, out := do(t, srv, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "in-section", out["phase"])
	assert.Equal(t, "v1", out["currentSectionId"])
	q := out["currentQuestion"].(map[string]any)
	assert.Equal(t, "v1q1", q["id"])
	assert.NotContains(t, q, "correctAnswer")
	assert.NotNil(t, q["passage"])

	rec, _ = do(t, srv, http.MethodPost, base+"/answers", map[string]any{
		"questionId": "v1q1", "answer": map[string]any{"kind": "single-choice", "choice": "A"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec, _ = do(t, srv, http.MethodPost, base+"/answers", map[string]any{
		"questionId": "v1q2", "answer": map[string]any{"kind": "multi-select", "choices": []string{"C", "A"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = do(t, srv, http.MethodPost, base+"/answers", map[string]any{
		"questionId": "v1q1", "answer": map[string]any{"kind": "numeric-entry", "number": 3},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = do(t, srv, http.MethodPost, base+"/flags/v1q3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"v1q3"}, out["flags"])

	rec, out = do(t, srv, http.MethodPost, base+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v2-hard", out["nextSectionId"])
	assert.Equal(t, map[string]any{"correct": 2.0, "total": 3.0, "percentage": 67.0}, out["result"])

	rec, _ = do(t, srv, http.MethodPost, base+"/complete", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "a section completes once")

	rec, out = do(t, srv, http.MethodPost, base+"/results/dismiss", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "in-section", out["phase"])
	assert.Equal(t, 1380.0, out["timeLeftSeconds"])

	rec, _ = do(t, srv, http.MethodPost, base+"/answers", map[string]any{
		"questionId": "v1q1", "answer": map[string]any{"kind": "single-choice", "choice": "B"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code, "completed sections are frozen")

	rec, out = do(t, srv, http.MethodPost, base+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["testCompleted"])
	sess := out["session"].(map[string]any)
	assert.Equal(t, "test-complete", sess["phase"])
	assert.Equal(t, []any{"v1", "v2-hard"}, sess["sectionOrder"])
}

func TestNavigate(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	base := "/sessions/" + createSession(t, srv, nil)

	rec, _ := do(t, srv, http.MethodPost, base+"/review-screen", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out := do(t, srv, http.MethodPost, base+"/navigate", map[string]any{"index": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, out["currentQuestionIndex"])
	assert.Equal(t, false, out["isReviewScreenOpen"])

	rec, _ = do(t, srv, http.MethodPost, base+"/navigate", map[string]any{"index": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = do(t, srv, http.MethodPost, base+"/navigate", map[string]any{"direction": "prev"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, out["currentQuestionIndex"])

	rec, _ = do(t, srv, http.MethodPost, base+"/navigate", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = do(t, srv, http.MethodPost, base+"/calculator", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["isCalculatorOpen"])
}

func TestUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, _ := do(t, srv, http.MethodGet, "/sessions/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStudyAidsAndFlashcards(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	base := "/sessions/" + createSession(t, srv, map[string]any{"mode": "study", "practice": true})

	rec, out := do(t, srv, http.MethodPost, base+"/bookmarks/q1q1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"q1q1"}, out["bookmarks"])

	rec, out = do(t, srv, http.MethodPut, base+"/notes/v1q1", map[string]any{"text": " reread "})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"v1q1": "reread"}, out["notes"])

	rec, out = do(t, srv, http.MethodGet, base+"/reveal/v1q1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["answered"])
	assert.Equal(t, map[string]any{"kind": "single-choice", "choice": "A"}, out["correctAnswer"])

	rec, _ = do(t, srv, http.MethodPost, base+"/flashcards/v1q1/rate", map[string]any{"level": 7})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = do(t, srv, http.MethodPost, base+"/flashcards/v1q1/rate", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = do(t, srv, http.MethodPost, base+"/flashcards/v1q1/rate", map[string]any{"level": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, out["reviewCount"])
	rec, _ = do(t, srv, http.MethodPost, base+"/flashcards/q1q2/rate", map[string]any{"level": 5})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out = do(t, srv, http.MethodGet, base+"/flashcards/due", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"v1q1"}, out["due"])

	rec, out = do(t, srv, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "not-started", out["phase"])
	assert.Equal(t, []any{"q1q1"}, out["bookmarks"])
}

func TestFlashcardsCarryAcrossSessions(t *testing.T) {
	st, err := store.Open(store.DriverSQLite, "file:api_flashcards?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	srv, _ := newTestServer(t, st.SnapshotRepo())

	first := "/sessions/" + createSession(t, srv, nil)
	rec, _ := do(t, srv, http.MethodPost, first+"/flashcards/v1q1/rate", map[string]any{"level": 0})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec, _ = do(t, srv, http.MethodPost, first+"/bookmarks/v1q2", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	second := "/sessions/" + createSession(t, srv, nil)
	rec, out := do(t, srv, http.MethodGet, second+"/flashcards/due", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"v1q1"}, out["due"])

	rec, out = do(t, srv, http.MethodGet, second, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"v1q2"}, out["bookmarks"])

	// A restarted server seeds new sessions from the stored aids too.
	restarted, _ := newTestServer(t, st.SnapshotRepo())
	third := "/sessions/" + createSession(t, restarted, nil)
	rec, out = do(t, restarted, http.MethodGet, third+"/flashcards/due", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"v1q1"}, out["due"])
}

func TestRevealInTestMode(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	base := "/sessions/" + createSession(t, srv, nil)
	rec, _ := do(t, srv, http.MethodGet, base+"/reveal/v1q1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSessionsSurviveRestart(t *testing.T) {
	st, err := store.Open(store.DriverSQLite, "file:api_restart?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv, _ := newTestServer(t, st.SnapshotRepo())
	id := createSession(t, srv, map[string]any{"sectionType": "quantitative"})
	rec, _ := do(t, srv, http.MethodPost, "/sessions/"+id+"/answers", map[string]any{
		"questionId": "q1q1", "answer": map[string]any{"kind": "numeric-entry", "number": 12},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	restarted, reg := newTestServer(t, st.SnapshotRepo())
	rec, out := do(t, restarted, http.MethodGet, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "q1", out["currentSectionId"])
	assert.Equal(t, map[string]any{"kind": "numeric-entry", "number": 12.0}, out["answers"].(map[string]any)["q1q1"])
	assert.Equal(t, 1, reg.Len())

	rec, _ = do(t, restarted, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	fresh, _ := newTestServer(t, st.SnapshotRepo())
	rec, _ = do(t, fresh, http.MethodGet, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
