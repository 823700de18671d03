// Package api exposes the engine command surface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/abhisek/adaptest/internal/engine"
	"github.com/abhisek/adaptest/internal/session"
	"github.com/abhisek/adaptest/internal/spacedrep"
	"github.com/abhisek/adaptest/internal/testdef"
)

// maxTestBytes bounds the size of an uploaded test document.
const maxTestBytes = 4 << 20

// Options configures the HTTP handler.
type Options struct {
	Registry    *Registry
	Logger      *slog.Logger
	CORSOrigins []string
	Timeout     time.Duration // per request; default 30s
}

// Server routes HTTP requests to session engines.
type Server struct {
	reg *Registry
	log *slog.Logger
	mux chi.Router
}

// NewServer builds the router.
func NewServer(opts Options) *Server {
	s := &Server{reg: opts.Registry, log: opts.Logger}
	if s.log == nil {
		s.log = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.requestLogger, middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.reg.Len()})
	})

	r.Post("/sessions", s.createSession)
	r.Route("/sessions/{id}", func(sr chi.Router) {
		sr.Get("/", s.withEngine(s.getSession))
		sr.Delete("/", s.deleteSession)

		sr.Post("/answers", s.withEngine(s.setAnswer))
		sr.Delete("/answers/{qid}", s.withEngine(s.clearAnswer))
		sr.Post("/flags/{qid}", s.withEngine(s.toggleFlag))
		sr.Post("/navigate", s.withEngine(s.navigate))
		sr.Post("/calculator", s.withEngine(s.command((*engine.Engine).ToggleCalculator)))
		sr.Post("/review-screen", s.withEngine(s.command((*engine.Engine).ToggleReviewScreen)))
		sr.Post("/complete", s.withEngine(s.completeSection))
		sr.Post("/results/dismiss", s.withEngine(s.dismissResults))
		sr.Post("/reset", s.withEngine(s.resetTest))
		sr.Post("/bookmarks/{qid}", s.withEngine(s.toggleBookmark))
		sr.Put("/notes/{qid}", s.withEngine(s.setNote))
		sr.Get("/reveal/{qid}", s.withEngine(s.reveal))

		sr.Post("/flashcards/{qid}/rate", s.withEngine(s.rate))
		sr.Get("/flashcards/due", s.withEngine(s.due))
	})

	s.mux = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			"method", r.Method, "path", r.URL.Path, "status", ww.Status(),
			"duration", time.Since(start), "request_id", middleware.GetReqID(r.Context()))
	})
}

type engineHandler func(w http.ResponseWriter, r *http.Request, e *engine.Engine)

func (s *Server) withEngine(h engineHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := s.reg.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			s.respondError(w, err)
			return
		}
		h(w, r, e)
	}
}

// command adapts an argument-less engine command.
func (s *Server) command(fn func(*engine.Engine, context.Context) error) engineHandler {
	return func(w http.ResponseWriter, r *http.Request, e *engine.Engine) {
		if err := fn(e, r.Context()); err != nil {
			s.respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, newSessionView(e))
	}
}

type createRequest struct {
	Test        json.RawMessage     `json:"test"`
	SectionType testdef.SectionType `json:"sectionType,omitempty"`
	Mode        session.Mode        `json:"mode,omitempty"`
	Practice    bool                `json:"practice,omitempty"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := testdef.Parse(req.Test)
	if err != nil {
		s.respondError(w, err)
		return
	}
	id, e, err := s.reg.Create(r.Context(), t, session.InitOptions{
		SectionType: req.SectionType,
		Mode:        req.Mode,
		Practice:    req.Practice,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.log.Info("session created", "session_id", id, "test_id", t.ID)
	respondJSON(w, http.StatusCreated, newSessionView(e))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request, e *engine.Engine) {
	respondJSON(w, http.StatusOK, newSessionView(e))
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.reg.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type answerRequest struct {
	QuestionID string         `json:"questionId"`
	Answer     testdef.Answer `json:"answer"`
}

func (s *Server) setAnswer(w http.ResponseWriter, r *http.Request, e *engine.Engine) {
	var req answerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.reply(w, e, e.SetAnswer(r.Context(), req.QuestionID, req.Answer))
}

func (s *Server) clearAnswer(w http.ResponseWriter, r *http.Request, e *engine.Engine) {
	s.reply(w, e, e.ClearAnswer(r.Context(), chi.URLParam(r, "qid")))
}

func (s *Server) toggleFlag(w http.ResponseWriter, r *http.Request, e *engine.Engine) {
	s.reply(w, e, e.ToggleFlag(r.Context(), chi.URLParam(r, "qid")))
}

type navigateRequest struct {
	Index     *int   `json:"index,omitempty"`
	Direction string `json:"direction,omitempty"` // next|prev
}

func (s *Server) navigate(w http.ResponseWriter, r *http.Request, e *engine.Engine) {
	var req navigateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var err error
	switch {
	case req.Index != nil:
		err = e.NavigateQuestion(r.Context(), *req.Index)
	case req.Direction == "next":
		err = e.NextQuestion(r.Context())
	case req.Direction == "prev":
		err = e.PrevQuestion(r.Context())
	default:
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "index or direction (next|prev) required"})
		return
	}
	s.reply(w, e, err)
}

type completionView struct {
	SectionID     string            `json:"sectionId"`
	Result        sectionResultView `json:"result"`
	NextSectionID string            `json:"nextSectionId,omitempty"`
	TestCompleted bool              `json:"testCompleted"`
	Session       sessionView       `json:"session"`
}

func (s *Server) completeSection(w http.ResponseWriter, r *http.Request, e *engine.Engine) {
	c, err := e.CompleteSection(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, completionView{
		SectionID:     c.SectionID,
		Result:        sectionResultView(c.Result),
		NextSectionID: c.NextSectionID,
		TestCompleted: c.TestCompleted,
		Session:       newSessionView(e),
	})
}

func (s *Server) dismissResults(w http.ResponseWriter, r *http.Request, e *engine.Engine) {
	if !e.DismissResults(r.Context()) {
		s.respondError(w, session.ErrNotActive)
		return
	}
	respondJSON(w, http.StatusOK, newSessionView(e))
}

func (s *Server) resetTest(w http.ResponseWriter, r *http.Request, e *engine.Engine) {
	e.ResetTest(r.Context())
	respondJSON(w, http.StatusOK, newSessionView(e))
}

func (s *Server) toggleBookmark(w http.ResponseWriter, r *http.Request, e *engine.Engine) {
	s.reply(w, e, e.ToggleBookmark(r.Context(), chi.URLParam(r, "qid")))
}

type noteRequest struct {
	Text string `json:"text"`
}

func (s *Server) setNote(w http.ResponseWriter, r *http.Request, e *engine.Engine) {
	var req noteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.reply(w, e, e.SetNote(r.Context(), chi.URLParam(r, "qid"), req.Text))
}

type revealView struct {
	QuestionID    string         `json:"questionId"`
	Answered      bool           `json:"answered"`
	Correct       bool           `json:"correct"`
	CorrectAnswer testdef.Answer `json:"correctAnswer"`
	Explanation   string         `json:"explanation,omitempty"`
}

func (s *Server) reveal(w http.ResponseWriter, r *http.Request, e *engine.Engine) {
	rv, err := e.Reveal(chi.URLParam(r, "qid"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, revealView(rv))
}

type rateRequest struct {
	Level *int `json:"level"`
}

type progressView struct {
	QuestionID   string    `json:"questionId"`
	MasteryLevel int       `json:"masteryLevel"`
	LastReviewed time.Time `json:"lastReviewed"`
	NextReview   time.Time `json:"nextReview"`
	ReviewCount  int       `json:"reviewCount"`
}

func (s *Server) rate(w http.ResponseWriter, r *http.Request, e *engine.Engine) {
	var req rateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Level == nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "level required"})
		return
	}
	p, err := e.Rate(r.Context(), chi.URLParam(r, "qid"), *req.Level)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, progressView(p))
}

func (s *Server) due(w http.ResponseWriter, r *http.Request, e *engine.Engine) {
	ids := e.Due()
	if ids == nil {
		ids = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"due": ids})
}

// reply answers a plain command with the session view or the error.
func (s *Server) reply(w http.ResponseWriter, e *engine.Engine, err error) {
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newSessionView(e))
}

type errorBody struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	var ve *testdef.ValidationError
	if errors.As(err, &ve) {
		body.Problems = ve.Problems
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	respondJSON(w, status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, testdef.ErrInvalidTest):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNotActive),
		errors.Is(err, session.ErrQuestionNotInSection),
		errors.Is(err, session.ErrRevealInTestMode),
		errors.Is(err, session.ErrNoTest):
		return http.StatusConflict
	case errors.Is(err, session.ErrIndexOutOfRange),
		errors.Is(err, session.ErrAnswerKind),
		errors.Is(err, session.ErrUnknownOption),
		errors.Is(err, session.ErrUnknownQuestion),
		errors.Is(err, spacedrep.ErrInvalidLevel):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxTestBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
