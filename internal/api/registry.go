package api

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/abhisek/adaptest/internal/engine"
	"github.com/abhisek/adaptest/internal/session"
	"github.com/abhisek/adaptest/internal/store"
	"github.com/abhisek/adaptest/internal/testdef"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// EngineFactory builds an engine persisting under storageKey.
type EngineFactory func(storageKey string) *engine.Engine

// Registry holds one engine per session. Each session persists under its
// own id, so sessions survive a server restart and are resumed on first use.
// Flashcards, bookmarks and notes are not per session: the factory hands
// every engine the same engine.StudyAids.
type Registry struct {
	mu        sync.Mutex
	engines   map[string]*engine.Engine
	newEngine EngineFactory
	snapshots store.SnapshotRepo
}

// NewRegistry creates a registry. snapshots may be nil, in which case
// sessions live only in memory.
func NewRegistry(newEngine EngineFactory, snapshots store.SnapshotRepo) *Registry {
	return &Registry{
		engines:   make(map[string]*engine.Engine),
		newEngine: newEngine,
		snapshots: snapshots,
	}
}

// Create starts a new session running t and returns its id.
func (r *Registry) Create(ctx context.Context, t *testdef.Test, opts session.InitOptions) (string, *engine.Engine, error) {
	id := uuid.NewString()
	opts.ID = id
	e := r.newEngine(id)
	if err := e.InitTest(ctx, t, opts); err != nil {
		e.Close()
		return "", nil, err
	}

	r.mu.Lock()
	r.engines[id] = e
	r.mu.Unlock()
	return id, e, nil
}

// Get returns the engine for id, resuming it from storage if needed.
func (r *Registry) Get(ctx context.Context, id string) (*engine.Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.engines[id]; ok {
		return e, nil
	}
	if r.snapshots == nil {
		return nil, ErrSessionNotFound
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}

	e := r.newEngine(id)
	found, err := e.Resume(ctx)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if !found {
		e.Close()
		return nil, ErrSessionNotFound
	}
	r.engines[id] = e
	return e, nil
}

// Delete stops the session and removes its stored snapshots.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.engines[id]
	delete(r.engines, id)
	r.mu.Unlock()

	if ok {
		e.Close()
	}
	if r.snapshots != nil {
		if err := r.snapshots.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete session %s: %w", id, err)
		}
	}
	if !ok && r.snapshots == nil {
		return ErrSessionNotFound
	}
	return nil
}

// Len returns the number of loaded sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}

// Close stops every loaded session.
func (r *Registry) Close() {
	r.mu.Lock()
	engines := r.engines
	r.engines = make(map[string]*engine.Engine)
	r.mu.Unlock()

	for _, e := range engines {
		e.Close()
	}
}
