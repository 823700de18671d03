// Package timer runs the single per-engine section countdown.
package timer

import (
	"context"
	"sync"
	"time"
)

// Ticker is the subset of *time.Ticker the scheduler needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewStdTicker wraps time.NewTicker.
func NewStdTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTickerFunc replaces the ticker source, typically with a fake in tests.
func WithTickerFunc(f TickerFunc) Option {
	return func(s *Scheduler) { s.newTicker = f }
}

// WithInterval sets the tick period. The default is one second.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// Scheduler owns at most one running countdown. Starting a countdown
// cancels the previous one, and every countdown carries its own context so
// a tick that races with cancellation can be recognised and dropped.
type Scheduler struct {
	newTicker TickerFunc
	interval  time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
	closed bool
	wg     sync.WaitGroup
}

// New creates a Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{newTicker: NewStdTicker, interval: time.Second}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start cancels any running countdown and starts a new one that calls
// onTick once per interval until onTick returns false, Stop is called or
// another Start replaces it. onTick receives the countdown's context and
// must check ctx.Err() before acting. Start after Close does nothing.
func (s *Scheduler) Start(onTick func(ctx context.Context) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.gen++
	gen := s.gen

	ticker := s.newTicker(s.interval)
	s.wg.Add(1)
	go s.run(ctx, gen, ticker, onTick)
}

func (s *Scheduler) run(ctx context.Context, gen uint64, ticker Ticker, onTick func(context.Context) bool) {
	defer s.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if ctx.Err() != nil {
				return
			}
			if !onTick(ctx) {
				s.finish(gen)
				return
			}
		}
	}
}

// finish clears the running countdown if it is still gen.
func (s *Scheduler) finish(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Stop cancels the running countdown, if any. It does not wait for the
// countdown goroutine to exit; use Wait for that.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Close stops the running countdown. Later calls to Start do nothing.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Running reports whether a countdown is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Wait blocks until every countdown goroutine has exited. Call it after
// Close, without holding any lock that onTick acquires.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
