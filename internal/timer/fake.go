package timer

import (
	"sync"
	"time"
)

// FakeClock hands out manually driven tickers. Tick delivers one tick to
// the most recently created ticker that has not been stopped.
type FakeClock struct {
	mu      sync.Mutex
	tickers []*FakeTicker
}

// NewFakeClock creates a FakeClock.
func NewFakeClock() *FakeClock {
	return &FakeClock{}
}

// TickerFunc returns a TickerFunc producing FakeTickers bound to c.
func (c *FakeClock) TickerFunc() TickerFunc {
	return func(time.Duration) Ticker {
		c.mu.Lock()
		defer c.mu.Unlock()
		t := &FakeTicker{ch: make(chan time.Time)}
		c.tickers = append(c.tickers, t)
		return t
	}
}

// Current returns the active ticker, or nil.
func (c *FakeClock) Current() *FakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.tickers) - 1; i >= 0; i-- {
		if !c.tickers[i].Stopped() {
			return c.tickers[i]
		}
	}
	return nil
}

// Created returns how many tickers have been created.
func (c *FakeClock) Created() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// Tick delivers one tick to the active ticker and blocks until the
// countdown goroutine has received it. It returns false when no ticker is
// active or the ticker was stopped before the tick was taken.
func (c *FakeClock) Tick() bool {
	t := c.Current()
	if t == nil {
		return false
	}
	return t.Tick()
}

// FakeTicker is a Ticker whose ticks are sent by hand.
type FakeTicker struct {
	ch   chan time.Time
	mu   sync.Mutex
	stop chan struct{}
	once sync.Once
}

func (t *FakeTicker) init() {
	t.once.Do(func() { t.stop = make(chan struct{}) })
}

// C implements Ticker.
func (t *FakeTicker) C() <-chan time.Time { return t.ch }

// Stop implements Ticker.
func (t *FakeTicker) Stop() {
	t.init()
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.stop:
	default:
		close(t.stop)
	}
}

// Stopped reports whether Stop has been called.
func (t *FakeTicker) Stopped() bool {
	t.init()
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}

// Tick sends one tick, returning false if the ticker stops first.
func (t *FakeTicker) Tick() bool {
	t.init()
	select {
	case t.ch <- time.Now():
		return true
	case <-t.stop:
		return false
	}
}
