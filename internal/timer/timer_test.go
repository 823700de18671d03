package timer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestScheduler_TicksUntilCallbackStops(t *testing.T) {
	clock := NewFakeClock()
	s := New(WithTickerFunc(clock.TickerFunc()))

	var ticks atomic.Int32
	s.Start(func(ctx context.Context) bool {
		return ticks.Add(1) < 3
	})
	require.True(t, s.Running())

	for i := 0; i < 3; i++ {
		require.True(t, clock.Tick(), "tick %d", i)
	}
	s.Wait()

	assert.Equal(t, int32(3), ticks.Load())
	assert.False(t, s.Running())
	assert.False(t, clock.Tick(), "no ticker should remain active")
}

func TestScheduler_StartReplacesCountdown(t *testing.T) {
	clock := NewFakeClock()
	s := New(WithTickerFunc(clock.TickerFunc()))

	var first, second atomic.Int32
	s.Start(func(ctx context.Context) bool { first.Add(1); return true })
	require.True(t, clock.Tick())

	old := clock.Current()
	s.Start(func(ctx context.Context) bool { second.Add(1); return true })

	require.Eventually(t, old.Stopped, time.Second, time.Millisecond)
	assert.False(t, old.Tick(), "replaced ticker must not deliver")

	require.True(t, clock.Tick())
	require.True(t, clock.Tick())

	s.Stop()
	s.Wait()
	assert.Equal(t, int32(1), first.Load())
	assert.Equal(t, int32(2), second.Load())
	assert.Equal(t, 2, clock.Created())
}

func TestScheduler_StopCancelsContext(t *testing.T) {
	clock := NewFakeClock()
	s := New(WithTickerFunc(clock.TickerFunc()))

	seen := make(chan context.Context, 1)
	s.Start(func(ctx context.Context) bool {
		seen <- ctx
		return true
	})
	require.True(t, clock.Tick())
	ctx := <-seen

	s.Stop()
	s.Wait()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.False(t, s.Running())
}

func TestScheduler_RealTicker(t *testing.T) {
	s := New(WithInterval(5 * time.Millisecond))
	done := make(chan struct{})
	var n atomic.Int32
	s.Start(func(ctx context.Context) bool {
		if n.Add(1) == 2 {
			close(done)
			return false
		}
		return true
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("real ticker never fired")
	}
	s.Wait()
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	s := New()
	s.Stop()
	s.Wait()
	assert.False(t, s.Running())
}

func TestScheduler_StartAfterCloseDoesNothing(t *testing.T) {
	clock := NewFakeClock()
	s := New(WithTickerFunc(clock.TickerFunc()))
	s.Start(func(ctx context.Context) bool { return true })
	require.True(t, s.Running())

	s.Close()
	s.Start(func(ctx context.Context) bool { return true })
	s.Wait()

	assert.False(t, s.Running())
	assert.Equal(t, 1, clock.Created())
}
