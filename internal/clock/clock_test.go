package clock

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockTicksWhileRunning(t *testing.T) {
	var ticks atomic.Int64
	c := New(2*time.Millisecond, func(context.Context) { ticks.Add(1) })

	require.True(t, c.Start())
	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)
	require.True(t, c.Stop())

	after := ticks.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, after, ticks.Load(), "no ticks after Stop returns")
}

func TestClockStartIsIdempotent(t *testing.T) {
	var active, maxActive atomic.Int64
	c := New(time.Millisecond, func(context.Context) {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		active.Add(-1)
	})

	require.True(t, c.Start())
	assert.False(t, c.Start(), "second Start is a no-op")
	assert.Equal(t, Running, c.State())

	time.Sleep(20 * time.Millisecond)
	c.Stop()

	assert.Equal(t, int64(1), maxActive.Load(), "exactly one ticking sequence")
}

func TestClockStopWhenStoppedIsNoop(t *testing.T) {
	c := New(time.Millisecond, nil)
	assert.False(t, c.Stop())
	assert.Equal(t, Stopped, c.State())
	assert.False(t, c.Running())
}

func TestClockToggle(t *testing.T) {
	c := New(time.Millisecond, func(context.Context) {})

	assert.Equal(t, Running, c.Toggle())
	assert.True(t, c.Running())
	assert.Equal(t, Stopped, c.Toggle())
	assert.False(t, c.Running())
	assert.Equal(t, "STOPPED", c.State().String())
}

func TestClockStopWaitsForInFlightTick(t *testing.T) {
	started := make(chan struct{}, 1)
	var finished atomic.Bool
	c := New(time.Millisecond, func(ctx context.Context) {
		select {
		case started <- struct{}{}:
		default:
		}
		time.Sleep(10 * time.Millisecond)
		assert.NoError(t, ctx.Err(), "tick context is not cancelled by Stop")
		finished.Store(true)
	})

	c.Start()
	<-started
	c.Stop()
	assert.True(t, finished.Load())
}

func TestClockDefaultPeriod(t *testing.T) {
	c := New(0, nil)
	assert.Equal(t, DefaultPeriod, c.Period())
}

func TestClockReportsStoppedWhenBaseContextEnds(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	var ticks atomic.Int64
	c := New(time.Millisecond, func(context.Context) { ticks.Add(1) }, WithContext(base))

	require.True(t, c.Start())
	require.Eventually(t, func() bool { return ticks.Load() >= 1 }, time.Second, time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return !c.Running() }, time.Second, time.Millisecond)
	assert.Equal(t, Stopped, c.State())
	assert.False(t, c.Stop())

	after := ticks.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, after, ticks.Load())
}
