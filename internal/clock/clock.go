package clock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go-scada-flow/internal/logging"
)

// DefaultPeriod is the interval between ticks while running.
const DefaultPeriod = 20 * time.Millisecond

// State is the clock's run state.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "RUNNING"
	}
	return "STOPPED"
}

// TickFunc performs one tick. It always runs to completion; the context it
// receives is never cancelled by Stop.
type TickFunc func(ctx context.Context)

// Option configures a Clock.
type Option func(*Clock)

// WithLogger sets the clock logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Clock) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithContext sets the base context handed to each tick.
func WithContext(ctx context.Context) Option {
	return func(c *Clock) {
		if ctx != nil {
			c.base = ctx
		}
	}
}

// Clock invokes a TickFunc at a fixed period while running. A single
// goroutine drives the ticks, so no two ticks ever overlap.
type Clock struct {
	period time.Duration
	tick   TickFunc
	logger logging.Logger
	base   context.Context

	mu      sync.Mutex // serialises Start/Stop/Toggle
	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a stopped clock. A non-positive period falls back to DefaultPeriod.
func New(period time.Duration, fn TickFunc, opts ...Option) *Clock {
	if period <= 0 {
		period = DefaultPeriod
	}
	c := &Clock{
		period: period,
		tick:   fn,
		logger: logging.Noop(),
		base:   context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Period returns the tick interval.
func (c *Clock) Period() time.Duration { return c.period }

// Running reports whether the clock is ticking.
func (c *Clock) Running() bool { return c.running.Load() }

// State returns the current run state.
func (c *Clock) State() State {
	if c.running.Load() {
		return Running
	}
	return Stopped
}

// Start begins ticking. It returns false, and does nothing, if the clock is
// already running.
func (c *Clock) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked()
}

// Stop halts ticking and waits for an in-flight tick to finish. It returns
// false if the clock was already stopped. Stop must not be called from inside
// the TickFunc.
func (c *Clock) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

// Toggle flips between running and stopped and returns the new state.
func (c *Clock) Toggle() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running.Load() {
		c.stopLocked()
	} else {
		c.startLocked()
	}
	return c.State()
}

func (c *Clock) startLocked() bool {
	if c.running.Load() {
		return false
	}
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(c.base)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.running.Store(true)

	go c.run(ctx, done)

	c.logger.Info(ctx, "clock started", logging.String("period", c.period.String()))
	return true
}

func (c *Clock) stopLocked() bool {
	if !c.running.Load() {
		return false
	}
	c.cancel()
	<-c.done
	c.cancel = nil
	c.done = nil
	c.running.Store(false)

	c.logger.Info(c.base, "clock stopped")
	return true
}

// run ticks until ctx is done. When the base context ends without a Stop the
// clock reports itself stopped.
func (c *Clock) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		if c.base.Err() != nil && c.running.CompareAndSwap(true, false) {
			c.logger.Info(c.base, "clock stopped", logging.String("cause", context.Cause(c.base).Error()))
		}
	}()

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	tickCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Stop may have landed at the same instant as the tick.
			if ctx.Err() != nil {
				return
			}
			if c.tick != nil {
				c.tick(tickCtx)
			}
		}
	}
}
