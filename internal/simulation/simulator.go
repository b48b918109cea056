package simulation

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"go-scada-flow/internal/clock"
	"go-scada-flow/internal/engine"
	"go-scada-flow/internal/logging"
	"go-scada-flow/internal/models"
)

const tracerName = "go-scada-flow/internal/simulation"

// CommandSource supplies valve commands at the start of a tick. It sees the
// state left by the previous tick.
type CommandSource interface {
	Commands(ctx context.Context, state models.State) (map[string]bool, error)
}

// CommandSourceFunc adapts a function to CommandSource
type CommandSourceFunc func(ctx context.Context, state models.State) (map[string]bool, error)

// Commands calls f
func (f CommandSourceFunc) Commands(ctx context.Context, state models.State) (map[string]bool, error) {
	return f(ctx, state)
}

// Option configures a Simulator
type Option func(*Simulator)

// WithLogger sets the simulator logger
func WithLogger(l logging.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEngine replaces the default engine
func WithEngine(e *engine.Engine) Option {
	return func(s *Simulator) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithPeriod sets the clock period
func WithPeriod(d time.Duration) Option {
	return func(s *Simulator) { s.period = d }
}

// WithCommandSource adds a command source. Sources are consulted in the order added.
func WithCommandSource(src CommandSource) Option {
	return func(s *Simulator) {
		if src != nil {
			s.sources = append(s.sources, src)
		}
	}
}

// WithSourceTimeout bounds how long each command source may take at tick
// start. It defaults to the clock period.
func WithSourceTimeout(d time.Duration) Option {
	return func(s *Simulator) { s.sourceTimeout = d }
}

// WithTracer sets the tracer used for tick spans
func WithTracer(t trace.Tracer) Option {
	return func(s *Simulator) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithContext sets the base context handed to clock-driven ticks
func WithContext(ctx context.Context) Option {
	return func(s *Simulator) {
		if ctx != nil {
			s.base = ctx
		}
	}
}

// Simulator owns a network and everything that may touch it: the engine, the
// clock and the command sources. One mutex covers ticks, valve commands and
// reads, so readers always see whole ticks.
type Simulator struct {
	mu      sync.Mutex
	net     *models.Network
	engine  *engine.Engine
	sources []CommandSource
	last    engine.TickResult

	sourceTimeout time.Duration

	clock  *clock.Clock
	period time.Duration
	base   context.Context
	logger logging.Logger
	tracer trace.Tracer
}

// New creates a stopped simulator for net
func New(net *models.Network, opts ...Option) (*Simulator, error) {
	if net == nil {
		return nil, fmt.Errorf("simulator requires a network")
	}
	s := &Simulator{
		net:    net,
		period: clock.DefaultPeriod,
		base:   context.Background(),
		logger: logging.Noop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = engine.NewEngine(engine.WithLogger(s.logger))
	}
	if s.period <= 0 {
		s.period = clock.DefaultPeriod
	}
	if s.sourceTimeout <= 0 {
		s.sourceTimeout = s.period
	}
	s.clock = clock.New(s.period, func(ctx context.Context) {
		s.Step(ctx)
	}, clock.WithLogger(s.logger), clock.WithContext(s.base))
	return s, nil
}

// Step runs exactly one tick: sample command sources, apply their valve
// commands, then evaluate the network.
func (s *Simulator) Step(ctx context.Context) engine.TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "simulation.tick",
		trace.WithAttributes(attribute.String("flowsim.network", s.net.ID)))
	defer span.End()

	s.applyCommandsLocked(ctx)
	result := s.engine.Tick(ctx, s.net)
	s.last = result

	span.SetAttributes(
		attribute.Int64("flowsim.tick", int64(result.Tick)),
		attribute.Int("flowsim.rules_fired", result.FiredCount),
		attribute.Float64("flowsim.discarded", result.Discarded),
		attribute.Float64("flowsim.pump_angle", result.PumpAngle),
	)
	return result
}

// Run steps n times synchronously
func (s *Simulator) Run(ctx context.Context, n int) []engine.TickResult {
	results := make([]engine.TickResult, 0, max(n, 0))
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		results = append(results, s.Step(ctx))
	}
	return results
}

func (s *Simulator) applyCommandsLocked(ctx context.Context) {
	if len(s.sources) == 0 {
		return
	}
	state := s.net.Snapshot()
	for _, src := range s.sources {
		srcCtx, cancel := context.WithTimeout(ctx, s.sourceTimeout)
		commands, err := src.Commands(srcCtx, state)
		cancel()
		if err != nil {
			s.logger.Warn(ctx, "command source failed; keeping valve positions", logging.Err(err))
			continue
		}
		for _, id := range slices.Sorted(maps.Keys(commands)) {
			if err := s.net.SetValve(id, commands[id]); err != nil {
				s.logger.Warn(ctx, "ignoring valve command", logging.String("valve", id), logging.Err(err))
			}
		}
	}
}

// SetValve opens or closes a valve. The change takes effect on the next tick.
func (s *Simulator) SetValve(id string, open bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.net.SetValve(id, open); err != nil {
		return err
	}
	s.logger.Debug(s.base, "valve set", logging.String("valve", id), logging.Bool("open", open))
	return nil
}

// FillTank sets a tank to capacity
func (s *Simulator) FillTank(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tank := s.net.GetTank(id)
	if tank == nil {
		return fmt.Errorf("tank %s: %w", id, models.ErrUnknownTank)
	}
	tank.Fill()
	s.logger.Info(s.base, "tank filled", logging.String("tank", id), logging.Float("amount", tank.Amount()))
	return nil
}

// DrainTank empties a tank down to the empty tolerance
func (s *Simulator) DrainTank(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tank := s.net.GetTank(id)
	if tank == nil {
		return fmt.Errorf("tank %s: %w", id, models.ErrUnknownTank)
	}
	tank.Drain()
	s.logger.Info(s.base, "tank drained", logging.String("tank", id), logging.Float("amount", tank.Amount()))
	return nil
}

// State returns a consistent snapshot of the network
func (s *Simulator) State() models.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.net.Snapshot()
}

// LastResult returns the outcome of the most recent tick
func (s *Simulator) LastResult() engine.TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Inspect returns the state and the rule diagnostics taken under one lock, so
// both describe the same tick.
func (s *Simulator) Inspect() (models.State, []engine.RuleDiagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.net.Snapshot(), s.engine.Diagnose(s.net)
}

// SourceTimeout returns the per-source deadline applied at tick start
func (s *Simulator) SourceTimeout() time.Duration {
	return s.sourceTimeout
}

// NetworkID returns the simulated network's ID
func (s *Simulator) NetworkID() string {
	return s.net.ID
}

// Start begins clock-driven ticking. It is a no-op when already running.
func (s *Simulator) Start() bool {
	return s.clock.Start()
}

// Stop halts ticking after any in-flight tick completes. It is a no-op when stopped.
func (s *Simulator) Stop() bool {
	return s.clock.Stop()
}

// Toggle flips the clock and reports whether it is now running
func (s *Simulator) Toggle() bool {
	return s.clock.Toggle() == clock.Running
}

// Running reports whether the clock is ticking
func (s *Simulator) Running() bool {
	return s.clock.Running()
}

// Period returns the clock period
func (s *Simulator) Period() time.Duration {
	return s.clock.Period()
}

// Close stops the clock and releases command sources that hold resources
func (s *Simulator) Close() {
	s.Stop()
	for _, src := range s.sources {
		if c, ok := src.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
