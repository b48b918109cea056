package engine

import (
	"context"
	"time"

	"go-scada-flow/internal/logging"
	"go-scada-flow/internal/models"
)

// Reason explains why a transfer rule did not fire
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonValveClosed     Reason = "valve_closed"
	ReasonSourceEmpty     Reason = "source_empty"
	ReasonDestinationFull Reason = "destination_full"
)

// TickResult describes what one tick did to the network
type TickResult struct {
	Tick         uint64    `json:"tick"`
	Fired        []bool    `json:"fired"`     // indexed like Network.Rules
	Moved        []float64 `json:"moved"`     // amount removed from each rule's source
	Discarded    float64   `json:"discarded"` // removed but not accepted by a destination
	FiredCount   int       `json:"firedCount"`
	PumpAdvanced bool      `json:"pumpAdvanced"`
	PumpAngle    float64   `json:"pumpAngle"`
}

// FiredRules returns the IDs of the rules that fired
func (r TickResult) FiredRules(net *models.Network) []string {
	var ids []string
	for i, fired := range r.Fired {
		if fired && i < len(net.Rules) {
			ids = append(ids, net.Rules[i].ID)
		}
	}
	return ids
}

// Recorder receives the outcome of every tick
type Recorder interface {
	RecordTick(net *models.Network, result TickResult, elapsed time.Duration)
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecorder sets the recorder notified after each tick
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// Engine advances a network by whole ticks. It holds no network state of its
// own, so one engine can drive any number of networks.
type Engine struct {
	logger   logging.Logger
	recorder Recorder
}

// NewEngine creates a new flow simulation engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: logging.Noop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CanFire checks a rule against the network's current tank and valve state
func (e *Engine) CanFire(net *models.Network, rule *models.TransferRule) (bool, Reason) {
	if !net.Valves[rule.Valve].Open {
		return false, ReasonValveClosed
	}
	if net.Tanks[rule.Source].IsEmpty() {
		return false, ReasonSourceEmpty
	}
	// Return rules drain into the main tank without checking its headroom;
	// anything that does not fit is discarded by Add's clamp.
	if rule.ChecksDestination() && net.Tanks[rule.Target].IsFull() {
		return false, ReasonDestinationFull
	}
	return true, ReasonNone
}

// FireRule moves up to the network rate from the rule's source to its target.
// It returns the amount taken from the source and the part of it the target
// could not hold.
func (e *Engine) FireRule(net *models.Network, rule *models.TransferRule) (moved, discarded float64) {
	moved = net.Tanks[rule.Source].Remove(net.Rate)
	added := net.Tanks[rule.Target].Add(moved)
	return moved, moved - added
}

// Tick evaluates every rule in declaration order, mutating tanks as it goes,
// then derives pipe flow flags and turns the pump. Later rules see the amounts
// left by earlier ones.
func (e *Engine) Tick(ctx context.Context, net *models.Network) TickResult {
	start := time.Now()

	result := TickResult{
		Fired: make([]bool, len(net.Rules)),
		Moved: make([]float64, len(net.Rules)),
	}

	for i, rule := range net.Rules {
		ok, _ := e.CanFire(net, rule)
		if !ok {
			continue
		}
		moved, discarded := e.FireRule(net, rule)
		result.Fired[i] = true
		result.Moved[i] = moved
		result.FiredCount++
		if discarded > 0 {
			result.Discarded += discarded
			e.logger.Warn(ctx, "destination could not hold transfer",
				logging.String("rule", rule.ID),
				logging.String("target", net.Tanks[rule.Target].ID),
				logging.Float("discarded", discarded),
			)
		}
	}

	for _, pipe := range net.Pipes {
		pipe.Derive(result.Fired)
	}

	if net.PumpFlowing() {
		net.AdvancePump()
		result.PumpAdvanced = true
	}
	result.PumpAngle = net.PumpAngle()
	result.Tick = net.CompleteTick()

	e.logger.Debug(ctx, "tick complete",
		logging.Uint64("tick", result.Tick),
		logging.Int("fired", result.FiredCount),
		logging.Float("pump_angle", result.PumpAngle),
	)

	if e.recorder != nil {
		e.recorder.RecordTick(net, result, time.Since(start))
	}

	return result
}

// SimulateSteps runs n ticks and returns each result
func (e *Engine) SimulateSteps(ctx context.Context, net *models.Network, n int) []TickResult {
	results := make([]TickResult, 0, max(n, 0))
	for i := 0; i < n; i++ {
		results = append(results, e.Tick(ctx, net))
	}
	return results
}

// RuleDiagnostic provides per-rule firing info for the current state
type RuleDiagnostic struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Valve     string `json:"valve"`
	Direction string `json:"direction"`
	CanFire   bool   `json:"canFire"`
	Reason    Reason `json:"reason,omitempty"`
}

// Diagnose reports, for every rule, whether it would fire if a tick ran now.
// Rules are checked independently against the current state; it does not
// replay the sequential mutation a real tick performs.
func (e *Engine) Diagnose(net *models.Network) []RuleDiagnostic {
	out := make([]RuleDiagnostic, 0, len(net.Rules))
	for _, rule := range net.Rules {
		ok, reason := e.CanFire(net, rule)
		out = append(out, RuleDiagnostic{
			ID:        rule.ID,
			Source:    net.Tanks[rule.Source].ID,
			Target:    net.Tanks[rule.Target].ID,
			Valve:     net.Valves[rule.Valve].ID,
			Direction: string(rule.Direction),
			CanFire:   ok,
			Reason:    reason,
		})
	}
	return out
}
