package models

import (
	"fmt"
	"math"
	"strings"
)

const (
	// DefaultRate is the per-tick transfer amount shared by every rule.
	DefaultRate = 0.6
	// DefaultPumpStep is the pump angle increment, in degrees, for each tick the pump pipe flows.
	DefaultPumpStep = 10.0
)

// Network owns the tanks, valves, pipes and transfer rules of one plant. Rules
// and pipes refer to tanks and valves by index, so every rule touching the
// main tank mutates the same value in declaration order.
type Network struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Tanks       []*Tank         `json:"tanks"`
	Valves      []*Valve        `json:"valves"`
	Pipes       []*Pipe         `json:"pipes"`
	Rules       []*TransferRule `json:"rules"`
	Rate        float64         `json:"rate"`
	PumpStep    float64         `json:"pumpStep"`
	PumpPipe    int             `json:"pumpPipe"` // -1 when no pump is wired

	pumpAngle float64
	tick      uint64

	tankIndex  map[string]int
	valveIndex map[string]int
	pipeIndex  map[string]int
	ruleIndex  map[string]int
}

// NewNetwork creates an empty network with the given transfer rate
func NewNetwork(id, name, description string, rate float64) (*Network, error) {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil, fmt.Errorf("network %s: %w (got %v)", id, ErrInvalidRate, rate)
	}
	return &Network{
		ID:          id,
		Name:        name,
		Description: description,
		Tanks:       []*Tank{},
		Valves:      []*Valve{},
		Pipes:       []*Pipe{},
		Rules:       []*TransferRule{},
		Rate:        rate,
		PumpStep:    DefaultPumpStep,
		PumpPipe:    -1,
		tankIndex:   make(map[string]int),
		valveIndex:  make(map[string]int),
		pipeIndex:   make(map[string]int),
		ruleIndex:   make(map[string]int),
	}, nil
}

// AddTank adds a tank and returns its index
func (n *Network) AddTank(tank *Tank) (int, error) {
	if _, exists := n.tankIndex[tank.ID]; exists {
		return -1, fmt.Errorf("tank %s: %w", tank.ID, ErrDuplicateID)
	}
	n.Tanks = append(n.Tanks, tank)
	idx := len(n.Tanks) - 1
	n.tankIndex[tank.ID] = idx
	return idx, nil
}

// AddValve adds a valve and returns its index
func (n *Network) AddValve(valve *Valve) (int, error) {
	if _, exists := n.valveIndex[valve.ID]; exists {
		return -1, fmt.Errorf("valve %s: %w", valve.ID, ErrDuplicateID)
	}
	n.Valves = append(n.Valves, valve)
	idx := len(n.Valves) - 1
	n.valveIndex[valve.ID] = idx
	return idx, nil
}

// AddRule resolves the tank and valve ids and appends a transfer rule.
// Declaration order is evaluation order.
func (n *Network) AddRule(id, sourceID, targetID, valveID string, direction Direction) (int, error) {
	if _, exists := n.ruleIndex[id]; exists {
		return -1, fmt.Errorf("rule %s: %w", id, ErrDuplicateID)
	}
	src, ok := n.tankIndex[sourceID]
	if !ok {
		return -1, fmt.Errorf("rule %s source %s: %w", id, sourceID, ErrUnknownTank)
	}
	dst, ok := n.tankIndex[targetID]
	if !ok {
		return -1, fmt.Errorf("rule %s target %s: %w", id, targetID, ErrUnknownTank)
	}
	v, ok := n.valveIndex[valveID]
	if !ok {
		return -1, fmt.Errorf("rule %s valve %s: %w", id, valveID, ErrUnknownValve)
	}
	if direction != DirectionForward && direction != DirectionReturn {
		return -1, fmt.Errorf("rule %s: %w: %q", id, ErrInvalidDirection, direction)
	}
	n.Rules = append(n.Rules, NewTransferRule(id, src, dst, v, direction))
	idx := len(n.Rules) - 1
	n.ruleIndex[id] = idx
	return idx, nil
}

// AddPipe adds a pipe that reports flowing when any of the named rules fired
func (n *Network) AddPipe(id, name string, waypoints []Position, ruleIDs []string) (int, error) {
	if _, exists := n.pipeIndex[id]; exists {
		return -1, fmt.Errorf("pipe %s: %w", id, ErrDuplicateID)
	}
	rules := make([]int, 0, len(ruleIDs))
	for _, rid := range ruleIDs {
		r, ok := n.ruleIndex[rid]
		if !ok {
			return -1, fmt.Errorf("pipe %s rule %s: %w", id, rid, ErrUnknownRule)
		}
		rules = append(rules, r)
	}
	n.Pipes = append(n.Pipes, NewPipe(id, name, waypoints, rules))
	idx := len(n.Pipes) - 1
	n.pipeIndex[id] = idx
	return idx, nil
}

// SetPumpPipe designates the pipe whose flow turns the pump
func (n *Network) SetPumpPipe(pipeID string) error {
	idx, ok := n.pipeIndex[pipeID]
	if !ok {
		return fmt.Errorf("pump pipe %s: %w", pipeID, ErrUnknownPipe)
	}
	n.PumpPipe = idx
	return nil
}

// TankIndex returns the index of the tank with the given ID
func (n *Network) TankIndex(id string) (int, bool) {
	idx, ok := n.tankIndex[id]
	return idx, ok
}

// GetTank returns the tank with the given ID
func (n *Network) GetTank(id string) *Tank {
	if idx, ok := n.tankIndex[id]; ok {
		return n.Tanks[idx]
	}
	return nil
}

// GetValve returns the valve with the given ID
func (n *Network) GetValve(id string) *Valve {
	if idx, ok := n.valveIndex[id]; ok {
		return n.Valves[idx]
	}
	return nil
}

// GetPipe returns the pipe with the given ID
func (n *Network) GetPipe(id string) *Pipe {
	if idx, ok := n.pipeIndex[id]; ok {
		return n.Pipes[idx]
	}
	return nil
}

// GetRule returns the rule with the given ID
func (n *Network) GetRule(id string) *TransferRule {
	if idx, ok := n.ruleIndex[id]; ok {
		return n.Rules[idx]
	}
	return nil
}

// SetValve opens or closes the named valve
func (n *Network) SetValve(id string, open bool) error {
	v := n.GetValve(id)
	if v == nil {
		return fmt.Errorf("valve %s: %w", id, ErrUnknownValve)
	}
	v.Open = open
	return nil
}

// ValveStates returns a copy of the current valve positions keyed by ID
func (n *Network) ValveStates() map[string]bool {
	out := make(map[string]bool, len(n.Valves))
	for _, v := range n.Valves {
		out[v.ID] = v.Open
	}
	return out
}

// PumpAngle returns the pump phase in degrees, in [0, 360)
func (n *Network) PumpAngle() float64 {
	return n.pumpAngle
}

// PumpFlowing reports whether the designated pump pipe flowed on the last tick
func (n *Network) PumpFlowing() bool {
	return n.PumpPipe >= 0 && n.PumpPipe < len(n.Pipes) && n.Pipes[n.PumpPipe].Flowing
}

// AdvancePump turns the pump by PumpStep degrees, modulo 360
func (n *Network) AdvancePump() float64 {
	n.pumpAngle = math.Mod(n.pumpAngle+n.PumpStep, 360)
	if n.pumpAngle < 0 {
		n.pumpAngle += 360
	}
	return n.pumpAngle
}

// Tick returns the number of completed ticks
func (n *Network) Tick() uint64 {
	return n.tick
}

// CompleteTick increments the tick counter and returns the new value
func (n *Network) CompleteTick() uint64 {
	n.tick++
	return n.tick
}

// TotalFluid returns the sum of all tank amounts
func (n *Network) TotalFluid() float64 {
	total := 0.0
	for _, t := range n.Tanks {
		total += t.Amount()
	}
	return total
}

// ValidateStructure performs basic structural validation of the network
func (n *Network) ValidateStructure() []error {
	var errs []error

	if n.Rate <= 0 {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidRate, n.Rate))
	}
	if len(n.Tanks) == 0 {
		errs = append(errs, fmt.Errorf("%w: network has no tanks", ErrInvalidDefinition))
	}

	for _, r := range n.Rules {
		if r.Source < 0 || r.Source >= len(n.Tanks) {
			errs = append(errs, fmt.Errorf("rule %s source index %d: %w", r.ID, r.Source, ErrUnknownTank))
		}
		if r.Target < 0 || r.Target >= len(n.Tanks) {
			errs = append(errs, fmt.Errorf("rule %s target index %d: %w", r.ID, r.Target, ErrUnknownTank))
		}
		if r.Valve < 0 || r.Valve >= len(n.Valves) {
			errs = append(errs, fmt.Errorf("rule %s valve index %d: %w", r.ID, r.Valve, ErrUnknownValve))
		}
		if r.Source == r.Target {
			errs = append(errs, fmt.Errorf("%w: rule %s moves tank %d into itself", ErrInvalidDefinition, r.ID, r.Source))
		}
	}

	for _, p := range n.Pipes {
		for _, r := range p.rules {
			if r < 0 || r >= len(n.Rules) {
				errs = append(errs, fmt.Errorf("pipe %s rule index %d: %w", p.ID, r, ErrUnknownRule))
			}
		}
	}

	if n.PumpPipe >= len(n.Pipes) {
		errs = append(errs, fmt.Errorf("pump pipe index %d: %w", n.PumpPipe, ErrUnknownPipe))
	}

	return errs
}

// String returns a string representation of the network
func (n *Network) String() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Network{ID: %s, Name: %s}", n.ID, n.Name))
	parts = append(parts, fmt.Sprintf("  Tanks: %d", len(n.Tanks)))
	parts = append(parts, fmt.Sprintf("  Valves: %d", len(n.Valves)))
	parts = append(parts, fmt.Sprintf("  Rules: %d", len(n.Rules)))
	parts = append(parts, fmt.Sprintf("  Pipes: %d", len(n.Pipes)))
	return strings.Join(parts, "\n")
}

// Clone creates a deep copy of the network, including fluid amounts and pump phase
func (n *Network) Clone() *Network {
	clone := &Network{
		ID:          n.ID,
		Name:        n.Name,
		Description: n.Description,
		Tanks:       make([]*Tank, len(n.Tanks)),
		Valves:      make([]*Valve, len(n.Valves)),
		Pipes:       make([]*Pipe, len(n.Pipes)),
		Rules:       make([]*TransferRule, len(n.Rules)),
		Rate:        n.Rate,
		PumpStep:    n.PumpStep,
		PumpPipe:    n.PumpPipe,
		pumpAngle:   n.pumpAngle,
		tick:        n.tick,
		tankIndex:   make(map[string]int, len(n.tankIndex)),
		valveIndex:  make(map[string]int, len(n.valveIndex)),
		pipeIndex:   make(map[string]int, len(n.pipeIndex)),
		ruleIndex:   make(map[string]int, len(n.ruleIndex)),
	}
	for i, t := range n.Tanks {
		clone.Tanks[i] = t.Clone()
	}
	for i, v := range n.Valves {
		clone.Valves[i] = v.Clone()
	}
	for i, p := range n.Pipes {
		clone.Pipes[i] = p.Clone()
	}
	for i, r := range n.Rules {
		clone.Rules[i] = r.Clone()
	}
	for k, v := range n.tankIndex {
		clone.tankIndex[k] = v
	}
	for k, v := range n.valveIndex {
		clone.valveIndex[k] = v
	}
	for k, v := range n.pipeIndex {
		clone.pipeIndex[k] = v
	}
	for k, v := range n.ruleIndex {
		clone.ruleIndex[k] = v
	}
	return clone
}
