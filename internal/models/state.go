package models

import "fmt"

// State is a read-only snapshot of a network, taken between ticks
type State struct {
	NetworkID string       `json:"networkId"`
	Tick      uint64       `json:"tick"`
	PumpAngle float64      `json:"pumpAngle"`
	Tanks     []TankState  `json:"tanks"`
	Valves    []ValveState `json:"valves"`
	Pipes     []PipeState  `json:"pipes"`
}

// TankState is the read model of a tank
type TankState struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Capacity float64 `json:"capacity"`
	Level    float64 `json:"level"`
}

// ValveState is the read model of a valve
type ValveState struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Open bool   `json:"open"`
}

// PipeState is the read model of a pipe
type PipeState struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Flowing   bool       `json:"flowing"`
	Waypoints []Position `json:"waypoints,omitempty"`
}

// Snapshot captures the current state of the network
func (n *Network) Snapshot() State {
	s := State{
		NetworkID: n.ID,
		Tick:      n.tick,
		PumpAngle: n.pumpAngle,
		Tanks:     make([]TankState, len(n.Tanks)),
		Valves:    make([]ValveState, len(n.Valves)),
		Pipes:     make([]PipeState, len(n.Pipes)),
	}
	for i, t := range n.Tanks {
		s.Tanks[i] = TankState{ID: t.ID, Name: t.Name, Amount: t.Amount(), Capacity: t.Capacity, Level: t.Level()}
	}
	for i, v := range n.Valves {
		s.Valves[i] = ValveState{ID: v.ID, Name: v.Name, Open: v.Open}
	}
	for i, p := range n.Pipes {
		wp := make([]Position, len(p.Waypoints))
		copy(wp, p.Waypoints)
		s.Pipes[i] = PipeState{ID: p.ID, Name: p.Name, Flowing: p.Flowing, Waypoints: wp}
	}
	return s
}

// Tank looks up a tank by ID
func (s State) Tank(id string) (TankState, bool) {
	for _, t := range s.Tanks {
		if t.ID == id {
			return t, true
		}
	}
	return TankState{}, false
}

// Pipe looks up a pipe by ID
func (s State) Pipe(id string) (PipeState, bool) {
	for _, p := range s.Pipes {
		if p.ID == id {
			return p, true
		}
	}
	return PipeState{}, false
}

// Valve looks up a valve by ID
func (s State) Valve(id string) (ValveState, bool) {
	for _, v := range s.Valves {
		if v.ID == id {
			return v, true
		}
	}
	return ValveState{}, false
}

// FlowingPipes returns the IDs of every pipe currently flowing
func (s State) FlowingPipes() []string {
	var out []string
	for _, p := range s.Pipes {
		if p.Flowing {
			out = append(out, p.ID)
		}
	}
	return out
}

// StatusLines renders one operator status line per tank, e.g. "Main Tank: 200.0L (67%)"
func (s State) StatusLines() []string {
	lines := make([]string, len(s.Tanks))
	for i, t := range s.Tanks {
		lines[i] = fmt.Sprintf("%s: %.1fL (%.0f%%)", t.Name, t.Amount, t.Level*100)
	}
	return lines
}
