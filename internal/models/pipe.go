package models

import (
	"fmt"
	"strings"
)

// Pipe is a display-only flow indicator. It carries no fluid itself; Flowing
// is the OR of the fired flags of the rules it aggregates.
type Pipe struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Waypoints []Position `json:"waypoints,omitempty"`
	Flowing   bool       `json:"flowing"`

	rules []int
}

// NewPipe creates a pipe fed by the rules at the given indices
func NewPipe(id, name string, waypoints []Position, rules []int) *Pipe {
	wp := make([]Position, len(waypoints))
	copy(wp, waypoints)
	rs := make([]int, len(rules))
	copy(rs, rules)
	return &Pipe{ID: id, Name: name, Waypoints: wp, rules: rs}
}

// Rules returns the indices of the transfer rules this pipe reports on
func (p *Pipe) Rules() []int {
	out := make([]int, len(p.rules))
	copy(out, p.rules)
	return out
}

// Derive recomputes Flowing from this tick's fired flags
func (p *Pipe) Derive(fired []bool) bool {
	p.Flowing = false
	for _, r := range p.rules {
		if r >= 0 && r < len(fired) && fired[r] {
			p.Flowing = true
			break
		}
	}
	return p.Flowing
}

// String returns a string representation of the pipe
func (p *Pipe) String() string {
	parts := make([]string, len(p.rules))
	for i, r := range p.rules {
		parts[i] = fmt.Sprintf("%d", r)
	}
	return fmt.Sprintf("Pipe{ID: %s, Name: %s, Rules: [%s], Flowing: %t}", p.ID, p.Name, strings.Join(parts, ","), p.Flowing)
}

// Clone creates a copy of the pipe
func (p *Pipe) Clone() *Pipe {
	c := NewPipe(p.ID, p.Name, p.Waypoints, p.rules)
	c.Flowing = p.Flowing
	return c
}
