package models

import (
	"fmt"
	"math"
)

// Epsilon is the absolute tolerance used for the empty and full checks.
// Comparing against zero would let floating point residue toggle a rule on and off.
const Epsilon = 0.1

// Tank represents a bounded fluid reservoir in the network
type Tank struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Capacity float64 `json:"capacity"`

	amount float64
}

// NewTank creates a new tank, rejecting a non-positive capacity or an initial
// amount outside [0, capacity]
func NewTank(id, name string, capacity, initial float64) (*Tank, error) {
	if capacity <= 0 || math.IsNaN(capacity) || math.IsInf(capacity, 0) {
		return nil, fmt.Errorf("tank %s: %w (got %v)", id, ErrInvalidCapacity, capacity)
	}
	if initial < 0 || initial > capacity || math.IsNaN(initial) {
		return nil, fmt.Errorf("tank %s: %w (got %v, capacity %v)", id, ErrInvalidAmount, initial, capacity)
	}
	return &Tank{
		ID:       id,
		Name:     name,
		Capacity: capacity,
		amount:   initial,
	}, nil
}

// Amount returns the current quantity of fluid in the tank
func (t *Tank) Amount() float64 {
	return t.amount
}

// Level returns the fill ratio in [0, 1]
func (t *Tank) Level() float64 {
	return t.amount / t.Capacity
}

// Percent returns the fill ratio as a percentage
func (t *Tank) Percent() float64 {
	return t.Level() * 100
}

// Free returns the remaining headroom
func (t *Tank) Free() float64 {
	return t.Capacity - t.amount
}

// Add adds up to amount of fluid and returns what actually fit
func (t *Tank) Add(amount float64) float64 {
	if !(amount > 0) {
		return 0
	}
	added := math.Min(amount, t.Free())
	t.amount += added
	if t.amount > t.Capacity {
		t.amount = t.Capacity
	}
	return added
}

// Remove removes up to amount of fluid and returns what was actually taken
func (t *Tank) Remove(amount float64) float64 {
	if !(amount > 0) {
		return 0
	}
	removed := math.Min(amount, t.amount)
	t.amount -= removed
	if t.amount < 0 {
		t.amount = 0
	}
	return removed
}

// IsEmpty reports whether the tank holds no more than Epsilon
func (t *Tank) IsEmpty() bool {
	return t.amount <= Epsilon
}

// IsFull reports whether the tank is within Epsilon of capacity
func (t *Tank) IsFull() bool {
	return t.amount >= t.Capacity-Epsilon
}

// Fill tops the tank up to capacity
func (t *Tank) Fill() {
	t.amount = t.Capacity
}

// Drain empties the tank down to the Epsilon residue, matching the operator
// "empty tank" action. A drained tank already reads as empty.
func (t *Tank) Drain() {
	t.amount = math.Min(Epsilon, t.Capacity)
}

// String returns a string representation of the tank
func (t *Tank) String() string {
	return fmt.Sprintf("Tank{ID: %s, Name: %s, Amount: %.1f, Capacity: %.1f}", t.ID, t.Name, t.amount, t.Capacity)
}

// Clone creates a copy of the tank
func (t *Tank) Clone() *Tank {
	return &Tank{
		ID:       t.ID,
		Name:     t.Name,
		Capacity: t.Capacity,
		amount:   t.amount,
	}
}
