package models

import "fmt"

// Direction tells the engine which destination policy applies to a rule
type Direction string

const (
	// DirectionForward moves fluid out of the main tank; it will not fire into a full destination.
	DirectionForward Direction = "FORWARD"
	// DirectionReturn moves fluid back into the main tank; destination fullness is not checked.
	DirectionReturn Direction = "RETURN"
)

// ParseDirection converts a definition string into a Direction
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionForward:
		return DirectionForward, nil
	case DirectionReturn:
		return DirectionReturn, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

// TransferRule is a valve-gated move from one tank to another. It addresses
// tanks and valves by index into the owning Network's tables.
type TransferRule struct {
	ID        string    `json:"id"`
	Source    int       `json:"source"`
	Target    int       `json:"target"`
	Valve     int       `json:"valve"`
	Direction Direction `json:"direction"`
}

// NewTransferRule creates a rule
func NewTransferRule(id string, source, target, valve int, direction Direction) *TransferRule {
	return &TransferRule{
		ID:        id,
		Source:    source,
		Target:    target,
		Valve:     valve,
		Direction: direction,
	}
}

// IsForward returns true for main-to-branch rules
func (r *TransferRule) IsForward() bool {
	return r.Direction == DirectionForward
}

// IsReturn returns true for branch-to-main rules
func (r *TransferRule) IsReturn() bool {
	return r.Direction == DirectionReturn
}

// ChecksDestination reports whether the rule refuses to fire into a full tank
func (r *TransferRule) ChecksDestination() bool {
	return !r.IsReturn()
}

// String returns a string representation of the rule
func (r *TransferRule) String() string {
	return fmt.Sprintf("TransferRule{ID: %s, %d -> %d, Valve: %d, Direction: %s}", r.ID, r.Source, r.Target, r.Valve, r.Direction)
}

// Clone creates a copy of the rule
func (r *TransferRule) Clone() *TransferRule {
	c := *r
	return &c
}
