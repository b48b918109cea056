package models

import "fmt"

// Valve is a named gate that enables the transfer rules bound to it
type Valve struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Open bool   `json:"open"`
}

// NewValve creates a closed valve
func NewValve(id, name string) *Valve {
	return &Valve{ID: id, Name: name}
}

// String returns a string representation of the valve
func (v *Valve) String() string {
	state := "closed"
	if v.Open {
		state = "open"
	}
	return fmt.Sprintf("Valve{ID: %s, Name: %s, %s}", v.ID, v.Name, state)
}

// Clone creates a copy of the valve
func (v *Valve) Clone() *Valve {
	return &Valve{ID: v.ID, Name: v.Name, Open: v.Open}
}
