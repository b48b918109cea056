package models

// Position is a 2D waypoint consumed only by renderers.
// JSON: { "x": 300, "y": 210 }
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}
