package models

// NetworkDefinitionJSON is the declarative topology of a network, loaded from
// JSON or YAML and validated against NetworkSchema before it is built
type NetworkDefinitionJSON struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Rate        float64     `json:"rate,omitempty" yaml:"rate,omitempty"`
	PumpStep    float64     `json:"pumpStep,omitempty" yaml:"pumpStep,omitempty"`
	PumpPipe    string      `json:"pumpPipe,omitempty" yaml:"pumpPipe,omitempty"`
	Tanks       []TankJSON  `json:"tanks" yaml:"tanks"`
	Valves      []ValveJSON `json:"valves" yaml:"valves"`
	Rules       []RuleJSON  `json:"rules" yaml:"rules"`
	Pipes       []PipeJSON  `json:"pipes,omitempty" yaml:"pipes,omitempty"`
}

// TankJSON represents the JSON structure for tanks
type TankJSON struct {
	ID       string  `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	Capacity float64 `json:"capacity" yaml:"capacity"`
	Initial  float64 `json:"initial" yaml:"initial"`
}

// ValveJSON represents the JSON structure for valves
type ValveJSON struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Open bool   `json:"open,omitempty" yaml:"open,omitempty"`
}

// RuleJSON represents the JSON structure for transfer rules
type RuleJSON struct {
	ID        string `json:"id" yaml:"id"`
	Source    string `json:"source" yaml:"source"`
	Target    string `json:"target" yaml:"target"`
	Valve     string `json:"valve" yaml:"valve"`
	Direction string `json:"direction" yaml:"direction"` // "FORWARD" or "RETURN"
}

// PipeJSON represents the JSON structure for pipes
type PipeJSON struct {
	ID        string     `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Rules     []string   `json:"rules" yaml:"rules"`
	Waypoints []Position `json:"waypoints,omitempty" yaml:"waypoints,omitempty"`
}

// DefaultDefinition returns the four-tank SCADA plant: a main tank feeding
// branch tanks A, B and C through the *1 valves, with *2 valves draining each
// branch back into the main tank through a shared return line and pump.
func DefaultDefinition() *NetworkDefinitionJSON {
	return &NetworkDefinitionJSON{
		ID:          "scada",
		Name:        "SCADA distribution plant",
		Description: "Main tank feeding three branch tanks with a pumped return line",
		Rate:        DefaultRate,
		PumpStep:    DefaultPumpStep,
		PumpPipe:    "return-trunk",
		Tanks: []TankJSON{
			{ID: "main", Name: "Main Tank", Capacity: 300, Initial: 200},
			{ID: "a", Name: "Tank A", Capacity: 100, Initial: 0},
			{ID: "b", Name: "Tank B", Capacity: 100, Initial: 0},
			{ID: "c", Name: "Tank C", Capacity: 100, Initial: 0},
		},
		Valves: []ValveJSON{
			{ID: "V-A1", Name: "Valve V-A1"},
			{ID: "V-B1", Name: "Valve V-B1"},
			{ID: "V-C1", Name: "Valve V-C1"},
			{ID: "V-A2", Name: "Valve V-A2"},
			{ID: "V-B2", Name: "Valve V-B2"},
			{ID: "V-C2", Name: "Valve V-C2"},
		},
		Rules: []RuleJSON{
			{ID: "fill-a", Source: "main", Target: "a", Valve: "V-A1", Direction: string(DirectionForward)},
			{ID: "fill-b", Source: "main", Target: "b", Valve: "V-B1", Direction: string(DirectionForward)},
			{ID: "fill-c", Source: "main", Target: "c", Valve: "V-C1", Direction: string(DirectionForward)},
			{ID: "return-a", Source: "a", Target: "main", Valve: "V-A2", Direction: string(DirectionReturn)},
			{ID: "return-b", Source: "b", Target: "main", Valve: "V-B2", Direction: string(DirectionReturn)},
			{ID: "return-c", Source: "c", Target: "main", Valve: "V-C2", Direction: string(DirectionReturn)},
		},
		Pipes: []PipeJSON{
			{ID: "feed-a", Name: "Feed A", Rules: []string{"fill-a"},
				Waypoints: []Position{{X: 300, Y: 250}, {X: 100, Y: 250}, {X: 100, Y: 350}}},
			{ID: "feed-b", Name: "Feed B", Rules: []string{"fill-b"},
				Waypoints: []Position{{X: 300, Y: 250}, {X: 300, Y: 350}}},
			{ID: "feed-c", Name: "Feed C", Rules: []string{"fill-c"},
				Waypoints: []Position{{X: 300, Y: 250}, {X: 500, Y: 250}, {X: 500, Y: 350}}},
			{ID: "trunk", Name: "Main Trunk", Rules: []string{"fill-a", "fill-b", "fill-c"},
				Waypoints: []Position{{X: 300, Y: 210}, {X: 300, Y: 250}}},
			{ID: "drain-b", Name: "Drain B", Rules: []string{"return-b"},
				Waypoints: []Position{{X: 300, Y: 490}, {X: 300, Y: 600}}},
			{ID: "drain-c", Name: "Drain C", Rules: []string{"return-c"},
				Waypoints: []Position{{X: 500, Y: 490}, {X: 500, Y: 600}}},
			{ID: "drain-a", Name: "Drain A", Rules: []string{"return-a"},
				Waypoints: []Position{{X: 100, Y: 490}, {X: 100, Y: 600}, {X: 300, Y: 600}}},
			{ID: "return-collector", Name: "Return Collector", Rules: []string{"return-a", "return-b"},
				Waypoints: []Position{{X: 300, Y: 600}, {X: 500, Y: 600}}},
			{ID: "return-trunk", Name: "Return Trunk", Rules: []string{"return-a", "return-b", "return-c"},
				Waypoints: []Position{{X: 500, Y: 600}, {X: 670, Y: 600}, {X: 670, Y: 70}, {X: 450, Y: 70}}},
		},
	}
}
