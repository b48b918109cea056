package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const schemaURL = "mem://schemas/network.json"

// NetworkParser handles parsing of network definitions
type NetworkParser struct {
	schema *jsonschema.Schema
}

// NewNetworkParser creates a parser with the network schema compiled
func NewNetworkParser() (*NetworkParser, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(schemaURL, strings.NewReader(NetworkSchema)); err != nil {
		return nil, fmt.Errorf("failed to add network schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile network schema: %w", err)
	}
	return &NetworkParser{schema: schema}, nil
}

// Validate checks a raw JSON document against the network schema
func (p *NetworkParser) Validate(jsonData []byte) error {
	var doc interface{}
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return fmt.Errorf("%w: failed to unmarshal JSON: %v", ErrInvalidDefinition, err)
	}
	if err := p.schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	return nil
}

// ParseJSON validates and parses a network definition from JSON
func (p *NetworkParser) ParseJSON(jsonData []byte) (*Network, error) {
	if err := p.Validate(jsonData); err != nil {
		return nil, err
	}
	var def NetworkDefinitionJSON
	if err := json.Unmarshal(jsonData, &def); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal JSON: %v", ErrInvalidDefinition, err)
	}
	return p.ParseDefinition(&def)
}

// ParseYAML converts a YAML definition to JSON and parses it, so both formats
// go through the same schema
func (p *NetworkParser) ParseYAML(yamlData []byte) (*Network, error) {
	var doc interface{}
	if err := yaml.Unmarshal(yamlData, &doc); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal YAML: %v", ErrInvalidDefinition, err)
	}
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to convert YAML: %v", ErrInvalidDefinition, err)
	}
	return p.ParseJSON(jsonData)
}

// ParseFile loads a definition from disk, choosing the format by extension
func (p *NetworkParser) ParseFile(path string) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read network definition %q: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return p.ParseYAML(data)
	default:
		return p.ParseJSON(data)
	}
}

// ParseDefinition builds a network from a definition structure
func (p *NetworkParser) ParseDefinition(def *NetworkDefinitionJSON) (*Network, error) {
	rate := def.Rate
	if rate == 0 {
		rate = DefaultRate
	}

	network, err := NewNetwork(def.ID, def.Name, def.Description, rate)
	if err != nil {
		return nil, err
	}
	if def.PumpStep != 0 {
		network.PumpStep = def.PumpStep
	}

	if err := p.parseTanks(network, def.Tanks); err != nil {
		return nil, fmt.Errorf("failed to parse tanks: %w", err)
	}
	if err := p.parseValves(network, def.Valves); err != nil {
		return nil, fmt.Errorf("failed to parse valves: %w", err)
	}
	if err := p.parseRules(network, def.Rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if err := p.parsePipes(network, def.Pipes); err != nil {
		return nil, fmt.Errorf("failed to parse pipes: %w", err)
	}

	if def.PumpPipe != "" {
		if err := network.SetPumpPipe(def.PumpPipe); err != nil {
			return nil, err
		}
	}

	if errs := network.ValidateStructure(); len(errs) > 0 {
		return nil, fmt.Errorf("network validation failed: %w", errs[0])
	}

	return network, nil
}

func (p *NetworkParser) parseTanks(network *Network, defs []TankJSON) error {
	for _, d := range defs {
		name := d.Name
		if name == "" {
			name = d.ID
		}
		tank, err := NewTank(d.ID, name, d.Capacity, d.Initial)
		if err != nil {
			return err
		}
		if _, err := network.AddTank(tank); err != nil {
			return err
		}
	}
	return nil
}

func (p *NetworkParser) parseValves(network *Network, defs []ValveJSON) error {
	for _, d := range defs {
		name := d.Name
		if name == "" {
			name = d.ID
		}
		valve := NewValve(d.ID, name)
		valve.Open = d.Open
		if _, err := network.AddValve(valve); err != nil {
			return err
		}
	}
	return nil
}

func (p *NetworkParser) parseRules(network *Network, defs []RuleJSON) error {
	for _, d := range defs {
		direction, err := ParseDirection(d.Direction)
		if err != nil {
			return fmt.Errorf("rule %s: %w", d.ID, err)
		}
		if _, err := network.AddRule(d.ID, d.Source, d.Target, d.Valve, direction); err != nil {
			return err
		}
	}
	return nil
}

func (p *NetworkParser) parsePipes(network *Network, defs []PipeJSON) error {
	for _, d := range defs {
		name := d.Name
		if name == "" {
			name = d.ID
		}
		if _, err := network.AddPipe(d.ID, name, d.Waypoints, d.Rules); err != nil {
			return err
		}
	}
	return nil
}

// NetworkToJSON converts a network back into its definition format. Current
// tank amounts are written as the initial amounts.
func (p *NetworkParser) NetworkToJSON(network *Network) ([]byte, error) {
	def := &NetworkDefinitionJSON{
		ID:          network.ID,
		Name:        network.Name,
		Description: network.Description,
		Rate:        network.Rate,
		PumpStep:    network.PumpStep,
		Tanks:       make([]TankJSON, len(network.Tanks)),
		Valves:      make([]ValveJSON, len(network.Valves)),
		Rules:       make([]RuleJSON, len(network.Rules)),
		Pipes:       make([]PipeJSON, len(network.Pipes)),
	}

	for i, t := range network.Tanks {
		def.Tanks[i] = TankJSON{ID: t.ID, Name: t.Name, Capacity: t.Capacity, Initial: t.Amount()}
	}
	for i, v := range network.Valves {
		def.Valves[i] = ValveJSON{ID: v.ID, Name: v.Name, Open: v.Open}
	}
	for i, r := range network.Rules {
		def.Rules[i] = RuleJSON{
			ID:        r.ID,
			Source:    network.Tanks[r.Source].ID,
			Target:    network.Tanks[r.Target].ID,
			Valve:     network.Valves[r.Valve].ID,
			Direction: string(r.Direction),
		}
	}
	for i, pipe := range network.Pipes {
		ids := make([]string, 0, len(pipe.rules))
		for _, r := range pipe.rules {
			ids = append(ids, network.Rules[r].ID)
		}
		def.Pipes[i] = PipeJSON{ID: pipe.ID, Name: pipe.Name, Rules: ids, Waypoints: pipe.Waypoints}
	}
	if network.PumpPipe >= 0 {
		def.PumpPipe = network.Pipes[network.PumpPipe].ID
	}

	return json.MarshalIndent(def, "", "  ")
}

// NewDefaultNetwork builds the built-in SCADA plant
func NewDefaultNetwork() (*Network, error) {
	parser, err := NewNetworkParser()
	if err != nil {
		return nil, err
	}
	return parser.ParseDefinition(DefaultDefinition())
}
