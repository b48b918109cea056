package models

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pairJSON = `{
  "id": "pair",
  "name": "Pair",
  "rate": 1.5,
  "tanks": [
    {"id": "src", "capacity": 10, "initial": 5},
    {"id": "dst", "name": "Destination", "capacity": 10}
  ],
  "valves": [{"id": "v", "open": true}],
  "rules": [{"id": "move", "source": "src", "target": "dst", "valve": "v", "direction": "FORWARD"}],
  "pipes": [{"id": "line", "rules": ["move"], "waypoints": [{"x": 0, "y": 0}, {"x": 10, "y": 0}]}],
  "pumpPipe": "line"
}`

const pairYAML = `
id: pair
name: Pair
rate: 1.5
tanks:
  - id: src
    capacity: 10
    initial: 5
  - id: dst
    name: Destination
    capacity: 10
valves:
  - id: v
    open: true
rules:
  - id: move
    source: src
    target: dst
    valve: v
    direction: FORWARD
pipes:
  - id: line
    rules: [move]
    waypoints:
      - {x: 0, y: 0}
      - {x: 10, y: 0}
pumpPipe: line
`

func newParser(t *testing.T) *NetworkParser {
	t.Helper()
	p, err := NewNetworkParser()
	require.NoError(t, err)
	return p
}

func assertPair(t *testing.T, net *Network) {
	t.Helper()
	assert.Equal(t, "pair", net.ID)
	assert.Equal(t, 1.5, net.Rate)
	assert.Equal(t, DefaultPumpStep, net.PumpStep)
	require.Len(t, net.Tanks, 2)
	assert.Equal(t, "src", net.Tanks[0].Name)
	assert.Equal(t, "Destination", net.Tanks[1].Name)
	assert.Equal(t, 5.0, net.Tanks[0].Amount())
	assert.True(t, net.GetValve("v").Open)
	assert.Equal(t, 0, net.PumpPipe)
	assert.Len(t, net.GetPipe("line").Waypoints, 2)
}

func TestParseJSON(t *testing.T) {
	net, err := newParser(t).ParseJSON([]byte(pairJSON))
	require.NoError(t, err)
	assertPair(t, net)
}

func TestParseYAML(t *testing.T) {
	net, err := newParser(t).ParseYAML([]byte(pairYAML))
	require.NoError(t, err)
	assertPair(t, net)
}

func TestParseFileByExtension(t *testing.T) {
	p := newParser(t)
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "pair.json")
	yamlPath := filepath.Join(dir, "pair.yml")
	require.NoError(t, os.WriteFile(jsonPath, []byte(pairJSON), 0o644))
	require.NoError(t, os.WriteFile(yamlPath, []byte(pairYAML), 0o644))

	net, err := p.ParseFile(jsonPath)
	require.NoError(t, err)
	assertPair(t, net)

	net, err = p.ParseFile(yamlPath)
	require.NoError(t, err)
	assertPair(t, net)

	_, err = p.ParseFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestSchemaViolations(t *testing.T) {
	p := newParser(t)
	cases := map[string]string{
		"not json":          `{`,
		"missing tanks":     `{"id": "n", "valves": [], "rules": []}`,
		"zero capacity":     `{"id": "n", "tanks": [{"id": "t", "capacity": 0}], "valves": [], "rules": []}`,
		"negative initial":  `{"id": "n", "tanks": [{"id": "t", "capacity": 1, "initial": -1}], "valves": [], "rules": []}`,
		"bad direction":     `{"id": "n", "tanks": [{"id": "t", "capacity": 1}], "valves": [{"id": "v"}], "rules": [{"id": "r", "source": "t", "target": "t", "valve": "v", "direction": "UP"}]}`,
		"unknown property":  `{"id": "n", "tanks": [{"id": "t", "capacity": 1, "colour": "red"}], "valves": [], "rules": []}`,
		"non-positive rate": `{"id": "n", "rate": 0, "tanks": [{"id": "t", "capacity": 1}], "valves": [], "rules": []}`,
	}
	for name, doc := range cases {
		_, err := p.ParseJSON([]byte(doc))
		assert.True(t, errors.Is(err, ErrInvalidDefinition), "%s: %v", name, err)
	}

	_, err := p.ParseYAML([]byte("id: [unterminated"))
	assert.True(t, errors.Is(err, ErrInvalidDefinition))
}

func TestStructuralErrors(t *testing.T) {
	p := newParser(t)

	_, err := p.ParseJSON([]byte(`{"id": "n", "tanks": [{"id": "t", "capacity": 10, "initial": 11}], "valves": [], "rules": []}`))
	assert.True(t, errors.Is(err, ErrInvalidAmount))

	_, err = p.ParseJSON([]byte(`{"id": "n", "tanks": [{"id": "t", "capacity": 10}], "valves": [], "rules": [{"id": "r", "source": "t", "target": "x", "valve": "v", "direction": "FORWARD"}]}`))
	assert.True(t, errors.Is(err, ErrUnknownTank))

	_, err = p.ParseJSON([]byte(`{"id": "n", "tanks": [{"id": "t", "capacity": 10}, {"id": "t", "capacity": 5}], "valves": [], "rules": []}`))
	assert.True(t, errors.Is(err, ErrDuplicateID))

	_, err = p.ParseJSON([]byte(`{"id": "n", "tanks": [{"id": "t", "capacity": 10}], "valves": [], "rules": [], "pumpPipe": "nope"}`))
	assert.True(t, errors.Is(err, ErrUnknownPipe))
}

func TestNetworkToJSONRoundTrip(t *testing.T) {
	p := newParser(t)
	net, err := NewDefaultNetwork()
	require.NoError(t, err)
	net.GetTank("a").Add(12)

	data, err := p.NetworkToJSON(net)
	require.NoError(t, err)

	again, err := p.ParseJSON(data)
	require.NoError(t, err)
	assert.Equal(t, net.Snapshot(), again.Snapshot())
	assert.Equal(t, net.PumpPipe, again.PumpPipe)
}

func TestDefaultNetwork(t *testing.T) {
	net, err := NewDefaultNetwork()
	require.NoError(t, err)

	assert.Equal(t, DefaultRate, net.Rate)
	assert.Equal(t, 200.0, net.GetTank("main").Amount())
	assert.Equal(t, 300.0, net.GetTank("main").Capacity)
	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, 0.0, net.GetTank(id).Amount())
		assert.Equal(t, 100.0, net.GetTank(id).Capacity)
	}
	assert.Len(t, net.Valves, 6)
	assert.Len(t, net.Rules, 6)
	assert.Len(t, net.Pipes, 9)
	for _, v := range net.Valves {
		assert.False(t, v.Open, v.ID)
	}
	assert.Equal(t, "return-trunk", net.Pipes[net.PumpPipe].ID)
	assert.Len(t, net.GetPipe("return-trunk").Rules(), 3)
	assert.Len(t, net.GetPipe("trunk").Rules(), 3)
	assert.Len(t, net.GetPipe("return-collector").Rules(), 2)
}

func TestStatusLines(t *testing.T) {
	net, err := NewDefaultNetwork()
	require.NoError(t, err)

	lines := net.Snapshot().StatusLines()
	assert.Equal(t, []string{
		"Main Tank: 200.0L (67%)",
		"Tank A: 0.0L (0%)",
		"Tank B: 0.0L (0%)",
		"Tank C: 0.0L (0%)",
	}, lines)
}

func TestStateLookups(t *testing.T) {
	net, err := NewDefaultNetwork()
	require.NoError(t, err)
	net.GetPipe("trunk").Flowing = true
	state := net.Snapshot()

	tank, ok := state.Tank("main")
	require.True(t, ok)
	assert.InDelta(t, 2.0/3.0, tank.Level, 1e-9)

	_, ok = state.Tank("missing")
	assert.False(t, ok)

	v, ok := state.Valve("V-C2")
	require.True(t, ok)
	assert.False(t, v.Open)

	p, ok := state.Pipe("trunk")
	require.True(t, ok)
	assert.True(t, p.Flowing)
	assert.Equal(t, []string{"trunk"}, state.FlowingPipes())

	// snapshots do not alias network state
	state.Pipes[0].Waypoints[0].X = -1
	assert.NotEqual(t, -1.0, net.Pipes[0].Waypoints[0].X)
}
