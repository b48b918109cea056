package simulation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"go-scada-flow/internal/expression"
	"go-scada-flow/internal/models"
)

func newSimulator(t *testing.T, opts ...Option) *Simulator {
	t.Helper()
	net, err := models.NewDefaultNetwork()
	require.NoError(t, err)
	sim, err := New(net, opts...)
	require.NoError(t, err)
	t.Cleanup(sim.Close)
	return sim
}

func TestNewRequiresNetwork(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestStepEndToEnd(t *testing.T) {
	sim := newSimulator(t)
	require.NoError(t, sim.SetValve("V-A1", true))

	result := sim.Step(context.Background())
	assert.Equal(t, uint64(1), result.Tick)

	state := sim.State()
	main, _ := state.Tank("main")
	a, _ := state.Tank("a")
	assert.InDelta(t, 199.4, main.Amount, 1e-9)
	assert.InDelta(t, 0.6, a.Amount, 1e-9)
	assert.ElementsMatch(t, []string{"trunk", "feed-a"}, state.FlowingPipes())
	assert.Equal(t, 0.0, state.PumpAngle)
	assert.Equal(t, result, sim.LastResult())
}

func TestSetValveUnknown(t *testing.T) {
	sim := newSimulator(t)
	err := sim.SetValve("V-Z9", true)
	assert.True(t, errors.Is(err, models.ErrUnknownValve))
}

func TestFillAndDrainTank(t *testing.T) {
	sim := newSimulator(t)

	require.NoError(t, sim.FillTank("a"))
	a, _ := sim.State().Tank("a")
	assert.Equal(t, 100.0, a.Amount)

	require.NoError(t, sim.DrainTank("main"))
	main, _ := sim.State().Tank("main")
	assert.Equal(t, models.Epsilon, main.Amount)

	assert.True(t, errors.Is(sim.FillTank("nope"), models.ErrUnknownTank))
	assert.True(t, errors.Is(sim.DrainTank("nope"), models.ErrUnknownTank))
}

func TestCommandSourcesAppliedAtTickStart(t *testing.T) {
	var seen []uint64
	src := CommandSourceFunc(func(_ context.Context, state models.State) (map[string]bool, error) {
		seen = append(seen, state.Tick)
		return map[string]bool{"V-B1": state.Tick == 0}, nil
	})
	sim := newSimulator(t, WithCommandSource(src))

	sim.Run(context.Background(), 2)

	assert.Equal(t, []uint64{0, 1}, seen)
	b, _ := sim.State().Tank("b")
	assert.InDelta(t, 0.6, b.Amount, 1e-9)
	v, _ := sim.State().Valve("V-B1")
	assert.False(t, v.Open)
}

func TestFailingSourceKeepsValves(t *testing.T) {
	calls := 0
	src := CommandSourceFunc(func(context.Context, models.State) (map[string]bool, error) {
		calls++
		if calls == 1 {
			return map[string]bool{"V-C1": true}, nil
		}
		return nil, errors.New("sensor offline")
	})
	sim := newSimulator(t, WithCommandSource(src))

	sim.Run(context.Background(), 3)

	v, _ := sim.State().Valve("V-C1")
	assert.True(t, v.Open)
	c, _ := sim.State().Tank("c")
	assert.InDelta(t, 1.8, c.Amount, 1e-9)
}

func TestUnknownValveCommandIgnored(t *testing.T) {
	src := CommandSourceFunc(func(context.Context, models.State) (map[string]bool, error) {
		return map[string]bool{"V-A1": true, "V-X": true}, nil
	})
	sim := newSimulator(t, WithCommandSource(src))

	sim.Step(context.Background())

	a, _ := sim.State().Tank("a")
	assert.InDelta(t, 0.6, a.Amount, 1e-9)
}

func TestLuaScriptSource(t *testing.T) {
	script, err := expression.NewScript("cycle", `
if tanks.a.empty then
  open("V-A1")
  close("V-A2")
else
  close("V-A1")
  open("V-A2")
end
`, nil, nil)
	require.NoError(t, err)
	sim := newSimulator(t, WithCommandSource(script))

	sim.Step(context.Background())
	a, _ := sim.State().Tank("a")
	assert.InDelta(t, 0.6, a.Amount, 1e-9)

	result := sim.Step(context.Background())
	assert.True(t, result.PumpAdvanced)
	a, _ = sim.State().Tank("a")
	assert.InDelta(t, 0.0, a.Amount, 1e-9)
	assert.Equal(t, 10.0, sim.State().PumpAngle)
}

func TestRunawayScriptDoesNotWedgeTick(t *testing.T) {
	script, err := expression.NewScript("spin", "while true do end", nil, nil)
	require.NoError(t, err)
	sim := newSimulator(t, WithCommandSource(script), WithSourceTimeout(50*time.Millisecond))
	require.NoError(t, sim.SetValve("V-A1", true))

	done := make(chan struct{})
	go func() {
		sim.Step(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tick still running after the source deadline")
	}

	state := sim.State()
	assert.Equal(t, uint64(1), state.Tick)
	a, _ := state.Tank("a")
	assert.InDelta(t, 0.6, a.Amount, 1e-9)
}

func TestSourceTimeoutDefaultsToPeriod(t *testing.T) {
	sim := newSimulator(t, WithPeriod(40*time.Millisecond))
	assert.Equal(t, 40*time.Millisecond, sim.SourceTimeout())

	sim = newSimulator(t, WithPeriod(40*time.Millisecond), WithSourceTimeout(time.Second))
	assert.Equal(t, time.Second, sim.SourceTimeout())
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	sim := newSimulator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, sim.Run(ctx, 5))
}

func TestRunNegativeCount(t *testing.T) {
	sim := newSimulator(t)
	assert.Empty(t, sim.Run(context.Background(), -3))
	assert.Zero(t, sim.State().Tick)
}

func TestClockDrivesTicks(t *testing.T) {
	sim := newSimulator(t, WithPeriod(2*time.Millisecond))
	require.NoError(t, sim.SetValve("V-A1", true))

	assert.True(t, sim.Start())
	assert.False(t, sim.Start())
	assert.True(t, sim.Running())

	require.Eventually(t, func() bool {
		return sim.State().Tick >= 5
	}, 2*time.Second, 2*time.Millisecond)

	assert.True(t, sim.Stop())
	assert.False(t, sim.Stop())
	assert.False(t, sim.Running())

	stopped := sim.State()
	time.Sleep(20 * time.Millisecond)
	after := sim.State()
	assert.Equal(t, stopped.Tick, after.Tick)

	a, _ := after.Tank("a")
	assert.InDelta(t, 0.6*float64(after.Tick), a.Amount, 1e-6)
}

func TestToggle(t *testing.T) {
	sim := newSimulator(t, WithPeriod(time.Hour))

	assert.True(t, sim.Toggle())
	assert.True(t, sim.Running())
	assert.False(t, sim.Toggle())
	assert.False(t, sim.Running())
	assert.Equal(t, time.Hour, sim.Period())
}

func TestReadsNeverSeeHalfTick(t *testing.T) {
	src := CommandSourceFunc(func(context.Context, models.State) (map[string]bool, error) {
		return map[string]bool{"V-A1": true, "V-B1": true, "V-C1": true}, nil
	})
	sim := newSimulator(t, WithPeriod(time.Millisecond), WithCommandSource(src))
	sim.Start()

	var bad atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				state := sim.State()
				total := 0.0
				for _, tank := range state.Tanks {
					total += tank.Amount
				}
				if total < 200-1e-6 || total > 200+1e-6 {
					bad.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	sim.Stop()
	assert.Zero(t, bad.Load())
}

func TestStepEmitsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	sim := newSimulator(t, WithTracer(provider.Tracer("test")))
	require.NoError(t, sim.SetValve("V-A1", true))

	sim.Step(context.Background())

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "simulation.tick", spans[0].Name())

	attrs := make(map[string]interface{})
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "scada", attrs["flowsim.network"])
	assert.Equal(t, int64(1), attrs["flowsim.tick"])
	assert.Equal(t, int64(1), attrs["flowsim.rules_fired"])
}

func TestDiagnostics(t *testing.T) {
	sim := newSimulator(t)
	require.NoError(t, sim.SetValve("V-A2", true))

	_, rules := sim.Inspect()
	for _, d := range rules {
		switch d.ID {
		case "return-a":
			assert.Equal(t, "source_empty", string(d.Reason))
		default:
			assert.Equal(t, "valve_closed", string(d.Reason), d.ID)
		}
	}
	assert.Equal(t, "scada", sim.NetworkID())
}

func TestInspectMatchesState(t *testing.T) {
	sim := newSimulator(t)
	require.NoError(t, sim.SetValve("V-A1", true))
	sim.Step(context.Background())

	state, rules := sim.Inspect()
	assert.Equal(t, sim.State(), state)
	assert.Len(t, rules, 6)
	for _, d := range rules {
		assert.Equal(t, d.ID == "fill-a", d.CanFire, d.ID)
	}
}
