package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-scada-flow/internal/engine"
	"go-scada-flow/internal/models"
)

func TestFlowCollectorRecordsTicks(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewFlowCollector(reg)
	require.NoError(t, err)

	net, err := models.NewDefaultNetwork()
	require.NoError(t, err)
	require.NoError(t, net.SetValve("V-A1", true))

	eng := engine.NewEngine(engine.WithRecorder(collector))
	eng.SimulateSteps(context.Background(), net, 3)

	assert.Equal(t, 3.0, testutil.ToFloat64(collector.Ticks))
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.RuleFired.WithLabelValues("fill-a")))
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.Discarded))
	assert.InDelta(t, 198.2, testutil.ToFloat64(collector.TankAmount.WithLabelValues("main")), 1e-9)
	assert.InDelta(t, 0.018, testutil.ToFloat64(collector.TankLevel.WithLabelValues("a")), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.PipeFlowing.WithLabelValues("trunk")))
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.PipeFlowing.WithLabelValues("return-trunk")))
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.PumpAngle))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.TickDuration))
}

func TestFlowCollectorCountsDiscard(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewFlowCollector(reg)
	require.NoError(t, err)

	def := models.DefaultDefinition()
	def.Tanks[0].Initial = 299.9
	def.Tanks[1].Initial = 50
	def.Valves[3].Open = true // V-A2
	parser, err := models.NewNetworkParser()
	require.NoError(t, err)
	net, err := parser.ParseDefinition(def)
	require.NoError(t, err)

	engine.NewEngine(engine.WithRecorder(collector)).Tick(context.Background(), net)

	assert.InDelta(t, 0.5, testutil.ToFloat64(collector.Discarded), 1e-9)
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.PumpAngle))
}

func TestNewFlowCollectorIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewFlowCollector(reg)
	require.NoError(t, err)
	second, err := NewFlowCollector(reg)
	require.NoError(t, err)

	first.Ticks.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(second.Ticks))
}

func TestFlowCollectorHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewFlowCollector(reg)
	require.NoError(t, err)

	net, err := models.NewDefaultNetwork()
	require.NoError(t, err)
	collector.ObserveNetwork(net)

	srv := httptest.NewServer(collector.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `flowsim_tank_amount{tank="main"} 200`))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *FlowCollector
	c.RecordTick(nil, engine.TickResult{}, 0)
	c.ObserveNetwork(nil)
	assert.NotNil(t, c.Handler())
}
