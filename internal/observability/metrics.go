package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-scada-flow/internal/engine"
	"go-scada-flow/internal/models"
)

// FlowCollector bundles Prometheus metrics for the flow simulation. It
// implements engine.Recorder so the engine drives it directly after each tick.
type FlowCollector struct {
	gatherer prometheus.Gatherer

	Ticks        prometheus.Counter
	RuleFired    *prometheus.CounterVec
	Discarded    prometheus.Counter
	TankAmount   *prometheus.GaugeVec
	TankLevel    *prometheus.GaugeVec
	PipeFlowing  *prometheus.GaugeVec
	PumpAngle    prometheus.Gauge
	TickDuration prometheus.Histogram
}

var _ engine.Recorder = (*FlowCollector)(nil)

// NewFlowCollector registers flow metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewFlowCollector(reg prometheus.Registerer) (*FlowCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flowsim_ticks_total",
		Help: "Total number of simulation ticks evaluated.",
	}), "flowsim_ticks_total")
	if err != nil {
		return nil, err
	}

	fired, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowsim_rule_fired_total",
		Help: "Number of ticks on which each transfer rule fired.",
	}, []string{"rule"}), "flowsim_rule_fired_total")
	if err != nil {
		return nil, err
	}

	discarded, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flowsim_fluid_discarded_total",
		Help: "Fluid removed from a source that the destination could not hold.",
	}), "flowsim_fluid_discarded_total")
	if err != nil {
		return nil, err
	}

	amount, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flowsim_tank_amount",
		Help: "Current fluid amount per tank.",
	}, []string{"tank"}), "flowsim_tank_amount")
	if err != nil {
		return nil, err
	}

	level, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flowsim_tank_level",
		Help: "Current fill ratio per tank, 0 to 1.",
	}, []string{"tank"}), "flowsim_tank_level")
	if err != nil {
		return nil, err
	}

	flowing, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flowsim_pipe_flowing",
		Help: "1 when the pipe reported flow on the last tick, 0 otherwise.",
	}, []string{"pipe"}), "flowsim_pipe_flowing")
	if err != nil {
		return nil, err
	}

	pump, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flowsim_pump_angle_degrees",
		Help: "Pump phase angle in degrees.",
	}), "flowsim_pump_angle_degrees")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flowsim_tick_duration_seconds",
		Help:    "Time spent evaluating one tick.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
	}), "flowsim_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &FlowCollector{
		gatherer:     gatherer,
		Ticks:        ticks,
		RuleFired:    fired,
		Discarded:    discarded,
		TankAmount:   amount,
		TankLevel:    level,
		PipeFlowing:  flowing,
		PumpAngle:    pump,
		TickDuration: duration,
	}, nil
}

// RecordTick updates every metric from the network after a tick.
func (c *FlowCollector) RecordTick(net *models.Network, result engine.TickResult, elapsed time.Duration) {
	if c == nil || net == nil {
		return
	}
	c.Ticks.Inc()
	c.TickDuration.Observe(elapsed.Seconds())
	for i, fired := range result.Fired {
		if fired && i < len(net.Rules) {
			c.RuleFired.WithLabelValues(net.Rules[i].ID).Inc()
		}
	}
	if result.Discarded > 0 {
		c.Discarded.Add(result.Discarded)
	}
	c.ObserveNetwork(net)
}

// ObserveNetwork sets the tank, pipe and pump gauges from the current state.
func (c *FlowCollector) ObserveNetwork(net *models.Network) {
	if c == nil || net == nil {
		return
	}
	for _, t := range net.Tanks {
		c.TankAmount.WithLabelValues(t.ID).Set(t.Amount())
		c.TankLevel.WithLabelValues(t.ID).Set(t.Level())
	}
	for _, p := range net.Pipes {
		v := 0.0
		if p.Flowing {
			v = 1
		}
		c.PipeFlowing.WithLabelValues(p.ID).Set(v)
	}
	c.PumpAngle.Set(net.PumpAngle())
}

// Handler exposes a ready-to-use /metrics handler.
func (c *FlowCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return c, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}
