package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"go-scada-flow/internal/config"
	"go-scada-flow/internal/engine"
	"go-scada-flow/internal/expression"
	"go-scada-flow/internal/logging"
	"go-scada-flow/internal/models"
	"go-scada-flow/internal/observability"
	"go-scada-flow/internal/simulation"
)

// app is everything a command needs to drive one simulation run
type app struct {
	cfg       *config.Config
	logger    logging.Logger
	sim       *simulation.Simulator
	collector *observability.FlowCollector
	shutdown  func(context.Context) error
}

// loadConfig resolves the config file, environment and command line flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("network"); v != "" {
		cfg.Network = v
	}
	if v, _ := cmd.Flags().GetString("script"); v != "" {
		cfg.Script = v
	}
	return cfg, nil
}

// loadNetwork builds the configured network, or the built-in plant
func loadNetwork(cfg *config.Config) (*models.Network, error) {
	parser, err := models.NewNetworkParser()
	if err != nil {
		return nil, err
	}
	var net *models.Network
	if cfg.Network == "" {
		net, err = parser.ParseDefinition(models.DefaultDefinition())
	} else {
		net, err = parser.ParseFile(cfg.Network)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Rate > 0 {
		net.Rate = cfg.Rate
	}
	return net, nil
}

// newApp wires config, logging, tracing, metrics, the network and any script
// into a stopped simulator.
func newApp(ctx context.Context, cmd *cobra.Command) (context.Context, *app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return ctx, nil, err
	}

	base := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	ctx, logger := logging.WithRunLogger(ctx, base)

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Output:      cmd.ErrOrStderr(),
		SampleRatio: cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return ctx, nil, err
	}

	net, err := loadNetwork(cfg)
	if err != nil {
		observability.ShutdownWithTimeout(ctx, shutdown, logger)
		return ctx, nil, err
	}

	a := &app{cfg: cfg, logger: logger, shutdown: shutdown}

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	if cfg.Metrics.Enabled {
		a.collector, err = observability.NewFlowCollector(prometheus.NewRegistry())
		if err != nil {
			observability.ShutdownWithTimeout(ctx, shutdown, logger)
			return ctx, nil, err
		}
		a.collector.ObserveNetwork(net)
		engineOpts = append(engineOpts, engine.WithRecorder(a.collector))
	}

	simOpts := []simulation.Option{
		simulation.WithLogger(logger),
		simulation.WithEngine(engine.NewEngine(engineOpts...)),
		simulation.WithPeriod(cfg.Tick),
		simulation.WithSourceTimeout(cfg.ScriptTimeout),
		simulation.WithContext(ctx),
	}
	if cfg.Script != "" {
		script, err := expression.LoadScript(cfg.Script, nil, logger,
			expression.WithTimeout(cfg.ScriptTimeout),
			expression.WithCondition(cfg.ScriptWhen))
		if err != nil {
			observability.ShutdownWithTimeout(ctx, shutdown, logger)
			return ctx, nil, err
		}
		simOpts = append(simOpts, simulation.WithCommandSource(script))
	}

	a.sim, err = simulation.New(net, simOpts...)
	if err != nil {
		observability.ShutdownWithTimeout(ctx, shutdown, logger)
		return ctx, nil, err
	}

	logger.Info(ctx, "simulation ready",
		logging.String("network", net.ID),
		logging.Int("tanks", len(net.Tanks)),
		logging.Int("rules", len(net.Rules)),
		logging.Float("rate", net.Rate),
		logging.String("tick", cfg.Tick.String()),
		logging.Bool("script", cfg.Script != ""),
	)
	return ctx, a, nil
}

// Close stops the simulator and flushes traces
func (a *app) Close(ctx context.Context) {
	a.sim.Close()
	observability.ShutdownWithTimeout(ctx, a.shutdown, a.logger)
}

// openValves applies the --open flag
func (a *app) openValves(ids []string) error {
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if err := a.sim.SetValve(id, true); err != nil {
			return fmt.Errorf("--open: %w", err)
		}
	}
	return nil
}

// printStatus writes the operator status panel
func printStatus(cmd *cobra.Command, state models.State) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "tick %d  pump %.0f°\n", state.Tick, state.PumpAngle)
	for _, line := range state.StatusLines() {
		fmt.Fprintf(out, "  %s\n", line)
	}
	if flowing := state.FlowingPipes(); len(flowing) > 0 {
		fmt.Fprintf(out, "  flowing: %s\n", strings.Join(flowing, ", "))
	}
}
