package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"go-scada-flow/internal/api"
	"go-scada-flow/internal/logging"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation and expose its state over a read-only HTTP API",
		Long: `Run the simulation clock and serve plant state, rule diagnostics and
Prometheus metrics over HTTP. The API is read-only: valve positions come from
--open and the operator script, never from the network.

Examples:
  flowsim serve --addr :8080 --open V-A1
  flowsim serve --script ops.lua`,
		RunE: func(cmd *cobra.Command, args []string) error {
			open, _ := cmd.Flags().GetStringSlice("open")
			paused, _ := cmd.Flags().GetBool("paused")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ctx, a, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			addr := a.cfg.HTTP.Addr
			if v, _ := cmd.Flags().GetString("addr"); v != "" {
				addr = v
			}

			if err := a.openValves(open); err != nil {
				return err
			}

			opts := []api.Option{api.WithLogger(a.logger)}
			if a.collector != nil {
				opts = append(opts, api.WithMetrics(a.collector.Handler()))
			}
			server := api.NewServer(a.sim, opts...)

			if !paused {
				a.sim.Start()
			}
			a.logger.Info(ctx, "serving", logging.String("addr", addr), logging.Bool("running", a.sim.Running()))

			return server.StartServer(ctx, addr)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (overrides http.addr from config)")
	cmd.Flags().StringSlice("open", nil, "Valves to open before starting")
	cmd.Flags().Bool("paused", false, "Serve without starting the clock")

	return cmd
}
