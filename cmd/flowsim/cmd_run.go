package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation clock and print the tank status panel",
		Long: `Run the simulation clock in real time, printing the operator status
panel at a fixed interval until the duration elapses or the process is
interrupted.

Examples:
  flowsim run --open V-A1 --duration 10s
  flowsim run --script ops.lua --duration 1m --report 5s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			duration, _ := cmd.Flags().GetDuration("duration")
			report, _ := cmd.Flags().GetDuration("report")
			open, _ := cmd.Flags().GetStringSlice("open")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ctx, a, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			if err := a.openValves(open); err != nil {
				return err
			}

			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			a.sim.Start()
			if report > 0 {
				ticker := time.NewTicker(report)
				defer ticker.Stop()
			loop:
				for {
					select {
					case <-ctx.Done():
						break loop
					case <-ticker.C:
						printStatus(cmd, a.sim.State())
					}
				}
			} else {
				<-ctx.Done()
			}
			a.sim.Stop()

			fmt.Fprintln(cmd.OutOrStdout(), "final:")
			printStatus(cmd, a.sim.State())
			return nil
		},
	}

	cmd.Flags().Duration("duration", 5*time.Second, "How long to run; 0 runs until interrupted")
	cmd.Flags().Duration("report", time.Second, "Status panel interval; 0 prints only the final state")
	cmd.Flags().StringSlice("open", nil, "Valves to open before starting")

	return cmd
}
