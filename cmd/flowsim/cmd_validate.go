package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"go-scada-flow/internal/engine"
	"go-scada-flow/internal/models"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [definition]",
		Short: "Validate a network definition",
		Long: `Validate a network definition against the schema and its structure.

This command checks for:
  - Schema violations (missing fields, unknown properties, bad directions)
  - Tanks with a non-positive capacity or an initial amount outside [0, capacity]
  - Rules and pipes referring to unknown tanks, valves or rules
  - Duplicate IDs

Examples:
  flowsim validate plant.yaml
  flowsim validate                 # the built-in SCADA plant`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Network = args[0]
			}

			net, err := loadNetwork(cfg)
			if err != nil {
				return err
			}
			diags := engine.NewEngine().Diagnose(net)

			source := cfg.Network
			if source == "" {
				source = "built-in"
			}
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(summary(source, net, diags))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: valid\n", source)
			fmt.Fprintf(out, "  network %s (%s)\n", net.ID, net.Name)
			fmt.Fprintf(out, "  %d tanks, %d valves, %d rules, %d pipes, rate %.2f\n",
				len(net.Tanks), len(net.Valves), len(net.Rules), len(net.Pipes), net.Rate)
			if net.PumpPipe >= 0 {
				fmt.Fprintf(out, "  pump on %s\n", net.Pipes[net.PumpPipe].ID)
			}
			for _, d := range diags {
				state := "would fire"
				if !d.CanFire {
					state = string(d.Reason)
				}
				fmt.Fprintf(out, "  %-10s %s -> %s via %s: %s\n", d.ID, d.Source, d.Target, d.Valve, state)
			}
			return nil
		},
	}

	return cmd
}

func summary(source string, net *models.Network, diags []engine.RuleDiagnostic) map[string]interface{} {
	pump := ""
	if net.PumpPipe >= 0 {
		pump = net.Pipes[net.PumpPipe].ID
	}
	return map[string]interface{}{
		"source":   source,
		"valid":    true,
		"network":  net.ID,
		"tanks":    len(net.Tanks),
		"valves":   len(net.Valves),
		"rules":    diags,
		"pipes":    len(net.Pipes),
		"rate":     net.Rate,
		"pumpPipe": pump,
	}
}
