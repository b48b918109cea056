package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flowsim",
		Short: "Tank, valve and pipe flow simulator",
		Long: `flowsim advances a fluid distribution network in fixed ticks.

Valves gate transfers between tanks; every tick each rule moves up to the
network rate from its source to its target, pipes report which transfers
happened and the return pump turns while fluid flows back to the main tank.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Path to a flowsim YAML config file")
	rootCmd.PersistentFlags().String("network", "", "Network definition (JSON or YAML); default is the built-in SCADA plant")
	rootCmd.PersistentFlags().String("script", "", "Lua operator script run at the start of every tick")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newStepCmd(),
		newValidateCmd(),
		newServeCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "flowsim version %s\n", version)
			}
		},
	}
}
