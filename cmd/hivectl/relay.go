package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"liyu1981.xyz/hive-telemetry-service/pkg/iot"
	"liyu1981.xyz/hive-telemetry-service/pkg/models"
	"liyu1981.xyz/hive-telemetry-service/pkg/relay"
)

func newRelayCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the node-side relay machine",
	}

	var voltages []float64
	var offline bool
	var disconnect, reconnect float64
	simulate := &cobra.Command{
		Use:     "simulate",
		Short:   "Feed voltage samples through the relay machine and print each transition",
		Example: "hivectl relay simulate --voltages 3.5,3.2,3.1,3.4,3.7\nhivectl relay simulate --offline --disconnect 3.0 --reconnect 3.4 --voltages 2.9,3.5",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(voltages) == 0 {
				return fmt.Errorf("--voltages is required")
			}

			policy := iot.DefaultPolicy()
			if !offline {
				core, err := a.core(cmd)
				if err != nil {
					return err
				}
				if policy, err = core.Policy.Get(cmd.Context()); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("disconnect") {
				policy.DisconnectVoltage = disconnect
			}
			if cmd.Flags().Changed("reconnect") {
				policy.ReconnectVoltage = reconnect
			}
			if err := iot.ValidatePolicy(policy); err != nil {
				return err
			}

			final, transitions := relay.Simulate(policy, voltages)
			printTransitions(cmd, policy, transitions, final)
			return nil
		},
	}
	simulate.Flags().Float64SliceVar(&voltages, "voltages", nil, "comma separated battery voltage samples")
	simulate.Flags().BoolVar(&offline, "offline", false, "use the default policy instead of the stored one")
	simulate.Flags().Float64Var(&disconnect, "disconnect", 0, "override the disconnect voltage")
	simulate.Flags().Float64Var(&reconnect, "reconnect", 0, "override the reconnect voltage")

	cmd.AddCommand(simulate)
	return cmd
}

func printTransitions(cmd *cobra.Command, policy models.ThresholdPolicy, transitions []relay.Transition, final relay.State) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "policy: disconnect below %.2fV, reconnect above %.2fV, enabled=%t\n",
		policy.DisconnectVoltage, policy.ReconnectVoltage, policy.Enabled)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SAMPLE\tVOLTAGE\tFROM\tTO")
	for _, t := range transitions {
		fmt.Fprintf(w, "%d\t%.2f\t%s\t%s\n", t.Sample, t.Voltage, t.From, t.To)
	}
	_ = w.Flush()
	fmt.Fprintf(out, "final: %s\n", final)
}
