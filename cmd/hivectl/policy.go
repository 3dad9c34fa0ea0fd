package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"liyu1981.xyz/hive-telemetry-service/pkg/iot"
	"liyu1981.xyz/hive-telemetry-service/pkg/models"
)

func printPolicy(out io.Writer, p models.ThresholdPolicy) {
	fmt.Fprintf(out, "disconnect_voltage: %.2f\nreconnect_voltage: %.2f\nenabled: %t\nversion: %d\nupdated_at: %s\n",
		p.DisconnectVoltage, p.ReconnectVoltage, p.Enabled, p.Version, p.UpdatedAt.UTC().Format(time.RFC3339))
}

func newPolicyCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect or change the fleet-wide low-voltage-disconnect policy",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Print the current policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := a.core(cmd)
			if err != nil {
				return err
			}
			p, err := core.Policy.Get(cmd.Context())
			if err != nil {
				return err
			}
			printPolicy(cmd.OutOrStdout(), p)
			return nil
		},
	}

	var disconnect, reconnect float64
	var enabled bool
	set := &cobra.Command{
		Use:     "set",
		Short:   "Change any subset of the policy fields",
		Example: "hivectl policy set --disconnect 3.2 --reconnect 3.6\nhivectl policy set --enabled=false",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch iot.PolicyPatch
			if cmd.Flags().Changed("disconnect") {
				patch.DisconnectVoltage = &disconnect
			}
			if cmd.Flags().Changed("reconnect") {
				patch.ReconnectVoltage = &reconnect
			}
			if cmd.Flags().Changed("enabled") {
				patch.Enabled = &enabled
			}
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to change, pass --disconnect, --reconnect or --enabled")
			}

			core, err := a.core(cmd)
			if err != nil {
				return err
			}
			p, err := core.Policy.Update(cmd.Context(), patch)
			if err != nil {
				return err
			}
			printPolicy(cmd.OutOrStdout(), p)
			return nil
		},
	}
	set.Flags().Float64Var(&disconnect, "disconnect", 0, "disconnect voltage")
	set.Flags().Float64Var(&reconnect, "reconnect", 0, "reconnect voltage")
	set.Flags().BoolVar(&enabled, "enabled", true, "enable the low-voltage disconnect")

	cmd.AddCommand(get, set)
	return cmd
}
