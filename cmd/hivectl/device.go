package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"liyu1981.xyz/hive-telemetry-service/pkg/iot"
)

func newDeviceCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Manage registered hive nodes",
	}

	create := &cobra.Command{
		Use:     "create <name>",
		Short:   "Register a device and print its credential once",
		Example: "hivectl device create \"north yard\"",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := a.core(cmd)
			if err != nil {
				return err
			}
			device, err := core.Registry.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id: %s\nname: %s\ncredential: %s\n", device.ID, device.Name, device.Credential)
			return nil
		},
	}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List devices with their last reading time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := a.core(cmd)
			if err != nil {
				return err
			}
			devices, err := core.Registry.List(cmd.Context(), all)
			if err != nil {
				return err
			}
			now := core.Opts.Now()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tACTIVE\tONLINE\tLAST READING")
			for _, d := range devices {
				latest, err := core.Readings.Latest(cmd.Context(), d.ID)
				if err != nil {
					return err
				}
				last := "-"
				if latest != nil {
					last = latest.RecordedAt.UTC().Format(time.RFC3339)
				}
				online := d.Active && iot.IsOnline(latest, now, core.Opts.OnlineThreshold)
				fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%s\n", d.ID, d.Name, d.Active, online, last)
			}
			return w.Flush()
		},
	}
	list.Flags().BoolVarP(&all, "all", "a", false, "include deactivated devices")

	rename := &cobra.Command{
		Use:   "rename <device-id> <name>",
		Short: "Rename a device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := a.core(cmd)
			if err != nil {
				return err
			}
			device, err := core.Registry.Rename(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "renamed %s to %q\n", device.ID, device.Name)
			return nil
		},
	}

	rotate := &cobra.Command{
		Use:   "rotate-key <device-id>",
		Short: "Issue a new credential; the old one stops working immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := a.core(cmd)
			if err != nil {
				return err
			}
			credential, err := core.Registry.RegenerateCredential(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "credential: %s\n", credential)
			return nil
		},
	}

	deactivate := &cobra.Command{
		Use:   "deactivate <device-id>",
		Short: "Stop accepting readings from a device, keeping its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := a.core(cmd)
			if err != nil {
				return err
			}
			if err := core.Registry.Deactivate(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deactivated %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(create, list, rename, rotate, deactivate)
	return cmd
}
