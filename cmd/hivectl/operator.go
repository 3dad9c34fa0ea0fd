package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"liyu1981.xyz/hive-telemetry-service/pkg/auth"
)

func newOperatorCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage operator accounts for the dashboard",
	}

	var password string
	create := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an operator account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.core(cmd); err != nil {
				return err
			}
			svc := auth.NewService(a.db, a.cfg.JwtSecret, a.cfg.JwtTTL)
			operator, err := svc.CreateOperator(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created operator %s\n", operator.Username)
			return nil
		},
	}
	create.Flags().StringVarP(&password, "password", "p", "", "operator password, at least 8 characters")
	_ = create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}
