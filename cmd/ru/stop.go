package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStopCmd(a *app) *cobra.Command {
	var now bool
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the loop after the current iteration",
		Long: `Stop moves a running loop to draining; the next Stop hook finishes it.
With --now the kill switch is set and the loop halts immediately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.open("warn")
			if err != nil {
				return err
			}
			defer env.Close()

			if now {
				if err := env.machine.Kill(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "loop stopped")
				return nil
			}
			if err := env.machine.RequestStop("operator stop"); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "loop draining; it stops when the current iteration ends")
			return nil
		},
	}
	cmd.Flags().BoolVar(&now, "now", false, "halt immediately via the kill switch")
	return cmd
}
