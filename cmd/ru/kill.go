package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newKillCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "kill",
		Short: "Set the kill switch; the next hook halts the loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.open("warn")
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.markers.CreateKillSwitch(); err != nil {
				return err
			}
			env.journal.Warn("kill switch set by operator")
			fmt.Fprintf(cmd.OutOrStdout(), "kill switch set: %s\n", env.paths.KillSwitch())
			return nil
		},
	}
}
