package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terrylica/ralph-universal/internal/limits"
	"github.com/terrylica/ralph-universal/internal/loopstate"
)

func newStartCmd(a *app) *cobra.Command {
	var (
		trial      bool
		production bool
		target     string
		prompt     string
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a loop in this project",
		Long: `Start moves the loop from stopped to running. The preset comes from
--trial or --production, otherwise from the mode stored in the config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.open("warn")
			if err != nil {
				return err
			}
			defer env.Close()

			opts := loopstate.StartOptions{TargetFile: target, TaskPrompt: prompt}
			switch {
			case trial:
				opts.Preset = limits.Trial
			case production:
				opts.Preset = limits.Production
			}
			rt, err := env.machine.Start(opts)
			if err != nil {
				return err
			}
			bounds := limits.ForConfig(env.store.Load().Config)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "loop running (session %s)\n", rt.SessionID)
			fmt.Fprintf(out, "limits: %s\n", bounds)
			if target != "" {
				fmt.Fprintf(out, "target: %s\n", target)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&trial, "trial", false, "use the short trial limits")
	cmd.Flags().BoolVar(&production, "production", false, "use the production limits")
	cmd.Flags().StringVar(&target, "target", "", "task file whose checklist signals completion")
	cmd.Flags().StringVar(&prompt, "prompt", "", "task description repeated to the agent each iteration")
	cmd.MarkFlagsMutuallyExclusive("trial", "production")
	return cmd
}
