package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terrylica/ralph-universal/internal/hook"
)

func newHookCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Agent runtime hooks (JSON on stdin, decision on stdout)",
	}
	cmd.AddCommand(
		newHookEventCmd(a, "pretool", hook.EventPreToolUse, "Vet a proposed tool call"),
		newHookEventCmd(a, "stop", hook.EventStop, "Close an iteration and decide whether to keep going"),
	)
	return cmd
}

// Hooks always exit 0; the JSON on stdout carries the verdict.
func newHookEventCmd(a *app, use, event, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.open("warn")
			if err != nil {
				fmt.Fprintf(a.stderr, "ru hook %s: %v\n", use, err)
				fmt.Fprintln(cmd.OutOrStdout(), "{}")
				return nil
			}
			defer env.Close()

			h := hook.NewHandler(env.paths, env.store, env.machine,
				hook.WithLogger(env.log.Logger),
				hook.WithJournal(env.journal),
			)
			if err := h.Serve(event, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				env.log.Error().Err(err).Str("event", event).Msg("hook failed")
			}
			return nil
		},
	}
}
