package main

import (
	"github.com/spf13/cobra"

	"github.com/terrylica/ralph-universal/internal/report"
)

func newStatusCmd(a *app) *cobra.Command {
	var (
		asJSON bool
		asYAML bool
		lines  int
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the loop state, limits, guidance and recent journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.open("error")
			if err != nil {
				return err
			}
			defer env.Close()

			snap := report.Collect(report.Sources{
				Paths:        env.paths,
				Store:        env.store,
				Machine:      env.machine,
				Markers:      env.markers,
				Journal:      env.journal,
				JournalLines: lines,
			})
			format := report.FormatText
			switch {
			case asJSON:
				format = report.FormatJSON
			case asYAML:
				format = report.FormatYAML
			}
			return report.Write(cmd.OutOrStdout(), snap, format)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print as YAML")
	cmd.Flags().IntVarP(&lines, "lines", "n", 8, "journal lines to show")
	cmd.MarkFlagsMutuallyExclusive("json", "yaml")
	return cmd
}
