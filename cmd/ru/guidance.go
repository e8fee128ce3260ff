package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/terrylica/ralph-universal/internal/guidance"
)

var guidanceVerbs = map[guidance.Kind]string{
	guidance.Forbidden:  "forbid",
	guidance.Encouraged: "encourage",
}

func newGuidanceCmd(a *app, kind guidance.Kind) *cobra.Command {
	var list, clearList bool
	verb := guidanceVerbs[kind]
	cmd := &cobra.Command{
		Use:   verb + " [item...]",
		Short: fmt.Sprintf("Add to, list or clear the %s work items", kind),
		Long: fmt.Sprintf(`%s appends one item to the %s list; words are joined with spaces.
--clear empties the list first. --list (or no item) prints the list.`, verb, kind),
		RunE: func(cmd *cobra.Command, args []string) error {
			item := strings.TrimSpace(strings.Join(args, " "))
			if len(args) > 0 && item == "" {
				return guidance.ErrEmptyItem
			}
			env, err := a.open("warn")
			if err != nil {
				return err
			}
			defer env.Close()

			out := cmd.OutOrStdout()
			if clearList {
				if err := env.registry.Clear(kind); err != nil {
					return err
				}
				env.journal.Info("%s list cleared", kind)
				fmt.Fprintf(out, "%s list cleared\n", kind)
			}
			if item != "" {
				if err := env.registry.Add(kind, item); err != nil {
					return err
				}
				env.journal.Info("%s: %s", kind, item)
				fmt.Fprintf(out, "%s: %s\n", kind, item)
			}
			if list || (item == "" && !clearList) {
				loaded := env.store.Load()
				if loaded.Degraded() {
					return errors.Join(fmt.Errorf("cannot list %s items", kind), loaded.Err)
				}
				items := env.registry.Items(kind)
				if len(items) == 0 {
					fmt.Fprintf(out, "no %s items\n", kind)
				}
				for i, it := range items {
					fmt.Fprintf(out, "%d. %s\n", i+1, it)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "print the list")
	cmd.Flags().BoolVar(&clearList, "clear", false, "empty the list")
	return cmd
}
