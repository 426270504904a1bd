package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grithq/grit/pkg/merge"
)

func newMergeCmd() *cobra.Command {
	var author string
	var strategy string

	cmd := &cobra.Command{
		Use:   "merge <branch>",
		Short: "Merge another branch into the current one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openWorkingRepo()
			if err != nil {
				return err
			}
			st, err := parseStrategy(strategy)
			if err != nil {
				return err
			}

			before, _ := r.ResolveRef("HEAD")
			result, err := r.Merge(args[0], defaultAuthor(author), st)
			if err != nil {
				if errors.Is(err, merge.ErrConflict) && result != nil {
					out := cmd.OutOrStdout()
					fmt.Fprintln(out, "merge produced conflicts:")
					for _, c := range result.Conflicts {
						fmt.Fprintf(out, "  both modified: %s\n", c.Path)
					}
					return fmt.Errorf("automatic merge failed")
				}
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case result.FastForward:
				fmt.Fprintf(out, "fast-forwarded to %s\n", shortHash(result.CommitHash))
			case result.CommitHash == before:
				fmt.Fprintln(out, "already up to date")
			default:
				fmt.Fprintf(out, "merge commit %s\n", shortHash(result.CommitHash))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&author, "author", "", "override merge author")
	cmd.Flags().StringVar(&strategy, "strategy", string(merge.StrategyRecursive), "merge strategy (recursive, resolve, ours, theirs)")
	return cmd
}

func parseStrategy(name string) (merge.Strategy, error) {
	switch merge.Strategy(name) {
	case merge.StrategyRecursive, merge.StrategyResolve, merge.StrategyOurs, merge.StrategyTheirs:
		return merge.Strategy(name), nil
	default:
		return "", fmt.Errorf("unknown merge strategy %q", name)
	}
}
