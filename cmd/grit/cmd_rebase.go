package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRebaseCmd() *cobra.Command {
	var committer string

	cmd := &cobra.Command{
		Use:   "rebase <onto>",
		Short: "Replay the current branch on top of another head",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openWorkingRepo()
			if err != nil {
				return err
			}
			h, err := r.Rebase(args[0], defaultAuthor(committer))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rebased onto %s, head is now %s\n", args[0], shortHash(h))
			return nil
		},
	}

	cmd.Flags().StringVar(&committer, "committer", "", "override committer identity")
	return cmd
}
