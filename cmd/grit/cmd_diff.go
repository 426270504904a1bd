package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grithq/grit/pkg/diff"
)

func newDiffCmd() *cobra.Command {
	var renameThreshold float64

	cmd := &cobra.Command{
		Use:   "diff <revision> <revision>",
		Short: "Show changes between two commits",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openWorkingRepo()
			if err != nil {
				return err
			}

			oldTree, err := commitTreeOf(r, args[0])
			if err != nil {
				return err
			}
			newTree, err := commitTreeOf(r, args[1])
			if err != nil {
				return err
			}

			changes, err := diff.Trees(r.Store(), oldTree, newTree, renameThreshold)
			if err != nil {
				return err
			}
			text, err := diff.Format(r.Store(), changes)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().Float64Var(&renameThreshold, "rename-threshold", diff.DefaultRenameThreshold, "similarity ratio treated as a rename")
	return cmd
}
