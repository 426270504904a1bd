package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <target>",
		Short: "Switch branches or detach HEAD at a commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openWorkingRepo()
			if err != nil {
				return err
			}
			if err := r.Checkout(args[0]); err != nil {
				return err
			}
			if branch, ok, err := r.CurrentBranch(); err == nil && ok {
				fmt.Fprintf(cmd.OutOrStdout(), "switched to branch %s\n", branch)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "HEAD is now detached at %s\n", args[0])
			return nil
		},
	}
}

func newSwitchCmd() *cobra.Command {
	var create bool

	cmd := &cobra.Command{
		Use:   "switch <branch>",
		Short: "Switch to a branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openWorkingRepo()
			if err != nil {
				return err
			}
			if create {
				if err := r.CreateBranch(args[0], "HEAD"); err != nil {
					return err
				}
			}
			if err := r.Checkout(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "switched to branch %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&create, "create", "c", false, "create the branch first")
	return cmd
}
