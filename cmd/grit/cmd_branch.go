package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBranchCmd() *cobra.Command {
	var deleteName string

	cmd := &cobra.Command{
		Use:   "branch [name] [start-point]",
		Short: "List or create branches",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openWorkingRepo()
			if err != nil {
				return err
			}

			if deleteName != "" {
				if len(args) > 0 {
					return fmt.Errorf("cannot combine -d with a branch name argument")
				}
				if err := r.DeleteBranch(deleteName); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted branch %s\n", deleteName)
				return nil
			}

			if len(args) > 0 {
				target := "HEAD"
				if len(args) == 2 {
					target = args[1]
				}
				return r.CreateBranch(args[0], target)
			}

			branches, err := r.Branches()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, b := range branches {
				marker := " "
				if b.Current {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s %s\n", marker, b.Name, shortHash(b.Hash))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&deleteName, "delete", "d", "", "delete the named branch")
	return cmd
}
