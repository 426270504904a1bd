package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grithq/grit/pkg/repo"
)

func newPushCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "push [remote] [branch]",
		Short: "Upload the current branch to a remote",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			remote := "origin"
			if len(args) > 0 {
				remote = args[0]
			}
			r, err := openWorkingRepo()
			if err != nil {
				return err
			}

			branch := ""
			if len(args) == 2 {
				branch = args[1]
			} else {
				current, ok, err := r.CurrentBranch()
				if err != nil || !ok {
					return fmt.Errorf("push: not on a branch; name one explicitly")
				}
				branch = current
			}

			err = r.Push(cmd.Context(), remote, branch, force, func(msg string) {
				fmt.Fprint(cmd.ErrOrStderr(), msg)
			})
			if errors.Is(err, repo.ErrNonFastForward) {
				return fmt.Errorf("push rejected: remote %s/%s has moved; fetch first or use --force", remote, branch)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %s to %s\n", branch, remote)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite the remote ref even when it moved")
	return cmd
}
