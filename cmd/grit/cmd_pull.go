package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPullCmd() *cobra.Command {
	var author string

	cmd := &cobra.Command{
		Use:   "pull [remote]",
		Short: "Fetch from a remote and merge its branch head",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			remote := "origin"
			if len(args) > 0 {
				remote = args[0]
			}
			r, err := openWorkingRepo()
			if err != nil {
				return err
			}

			result, err := r.Pull(cmd.Context(), remote, defaultAuthor(author), func(msg string) {
				fmt.Fprint(cmd.ErrOrStderr(), msg)
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.FastForward {
				fmt.Fprintf(out, "fast-forwarded to %s\n", shortHash(result.CommitHash))
			} else {
				fmt.Fprintf(out, "merged as %s\n", shortHash(result.CommitHash))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&author, "author", "", "override merge author")
	return cmd
}
