package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCmd() *cobra.Command {
	var hard bool
	var soft bool

	cmd := &cobra.Command{
		Use:   "reset <target>",
		Short: "Reset the index, or with --hard the head and working tree, to a commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if hard && soft {
				return fmt.Errorf("--hard and --soft are mutually exclusive")
			}
			r, err := openWorkingRepo()
			if err != nil {
				return err
			}
			if err := r.Reset(args[0], hard); err != nil {
				return err
			}
			h, err := r.ResolveRef("HEAD")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "HEAD is now at %s\n", shortHash(h))
			return nil
		},
	}

	cmd.Flags().BoolVar(&hard, "hard", false, "reset index and working tree too")
	cmd.Flags().BoolVar(&soft, "soft", false, "reset the index only (the default)")
	return cmd
}
