package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current branch and staged paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openWorkingRepo()
			if err != nil {
				return err
			}
			report, err := r.Status()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if report.Detached {
				fmt.Fprintln(out, "HEAD detached")
			} else {
				fmt.Fprintf(out, "On branch %s\n", report.Branch)
			}
			if len(report.Staged) == 0 {
				fmt.Fprintln(out, "nothing staged")
				return nil
			}
			fmt.Fprintln(out, "Staged:")
			for _, path := range report.Staged {
				fmt.Fprintf(out, "  %s\n", path)
			}
			return nil
		},
	}
}
