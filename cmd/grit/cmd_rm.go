package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>...",
		Short: "Remove files from the index and working tree",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openWorkingRepo()
			if err != nil {
				return err
			}
			for _, path := range args {
				if err := r.Rm(path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rm '%s'\n", path)
			}
			return nil
		},
	}
}
