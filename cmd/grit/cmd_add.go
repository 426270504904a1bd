package main

import (
	"github.com/spf13/cobra"
)

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>...",
		Short: "Stage file contents for the next commit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openWorkingRepo()
			if err != nil {
				return err
			}
			for _, path := range args {
				if err := r.Add(path); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
