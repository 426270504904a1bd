package main

import (
	"github.com/spf13/cobra"
)

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <path>...",
		Short: "Restore working tree files from the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openWorkingRepo()
			if err != nil {
				return err
			}
			for _, path := range args {
				if err := r.Restore(path); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
