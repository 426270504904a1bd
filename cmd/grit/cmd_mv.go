package main

import (
	"github.com/spf13/cobra"
)

func newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <source> <destination>",
		Short: "Move or rename a tracked file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openWorkingRepo()
			if err != nil {
				return err
			}
			return r.Mv(args[0], args[1])
		},
	}
}
