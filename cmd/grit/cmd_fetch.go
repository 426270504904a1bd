package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [remote]",
		Short: "Download objects and update remote-tracking refs",
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
			return r.Fetch(cmd.Context(), remote, func(msg string) {
				fmt.Fprint(cmd.ErrOrStderr(), msg)
			})
		},
	}
}
