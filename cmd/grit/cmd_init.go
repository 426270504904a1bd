package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/grithq/grit/pkg/repo"
	"github.com/grithq/grit/pkg/storage"
)

func newInitCmd() *cobra.Command {
	var branch string

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty grit repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}

			if _, err := repo.Init(storage.NewFilesystem(abs), repo.InitOptions{Branch: branch}); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "initialized empty grit repository in %s\n", filepath.Join(abs, ".git")+string(filepath.Separator))
			return nil
		},
	}

	cmd.Flags().StringVarP(&branch, "branch", "b", "", "initial branch name (default: main)")
	return cmd
}
