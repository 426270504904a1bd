package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grithq/grit/pkg/repo"
	"github.com/grithq/grit/pkg/storage"
)

func newCloneCmd() *cobra.Command {
	var remoteName string

	cmd := &cobra.Command{
		Use:   "clone <url> [directory]",
		Short: "Clone a repository from a smart-HTTP endpoint",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]
			dest := repoDirFromURL(source)
			if len(args) == 2 {
				dest = args[1]
			}
			if strings.TrimSpace(dest) == "" {
				return fmt.Errorf("destination directory is required")
			}
			abs, err := filepath.Abs(dest)
			if err != nil {
				return fmt.Errorf("resolve destination: %w", err)
			}
			if err := ensureEmptyDir(abs); err != nil {
				return err
			}

			opts := repo.CloneOptions{
				Remote: remoteName,
				Progress: func(msg string) {
					fmt.Fprint(cmd.ErrOrStderr(), msg)
				},
			}
			if _, err := repo.Clone(cmd.Context(), storage.NewFilesystem(abs), source, opts); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "cloned %s into %s\n", source, abs)
			return nil
		},
	}

	cmd.Flags().StringVar(&remoteName, "remote-name", "origin", "name to assign to the cloned remote")
	return cmd
}

func ensureEmptyDir(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(path, 0o755)
		}
		return fmt.Errorf("inspect destination: %w", err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("destination %s is not empty", path)
	}
	return nil
}
