package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/grithq/grit/pkg/object"
)

func newLogCmd() *cobra.Command {
	var oneline bool
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show first-parent commit history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openWorkingRepo()
			if err != nil {
				return err
			}

			headHash, err := r.ResolveRef("HEAD")
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no commits yet")
				return nil
			}
			entries, err := r.Log(headHash, limit)
			if err != nil {
				return err
			}

			branchName := ""
			if branch, ok, err := r.CurrentBranch(); err == nil && ok {
				branchName = branch
			}

			out := cmd.OutOrStdout()
			for _, entry := range entries {
				decoration := buildDecoration(entry.Hash, headHash, branchName)
				if oneline {
					if decoration != "" {
						fmt.Fprintf(out, "%s %s %s\n", shortHash(entry.Hash), decoration, firstLine(entry.Commit.Message))
					} else {
						fmt.Fprintf(out, "%s %s\n", shortHash(entry.Hash), firstLine(entry.Commit.Message))
					}
					continue
				}
				if decoration != "" {
					fmt.Fprintf(out, "commit %s %s\n", entry.Hash, decoration)
				} else {
					fmt.Fprintf(out, "commit %s\n", entry.Hash)
				}
				fmt.Fprintf(out, "Author: %s\n", entry.Commit.Author.Name)
				fmt.Fprintf(out, "Date:   %s\n", time.Unix(entry.Commit.Author.When, 0).UTC().Format("2006-01-02 15:04:05"))
				fmt.Fprintln(out)
				fmt.Fprintf(out, "    %s\n", entry.Commit.Message)
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "compact one-line format")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of commits to show")
	return cmd
}

// buildDecoration returns "(HEAD -> main)" for the commit HEAD points at
// ("(HEAD)" when HEAD is detached), or "" otherwise.
func buildDecoration(commitHash, headHash object.Hash, branchName string) string {
	if commitHash != headHash {
		return ""
	}
	if branchName != "" {
		return "(HEAD -> " + branchName + ")"
	}
	return "(HEAD)"
}
