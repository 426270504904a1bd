package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTagCmd() *cobra.Command {
	var annotate bool
	var message string
	var tagger string
	var deleteName string

	cmd := &cobra.Command{
		Use:   "tag [name] [target]",
		Short: "List, create, or delete tags",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openWorkingRepo()
			if err != nil {
				return err
			}

			if deleteName != "" {
				if len(args) > 0 {
					return fmt.Errorf("cannot combine -d with a tag name argument")
				}
				return r.DeleteTag(deleteName)
			}

			if len(args) == 0 {
				tags, err := r.Tags()
				if err != nil {
					return err
				}
				for _, name := range tags {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			name := args[0]
			target := "HEAD"
			if len(args) == 2 {
				target = args[1]
			}
			if annotate {
				if message == "" {
					return fmt.Errorf("annotated tags need a message (-m)")
				}
				return r.TagAnnotated(name, target, message, defaultAuthor(tagger))
			}
			return r.Tag(name, target)
		},
	}

	cmd.Flags().BoolVarP(&annotate, "annotate", "a", false, "create an annotated tag object")
	cmd.Flags().StringVarP(&message, "message", "m", "", "annotated tag message")
	cmd.Flags().StringVar(&tagger, "tagger", "", "override tagger identity")
	cmd.Flags().StringVarP(&deleteName, "delete", "d", "", "delete the named tag")
	return cmd
}
