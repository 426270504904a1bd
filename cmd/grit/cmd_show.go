package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/grithq/grit/pkg/object"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [revision]",
		Short: "Render an object by name or hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rev := "HEAD"
			if len(args) > 0 {
				rev = args[0]
			}
			r, err := openWorkingRepo()
			if err != nil {
				return err
			}
			h, err := r.ResolveRef(rev)
			if err != nil {
				return err
			}
			return showObject(cmd.OutOrStdout(), r.Store(), h)
		},
	}
}

func showObject(out io.Writer, store *object.Store, h object.Hash) error {
	objType, data, err := store.Read(h)
	if err != nil {
		return err
	}
	switch objType {
	case object.TypeCommit:
		c, err := store.ReadCommit(h)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "commit %s\n", h)
		fmt.Fprintf(out, "tree %s\n", c.TreeHash)
		for _, p := range c.Parents {
			fmt.Fprintf(out, "parent %s\n", p)
		}
		fmt.Fprintf(out, "Author: %s\n", c.Author.Name)
		fmt.Fprintf(out, "Date:   %s\n", time.Unix(c.Author.When, 0).UTC().Format("2006-01-02 15:04:05"))
		fmt.Fprintln(out)
		fmt.Fprintf(out, "    %s\n", c.Message)
		return nil
	case object.TypeTag:
		t, err := store.ReadTag(h)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "tag %s\n", t.Name)
		fmt.Fprintf(out, "object %s\n", t.TargetHash)
		fmt.Fprintf(out, "type %s\n", t.TargetType)
		fmt.Fprintf(out, "Tagger: %s\n", t.Tagger.Name)
		fmt.Fprintln(out)
		fmt.Fprintf(out, "    %s\n", t.Message)
		return nil
	case object.TypeTree:
		tr, err := store.ReadTree(h)
		if err != nil {
			return err
		}
		for _, e := range tr.Entries {
			kind := object.TypeBlob
			if e.IsDir() {
				kind = object.TypeTree
			}
			mode := e.Mode
			if len(mode) == 5 {
				mode = "0" + mode
			}
			fmt.Fprintf(out, "%s %s %s\t%s\n", mode, kind, e.Hash, e.Name)
		}
		return nil
	default:
		_, err = out.Write(data)
		return err
	}
}
