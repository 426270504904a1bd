package repo

import (
	"fmt"
	"time"

	"github.com/grithq/grit/pkg/object"
)

// newIdent stamps an author string ("Name <email>") with the current
// time in UTC.
func newIdent(author string) object.Ident {
	return object.Ident{Name: author, When: time.Now().Unix(), TZ: "+0000"}
}

// writeTreeFromIndex groups the index entries by directory and builds
// the nested tree objects bottom-up, returning the root tree hash.
func (r *Repo) writeTreeFromIndex() (object.Hash, error) {
	ix, err := r.Index()
	if err != nil {
		return "", err
	}
	entries := ix.Entries()
	flat := make([]object.FlatEntry, len(entries))
	for i, e := range entries {
		flat[i] = object.FlatEntry{Path: e.Path, Mode: e.Mode, Hash: e.Hash}
	}
	return r.store.WriteTreeFromFlat(flat)
}

// Commit snapshots the index as a tree and records a commit on top of
// the current HEAD target. The branch HEAD names advances; a detached
// HEAD moves itself.
func (r *Repo) Commit(message, author string) (object.Hash, error) {
	ix, err := r.Index()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if ix.Len() == 0 {
		return "", fmt.Errorf("commit: nothing staged")
	}

	treeHash, err := r.writeTreeFromIndex()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	var parents []object.Hash
	if parent, ok, err := r.headCommit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	} else if ok {
		parents = append(parents, parent)
	}

	ident := newIdent(author)
	commitHash, err := r.store.WriteCommit(&object.CommitObj{
		TreeHash:  treeHash,
		Parents:   parents,
		Author:    ident,
		Committer: ident,
		Message:   message,
	})
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	if err := r.advanceHead(commitHash); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return commitHash, nil
}

// Log walks first-parent history from start, newest first, returning up
// to limit commits with their hashes. A non-positive limit means no
// bound.
func (r *Repo) Log(start object.Hash, limit int) ([]LogEntry, error) {
	var entries []LogEntry
	current := start

	for current != "" {
		if limit > 0 && len(entries) >= limit {
			break
		}
		c, err := r.store.ReadCommit(current)
		if err != nil {
			return nil, fmt.Errorf("log: %w", err)
		}
		entries = append(entries, LogEntry{Hash: current, Commit: c})
		if len(c.Parents) == 0 {
			break
		}
		current = c.Parents[0]
	}
	return entries, nil
}

// LogEntry pairs a commit with its hash for history rendering.
type LogEntry struct {
	Hash   object.Hash
	Commit *object.CommitObj
}
