package repo

import (
	"fmt"

	"github.com/grithq/grit/pkg/index"
	"github.com/grithq/grit/pkg/merge"
	"github.com/grithq/grit/pkg/object"
)

// MergeResult reports the outcome of a merge.
type MergeResult struct {
	CommitHash  object.Hash
	FastForward bool
	Conflicts   []merge.Conflict
}

// mergeBase finds the nearest common ancestor of two commits over
// first-parent history: collect every first-parent ancestor of a, then
// walk b's first parents until one is in the set.
func (r *Repo) mergeBase(a, b object.Hash) (object.Hash, error) {
	ancestors := make(map[object.Hash]struct{})
	for cur := a; cur != ""; {
		ancestors[cur] = struct{}{}
		c, err := r.store.ReadCommit(cur)
		if err != nil {
			return "", err
		}
		if len(c.Parents) == 0 {
			break
		}
		cur = c.Parents[0]
	}

	for cur := b; cur != ""; {
		if _, ok := ancestors[cur]; ok {
			return cur, nil
		}
		c, err := r.store.ReadCommit(cur)
		if err != nil {
			return "", err
		}
		if len(c.Parents) == 0 {
			break
		}
		cur = c.Parents[0]
	}
	return "", fmt.Errorf("no common ancestor")
}

// Merge joins another branch into the current one with a three-way tree
// merge over their common ancestor. The merged tree becomes a commit
// with both parents; an already-contained other branch is a no-op and a
// HEAD behind other fast-forwards. Conflicts abort without moving HEAD.
func (r *Repo) Merge(other, author string, strategy merge.Strategy) (*MergeResult, error) {
	ourHash, hasHead, err := r.headCommit()
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if !hasHead {
		return nil, fmt.Errorf("merge: no commits on current branch")
	}
	theirHash, err := r.ResolveRef(other)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	theirHash, err = r.PeelTag(theirHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	base, err := r.mergeBase(ourHash, theirHash)
	if err != nil {
		return nil, fmt.Errorf("merge %s: %w", other, err)
	}
	if base == theirHash {
		return &MergeResult{CommitHash: ourHash}, nil
	}
	if base == ourHash && strategy != merge.StrategyOurs {
		if err := r.checkoutTree(theirHash); err != nil {
			return nil, fmt.Errorf("merge %s: %w", other, err)
		}
		if err := r.advanceHead(theirHash); err != nil {
			return nil, fmt.Errorf("merge %s: %w", other, err)
		}
		return &MergeResult{CommitHash: theirHash, FastForward: true}, nil
	}

	baseTree, err := r.commitTree(base)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	ourTree, err := r.commitTree(ourHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	theirTree, err := r.commitTree(theirHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	result, err := merge.Trees(r.store, baseTree, ourTree, theirTree, strategy)
	if err != nil {
		return nil, fmt.Errorf("merge %s: %w", other, err)
	}
	if result.HasConflicts() {
		return &MergeResult{Conflicts: result.Conflicts}, merge.ErrConflict
	}

	branch, _, err := r.CurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	ident := newIdent(author)
	commitHash, err := r.store.WriteCommit(&object.CommitObj{
		TreeHash:  result.TreeHash,
		Parents:   []object.Hash{ourHash, theirHash},
		Author:    ident,
		Committer: ident,
		Message:   fmt.Sprintf("Merge branch '%s' into %s", other, branch),
	})
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	if err := r.checkoutTree(commitHash); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.advanceHead(commitHash); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	return &MergeResult{CommitHash: commitHash}, nil
}

// Rebase replays the current branch's commits on top of another head.
// Each replayed commit is three-way merged against its old parent so
// upstream changes carry through; original authors are preserved while
// the committer is re-stamped.
func (r *Repo) Rebase(onto, committer string) (object.Hash, error) {
	ourHash, hasHead, err := r.headCommit()
	if err != nil {
		return "", fmt.Errorf("rebase: %w", err)
	}
	if !hasHead {
		return "", fmt.Errorf("rebase: no commits on current branch")
	}
	ontoHash, err := r.ResolveRef(onto)
	if err != nil {
		return "", fmt.Errorf("rebase: %w", err)
	}
	ontoHash, err = r.PeelTag(ontoHash)
	if err != nil {
		return "", fmt.Errorf("rebase: %w", err)
	}

	fork, err := r.mergeBase(ourHash, ontoHash)
	if err != nil {
		return "", fmt.Errorf("rebase onto %s: %w", onto, err)
	}
	if fork == ourHash {
		// Nothing of ours past the fork point: adopt onto directly.
		if err := r.checkoutTree(ontoHash); err != nil {
			return "", fmt.Errorf("rebase: %w", err)
		}
		if err := r.advanceHead(ontoHash); err != nil {
			return "", fmt.Errorf("rebase: %w", err)
		}
		return ontoHash, nil
	}

	var replay []object.Hash
	for cur := ourHash; cur != fork; {
		replay = append(replay, cur)
		c, err := r.store.ReadCommit(cur)
		if err != nil {
			return "", fmt.Errorf("rebase: %w", err)
		}
		if len(c.Parents) == 0 {
			break
		}
		cur = c.Parents[0]
	}
	for i, j := 0, len(replay)-1; i < j; i, j = i+1, j-1 {
		replay[i], replay[j] = replay[j], replay[i]
	}

	newParent := ontoHash
	for _, old := range replay {
		c, err := r.store.ReadCommit(old)
		if err != nil {
			return "", fmt.Errorf("rebase: %w", err)
		}

		oldParentTree := object.Hash("")
		if len(c.Parents) > 0 {
			oldParentTree, err = r.commitTree(c.Parents[0])
			if err != nil {
				return "", fmt.Errorf("rebase: %w", err)
			}
		}
		newParentTree, err := r.commitTree(newParent)
		if err != nil {
			return "", fmt.Errorf("rebase: %w", err)
		}

		result, err := merge.Trees(r.store, oldParentTree, newParentTree, c.TreeHash, merge.StrategyRecursive)
		if err != nil {
			return "", fmt.Errorf("rebase: replay %s: %w", old, err)
		}
		if result.HasConflicts() {
			return "", fmt.Errorf("rebase: replay %s: %w", old, merge.ErrConflict)
		}

		newParent, err = r.store.WriteCommit(&object.CommitObj{
			TreeHash:  result.TreeHash,
			Parents:   []object.Hash{newParent},
			Author:    c.Author,
			Committer: newIdent(committer),
			Message:   c.Message,
		})
		if err != nil {
			return "", fmt.Errorf("rebase: %w", err)
		}
	}

	if err := r.checkoutTree(newParent); err != nil {
		return "", fmt.Errorf("rebase: %w", err)
	}
	if err := r.advanceHead(newParent); err != nil {
		return "", fmt.Errorf("rebase: %w", err)
	}
	return newParent, nil
}

// Reset moves the index (and with hard also HEAD's branch ref and the
// working tree) to a commit-ish.
func (r *Repo) Reset(target string, hard bool) error {
	h, err := r.ResolveRef(target)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	h, err = r.PeelTag(h)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	if hard {
		if err := r.checkoutTree(h); err != nil {
			return fmt.Errorf("reset %s: %w", target, err)
		}
		if err := r.advanceHead(h); err != nil {
			return fmt.Errorf("reset %s: %w", target, err)
		}
		return nil
	}

	commit, err := r.store.ReadCommit(h)
	if err != nil {
		return fmt.Errorf("reset %s: %w", target, err)
	}
	ix := index.New()
	if err := ix.UpdateFromTree(r.store, commit.TreeHash); err != nil {
		return fmt.Errorf("reset %s: %w", target, err)
	}
	if err := r.SaveIndex(ix); err != nil {
		return fmt.Errorf("reset %s: %w", target, err)
	}
	return nil
}

// commitTree reads the tree hash a commit points at.
func (r *Repo) commitTree(h object.Hash) (object.Hash, error) {
	c, err := r.store.ReadCommit(h)
	if err != nil {
		return "", err
	}
	return c.TreeHash, nil
}
