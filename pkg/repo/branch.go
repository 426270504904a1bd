package repo

import (
	"fmt"

	"github.com/grithq/grit/pkg/object"
	"github.com/grithq/grit/pkg/storage"
)

// Branch describes one local branch.
type Branch struct {
	Name    string
	Hash    object.Hash
	Current bool
}

// Branches lists local branches sorted by name.
func (r *Repo) Branches() ([]Branch, error) {
	refs, err := r.ListRefs("refs/heads")
	if err != nil {
		return nil, err
	}
	current, onBranch, err := r.CurrentBranch()
	if err != nil {
		return nil, err
	}

	var branches []Branch
	for _, name := range SortedRefNames(refs) {
		short := name[len("refs/heads/"):]
		branches = append(branches, Branch{
			Name:    short,
			Hash:    refs[name],
			Current: onBranch && short == current,
		})
	}
	return branches, nil
}

// CreateBranch points a new branch at a commit-ish. Creating an existing
// branch fails.
func (r *Repo) CreateBranch(name, target string) error {
	ref := "refs/heads/" + name
	if _, err := r.ReadRef(ref); err == nil {
		return fmt.Errorf("branch %q already exists", name)
	} else if !storage.IsNotFound(err) {
		return err
	}

	h, err := r.ResolveRef(target)
	if err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}
	return r.WriteRef(ref, h)
}

// DeleteBranch removes a branch. The current branch cannot be deleted.
func (r *Repo) DeleteBranch(name string) error {
	current, onBranch, err := r.CurrentBranch()
	if err != nil {
		return err
	}
	if onBranch && name == current {
		return fmt.Errorf("cannot delete branch %q checked out at HEAD", name)
	}
	if err := r.DeleteRef("refs/heads/" + name); err != nil {
		if storage.IsNotFound(err) {
			return fmt.Errorf("branch %q not found", name)
		}
		return err
	}
	return nil
}

// Checkout moves HEAD to a branch or commit and rewrites the index and
// working tree from its tree. A branch name attaches HEAD; anything else
// detaches it.
func (r *Repo) Checkout(target string) error {
	branchRef := "refs/heads/" + target
	if h, err := r.ReadRef(branchRef); err == nil {
		if err := r.checkoutTree(h); err != nil {
			return fmt.Errorf("checkout %s: %w", target, err)
		}
		return r.SetHeadSymbolic(branchRef)
	} else if !storage.IsNotFound(err) {
		return err
	}

	h, err := r.ResolveRef(target)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if err := r.checkoutTree(h); err != nil {
		return fmt.Errorf("checkout %s: %w", target, err)
	}
	return r.SetHeadDetached(h)
}
