package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/grithq/grit/pkg/merge"
	"github.com/grithq/grit/pkg/object"
	"github.com/grithq/grit/pkg/storage"
	"github.com/grithq/grit/pkg/wire"
)

// CloneOptions configures Clone.
type CloneOptions struct {
	Remote   string       // remote name, default "origin"
	Client   wire.ClientOptions
	Progress func(string) // remote progress messages
}

// Clone initializes a repository on st from a remote URL: discover refs,
// fetch one pack rooted at the remote HEAD, then write the advertised
// refs and check out the default branch.
func Clone(ctx context.Context, st storage.Storage, url string, opts CloneOptions) (*Repo, error) {
	remote := opts.Remote
	if remote == "" {
		remote = "origin"
	}

	client, err := wire.NewClient(url, opts.Client)
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	advert, err := client.DiscoverRefs(ctx, wire.ServiceUploadPack)
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}

	branch, headHash, err := remoteHead(ctx, client, advert)
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}

	r, err := Init(st, InitOptions{Branch: branch})
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	if err := r.AddRemote(remote, client.Base()); err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}

	if len(advert.Refs) == 0 {
		// Empty remote: nothing to fetch.
		return r, nil
	}

	pack, err := client.FetchPack(ctx, []object.Hash{headHash}, nil, opts.Progress)
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	if _, err := object.Unpack(ctx, r.store, pack); err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}

	for _, ref := range advert.Refs {
		// HEAD stays symbolic on the cloned branch set up by Init.
		if ref.Name == "HEAD" {
			continue
		}
		if err := r.writeFetchedRef(remote, ref.Name, ref.Hash); err != nil {
			return nil, fmt.Errorf("clone: %w", err)
		}
	}
	if err := r.checkoutTree(headHash); err != nil {
		return nil, fmt.Errorf("clone: checkout: %w", err)
	}
	return r, nil
}

// writeFetchedRef mirrors an advertised ref locally: branches land both
// as local branches and under refs/remotes/<remote>/, tags verbatim.
func (r *Repo) writeFetchedRef(remote, name string, h object.Hash) error {
	if branch, ok := strings.CutPrefix(name, "refs/heads/"); ok {
		if err := r.WriteRef(name, h); err != nil {
			return err
		}
		return r.WriteRef("refs/remotes/"+remote+"/"+branch, h)
	}
	return r.WriteRef(name, h)
}

// remoteHead determines the remote default branch and its commit. The
// HEAD endpoint names the branch; a missing or detached HEAD falls back
// to the first advertised head.
func remoteHead(ctx context.Context, client *wire.Client, advert *wire.Advert) (string, object.Hash, error) {
	if head, err := client.Head(ctx); err == nil {
		if target, ok := strings.CutPrefix(head, "ref: "); ok {
			if branch, ok := strings.CutPrefix(strings.TrimSpace(target), "refs/heads/"); ok {
				if h, found := advert.RefHash("refs/heads/" + branch); found {
					return branch, h, nil
				}
				// Advertised nothing for it: unborn branch on an empty remote.
				if len(advert.Refs) == 0 {
					return branch, "", nil
				}
			}
		}
	}
	for _, ref := range advert.Refs {
		if branch, ok := strings.CutPrefix(ref.Name, "refs/heads/"); ok {
			return branch, ref.Hash, nil
		}
	}
	if len(advert.Refs) == 0 {
		return DefaultBranch, "", nil
	}
	return "", "", fmt.Errorf("remote advertises no branch heads")
}

// Fetch downloads new commits from a remote and updates the tracking
// refs under refs/remotes/<remote>/. Tags are not fetched.
func (r *Repo) Fetch(ctx context.Context, remote string, progress func(string)) error {
	url, err := r.RemoteURL(remote)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	client, err := wire.NewClient(url, wire.ClientOptions{})
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	advert, err := client.DiscoverRefs(ctx, wire.ServiceUploadPack)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	tracking, err := r.ListRefs("refs/remotes/" + remote)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	var wants []object.Hash
	var updates []wire.AdvertisedRef
	for _, ref := range advert.Refs {
		branch, ok := strings.CutPrefix(ref.Name, "refs/heads/")
		if !ok {
			continue
		}
		updates = append(updates, wire.AdvertisedRef{Name: branch, Hash: ref.Hash})
		if tracking["refs/remotes/"+remote+"/"+branch] != ref.Hash {
			wants = append(wants, ref.Hash)
		}
	}

	if len(wants) > 0 {
		var haves []object.Hash
		for _, h := range tracking {
			haves = append(haves, h)
		}
		pack, err := client.FetchPack(ctx, wants, haves, progress)
		if err != nil {
			return fmt.Errorf("fetch: %w", err)
		}
		if _, err := object.Unpack(ctx, r.store, pack); err != nil {
			return fmt.Errorf("fetch: %w", err)
		}
	}

	for _, u := range updates {
		if err := r.WriteRef("refs/remotes/"+remote+"/"+u.Name, u.Hash); err != nil {
			return fmt.Errorf("fetch: %w", err)
		}
	}
	return nil
}

// Push uploads a branch to a remote. The pack carries the full closure
// of the branch head: commits parents-first, each followed by its new
// trees and blobs. A remote whose advertised value is neither our
// tracking ref nor absent rejects the update unless force is set.
func (r *Repo) Push(ctx context.Context, remote, branch string, force bool, progress func(string)) error {
	localHash, err := r.ReadRef("refs/heads/" + branch)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}

	url, err := r.RemoteURL(remote)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	client, err := wire.NewClient(url, wire.ClientOptions{})
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	advert, err := client.DiscoverRefs(ctx, wire.ServiceReceivePack)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}

	refName := "refs/heads/" + branch
	trackingRef := "refs/remotes/" + remote + "/" + branch
	old := object.ZeroHash
	if h, err := r.ReadRef(trackingRef); err == nil {
		old = h
	} else if !storage.IsNotFound(err) {
		return fmt.Errorf("push: %w", err)
	}

	if advertised, ok := advert.RefHash(refName); ok {
		if advertised == localHash {
			// Remote already has this exact head.
			return r.WriteRef(trackingRef, localHash)
		}
		if advertised != old && !force {
			return fmt.Errorf("push %s: remote is at %s, local tracking at %s: %w",
				branch, advertised, old, ErrNonFastForward)
		}
		old = advertised
	} else {
		old = object.ZeroHash
	}

	closure, err := r.pushClosure(localHash)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	pack, err := object.BuildPack(r.store, closure)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}

	cmd := wire.Command{Old: old, New: localHash, Name: refName}
	if err := client.SendPack(ctx, []wire.Command{cmd}, pack); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	return r.WriteRef(trackingRef, localHash)
}

// pushClosure lists every object reachable from a commit, commits in
// parents-first order and each commit's tree closure right after it. A
// missing interior object is corruption, not absence.
func (r *Repo) pushClosure(head object.Hash) ([]object.Hash, error) {
	var commits []object.Hash
	seen := map[object.Hash]struct{}{}
	stack := []object.Hash{head}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[cur]; ok {
			continue
		}
		seen[cur] = struct{}{}
		commits = append(commits, cur)

		c, err := r.store.ReadCommit(cur)
		if err != nil {
			return nil, fmt.Errorf("%w: commit %s: %v", object.ErrCorrupt, cur, err)
		}
		stack = append(stack, c.Parents...)
	}
	// Reverse so parents precede children.
	for i, j := 0, len(commits)-1; i < j; i, j = i+1, j-1 {
		commits[i], commits[j] = commits[j], commits[i]
	}

	var closure []object.Hash
	included := map[object.Hash]struct{}{}
	for _, commitHash := range commits {
		c, err := r.store.ReadCommit(commitHash)
		if err != nil {
			return nil, fmt.Errorf("%w: commit %s: %v", object.ErrCorrupt, commitHash, err)
		}
		closure = append(closure, commitHash)
		if err := r.treeClosure(c.TreeHash, included, &closure); err != nil {
			return nil, err
		}
	}
	return closure, nil
}

func (r *Repo) treeClosure(treeHash object.Hash, included map[object.Hash]struct{}, out *[]object.Hash) error {
	if _, ok := included[treeHash]; ok {
		return nil
	}
	included[treeHash] = struct{}{}
	*out = append(*out, treeHash)

	tree, err := r.store.ReadTree(treeHash)
	if err != nil {
		return fmt.Errorf("%w: tree %s: %v", object.ErrCorrupt, treeHash, err)
	}
	for _, e := range tree.Entries {
		if e.IsDir() {
			if err := r.treeClosure(e.Hash, included, out); err != nil {
				return err
			}
			continue
		}
		if _, ok := included[e.Hash]; ok {
			continue
		}
		included[e.Hash] = struct{}{}
		*out = append(*out, e.Hash)
	}
	return nil
}

// Pull is fetch followed by a merge of the remote-tracking branch.
func (r *Repo) Pull(ctx context.Context, remote, author string, progress func(string)) (*MergeResult, error) {
	if err := r.Fetch(ctx, remote, progress); err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}
	branch, onBranch, err := r.CurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}
	if !onBranch {
		return nil, fmt.Errorf("pull: HEAD is detached")
	}
	return r.Merge("refs/remotes/"+remote+"/"+branch, author, merge.StrategyRecursive)
}
