package repo

import (
	"fmt"
	"strings"
	"time"

	"github.com/grithq/grit/pkg/index"
	"github.com/grithq/grit/pkg/object"
	"github.com/grithq/grit/pkg/storage"
)

// normalizeWorktreePath validates and canonicalizes a user-supplied
// path. Paths are forward-slash relative; reaching into .git or out of
// the tree is rejected.
func normalizeWorktreePath(path string) (string, error) {
	p := strings.Trim(strings.ReplaceAll(path, "\\", "/"), "/")
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("invalid path %q", path)
		}
	}
	if !isWorktreePath(p) {
		return "", fmt.Errorf("path %q is inside the repository directory", path)
	}
	return p, nil
}

// Add stages a working-tree file: the content becomes a blob and the
// index entry is created or replaced.
func (r *Repo) Add(path string) error {
	p, err := normalizeWorktreePath(path)
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	data, err := r.st.ReadFile(p)
	if err != nil {
		if storage.IsNotFound(err) {
			return fmt.Errorf("add: pathspec %q did not match any files", path)
		}
		return fmt.Errorf("add %s: %w", path, err)
	}
	return r.AddBytes(p, data)
}

// AddBytes stages explicit content under a path without touching the
// working tree.
func (r *Repo) AddBytes(path string, data []byte) error {
	p, err := normalizeWorktreePath(path)
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	h, err := r.store.WriteBlob(data)
	if err != nil {
		return fmt.Errorf("add %s: %w", path, err)
	}

	ix, err := r.Index()
	if err != nil {
		return fmt.Errorf("add %s: %w", path, err)
	}
	ix.Set(index.Entry{
		Path:    p,
		Hash:    h,
		Mode:    object.TreeModeFile,
		Size:    uint32(len(data)),
		MTimeMS: uint64(time.Now().UnixMilli()),
	})
	if err := r.SaveIndex(ix); err != nil {
		return fmt.Errorf("add %s: %w", path, err)
	}
	return nil
}

// Rm unstages a path and removes it from the working tree.
func (r *Repo) Rm(path string) error {
	p, err := normalizeWorktreePath(path)
	if err != nil {
		return fmt.Errorf("rm: %w", err)
	}

	ix, err := r.Index()
	if err != nil {
		return fmt.Errorf("rm %s: %w", path, err)
	}
	if !ix.Remove(p) {
		return fmt.Errorf("rm: pathspec %q did not match any files", path)
	}
	if err := r.SaveIndex(ix); err != nil {
		return fmt.Errorf("rm %s: %w", path, err)
	}

	if err := r.st.DeleteFile(p); err != nil && !storage.IsNotFound(err) {
		return fmt.Errorf("rm %s: %w", path, err)
	}
	return nil
}

// Mv renames a tracked file in both the index and the working tree.
func (r *Repo) Mv(from, to string) error {
	src, err := normalizeWorktreePath(from)
	if err != nil {
		return fmt.Errorf("mv: %w", err)
	}
	dst, err := normalizeWorktreePath(to)
	if err != nil {
		return fmt.Errorf("mv: %w", err)
	}

	ix, err := r.Index()
	if err != nil {
		return fmt.Errorf("mv: %w", err)
	}
	entry := ix.Get(src)
	if entry == nil {
		return fmt.Errorf("mv: %q is not under version control", from)
	}
	if ix.Get(dst) != nil {
		return fmt.Errorf("mv: destination %q already tracked", to)
	}

	data, err := r.st.ReadFile(src)
	if err != nil {
		return fmt.Errorf("mv %s: %w", from, err)
	}
	if err := r.st.WriteFile(dst, data); err != nil {
		return fmt.Errorf("mv %s: %w", to, err)
	}
	if err := r.st.DeleteFile(src); err != nil {
		return fmt.Errorf("mv %s: %w", from, err)
	}

	moved := *entry
	moved.Path = dst
	moved.MTimeMS = uint64(time.Now().UnixMilli())
	ix.Remove(src)
	ix.Set(moved)
	if err := r.SaveIndex(ix); err != nil {
		return fmt.Errorf("mv: %w", err)
	}
	return nil
}

// Restore rewrites a working-tree file from the staged blob.
func (r *Repo) Restore(path string) error {
	p, err := normalizeWorktreePath(path)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	ix, err := r.Index()
	if err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}
	entry := ix.Get(p)
	if entry == nil {
		return fmt.Errorf("restore: pathspec %q did not match any files", path)
	}
	data, err := r.store.ReadBlob(entry.Hash)
	if err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}
	if err := r.st.WriteFile(p, data); err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}
	return nil
}

// checkoutTree resets the index from a commit's tree and rewrites every
// tracked working-tree file to match. Files tracked before but absent
// from the target tree are removed.
func (r *Repo) checkoutTree(commitHash object.Hash) error {
	commit, err := r.store.ReadCommit(commitHash)
	if err != nil {
		return err
	}

	prev, err := r.Index()
	if err != nil {
		return err
	}
	prevPaths := make(map[string]struct{}, prev.Len())
	for _, e := range prev.Entries() {
		prevPaths[e.Path] = struct{}{}
	}

	ix := index.New()
	if err := ix.UpdateFromTree(r.store, commit.TreeHash); err != nil {
		return err
	}
	for _, e := range ix.Entries() {
		data, err := r.store.ReadBlob(e.Hash)
		if err != nil {
			return err
		}
		if err := r.st.WriteFile(e.Path, data); err != nil {
			return err
		}
		delete(prevPaths, e.Path)
	}
	for path := range prevPaths {
		if err := r.st.DeleteFile(path); err != nil && !storage.IsNotFound(err) {
			return err
		}
	}
	return r.SaveIndex(ix)
}
