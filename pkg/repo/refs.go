package repo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/grithq/grit/pkg/object"
	"github.com/grithq/grit/pkg/storage"
)

const headPath = ".git/HEAD"

// symbolicPrefix marks a symbolic HEAD value.
const symbolicPrefix = "ref: "

// ReadRef reads the hash a fully-qualified ref ("refs/heads/main")
// points at. Missing refs surface storage.ErrNotFound.
func (r *Repo) ReadRef(name string) (object.Hash, error) {
	data, err := r.st.ReadFile(".git/" + name)
	if err != nil {
		if storage.IsNotFound(err) {
			return "", fmt.Errorf("ref %s: %w", name, storage.ErrNotFound)
		}
		return "", fmt.Errorf("read ref %s: %w", name, err)
	}
	h := object.Hash(strings.TrimSpace(string(data)))
	if err := object.ValidateHash(h); err != nil {
		return "", fmt.Errorf("read ref %s: %w", name, err)
	}
	return h, nil
}

// WriteRef points a fully-qualified ref at a hash, creating parent
// directories as needed.
func (r *Repo) WriteRef(name string, h object.Hash) error {
	if err := object.ValidateHash(h); err != nil {
		return fmt.Errorf("write ref %s: %w", name, err)
	}
	if err := r.st.WriteFile(".git/"+name, []byte(string(h)+"\n")); err != nil {
		return fmt.Errorf("write ref %s: %w", name, err)
	}
	return nil
}

// DeleteRef removes a fully-qualified ref. Deleting a missing ref is an
// error.
func (r *Repo) DeleteRef(name string) error {
	if err := r.st.DeleteFile(".git/" + name); err != nil {
		if storage.IsNotFound(err) {
			return fmt.Errorf("ref %s: %w", name, storage.ErrNotFound)
		}
		return fmt.Errorf("delete ref %s: %w", name, err)
	}
	return nil
}

// ListRefs walks .git/refs and returns every ref keyed by its fully
// qualified name ("refs/heads/main"); SortedRefNames gives the keys in
// lexical order. A prefix narrows the walk,
// e.g. "refs/heads" or "refs/remotes/origin".
func (r *Repo) ListRefs(prefix string) (map[string]object.Hash, error) {
	root := "refs"
	if prefix != "" {
		root = strings.TrimSuffix(prefix, "/")
	}

	refs := make(map[string]object.Hash)
	if err := r.walkRefs(root, refs); err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *Repo) walkRefs(dir string, out map[string]object.Hash) error {
	names, err := r.st.ListDirectory(".git/" + dir)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("list refs: %w", err)
	}
	for _, name := range names {
		path := dir + "/" + name
		// A child with its own listing is a subdirectory; everything
		// else is read as a ref file, skipping empty directories.
		children, listErr := r.st.ListDirectory(".git/" + path)
		if listErr == nil && len(children) > 0 {
			if err := r.walkRefs(path, out); err != nil {
				return err
			}
			continue
		}
		h, err := r.ReadRef(path)
		if err != nil {
			if storage.IsNotFound(err) {
				continue
			}
			// An empty directory lists cleanly but cannot be read as a file.
			if listErr == nil && !errors.Is(err, object.ErrInvalidHash) {
				continue
			}
			return err
		}
		out[path] = h
	}
	return nil
}

// SortedRefNames returns the keys of a ref map in lexical order.
func SortedRefNames(refs map[string]object.Hash) []string {
	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Head reads .git/HEAD. A symbolic head returns the ref name it points
// at ("refs/heads/main"); a detached head returns the raw hash string.
func (r *Repo) Head() (string, error) {
	data, err := r.st.ReadFile(headPath)
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	content := strings.TrimSpace(string(data))
	if strings.HasPrefix(content, symbolicPrefix) {
		return strings.TrimPrefix(content, symbolicPrefix), nil
	}
	return content, nil
}

// SetHeadSymbolic points HEAD at a branch ref.
func (r *Repo) SetHeadSymbolic(ref string) error {
	if err := r.st.WriteFile(headPath, []byte(symbolicPrefix+ref+"\n")); err != nil {
		return fmt.Errorf("write HEAD: %w", err)
	}
	return nil
}

// SetHeadDetached points HEAD directly at a commit.
func (r *Repo) SetHeadDetached(h object.Hash) error {
	if err := object.ValidateHash(h); err != nil {
		return fmt.Errorf("write HEAD: %w", err)
	}
	if err := r.st.WriteFile(headPath, []byte(string(h)+"\n")); err != nil {
		return fmt.Errorf("write HEAD: %w", err)
	}
	return nil
}

// CurrentBranch returns the short branch name HEAD points at, or false
// when HEAD is detached.
func (r *Repo) CurrentBranch() (string, bool, error) {
	head, err := r.Head()
	if err != nil {
		return "", false, err
	}
	if branch, ok := strings.CutPrefix(head, "refs/heads/"); ok {
		return branch, true, nil
	}
	return "", false, nil
}

// ResolveRef resolves a name to a commit-ish hash. Resolution order:
// "HEAD" (following a symbolic target), a fully-qualified "refs/..."
// name, a branch under refs/heads, a tag under refs/tags, then a literal
// hash. An annotated tag is not peeled here.
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	if name == "HEAD" {
		head, err := r.Head()
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(head, "refs/") {
			return r.ReadRef(head)
		}
		return object.Hash(head), nil
	}

	if strings.HasPrefix(name, "refs/") {
		return r.ReadRef(name)
	}
	for _, prefix := range []string{"refs/heads/", "refs/tags/", "refs/remotes/"} {
		if h, err := r.ReadRef(prefix + name); err == nil {
			return h, nil
		} else if !storage.IsNotFound(err) {
			return "", err
		}
	}
	if object.ValidateHash(object.Hash(name)) == nil && r.store.Has(object.Hash(name)) {
		return object.Hash(name), nil
	}
	return "", fmt.Errorf("resolve %q: %w", name, storage.ErrNotFound)
}

// headCommit resolves HEAD to a commit hash. An unborn branch returns
// ok=false without error.
func (r *Repo) headCommit() (object.Hash, bool, error) {
	head, err := r.Head()
	if err != nil {
		return "", false, err
	}
	if !strings.HasPrefix(head, "refs/") {
		return object.Hash(head), true, nil
	}
	h, err := r.ReadRef(head)
	if err != nil {
		if storage.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return h, true, nil
}

// advanceHead moves whatever HEAD designates to a new commit: the named
// branch ref when symbolic, HEAD itself when detached.
func (r *Repo) advanceHead(h object.Hash) error {
	head, err := r.Head()
	if err != nil {
		return err
	}
	if strings.HasPrefix(head, "refs/") {
		return r.WriteRef(head, h)
	}
	return r.SetHeadDetached(h)
}
