// Package repo is the repository façade: it ties the object store, ref
// store, index, and working tree together and exposes the porcelain
// operations the CLI and server build on.
package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/grithq/grit/pkg/index"
	"github.com/grithq/grit/pkg/object"
	"github.com/grithq/grit/pkg/storage"
)

var (
	// ErrNotARepo reports a path with no .git directory behind it.
	ErrNotARepo = errors.New("not a repository")

	// ErrNonFastForward reports a push the remote would lose commits on.
	ErrNonFastForward = errors.New("non-fast-forward")
)

// DefaultBranch is the initial branch name used when none is configured.
const DefaultBranch = "main"

// Repo is an opened repository over a storage backend. The backend root
// is the working tree root; repository state lives under .git/.
type Repo struct {
	st    storage.Storage
	store *object.Store
}

// InitOptions configures Init. Zero values receive defaults.
type InitOptions struct {
	Branch string // initial branch, default "main"
}

// Init materializes the .git layout on st: HEAD pointing at the initial
// branch, a config recording that branch, an empty index, and the standard
// directories. It
// fails if a repository already exists.
func Init(st storage.Storage, opts InitOptions) (*Repo, error) {
	if ok, err := st.Exists(".git/HEAD"); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	} else if ok {
		return nil, fmt.Errorf("init: repository already exists")
	}

	branch := opts.Branch
	if branch == "" {
		branch = DefaultBranch
	}

	dirs := []string{
		".git/hooks",
		".git/info",
		".git/objects/info",
		".git/objects/pack",
		".git/refs/heads",
		".git/refs/tags",
	}
	for _, d := range dirs {
		if err := st.CreateDirectory(d); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	if err := st.WriteFile(".git/HEAD", []byte("ref: refs/heads/"+branch+"\n")); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}
	cfg := NewConfig()
	cfg.Set("core", "", "branch", branch)
	if err := SaveConfig(st, cfg); err != nil {
		return nil, fmt.Errorf("init: write config: %w", err)
	}
	if err := index.Save(st, index.New()); err != nil {
		return nil, fmt.Errorf("init: write index: %w", err)
	}

	return &Repo{st: st, store: object.NewStore(st)}, nil
}

// Open attaches to an existing repository on st. It fails with
// ErrNotARepo when no .git/HEAD is present.
func Open(st storage.Storage) (*Repo, error) {
	ok, err := st.Exists(".git/HEAD")
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if !ok {
		return nil, ErrNotARepo
	}
	return &Repo{st: st, store: object.NewStore(st)}, nil
}

// Store returns the repository's object store.
func (r *Repo) Store() *object.Store {
	return r.store
}

// Storage returns the backing storage. The working tree and repository
// state share its namespace.
func (r *Repo) Storage() storage.Storage {
	return r.st
}

// Index loads the current index. A missing file yields an empty index.
func (r *Repo) Index() (*index.Index, error) {
	return index.Load(r.st)
}

// SaveIndex persists the index.
func (r *Repo) SaveIndex(ix *index.Index) error {
	return index.Save(r.st, ix)
}

// isWorktreePath reports whether a storage path belongs to the working
// tree rather than repository state.
func isWorktreePath(path string) bool {
	return path != ".git" && !strings.HasPrefix(path, ".git/")
}
