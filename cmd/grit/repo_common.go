package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grithq/grit/pkg/object"
	"github.com/grithq/grit/pkg/repo"
	"github.com/grithq/grit/pkg/storage"
)

// openWorkingRepo walks up from the current directory to the nearest
// repository root and opens it.
func openWorkingRepo() (*repo.Repo, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	root, err := findRepoRoot(cwd)
	if err != nil {
		return nil, err
	}
	return repo.Open(storage.NewFilesystem(root))
}

func findRepoRoot(dir string) (string, error) {
	for {
		if fi, err := os.Stat(filepath.Join(dir, ".git")); err == nil && fi.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a grit repository (no .git directory up from here)")
		}
		dir = parent
	}
}

// defaultAuthor builds the author identity from flags and environment.
func defaultAuthor(flag string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv("GRIT_AUTHOR"); v != "" {
		return v
	}
	if v := os.Getenv("USER"); v != "" {
		return v
	}
	return "unknown"
}

func shortHash(h object.Hash) string {
	s := string(h)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// commitTreeOf resolves a revision to the tree of the commit it names,
// peeling annotated tags.
func commitTreeOf(r *repo.Repo, rev string) (object.Hash, error) {
	h, err := r.ResolveRef(rev)
	if err != nil {
		return "", err
	}
	peeled, err := r.PeelTag(h)
	if err != nil {
		return "", err
	}
	c, err := r.Store().ReadCommit(peeled)
	if err != nil {
		return "", fmt.Errorf("revision %q does not name a commit: %w", rev, err)
	}
	return c.TreeHash, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// repoDirFromURL derives a clone destination from the last URL path
// segment, trimming a .git suffix.
func repoDirFromURL(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	base := trimmed
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		base = trimmed[i+1:]
	}
	return strings.TrimSuffix(base, ".git")
}
