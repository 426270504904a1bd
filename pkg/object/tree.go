package object

import (
	"fmt"
	"sort"
	"strings"
)

// FlatEntry is one file of a flattened tree: a full forward-slash path with
// the blob hash and mode at that path.
type FlatEntry struct {
	Path string
	Mode string
	Hash Hash
}

// FlattenTree walks a tree recursively and returns every non-directory leaf
// with its full path. Entries come back sorted by path.
func (s *Store) FlattenTree(h Hash) ([]FlatEntry, error) {
	var out []FlatEntry
	if err := s.flattenTreeRec(h, "", &out); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *Store) flattenTreeRec(h Hash, prefix string, out *[]FlatEntry) error {
	tree, err := s.ReadTree(h)
	if err != nil {
		return fmt.Errorf("flatten tree %s: %w", h, err)
	}
	for _, e := range tree.Entries {
		full := e.Name
		if prefix != "" {
			full = prefix + "/" + e.Name
		}
		if e.IsDir() {
			if err := s.flattenTreeRec(e.Hash, full, out); err != nil {
				return err
			}
			continue
		}
		*out = append(*out, FlatEntry{Path: full, Mode: e.Mode, Hash: e.Hash})
	}
	return nil
}

// WriteTreeFromFlat groups flat path entries by directory, recursively
// writes subtree objects with deterministic ordering, and returns the root
// tree hash. An empty input produces the canonical empty tree.
func (s *Store) WriteTreeFromFlat(entries []FlatEntry) (Hash, error) {
	byPath := make(map[string]FlatEntry, len(entries))
	for _, e := range entries {
		byPath[e.Path] = e
	}
	return s.writeTreeDir(byPath, "")
}

func (s *Store) writeTreeDir(byPath map[string]FlatEntry, prefix string) (Hash, error) {
	files := make(map[string]FlatEntry)
	subdirs := make(map[string]struct{})

	for p, entry := range byPath {
		rel := p
		if prefix != "" {
			if !strings.HasPrefix(p, prefix+"/") {
				continue
			}
			rel = p[len(prefix)+1:]
		}
		if slash := strings.IndexByte(rel, '/'); slash >= 0 {
			subdirs[rel[:slash]] = struct{}{}
		} else {
			files[rel] = entry
		}
	}

	names := make([]string, 0, len(files)+len(subdirs))
	for name := range files {
		names = append(names, name)
	}
	for name := range subdirs {
		if _, isFile := files[name]; !isFile {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	tree := &TreeObj{Entries: make([]TreeEntry, 0, len(names))}
	for _, name := range names {
		if entry, isFile := files[name]; isFile {
			mode := entry.Mode
			if mode == "" {
				mode = TreeModeFile
			}
			tree.Entries = append(tree.Entries, TreeEntry{Mode: mode, Name: name, Hash: entry.Hash})
			continue
		}
		childPrefix := name
		if prefix != "" {
			childPrefix = prefix + "/" + name
		}
		subHash, err := s.writeTreeDir(byPath, childPrefix)
		if err != nil {
			return "", fmt.Errorf("build tree %q: %w", childPrefix, err)
		}
		tree.Entries = append(tree.Entries, TreeEntry{Mode: TreeModeDir, Name: name, Hash: subHash})
	}

	h, err := s.WriteTree(tree)
	if err != nil {
		return "", fmt.Errorf("write tree (prefix=%q): %w", prefix, err)
	}
	return h, nil
}

// LookupPath resolves a slash-separated path inside the given tree, returning
// the entry at that path.
func (s *Store) LookupPath(treeHash Hash, path string) (*TreeEntry, error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	current := treeHash
	for i, seg := range segments {
		tree, err := s.ReadTree(current)
		if err != nil {
			return nil, err
		}
		var found *TreeEntry
		for j := range tree.Entries {
			if tree.Entries[j].Name == seg {
				found = &tree.Entries[j]
				break
			}
		}
		if found == nil {
			return nil, fmt.Errorf("path %q: %w", path, ErrNotFound)
		}
		if i == len(segments)-1 {
			entry := *found
			return &entry, nil
		}
		if !found.IsDir() {
			return nil, fmt.Errorf("path %q: %q is not a directory", path, seg)
		}
		current = found.Hash
	}
	return nil, fmt.Errorf("path %q: %w", path, ErrNotFound)
}
