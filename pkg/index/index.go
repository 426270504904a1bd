// Package index implements the staging area: an ordered set of path
// entries persisted as the binary DIRC index file.
package index

import (
	"errors"
	"fmt"
	"sort"

	"github.com/grithq/grit/pkg/object"
	"github.com/grithq/grit/pkg/storage"
)

// ErrCorrupt reports a malformed or checksum-failing index file.
var ErrCorrupt = errors.New("corrupt index")

// IndexPath is where the staging index lives inside a repository.
const IndexPath = ".git/index"

// Entry is one staged file.
type Entry struct {
	Path    string
	Hash    object.Hash
	Mode    string
	Size    uint32
	MTimeMS uint64
}

// Index is the in-memory staging area. Entries are kept sorted by path
// and unique per path.
type Index struct {
	entries []Entry
}

// New returns an empty index.
func New() *Index {
	return &Index{}
}

// Len returns the number of entries.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Entries returns the entries in path order. The slice is a copy.
func (ix *Index) Entries() []Entry {
	out := make([]Entry, len(ix.entries))
	copy(out, ix.entries)
	return out
}

// Get returns the entry for path, or nil if the path is not staged.
func (ix *Index) Get(path string) *Entry {
	i := ix.search(path)
	if i < len(ix.entries) && ix.entries[i].Path == path {
		e := ix.entries[i]
		return &e
	}
	return nil
}

// Set inserts or replaces the entry for e.Path, keeping path order.
func (ix *Index) Set(e Entry) {
	i := ix.search(e.Path)
	if i < len(ix.entries) && ix.entries[i].Path == e.Path {
		ix.entries[i] = e
		return
	}
	ix.entries = append(ix.entries, Entry{})
	copy(ix.entries[i+1:], ix.entries[i:])
	ix.entries[i] = e
}

// Remove deletes the entry for path, reporting whether it existed.
func (ix *Index) Remove(path string) bool {
	i := ix.search(path)
	if i >= len(ix.entries) || ix.entries[i].Path != path {
		return false
	}
	ix.entries = append(ix.entries[:i], ix.entries[i+1:]...)
	return true
}

// Clear drops every entry.
func (ix *Index) Clear() {
	ix.entries = ix.entries[:0]
}

func (ix *Index) search(path string) int {
	return sort.Search(len(ix.entries), func(i int) bool {
		return ix.entries[i].Path >= path
	})
}

// UpdateFromTree replaces the index contents with the leaves of the given
// tree: one entry per non-directory leaf, full path joined with "/", mode
// copied verbatim. Entry sizes come from the blob payloads; timestamps
// reset to zero since the working tree is rewritten alongside.
func (ix *Index) UpdateFromTree(store *object.Store, treeHash object.Hash) error {
	flat, err := store.FlattenTree(treeHash)
	if err != nil {
		return fmt.Errorf("index from tree %s: %w", treeHash, err)
	}
	entries := make([]Entry, 0, len(flat))
	for _, f := range flat {
		var size uint32
		if data, err := store.ReadBlob(f.Hash); err == nil {
			size = uint32(len(data))
		}
		entries = append(entries, Entry{
			Path: f.Path,
			Hash: f.Hash,
			Mode: f.Mode,
			Size: size,
		})
	}
	ix.entries = entries
	return nil
}

// Load reads the index from st. A missing file yields an empty index.
func Load(st storage.Storage) (*Index, error) {
	data, err := st.ReadFile(IndexPath)
	if err != nil {
		if storage.IsNotFound(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("load index: %w", err)
	}
	ix, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	return ix, nil
}

// Save persists the index to st.
func Save(st storage.Storage, ix *Index) error {
	data, err := Marshal(ix)
	if err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	if err := st.WriteFile(IndexPath, data); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}
