// Package merge implements the three-way tree merge engine: structural
// entry classification, line-level content merge with conflict markers,
// pluggable strategies, and rename detection.
package merge

import (
	"errors"
	"fmt"

	"github.com/grithq/grit/pkg/object"
)

// ErrConflict reports that a merge produced unresolved conflicts.
var ErrConflict = errors.New("merge conflict")

// Strategy selects how a merge resolves divergent paths.
type Strategy string

const (
	// StrategyRecursive classifies entries structurally and line-merges
	// both-modified text files. The default.
	StrategyRecursive Strategy = "recursive"
	// StrategyResolve uses the structural rules only: any both-modified
	// path is a conflict.
	StrategyResolve Strategy = "resolve"
	// StrategyOurs returns our tree unchanged.
	StrategyOurs Strategy = "ours"
	// StrategyTheirs returns their tree unchanged.
	StrategyTheirs Strategy = "theirs"
	// StrategyOctopus folds recursive merges left-to-right over three or
	// more heads, with the first input as the shared base.
	StrategyOctopus Strategy = "octopus"
)

// Conflict records one path the merge could not resolve.
type Conflict struct {
	Path   string
	Base   object.Hash // zero value when absent in base
	Ours   object.Hash
	Theirs object.Hash
}

// Result is the outcome of a tree merge. Conflicted paths still get a tree
// entry, so TreeHash is always set: a both-modified text path carries
// marker-annotated content, while binary and add/add conflicts keep our
// entry. Callers treat a non-empty Conflicts list as failure.
type Result struct {
	TreeHash  object.Hash
	Conflicts []Conflict
}

// HasConflicts reports whether any path failed to merge.
func (r *Result) HasConflicts() bool {
	return len(r.Conflicts) > 0
}

// Trees merges ourTree and theirTree against baseTree with the given
// strategy. An empty base hash stands for the empty tree. StrategyOctopus
// is rejected here; use Octopus for multi-head merges.
func Trees(store *object.Store, baseTree, ourTree, theirTree object.Hash, strategy Strategy) (*Result, error) {
	switch strategy {
	case StrategyOurs:
		return &Result{TreeHash: ourTree}, nil
	case StrategyTheirs:
		return &Result{TreeHash: theirTree}, nil
	case "", StrategyRecursive, StrategyResolve:
	case StrategyOctopus:
		return nil, fmt.Errorf("octopus strategy needs multiple heads")
	default:
		return nil, fmt.Errorf("unknown merge strategy %q", strategy)
	}
	lineMerge := strategy != StrategyResolve

	base, err := flatMap(store, baseTree)
	if err != nil {
		return nil, err
	}
	ours, err := flatMap(store, ourTree)
	if err != nil {
		return nil, err
	}
	theirs, err := flatMap(store, theirTree)
	if err != nil {
		return nil, err
	}

	var (
		merged    []object.FlatEntry
		conflicts []Conflict
	)
	for _, p := range unionPaths(base, ours, theirs) {
		b, inBase := base[p]
		o, inOurs := ours[p]
		t, inTheirs := theirs[p]

		switch {
		case !inOurs && !inTheirs:
			// Deleted on both sides, or never present: omit.

		case inOurs && !inTheirs:
			// Theirs deleted. Our modification wins over their deletion;
			// an untouched entry follows the deletion.
			if !inBase || !sameEntry(b, o) {
				merged = append(merged, o)
			}

		case !inOurs && inTheirs:
			if !inBase || !sameEntry(b, t) {
				merged = append(merged, t)
			}

		default: // present on both sides
			switch {
			case o.Hash == t.Hash:
				merged = append(merged, o)
			case inBase && sameEntry(b, o):
				merged = append(merged, t)
			case inBase && sameEntry(b, t):
				merged = append(merged, o)
			case !inBase:
				// Added independently on both sides with different content.
				// There is no ancestor to merge against; always a conflict.
				merged = append(merged, o)
				conflicts = append(conflicts, Conflict{Path: p, Ours: o.Hash, Theirs: t.Hash})

			default:
				entry, conflicted, err := mergeEntryContent(store, p, b, o, t, lineMerge)
				if err != nil {
					return nil, err
				}
				merged = append(merged, entry)
				if conflicted {
					conflicts = append(conflicts, Conflict{Path: p, Base: b.Hash, Ours: o.Hash, Theirs: t.Hash})
				}
			}
		}
	}

	treeHash, err := store.WriteTreeFromFlat(merged)
	if err != nil {
		return nil, fmt.Errorf("write merged tree: %w", err)
	}
	return &Result{TreeHash: treeHash, Conflicts: conflicts}, nil
}

// Octopus folds a recursive merge left-to-right over heads, using base as
// the shared ancestor for every fold. Any conflict aborts.
func Octopus(store *object.Store, base object.Hash, heads []object.Hash) (*Result, error) {
	if len(heads) < 2 {
		return nil, fmt.Errorf("octopus merge needs at least 2 heads, got %d", len(heads))
	}
	current := heads[0]
	for _, head := range heads[1:] {
		res, err := Trees(store, base, current, head, StrategyRecursive)
		if err != nil {
			return nil, err
		}
		if res.HasConflicts() {
			return res, fmt.Errorf("%w: octopus fold stopped at %d conflicting paths", ErrConflict, len(res.Conflicts))
		}
		current = res.TreeHash
	}
	return &Result{TreeHash: current}, nil
}

// mergeEntryContent handles a path modified on both sides relative to a
// base version. Text files go through the line-level merge; binaries and
// resolve-strategy merges keep our entry and report a conflict.
func mergeEntryContent(store *object.Store, path string, b, o, t object.FlatEntry, lineMerge bool) (object.FlatEntry, bool, error) {
	if !lineMerge {
		return o, true, nil
	}

	ourData, err := store.ReadBlob(o.Hash)
	if err != nil {
		return object.FlatEntry{}, false, fmt.Errorf("merge %q: %w", path, err)
	}
	theirData, err := store.ReadBlob(t.Hash)
	if err != nil {
		return object.FlatEntry{}, false, fmt.Errorf("merge %q: %w", path, err)
	}
	if IsBinary(ourData) || IsBinary(theirData) {
		return o, true, nil
	}

	baseData, err := store.ReadBlob(b.Hash)
	if err != nil {
		return object.FlatEntry{}, false, fmt.Errorf("merge %q: %w", path, err)
	}

	mergedData, clean := Lines(baseData, ourData, theirData)
	blobHash, err := store.WriteBlob(mergedData)
	if err != nil {
		return object.FlatEntry{}, false, fmt.Errorf("merge %q: %w", path, err)
	}
	return object.FlatEntry{Path: path, Mode: o.Mode, Hash: blobHash}, !clean, nil
}

func flatMap(store *object.Store, treeHash object.Hash) (map[string]object.FlatEntry, error) {
	if treeHash == "" {
		return map[string]object.FlatEntry{}, nil
	}
	flat, err := store.FlattenTree(treeHash)
	if err != nil {
		return nil, fmt.Errorf("flatten %s: %w", treeHash, err)
	}
	out := make(map[string]object.FlatEntry, len(flat))
	for _, e := range flat {
		out[e.Path] = e
	}
	return out, nil
}

func sameEntry(a, b object.FlatEntry) bool {
	return a.Hash == b.Hash && a.Mode == b.Mode
}
