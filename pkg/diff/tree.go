package diff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/grithq/grit/pkg/merge"
	"github.com/grithq/grit/pkg/object"
)

// ChangeKind classifies a path-level change between two trees.
type ChangeKind int

const (
	Added ChangeKind = iota
	Deleted
	Modified
	Renamed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Deleted:
		return "deleted"
	case Modified:
		return "modified"
	case Renamed:
		return "renamed"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

// Change records one path-level difference. OldPath is set only for
// renames.
type Change struct {
	Kind    ChangeKind
	Path    string
	OldPath string
	OldHash object.Hash
	NewHash object.Hash
	OldMode string
	NewMode string
}

// DefaultRenameThreshold is the similarity cutoff for pairing a deleted
// path with an added one.
const DefaultRenameThreshold = 0.5

// Trees lists the changes from oldTree to newTree, pairing delete/add
// couples whose content similarity reaches renameThreshold into renames.
// Changes come back sorted by path.
func Trees(store *object.Store, oldTree, newTree object.Hash, renameThreshold float64) ([]Change, error) {
	oldFlat, err := flatten(store, oldTree)
	if err != nil {
		return nil, err
	}
	newFlat, err := flatten(store, newTree)
	if err != nil {
		return nil, err
	}

	var changes []Change
	for path, oldE := range oldFlat {
		newE, ok := newFlat[path]
		if !ok {
			changes = append(changes, Change{
				Kind: Deleted, Path: path,
				OldHash: oldE.Hash, OldMode: oldE.Mode,
			})
			continue
		}
		if oldE.Hash != newE.Hash || oldE.Mode != newE.Mode {
			changes = append(changes, Change{
				Kind: Modified, Path: path,
				OldHash: oldE.Hash, NewHash: newE.Hash,
				OldMode: oldE.Mode, NewMode: newE.Mode,
			})
		}
	}
	for path, newE := range newFlat {
		if _, ok := oldFlat[path]; !ok {
			changes = append(changes, Change{
				Kind: Added, Path: path,
				NewHash: newE.Hash, NewMode: newE.Mode,
			})
		}
	}

	if renameThreshold > 0 {
		renames, err := merge.DetectRenames(store, oldTree, newTree, renameThreshold)
		if err != nil {
			return nil, err
		}
		changes = foldRenames(changes, renames)
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

// foldRenames collapses matching Deleted/Added pairs into single Renamed
// changes.
func foldRenames(changes []Change, renames []merge.Rename) []Change {
	if len(renames) == 0 {
		return changes
	}
	byFrom := make(map[string]merge.Rename, len(renames))
	byTo := make(map[string]merge.Rename, len(renames))
	for _, r := range renames {
		byFrom[r.From] = r
		byTo[r.To] = r
	}

	deleted := make(map[string]Change)
	for _, c := range changes {
		if c.Kind == Deleted {
			deleted[c.Path] = c
		}
	}

	out := changes[:0]
	for _, c := range changes {
		switch c.Kind {
		case Deleted:
			if _, ok := byFrom[c.Path]; ok {
				continue // folded into the Renamed entry at the target path
			}
		case Added:
			if r, ok := byTo[c.Path]; ok {
				old := deleted[r.From]
				out = append(out, Change{
					Kind:    Renamed,
					Path:    c.Path,
					OldPath: r.From,
					OldHash: old.OldHash,
					NewHash: c.NewHash,
					OldMode: old.OldMode,
					NewMode: c.NewMode,
				})
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// Format renders changes as a unified-style diff. Binary blobs get a one
// line note instead of hunks.
func Format(store *object.Store, changes []Change) (string, error) {
	var b strings.Builder
	for _, c := range changes {
		oldLabel := c.Path
		if c.OldPath != "" {
			oldLabel = c.OldPath
		}
		switch c.Kind {
		case Added:
			fmt.Fprintf(&b, "+++ b/%s\n", c.Path)
			if err := writeBlobLines(&b, store, c.NewHash, "+"); err != nil {
				return "", err
			}
		case Deleted:
			fmt.Fprintf(&b, "--- a/%s\n", c.Path)
			if err := writeBlobLines(&b, store, c.OldHash, "-"); err != nil {
				return "", err
			}
		case Modified, Renamed:
			fmt.Fprintf(&b, "--- a/%s\n", oldLabel)
			fmt.Fprintf(&b, "+++ b/%s\n", c.Path)
			if c.OldHash == c.NewHash {
				continue
			}
			oldData, err := store.ReadBlob(c.OldHash)
			if err != nil {
				return "", fmt.Errorf("diff %q: %w", c.Path, err)
			}
			newData, err := store.ReadBlob(c.NewHash)
			if err != nil {
				return "", fmt.Errorf("diff %q: %w", c.Path, err)
			}
			if merge.IsBinary(oldData) || merge.IsBinary(newData) {
				fmt.Fprintf(&b, "Binary files differ\n")
				continue
			}
			for _, op := range Lines(splitLines(oldData), splitLines(newData)) {
				switch op.Kind {
				case Delete:
					fmt.Fprintf(&b, "-%s\n", op.Line)
				case Insert:
					fmt.Fprintf(&b, "+%s\n", op.Line)
				case Equal:
					fmt.Fprintf(&b, " %s\n", op.Line)
				}
			}
		}
	}
	return b.String(), nil
}

func writeBlobLines(b *strings.Builder, store *object.Store, h object.Hash, marker string) error {
	data, err := store.ReadBlob(h)
	if err != nil {
		return fmt.Errorf("diff blob %s: %w", h, err)
	}
	if merge.IsBinary(data) {
		fmt.Fprintf(b, "Binary file\n")
		return nil
	}
	for _, line := range splitLines(data) {
		fmt.Fprintf(b, "%s%s\n", marker, line)
	}
	return nil
}

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func flatten(store *object.Store, treeHash object.Hash) (map[string]object.FlatEntry, error) {
	out := make(map[string]object.FlatEntry)
	if treeHash == "" {
		return out, nil
	}
	flat, err := store.FlattenTree(treeHash)
	if err != nil {
		return nil, fmt.Errorf("flatten %s: %w", treeHash, err)
	}
	for _, e := range flat {
		out[e.Path] = e
	}
	return out, nil
}
