package merge

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/grithq/grit/pkg/object"
	"github.com/grithq/grit/pkg/storage"
)

type fileSet map[string]string

func writeTree(t *testing.T, store *object.Store, files fileSet) object.Hash {
	t.Helper()
	entries := make([]object.FlatEntry, 0, len(files))
	for path, content := range files {
		h, err := store.WriteBlob([]byte(content))
		if err != nil {
			t.Fatalf("WriteBlob(%q): %v", path, err)
		}
		entries = append(entries, object.FlatEntry{Path: path, Mode: object.TreeModeFile, Hash: h})
	}
	treeHash, err := store.WriteTreeFromFlat(entries)
	if err != nil {
		t.Fatalf("WriteTreeFromFlat: %v", err)
	}
	return treeHash
}

func readTree(t *testing.T, store *object.Store, treeHash object.Hash) fileSet {
	t.Helper()
	flat, err := store.FlattenTree(treeHash)
	if err != nil {
		t.Fatalf("FlattenTree: %v", err)
	}
	out := fileSet{}
	for _, e := range flat {
		data, err := store.ReadBlob(e.Hash)
		if err != nil {
			t.Fatalf("ReadBlob(%q): %v", e.Path, err)
		}
		out[e.Path] = string(data)
	}
	return out
}

func newTestStore(t *testing.T) *object.Store {
	t.Helper()
	return object.NewStore(storage.NewMemory())
}

func TestTreesStructural(t *testing.T) {
	tests := []struct {
		name          string
		base          fileSet
		ours          fileSet
		theirs        fileSet
		want          fileSet
		wantConflicts []string
	}{
		{
			name:   "identical inputs",
			base:   fileSet{"a.txt": "a\n"},
			ours:   fileSet{"a.txt": "a\n"},
			theirs: fileSet{"a.txt": "a\n"},
			want:   fileSet{"a.txt": "a\n"},
		},
		{
			name:   "ours modified only",
			base:   fileSet{"a.txt": "a\n"},
			ours:   fileSet{"a.txt": "A\n"},
			theirs: fileSet{"a.txt": "a\n"},
			want:   fileSet{"a.txt": "A\n"},
		},
		{
			name:   "theirs modified only",
			base:   fileSet{"a.txt": "a\n"},
			ours:   fileSet{"a.txt": "a\n"},
			theirs: fileSet{"a.txt": "A\n"},
			want:   fileSet{"a.txt": "A\n"},
		},
		{
			name:   "both modified identically",
			base:   fileSet{"a.txt": "a\n"},
			ours:   fileSet{"a.txt": "A\n"},
			theirs: fileSet{"a.txt": "A\n"},
			want:   fileSet{"a.txt": "A\n"},
		},
		{
			name:   "both deleted",
			base:   fileSet{"a.txt": "a\n", "keep.txt": "k\n"},
			ours:   fileSet{"keep.txt": "k\n"},
			theirs: fileSet{"keep.txt": "k\n"},
			want:   fileSet{"keep.txt": "k\n"},
		},
		{
			name:   "they deleted, we kept untouched",
			base:   fileSet{"a.txt": "a\n", "keep.txt": "k\n"},
			ours:   fileSet{"a.txt": "a\n", "keep.txt": "k\n"},
			theirs: fileSet{"keep.txt": "k\n"},
			want:   fileSet{"keep.txt": "k\n"},
		},
		{
			name:   "they deleted, we modified",
			base:   fileSet{"a.txt": "a\n"},
			ours:   fileSet{"a.txt": "A\n"},
			theirs: fileSet{},
			want:   fileSet{"a.txt": "A\n"},
		},
		{
			name:   "added on one side",
			base:   fileSet{"a.txt": "a\n"},
			ours:   fileSet{"a.txt": "a\n", "new.txt": "n\n"},
			theirs: fileSet{"a.txt": "a\n"},
			want:   fileSet{"a.txt": "a\n", "new.txt": "n\n"},
		},
		{
			name:   "added on both sides same content",
			base:   fileSet{},
			ours:   fileSet{"new.txt": "n\n"},
			theirs: fileSet{"new.txt": "n\n"},
			want:   fileSet{"new.txt": "n\n"},
		},
		{
			name:          "added on both sides different content",
			base:          fileSet{},
			ours:          fileSet{"new.txt": "ours\n"},
			theirs:        fileSet{"new.txt": "theirs\n"},
			wantConflicts: []string{"new.txt"},
		},
		{
			name:          "added on both sides one side empty",
			base:          fileSet{},
			ours:          fileSet{"new.txt": ""},
			theirs:        fileSet{"new.txt": "hello\n"},
			wantConflicts: []string{"new.txt"},
		},
		{
			name:   "nested paths merge independently",
			base:   fileSet{"src/a.go": "a\n", "src/b.go": "b\n"},
			ours:   fileSet{"src/a.go": "A\n", "src/b.go": "b\n"},
			theirs: fileSet{"src/a.go": "a\n", "src/b.go": "B\n"},
			want:   fileSet{"src/a.go": "A\n", "src/b.go": "B\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			base := writeTree(t, store, tt.base)
			ours := writeTree(t, store, tt.ours)
			theirs := writeTree(t, store, tt.theirs)

			res, err := Trees(store, base, ours, theirs, StrategyRecursive)
			if err != nil {
				t.Fatalf("Trees: %v", err)
			}

			var gotConflicts []string
			for _, c := range res.Conflicts {
				gotConflicts = append(gotConflicts, c.Path)
			}
			if diff := cmp.Diff(tt.wantConflicts, gotConflicts); diff != "" {
				t.Fatalf("conflict paths mismatch (-want +got):\n%s", diff)
			}
			if len(tt.wantConflicts) > 0 {
				return
			}
			got := readTree(t, store, res.TreeHash)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("merged tree mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTreesContentMerge(t *testing.T) {
	store := newTestStore(t)
	base := writeTree(t, store, fileSet{"f.txt": "one\ntwo\nthree\n"})
	ours := writeTree(t, store, fileSet{"f.txt": "ONE\ntwo\nthree\n"})
	theirs := writeTree(t, store, fileSet{"f.txt": "one\ntwo\nTHREE\n"})

	res, err := Trees(store, base, ours, theirs, StrategyRecursive)
	if err != nil {
		t.Fatalf("Trees: %v", err)
	}
	if res.HasConflicts() {
		t.Fatalf("unexpected conflicts: %+v", res.Conflicts)
	}
	got := readTree(t, store, res.TreeHash)
	if got["f.txt"] != "ONE\ntwo\nTHREE\n" {
		t.Errorf("merged content = %q, want %q", got["f.txt"], "ONE\ntwo\nTHREE\n")
	}
}

func TestTreesContentConflictMarkers(t *testing.T) {
	store := newTestStore(t)
	base := writeTree(t, store, fileSet{"f.txt": "line\n"})
	ours := writeTree(t, store, fileSet{"f.txt": "ours\n"})
	theirs := writeTree(t, store, fileSet{"f.txt": "theirs\n"})

	res, err := Trees(store, base, ours, theirs, StrategyRecursive)
	if err != nil {
		t.Fatalf("Trees: %v", err)
	}
	if len(res.Conflicts) != 1 || res.Conflicts[0].Path != "f.txt" {
		t.Fatalf("Conflicts = %+v, want one at f.txt", res.Conflicts)
	}

	got := readTree(t, store, res.TreeHash)
	want := "<<<<<<< ours\nours\n=======\ntheirs\n>>>>>>> theirs\n"
	if got["f.txt"] != want {
		t.Errorf("conflict content = %q, want %q", got["f.txt"], want)
	}
}

func TestTreesResolveSkipsLineMerge(t *testing.T) {
	store := newTestStore(t)
	base := writeTree(t, store, fileSet{"f.txt": "one\ntwo\n"})
	ours := writeTree(t, store, fileSet{"f.txt": "ONE\ntwo\n"})
	theirs := writeTree(t, store, fileSet{"f.txt": "one\nTWO\n"})

	res, err := Trees(store, base, ours, theirs, StrategyResolve)
	if err != nil {
		t.Fatalf("Trees: %v", err)
	}
	if len(res.Conflicts) != 1 {
		t.Fatalf("resolve strategy Conflicts = %+v, want 1", res.Conflicts)
	}
}

func TestTreesBinaryConflict(t *testing.T) {
	store := newTestStore(t)
	base := writeTree(t, store, fileSet{"bin": "a\x00b"})
	ours := writeTree(t, store, fileSet{"bin": "a\x00c"})
	theirs := writeTree(t, store, fileSet{"bin": "a\x00d"})

	res, err := Trees(store, base, ours, theirs, StrategyRecursive)
	if err != nil {
		t.Fatalf("Trees: %v", err)
	}
	if len(res.Conflicts) != 1 {
		t.Fatalf("binary both-modified should conflict, got %+v", res.Conflicts)
	}
	// Our bytes survive unchanged; no markers are spliced into binaries.
	got := readTree(t, store, res.TreeHash)
	if got["bin"] != "a\x00c" {
		t.Errorf("binary conflict kept %q, want ours", got["bin"])
	}
}

func TestTreesOursTheirsStrategies(t *testing.T) {
	store := newTestStore(t)
	base := writeTree(t, store, fileSet{"f.txt": "base\n"})
	ours := writeTree(t, store, fileSet{"f.txt": "ours\n"})
	theirs := writeTree(t, store, fileSet{"f.txt": "theirs\n"})

	res, err := Trees(store, base, ours, theirs, StrategyOurs)
	if err != nil {
		t.Fatalf("Trees(ours): %v", err)
	}
	if res.TreeHash != ours {
		t.Errorf("ours strategy TreeHash = %s, want %s", res.TreeHash, ours)
	}

	res, err = Trees(store, base, ours, theirs, StrategyTheirs)
	if err != nil {
		t.Fatalf("Trees(theirs): %v", err)
	}
	if res.TreeHash != theirs {
		t.Errorf("theirs strategy TreeHash = %s, want %s", res.TreeHash, theirs)
	}
}

func TestOctopus(t *testing.T) {
	store := newTestStore(t)
	base := writeTree(t, store, fileSet{"a.txt": "a\n", "b.txt": "b\n", "c.txt": "c\n"})
	h1 := writeTree(t, store, fileSet{"a.txt": "A\n", "b.txt": "b\n", "c.txt": "c\n"})
	h2 := writeTree(t, store, fileSet{"a.txt": "a\n", "b.txt": "B\n", "c.txt": "c\n"})
	h3 := writeTree(t, store, fileSet{"a.txt": "a\n", "b.txt": "b\n", "c.txt": "C\n"})

	res, err := Octopus(store, base, []object.Hash{h1, h2, h3})
	if err != nil {
		t.Fatalf("Octopus: %v", err)
	}
	got := readTree(t, store, res.TreeHash)
	want := fileSet{"a.txt": "A\n", "b.txt": "B\n", "c.txt": "C\n"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("octopus tree mismatch (-want +got):\n%s", diff)
	}
}

func TestOctopusConflictAborts(t *testing.T) {
	store := newTestStore(t)
	base := writeTree(t, store, fileSet{"a.txt": "a\n"})
	h1 := writeTree(t, store, fileSet{"a.txt": "one\n"})
	h2 := writeTree(t, store, fileSet{"a.txt": "two\n"})

	if _, err := Octopus(store, base, []object.Hash{h1, h2}); !errors.Is(err, ErrConflict) {
		t.Fatalf("Octopus with diverging heads: err = %v, want ErrConflict", err)
	}
}

func TestLines(t *testing.T) {
	tests := []struct {
		name      string
		base      string
		ours      string
		theirs    string
		want      string
		wantClean bool
	}{
		{
			name: "no changes", base: "a\nb\n", ours: "a\nb\n", theirs: "a\nb\n",
			want: "a\nb\n", wantClean: true,
		},
		{
			name: "disjoint line edits", base: "a\nb\nc\n", ours: "A\nb\nc\n", theirs: "a\nb\nC\n",
			want: "A\nb\nC\n", wantClean: true,
		},
		{
			name: "same line both changed", base: "a\n", ours: "x\n", theirs: "y\n",
			want: "<<<<<<< ours\nx\n=======\ny\n>>>>>>> theirs\n", wantClean: false,
		},
		{
			name: "ours appended", base: "a\n", ours: "a\nb\n", theirs: "a\n",
			want: "a\nb\n", wantClean: true,
		},
		{
			name: "empty base both add same", base: "", ours: "x\n", theirs: "x\n",
			want: "x\n", wantClean: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clean := Lines([]byte(tt.base), []byte(tt.ours), []byte(tt.theirs))
			if string(got) != tt.want {
				t.Errorf("merged = %q, want %q", got, tt.want)
			}
			if clean != tt.wantClean {
				t.Errorf("clean = %v, want %v", clean, tt.wantClean)
			}
		})
	}
}

func TestIsBinary(t *testing.T) {
	if IsBinary([]byte("plain text\n")) {
		t.Error("text misdetected as binary")
	}
	if !IsBinary([]byte("a\x00b")) {
		t.Error("NUL byte not detected")
	}
	// NUL beyond the sniff window does not count.
	big := append([]byte(strings.Repeat("x", binarySniffLen)), 0)
	if IsBinary(big) {
		t.Error("NUL past sniff window misdetected")
	}
}

func TestDetectRenames(t *testing.T) {
	store := newTestStore(t)
	content := "alpha\nbeta\ngamma\ndelta\n"
	oldTree := writeTree(t, store, fileSet{
		"old/name.txt": content,
		"same.txt":     "same\n",
	})
	newTree := writeTree(t, store, fileSet{
		"new/name.txt": content,
		"same.txt":     "same\n",
		"unrelated.md": "completely different\n",
	})

	renames, err := DetectRenames(store, oldTree, newTree, 0.5)
	if err != nil {
		t.Fatalf("DetectRenames: %v", err)
	}
	want := []Rename{{From: "old/name.txt", To: "new/name.txt", Similarity: 1}}
	if diff := cmp.Diff(want, renames); diff != "" {
		t.Errorf("renames mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectRenamesGreedyUnique(t *testing.T) {
	store := newTestStore(t)
	exact := "one\ntwo\nthree\nfour\n"
	near := "one\ntwo\nthree\nFOUR\n"
	oldTree := writeTree(t, store, fileSet{"a.txt": exact})
	newTree := writeTree(t, store, fileSet{"b.txt": exact, "c.txt": near})

	renames, err := DetectRenames(store, oldTree, newTree, 0.1)
	if err != nil {
		t.Fatalf("DetectRenames: %v", err)
	}
	if len(renames) != 1 {
		t.Fatalf("got %d renames, want 1 (greedy unique): %+v", len(renames), renames)
	}
	if renames[0].To != "b.txt" {
		t.Errorf("best match To = %q, want b.txt", renames[0].To)
	}
}

func TestDetectRenamesThresholdRange(t *testing.T) {
	store := newTestStore(t)
	if _, err := DetectRenames(store, "", "", 1.5); err == nil {
		t.Fatal("threshold 1.5 accepted, want error")
	}
}
