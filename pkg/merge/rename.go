package merge

import (
	"fmt"
	"sort"

	"github.com/grithq/grit/pkg/object"
)

// Rename pairs a deleted path with the added path it most resembles.
type Rename struct {
	From       string
	To         string
	Similarity float64
}

// DetectRenames compares two trees and pairs paths deleted in newTree with
// paths added there whose content similarity meets threshold. Similarity is
// the Jaccard index over each blob's set of unique lines. Candidate pairs
// are ranked by descending similarity and matched greedily so every path
// appears in at most one rename.
func DetectRenames(store *object.Store, oldTree, newTree object.Hash, threshold float64) ([]Rename, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("rename threshold %v out of range [0,1]", threshold)
	}
	oldSet, err := flatMap(store, oldTree)
	if err != nil {
		return nil, err
	}
	newSet, err := flatMap(store, newTree)
	if err != nil {
		return nil, err
	}

	var deleted, added []object.FlatEntry
	for p, e := range oldSet {
		if _, ok := newSet[p]; !ok {
			deleted = append(deleted, e)
		}
	}
	for p, e := range newSet {
		if _, ok := oldSet[p]; !ok {
			added = append(added, e)
		}
	}
	sort.Slice(deleted, func(i, j int) bool { return deleted[i].Path < deleted[j].Path })
	sort.Slice(added, func(i, j int) bool { return added[i].Path < added[j].Path })

	lineSet := func(h object.Hash) (map[string]struct{}, error) {
		data, err := store.ReadBlob(h)
		if err != nil {
			return nil, fmt.Errorf("rename candidate %s: %w", h, err)
		}
		set := make(map[string]struct{})
		for _, line := range splitLines(data) {
			set[line] = struct{}{}
		}
		return set, nil
	}

	var candidates []Rename
	for _, d := range deleted {
		dLines, err := lineSet(d.Hash)
		if err != nil {
			return nil, err
		}
		for _, a := range added {
			aLines, err := lineSet(a.Hash)
			if err != nil {
				return nil, err
			}
			sim := jaccard(dLines, aLines)
			if sim >= threshold {
				candidates = append(candidates, Rename{From: d.Path, To: a.Path, Similarity: sim})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})

	usedFrom := make(map[string]struct{})
	usedTo := make(map[string]struct{})
	var out []Rename
	for _, c := range candidates {
		if _, ok := usedFrom[c.From]; ok {
			continue
		}
		if _, ok := usedTo[c.To]; ok {
			continue
		}
		usedFrom[c.From] = struct{}{}
		usedTo[c.To] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

// jaccard computes intersection-over-union of two line sets. Two empty
// sets count as identical.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for line := range a {
		if _, ok := b[line]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
