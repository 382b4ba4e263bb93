// Package merge implements spec.md §4.6's MergeEngine: three-way diffing,
// fast-forward detection, and conflict materialization.
//
// Grounded on odvcencio-got's pkg/repo/merge.go (Merge/renderFileConflict):
// a path-by-path three-way comparison against the merge base, falling back
// to conflict markers when both sides touched a path differently.
package merge

import (
	"sort"

	"github.com/vcsmini/vcsmini/internal/diff"
	"github.com/vcsmini/vcsmini/internal/graph"
	"github.com/vcsmini/vcsmini/internal/object"
	"github.com/vcsmini/vcsmini/internal/store"
)

// Engine performs tree diffs and merges using a Graph for ancestry queries.
type Engine struct {
	Graph *graph.Graph
}

func New(g *graph.Graph) *Engine {
	return &Engine{Graph: g}
}

func entriesEqual(a, b *store.FileEntry) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Hash == b.Hash && a.Mode == b.Mode
}

func lookup(toc map[string]store.FileEntry, path string) *store.FileEntry {
	e, ok := toc[path]
	if !ok {
		return nil
	}
	return &e
}

func unionPaths(tocs ...map[string]store.FileEntry) []string {
	seen := map[string]struct{}{}
	for _, toc := range tocs {
		for p := range toc {
			seen[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// TwoWayDiff compares two flattened trees directly (no common base), used
// for fast-forward checkouts and for plain `diff`.
func TwoWayDiff(from, to map[string]store.FileEntry) []diff.FileDiff {
	var out []diff.FileDiff
	for _, path := range unionPaths(from, to) {
		f, t := lookup(from, path), lookup(to, path)
		if entriesEqual(f, t) {
			continue
		}
		switch {
		case f == nil:
			out = append(out, diff.FileDiff{Path: path, Kind: diff.Added, Hash: t.Hash, Mode: t.Mode})
		case t == nil:
			out = append(out, diff.FileDiff{Path: path, Kind: diff.Deleted})
		default:
			out = append(out, diff.FileDiff{Path: path, Kind: diff.Modified, Hash: t.Hash, Mode: t.Mode})
		}
	}
	return out
}

// ThreeWayDiff compares ours and theirs against their common base and
// returns the combined diff, plus whether any path needs manual conflict
// resolution. Diffs with Kind == Same are omitted from the result — nothing
// needs to change at that path.
func ThreeWayDiff(base, ours, theirs map[string]store.FileEntry) (diffs []diff.FileDiff, hasConflicts bool) {
	for _, path := range unionPaths(base, ours, theirs) {
		b, o, t := lookup(base, path), lookup(ours, path), lookup(theirs, path)

		if entriesEqual(o, t) {
			continue // both sides agree, nothing to do regardless of base
		}
		if entriesEqual(b, o) {
			// ours unchanged: take theirs' side wholesale.
			diffs = append(diffs, sideDiff(path, t))
			continue
		}
		if entriesEqual(b, t) {
			// theirs unchanged, ours already reflects the desired state.
			continue
		}

		hasConflicts = true
		fd := diff.FileDiff{Path: path, Kind: diff.Conflict}
		if b != nil {
			fd.Base = &diff.Side{Hash: b.Hash, Mode: b.Mode}
		}
		if o != nil {
			fd.Ours = &diff.Side{Hash: o.Hash, Mode: o.Mode}
		}
		if t != nil {
			fd.Theirs = &diff.Side{Hash: t.Hash, Mode: t.Mode}
		}
		diffs = append(diffs, fd)
	}
	return diffs, hasConflicts
}

func sideDiff(path string, e *store.FileEntry) diff.FileDiff {
	if e == nil {
		return diff.FileDiff{Path: path, Kind: diff.Deleted}
	}
	return diff.FileDiff{Path: path, Kind: diff.Modified, Hash: e.Hash, Mode: e.Mode}
}

// CanFastForward reports whether theirs can be reached by simply moving
// ours' ref forward — i.e. ours is an ancestor of theirs.
func (e *Engine) CanFastForward(ours, theirs object.Hash) (bool, error) {
	return e.Graph.IsAncestor(ours, theirs)
}

// FastForwardDiff is the set of changes to materialize when fast-forwarding
// the working tree from ours to theirs.
func FastForwardDiff(oursTOC, theirsTOC map[string]store.FileEntry) []diff.FileDiff {
	return TwoWayDiff(oursTOC, theirsTOC)
}

// IsAForceFetch reports whether replacing a remote-tracking ref currently
// at old with new would discard commits — true unless old is an ancestor
// of new (or old is absent, i.e. a first fetch).
func (e *Engine) IsAForceFetch(old object.Hash, hasOld bool, new object.Hash) (bool, error) {
	if !hasOld {
		return false, nil
	}
	isAncestor, err := e.Graph.IsAncestor(old, new)
	if err != nil {
		return false, err
	}
	return !isAncestor, nil
}
