package merge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vcsmini/vcsmini/internal/diff"
	"github.com/vcsmini/vcsmini/internal/graph"
	"github.com/vcsmini/vcsmini/internal/object"
	"github.com/vcsmini/vcsmini/internal/store"
)

func fe(seed string) store.FileEntry {
	return store.FileEntry{Hash: object.Sum([]byte(seed)), Mode: object.ModeRegular}
}

func TestTwoWayDiffAddedModifiedDeleted(t *testing.T) {
	from := map[string]store.FileEntry{
		"unchanged.txt": fe("u"),
		"modified.txt":  fe("m1"),
		"deleted.txt":   fe("d"),
	}
	to := map[string]store.FileEntry{
		"unchanged.txt": fe("u"),
		"modified.txt":  fe("m2"),
		"added.txt":     fe("a"),
	}

	diffs := TwoWayDiff(from, to)
	byPath := map[string]diff.FileDiff{}
	for _, d := range diffs {
		byPath[d.Path] = d
	}

	require.NotContains(t, byPath, "unchanged.txt")
	require.Equal(t, diff.Modified, byPath["modified.txt"].Kind)
	require.Equal(t, diff.Added, byPath["added.txt"].Kind)
	require.Equal(t, diff.Deleted, byPath["deleted.txt"].Kind)
	require.Len(t, diffs, 3)
}

func TestThreeWayDiffOursUnchangedTakesTheirs(t *testing.T) {
	base := map[string]store.FileEntry{"a.txt": fe("base")}
	ours := map[string]store.FileEntry{"a.txt": fe("base")}
	theirs := map[string]store.FileEntry{"a.txt": fe("theirs")}

	diffs, hasConflicts := ThreeWayDiff(base, ours, theirs)
	require.False(t, hasConflicts)
	require.Len(t, diffs, 1)
	require.Equal(t, diff.Modified, diffs[0].Kind)
	require.Equal(t, fe("theirs").Hash, diffs[0].Hash)
}

func TestThreeWayDiffTheirsUnchangedKeepsOurs(t *testing.T) {
	base := map[string]store.FileEntry{"a.txt": fe("base")}
	ours := map[string]store.FileEntry{"a.txt": fe("ours")}
	theirs := map[string]store.FileEntry{"a.txt": fe("base")}

	diffs, hasConflicts := ThreeWayDiff(base, ours, theirs)
	require.False(t, hasConflicts)
	require.Empty(t, diffs) // already reflects ours, nothing to materialize
}

func TestThreeWayDiffBothSidesAgreeIsNoop(t *testing.T) {
	base := map[string]store.FileEntry{"a.txt": fe("base")}
	ours := map[string]store.FileEntry{"a.txt": fe("same")}
	theirs := map[string]store.FileEntry{"a.txt": fe("same")}

	diffs, hasConflicts := ThreeWayDiff(base, ours, theirs)
	require.False(t, hasConflicts)
	require.Empty(t, diffs)
}

func TestThreeWayDiffBothSidesModifiedConflicts(t *testing.T) {
	base := map[string]store.FileEntry{"a.txt": fe("base")}
	ours := map[string]store.FileEntry{"a.txt": fe("ours")}
	theirs := map[string]store.FileEntry{"a.txt": fe("theirs")}

	diffs, hasConflicts := ThreeWayDiff(base, ours, theirs)
	require.True(t, hasConflicts)
	require.Len(t, diffs, 1)
	d := diffs[0]
	require.Equal(t, diff.Conflict, d.Kind)
	require.NotNil(t, d.Base)
	require.NotNil(t, d.Ours)
	require.NotNil(t, d.Theirs)
	require.Equal(t, fe("base").Hash, d.Base.Hash)
	require.Equal(t, fe("ours").Hash, d.Ours.Hash)
	require.Equal(t, fe("theirs").Hash, d.Theirs.Hash)
}

func TestThreeWayDiffDeleteModifyConflict(t *testing.T) {
	base := map[string]store.FileEntry{"a.txt": fe("base")}
	ours := map[string]store.FileEntry{} // we deleted it
	theirs := map[string]store.FileEntry{"a.txt": fe("theirs")}

	diffs, hasConflicts := ThreeWayDiff(base, ours, theirs)
	require.True(t, hasConflicts)
	require.Len(t, diffs, 1)
	require.Nil(t, diffs[0].Ours)
	require.NotNil(t, diffs[0].Theirs)
}

func TestThreeWayDiffAddAddSamePathDifferentContentConflicts(t *testing.T) {
	base := map[string]store.FileEntry{}
	ours := map[string]store.FileEntry{"a.txt": fe("ours")}
	theirs := map[string]store.FileEntry{"a.txt": fe("theirs")}

	diffs, hasConflicts := ThreeWayDiff(base, ours, theirs)
	require.True(t, hasConflicts)
	require.Nil(t, diffs[0].Base)
}

func newTestGraph(t *testing.T) (*graph.Graph, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	return graph.New(st), st
}

func writeTestCommit(t *testing.T, st *store.Store, msg string, parents ...object.Hash) object.Hash {
	t.Helper()
	treeHash, err := st.WriteTree(store.NestedTOC{})
	require.NoError(t, err)
	h, err := st.WriteCommit(treeHash, msg, parents)
	require.NoError(t, err)
	return h
}

func TestCanFastForward(t *testing.T) {
	g, st := newTestGraph(t)
	root := writeTestCommit(t, st, "root")
	ahead := writeTestCommit(t, st, "ahead", root)
	e := New(g)

	ok, err := e.CanFastForward(root, ahead)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.CanFastForward(ahead, root)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIsAForceFetchNoPriorFetchIsNotForced(t *testing.T) {
	g, st := newTestGraph(t)
	h := writeTestCommit(t, st, "c")
	e := New(g)

	forced, err := e.IsAForceFetch(object.Hash{}, false, h)
	require.NoError(t, err)
	require.False(t, forced)
}

func TestIsAForceFetchFastForwardIsNotForced(t *testing.T) {
	g, st := newTestGraph(t)
	root := writeTestCommit(t, st, "root")
	ahead := writeTestCommit(t, st, "ahead", root)
	e := New(g)

	forced, err := e.IsAForceFetch(root, true, ahead)
	require.NoError(t, err)
	require.False(t, forced)
}

func TestIsAForceFetchDivergedIsForced(t *testing.T) {
	g, st := newTestGraph(t)
	root := writeTestCommit(t, st, "root")
	sideA := writeTestCommit(t, st, "a", root)
	sideB := writeTestCommit(t, st, "b", root)
	e := New(g)

	forced, err := e.IsAForceFetch(sideA, true, sideB)
	require.NoError(t, err)
	require.True(t, forced)
}
