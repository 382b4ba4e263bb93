package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vcsmini/vcsmini/internal/object"
	"github.com/vcsmini/vcsmini/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	return st
}

func writeCommit(t *testing.T, st *store.Store, msg string, parents ...object.Hash) object.Hash {
	t.Helper()
	treeHash, err := st.WriteTree(store.NestedTOC{})
	require.NoError(t, err)
	h, err := st.WriteCommit(treeHash, msg, parents)
	require.NoError(t, err)
	return h
}

// chain builds n linear commits, c0 <- c1 <- ... <- c(n-1), and returns them
// oldest first.
func chain(t *testing.T, st *store.Store, n int, prefix string) []object.Hash {
	t.Helper()
	var hashes []object.Hash
	var parent []object.Hash
	for i := 0; i < n; i++ {
		h := writeCommit(t, st, prefix, parent...)
		hashes = append(hashes, h)
		parent = []object.Hash{h}
	}
	return hashes
}

func TestAncestorsLinearHistory(t *testing.T) {
	st := newTestStore(t)
	g := New(st)
	commits := chain(t, st, 4, "c")

	ancestors, err := g.Ancestors(commits[3])
	require.NoError(t, err)
	require.True(t, ancestors.Contains(commits[0]))
	require.True(t, ancestors.Contains(commits[1]))
	require.True(t, ancestors.Contains(commits[2]))
	require.False(t, ancestors.Contains(commits[3])) // not its own ancestor
}

func TestIsAncestorSelfIsTrue(t *testing.T) {
	st := newTestStore(t)
	g := New(st)
	h := writeCommit(t, st, "root")
	ok, err := g.IsAncestor(h, h)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestIsAncestorLinearHistory(t *testing.T) {
	st := newTestStore(t)
	g := New(st)
	commits := chain(t, st, 3, "c")

	ok, err := g.IsAncestor(commits[0], commits[2])
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = g.IsAncestor(commits[2], commits[0])
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIsUpToDate(t *testing.T) {
	st := newTestStore(t)
	g := New(st)
	commits := chain(t, st, 2, "c")

	upToDate, err := g.IsUpToDate(commits[1], commits[0])
	require.NoError(t, err)
	require.True(t, upToDate)

	upToDate, err = g.IsUpToDate(commits[0], commits[1])
	require.NoError(t, err)
	require.False(t, upToDate)
}

// TestCommonAncestorDiamond builds two branches off one root:
//
//	root -> a
//	root -> b
//
// and expects root (the only point reachable from both a and b) as the base.
func TestCommonAncestorDiamond(t *testing.T) {
	st := newTestStore(t)
	g := New(st)
	root := writeCommit(t, st, "root")
	a := writeCommit(t, st, "a", root)
	b := writeCommit(t, st, "b", root)

	base, ok, err := g.CommonAncestor(a, b)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, root, base)
}

func TestCommonAncestorOneIsAncestorOfOther(t *testing.T) {
	st := newTestStore(t)
	g := New(st)
	commits := chain(t, st, 3, "c")

	base, ok, err := g.CommonAncestor(commits[0], commits[2])
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, commits[0], base)
}

func TestCommonAncestorSameCommit(t *testing.T) {
	st := newTestStore(t)
	g := New(st)
	h := writeCommit(t, st, "root")
	base, ok, err := g.CommonAncestor(h, h)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, h, base)
}

func TestCommonAncestorNoneWhenDisjointHistories(t *testing.T) {
	st := newTestStore(t)
	g := New(st)
	a := writeCommit(t, st, "a-root")
	b := writeCommit(t, st, "b-root")

	_, ok, err := g.CommonAncestor(a, b)
	require.NoError(t, err)
	require.False(t, ok)
}

// TestCommonAncestorCrissCross builds a criss-cross merge:
//
//	root -> a1, root -> b1
//	a2 = merge of (a1, b1)
//	b2 = merge of (b1, a1)
//
// both a1 and b1 are reachable from both a2 and b2, so CommonAncestor must
// deterministically pick one rather than erroring.
func TestCommonAncestorCrissCross(t *testing.T) {
	st := newTestStore(t)
	g := New(st)
	root := writeCommit(t, st, "root")
	a1 := writeCommit(t, st, "a1", root)
	b1 := writeCommit(t, st, "b1", root)
	a2 := writeCommit(t, st, "a2", a1, b1)
	b2 := writeCommit(t, st, "b2", b1, a1)

	base, ok, err := g.CommonAncestor(a2, b2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, []object.Hash{a1, b1}, base)
}

// TestProperty_IsAncestorReflexiveAndTransitive is spec.md §8's ancestry
// property: every commit is its own ancestor, and ancestry composes along a
// chain.
func TestProperty_IsAncestorReflexiveAndTransitive(t *testing.T) {
	st := newTestStore(t)
	g := New(st)
	commits := chain(t, st, 6, "c")

	for _, h := range commits {
		ok, err := g.IsAncestor(h, h)
		require.NoError(t, err)
		require.True(t, ok)
	}

	for i := 0; i < len(commits); i++ {
		for j := i; j < len(commits); j++ {
			ok, err := g.IsAncestor(commits[i], commits[j])
			require.NoError(t, err)
			require.True(t, ok, "commits[%d] should be an ancestor of commits[%d]", i, j)
		}
	}
}
