package object

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBlobEncodeDecodeRoundTrip(t *testing.T) {
	b := Blob{Data: []byte("hello world")}
	record := b.Encode()
	decoded, err := Decode(record)
	require.NoError(t, err)
	require.Equal(t, b, decoded)
}

func TestTreeEncodeDecodeRoundTrip(t *testing.T) {
	tree, err := NewTree([]TreeEntry{
		{Name: "b.txt", Kind: KindBlob, Mode: ModeRegular, Hash: Sum([]byte("b"))},
		{Name: "a.txt", Kind: KindBlob, Mode: ModeExecutable, Hash: Sum([]byte("a"))},
		{Name: "sub", Kind: KindTree, Mode: ModeDir, Hash: Sum([]byte("sub"))},
	})
	require.NoError(t, err)

	// NewTree must have sorted entries by name.
	require.Equal(t, "a.txt", tree.Entries[0].Name)
	require.Equal(t, "b.txt", tree.Entries[1].Name)
	require.Equal(t, "sub", tree.Entries[2].Name)

	decoded, err := Decode(tree.Encode())
	require.NoError(t, err)
	require.Equal(t, tree, decoded)
}

func TestNewTreeRejectsDuplicateNames(t *testing.T) {
	_, err := NewTree([]TreeEntry{
		{Name: "a", Kind: KindBlob, Hash: Sum([]byte("1"))},
		{Name: "a", Kind: KindBlob, Hash: Sum([]byte("2"))},
	})
	require.Error(t, err)
}

func TestCommitEncodeDecodeRoundTrip(t *testing.T) {
	c := Commit{
		Tree:    Sum([]byte("tree")),
		Parents: []Hash{Sum([]byte("p1")), Sum([]byte("p2"))},
		Message: []byte("merge branch x\n"),
	}
	decoded, err := Decode(c.Encode())
	require.NoError(t, err)
	require.Equal(t, c, decoded)
	require.True(t, decoded.(Commit).IsMerge())
}

func TestDecodeRejectsEmptyAndUnknownKind(t *testing.T) {
	_, err := Decode(nil)
	require.Error(t, err)

	_, err = Decode([]byte{99})
	require.Error(t, err)
}

func TestHashParseRoundTrip(t *testing.T) {
	h := Sum([]byte("some content"))
	parsed, err := Parse(h.String())
	require.NoError(t, err)
	require.Equal(t, h, parsed)
}

func TestHashParseRejectsWrongLength(t *testing.T) {
	_, err := Parse("deadbeef")
	require.Error(t, err)
}

// TestSumIsIdempotent is spec.md §8's content-addressing idempotence
// property: hashing the same record twice always yields the same Hash.
func TestSumIsIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")
		h1 := Sum(data)
		h2 := Sum(data)
		require.Equal(t, h1, h2)
	})
}

// TestTreeEncodingIsDeterministic is spec.md §8's tree-determinism
// property: NewTree sorts entries, so insertion order never changes the
// resulting encoding or hash.
func TestTreeEncodingIsDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 8).Draw(t, "n")
		names := make(map[string]bool, n)
		var entries []TreeEntry
		for i := 0; i < n; i++ {
			name := rapid.StringMatching(`[a-z][a-z0-9]{0,5}`).Draw(t, "name")
			if names[name] {
				continue
			}
			names[name] = true
			entries = append(entries, TreeEntry{
				Name: name,
				Kind: KindBlob,
				Mode: ModeRegular,
				Hash: Sum([]byte(name)),
			})
		}

		shuffled := make([]TreeEntry, len(entries))
		for i, e := range entries {
			shuffled[len(entries)-1-i] = e
		}

		t1, err := NewTree(entries)
		require.NoError(t, err)
		t2, err := NewTree(shuffled)
		require.NoError(t, err)
		require.Equal(t, t1.Encode(), t2.Encode())
	})
}

// TestCommitRoundTripsThroughDecode is spec.md §8's commit round-trip
// property.
func TestCommitRoundTripsThroughDecode(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nParents := rapid.IntRange(0, 2).Draw(t, "nparents")
		var parents []Hash
		for i := 0; i < nParents; i++ {
			parents = append(parents, Sum(rapid.SliceOfN(rapid.Byte(), 1, 32).Draw(t, "parent")))
		}
		msg := rapid.String().Draw(t, "msg")
		c := Commit{Tree: Sum([]byte("tree")), Parents: parents, Message: []byte(msg)}

		decoded, err := Decode(c.Encode())
		require.NoError(t, err)
		require.Equal(t, c, decoded)
	})
}
