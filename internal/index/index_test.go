package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vcsmini/vcsmini/internal/object"
)

func TestOpenMissingFileIsEmpty(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	require.Empty(t, idx.TOC())
}

func TestWriteNonConflictAndSaveOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")
	idx, err := Open(path)
	require.NoError(t, err)

	h1 := object.Sum([]byte("a"))
	h2 := object.Sum([]byte("b"))
	idx.WriteNonConflict("a.txt", h1, object.ModeRegular)
	idx.WriteNonConflict("bin/b.sh", h2, object.ModeExecutable)
	require.NoError(t, idx.Save())

	reopened, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, map[string]Record{
		"a.txt":   {Hash: h1, Mode: object.ModeRegular},
		"bin/b.sh": {Hash: h2, Mode: object.ModeExecutable},
	}, reopened.TOC())
}

func TestWriteRMRemovesEntry(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	h := object.Sum([]byte("a"))
	idx.WriteNonConflict("a.txt", h, object.ModeRegular)
	require.True(t, idx.HasFile("a.txt"))
	idx.WriteRM("a.txt")
	require.False(t, idx.HasFile("a.txt"))
}

func TestWriteConflictMarksFileInConflict(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	base := &Record{Hash: object.Sum([]byte("base")), Mode: object.ModeRegular}
	ours := &Record{Hash: object.Sum([]byte("ours")), Mode: object.ModeRegular}
	theirs := &Record{Hash: object.Sum([]byte("theirs")), Mode: object.ModeRegular}
	idx.WriteConflict("c.txt", base, ours, theirs)

	require.True(t, idx.IsFileInConflict("c.txt"))
	require.Equal(t, []string{"c.txt"}, idx.ConflictedPaths())
	require.Empty(t, idx.TOC())
}

func TestWriteConflictAddAddHasNilBase(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	ours := &Record{Hash: object.Sum([]byte("ours")), Mode: object.ModeRegular}
	theirs := &Record{Hash: object.Sum([]byte("theirs")), Mode: object.ModeRegular}
	idx.WriteConflict("c.txt", nil, ours, theirs)
	require.True(t, idx.IsFileInConflict("c.txt"))
}

func TestConflictResolvedByWriteNonConflictClearsConflict(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	base := &Record{Hash: object.Sum([]byte("base")), Mode: object.ModeRegular}
	ours := &Record{Hash: object.Sum([]byte("ours")), Mode: object.ModeRegular}
	theirs := &Record{Hash: object.Sum([]byte("theirs")), Mode: object.ModeRegular}
	idx.WriteConflict("c.txt", base, ours, theirs)

	resolved := object.Sum([]byte("resolved"))
	idx.WriteNonConflict("c.txt", resolved, object.ModeRegular)
	require.False(t, idx.IsFileInConflict("c.txt"))
	require.Equal(t, Record{Hash: resolved, Mode: object.ModeRegular}, idx.TOC()["c.txt"])
}

func TestMatchingFiles(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	idx.WriteNonConflict("a.txt", object.Sum([]byte("a")), object.ModeRegular)
	idx.WriteNonConflict("dir/b.txt", object.Sum([]byte("b")), object.ModeRegular)
	idx.WriteNonConflict("dir/c.txt", object.Sum([]byte("c")), object.ModeRegular)
	idx.WriteNonConflict("dirextra.txt", object.Sum([]byte("d")), object.ModeRegular)

	require.Equal(t, []string{"a.txt", "dir/b.txt", "dir/c.txt", "dirextra.txt"}, idx.MatchingFiles(""))
	require.Equal(t, []string{"dir/b.txt", "dir/c.txt"}, idx.MatchingFiles("dir"))
	require.Equal(t, []string{"a.txt"}, idx.MatchingFiles("a.txt"))
}

func TestTOCToIndexReplacesContents(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	idx.WriteNonConflict("old.txt", object.Sum([]byte("old")), object.ModeRegular)

	h := object.Sum([]byte("new"))
	idx.TOCToIndex(map[string]Record{"new.txt": {Hash: h, Mode: object.ModeRegular}})

	require.False(t, idx.HasFile("old.txt"))
	require.Equal(t, map[string]Record{"new.txt": {Hash: h, Mode: object.ModeRegular}}, idx.TOC())
}
