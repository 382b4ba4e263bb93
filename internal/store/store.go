// Package store implements spec.md §4.1's ObjectStore: content-addressed
// persistence of blob/tree/commit objects, one file per object.
package store

import (
	"os"
	"path/filepath"

	"github.com/vcsmini/vcsmini/internal/errs"
	"github.com/vcsmini/vcsmini/internal/object"
)

// Store is a content-addressed, file-per-object ObjectStore, grounded on
// microprolly/pkg/cas.FileCAS's two-level directory layout and
// atomic-rename writes.
type Store struct {
	objectsDir string
}

// Open returns a Store rooted at objectsDir, creating it if absent.
func Open(objectsDir string) (*Store, error) {
	if err := os.MkdirAll(objectsDir, 0o777); err != nil {
		return nil, err
	}
	return &Store{objectsDir: objectsDir}, nil
}

func (s *Store) path(h object.Hash) string {
	hex := h.String()
	return filepath.Join(s.objectsDir, hex[:2], hex[2:])
}

// Exists reports whether h is present in the store.
func (s *Store) Exists(h object.Hash) bool {
	_, err := os.Stat(s.path(h))
	return err == nil
}

// Write canonicalizes obj, computes its Hash, and stores the bytes under
// that key. Idempotent: re-writing the same object is a no-op.
func (s *Store) Write(obj object.Object) (object.Hash, error) {
	record := obj.Encode()
	h := object.Sum(record)
	if s.Exists(h) {
		return h, nil
	}

	p := s.path(h)
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return object.Hash{}, err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return object.Hash{}, err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(record); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return object.Hash{}, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return object.Hash{}, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return object.Hash{}, err
	}
	if err := os.Rename(tmpPath, p); err != nil {
		os.Remove(tmpPath)
		return object.Hash{}, err
	}
	return h, nil
}

// Read returns the decoded object for h, or ok=false if absent. A byte
// record that fails to decode as any known variant is a fatal corruption
// error (spec.md §4.1), returned as err rather than folded into ok=false.
func (s *Store) Read(h object.Hash) (obj object.Object, ok bool, err error) {
	record, err := os.ReadFile(s.path(h))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	obj, err = object.Decode(record)
	if err != nil {
		return nil, false, errs.Wrap(errs.Corruption, err, "%s: corrupt object record", h)
	}
	return obj, true, nil
}

// ReadRaw returns the undecoded byte record for h, for transfer over a
// sync.Peer. ok=false if absent.
func (s *Store) ReadRaw(h object.Hash) (record []byte, ok bool, err error) {
	record, err = os.ReadFile(s.path(h))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return record, true, nil
}

// WriteRaw stores an already-encoded record received from a sync.Peer,
// verifying it hashes to the expected key before committing it.
func (s *Store) WriteRaw(expect object.Hash, record []byte) error {
	got := object.Sum(record)
	if got != expect {
		return errCorruptTransfer(expect, got)
	}
	if s.Exists(expect) {
		return nil
	}
	obj, err := object.Decode(record)
	if err != nil {
		return err
	}
	_, err = s.Write(obj)
	return err
}

// Type returns the Kind of an already-decoded object.
func Type(obj object.Object) object.Kind { return obj.Kind() }

// AllHashes enumerates every stored object.
func (s *Store) AllHashes() ([]object.Hash, error) {
	var hashes []object.Hash
	entries, err := os.ReadDir(s.objectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	for _, shard := range entries {
		if !shard.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.objectsDir, shard.Name()))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			hexStr := shard.Name() + f.Name()
			h, err := object.Parse(hexStr)
			if err != nil {
				continue // stray temp file etc.
			}
			hashes = append(hashes, h)
		}
	}
	return hashes, nil
}

// WriteBlob is a convenience wrapper over Write for raw bytes.
func (s *Store) WriteBlob(data []byte) (object.Hash, error) {
	return s.Write(object.Blob{Data: data})
}

// ReadBlob reads h and type-checks it as a Blob.
func (s *Store) ReadBlob(h object.Hash) (object.Blob, error) {
	obj, ok, err := s.Read(h)
	if err != nil {
		return object.Blob{}, err
	}
	if !ok {
		return object.Blob{}, errNotFound(h)
	}
	blob, ok := obj.(object.Blob)
	if !ok {
		return object.Blob{}, errWrongType(h, object.KindBlob, obj.Kind())
	}
	return blob, nil
}

// ReadTree reads h and type-checks it as a Tree.
func (s *Store) ReadTree(h object.Hash) (object.Tree, error) {
	obj, ok, err := s.Read(h)
	if err != nil {
		return object.Tree{}, err
	}
	if !ok {
		return object.Tree{}, errNotFound(h)
	}
	tree, ok := obj.(object.Tree)
	if !ok {
		return object.Tree{}, errWrongType(h, object.KindTree, obj.Kind())
	}
	return tree, nil
}

// ReadCommit reads h and type-checks it as a Commit.
func (s *Store) ReadCommit(h object.Hash) (object.Commit, error) {
	obj, ok, err := s.Read(h)
	if err != nil {
		return object.Commit{}, err
	}
	if !ok {
		return object.Commit{}, errNotFound(h)
	}
	commit, ok := obj.(object.Commit)
	if !ok {
		return object.Commit{}, errWrongType(h, object.KindCommit, obj.Kind())
	}
	return commit, nil
}

// FileEntry is a blob leaf in a NestedTOC/flattened TOC: the blob's content
// hash plus its file mode (regular/executable/symlink).
type FileEntry struct {
	Hash object.Hash
	Mode uint32
}

// NestedTOC is a recursive mapping from path segment to either a FileEntry
// (leaf) or a nested TOC (subtree), as taken by WriteTree.
type NestedTOC map[string]interface{} // value is FileEntry or NestedTOC

// WriteTree recursively writes sub-trees for a nested TOC and returns the
// root tree hash.
func (s *Store) WriteTree(toc NestedTOC) (object.Hash, error) {
	var entries []object.TreeEntry
	for name, v := range toc {
		switch val := v.(type) {
		case FileEntry:
			entries = append(entries, object.TreeEntry{Name: name, Kind: object.KindBlob, Mode: val.Mode, Hash: val.Hash})
		case NestedTOC:
			h, err := s.WriteTree(val)
			if err != nil {
				return object.Hash{}, err
			}
			entries = append(entries, object.TreeEntry{Name: name, Kind: object.KindTree, Mode: object.ModeDir, Hash: h})
		default:
			return object.Hash{}, errBadTOCValue(name)
		}
	}
	tree, err := object.NewTree(entries)
	if err != nil {
		return object.Hash{}, err
	}
	return s.Write(tree)
}

// WriteCommit is a convenience wrapper over Write for commits.
func (s *Store) WriteCommit(treeHash object.Hash, message string, parents []object.Hash) (object.Hash, error) {
	return s.Write(object.Commit{Tree: treeHash, Parents: parents, Message: []byte(message)})
}

// CommitTOC recursively walks the tree referenced by commitHash and returns
// a flat mapping path -> FileEntry.
func (s *Store) CommitTOC(commitHash object.Hash) (map[string]FileEntry, error) {
	commit, err := s.ReadCommit(commitHash)
	if err != nil {
		return nil, err
	}
	toc := map[string]FileEntry{}
	if err := s.flattenTree(commit.Tree, "", toc); err != nil {
		return nil, err
	}
	return toc, nil
}

// TreeTOC is like CommitTOC but starts directly from a tree hash.
func (s *Store) TreeTOC(treeHash object.Hash) (map[string]FileEntry, error) {
	toc := map[string]FileEntry{}
	if err := s.flattenTree(treeHash, "", toc); err != nil {
		return nil, err
	}
	return toc, nil
}

func (s *Store) flattenTree(treeHash object.Hash, prefix string, out map[string]FileEntry) error {
	tree, err := s.ReadTree(treeHash)
	if err != nil {
		return err
	}
	for _, e := range tree.Entries {
		p := e.Name
		if prefix != "" {
			p = prefix + "/" + e.Name
		}
		switch e.Kind {
		case object.KindBlob:
			out[p] = FileEntry{Hash: e.Hash, Mode: e.Mode}
		case object.KindTree:
			if err := s.flattenTree(e.Hash, p, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// NestFromTOC builds a NestedTOC from a flat path -> FileEntry mapping, the
// inverse of flattening, so that Index/Porcelain can round-trip through
// WriteTree.
func NestFromTOC(toc map[string]FileEntry) NestedTOC {
	root := NestedTOC{}
	for path, fe := range toc {
		segs := splitPath(path)
		cur := root
		for i, seg := range segs {
			if i == len(segs)-1 {
				cur[seg] = fe
				continue
			}
			next, ok := cur[seg]
			if !ok {
				nt := NestedTOC{}
				cur[seg] = nt
				cur = nt
				continue
			}
			nt, ok := next.(NestedTOC)
			if !ok {
				nt = NestedTOC{}
				cur[seg] = nt
			}
			cur = nt
		}
	}
	return root
}

func splitPath(path string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			segs = append(segs, path[start:i])
			start = i + 1
		}
	}
	segs = append(segs, path[start:])
	return segs
}
