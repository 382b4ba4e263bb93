// Package worktree implements spec.md §4.4's WorkingTree: materializing
// tree diffs onto disk and reading files back into blobs, with native file
// mode (executable bit) and symlink handling.
//
// Grounded on the teacher's file_to_blob/blob_to_file pair (git-backup.go),
// which inspected syscall.Stat_t to decide whether a path was a regular
// file, an executable, or a symlink before hashing its content.
package worktree

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vcsmini/vcsmini/internal/diff"
	"github.com/vcsmini/vcsmini/internal/index"
	"github.com/vcsmini/vcsmini/internal/object"
	"github.com/vcsmini/vcsmini/internal/store"
)

// MetaDirName is the repository metadata directory excluded from every
// working-tree walk (see spec.md §6's layout note).
const MetaDirName = ".version"

// WorkingTree is the checked-out copy of the repository at root.
type WorkingTree struct {
	root  string
	store *store.Store
}

func New(root string, st *store.Store) *WorkingTree {
	return &WorkingTree{root: root, store: st}
}

func (w *WorkingTree) abs(path string) string {
	return filepath.Join(w.root, filepath.FromSlash(path))
}

// Write applies a slice of diff.FileDiff to the working tree: creating,
// overwriting, or removing files, and rendering conflict markers for
// unresolved three-way conflicts.
func (w *WorkingTree) Write(diffs []diff.FileDiff) error {
	for _, d := range diffs {
		switch d.Kind {
		case diff.Same:
			continue
		case diff.Added, diff.Modified:
			if err := w.materializeBlob(d.Path, d.Hash, d.Mode); err != nil {
				return err
			}
		case diff.Deleted:
			if err := w.removeAndPrune(d.Path); err != nil {
				return err
			}
		case diff.Conflict:
			if err := w.materializeConflict(d); err != nil {
				return err
			}
		default:
			return fmt.Errorf("worktree: unknown diff kind %v for %q", d.Kind, d.Path)
		}
	}
	return nil
}

func (w *WorkingTree) materializeBlob(path string, h object.Hash, mode uint32) error {
	blob, err := w.store.ReadBlob(h)
	if err != nil {
		return err
	}
	p := w.abs(path)
	if err := os.MkdirAll(filepath.Dir(p), 0o777); err != nil {
		return err
	}
	os.Remove(p) // symlink -> regular file transitions need the old node gone first

	if mode == object.ModeSymlink {
		return os.Symlink(string(blob.Data), p)
	}
	perm := os.FileMode(0o644)
	if mode == object.ModeExecutable {
		perm = 0o755
	}
	return os.WriteFile(p, blob.Data, perm)
}

func (w *WorkingTree) removeAndPrune(path string) error {
	p := w.abs(path)
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	dir := filepath.Dir(p)
	for dir != w.root && strings.HasPrefix(dir, w.root) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		if err := os.Remove(dir); err != nil {
			break
		}
		dir = filepath.Dir(dir)
	}
	return nil
}

func (w *WorkingTree) materializeConflict(d diff.FileDiff) error {
	var ours, theirs []byte
	oursLabel, theirsLabel := "ours", "theirs"
	if d.Ours != nil {
		blob, err := w.store.ReadBlob(d.Ours.Hash)
		if err != nil {
			return err
		}
		ours = blob.Data
	}
	if d.Theirs != nil {
		blob, err := w.store.ReadBlob(d.Theirs.Hash)
		if err != nil {
			return err
		}
		theirs = blob.Data
	}

	var buf bytes.Buffer
	buf.WriteString("<<<<<<< " + oursLabel + "\n")
	buf.Write(ours)
	if len(ours) > 0 && ours[len(ours)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString("=======\n")
	buf.Write(theirs)
	if len(theirs) > 0 && theirs[len(theirs)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString(">>>>>>> " + theirsLabel + "\n")

	p := w.abs(d.Path)
	if err := os.MkdirAll(filepath.Dir(p), 0o777); err != nil {
		return err
	}
	mode := object.ModeRegular
	if d.Ours != nil && d.Ours.Mode == object.ModeExecutable {
		mode = object.ModeExecutable
	}
	perm := os.FileMode(0o644)
	if mode == object.ModeExecutable {
		perm = 0o755
	}
	return os.WriteFile(p, buf.Bytes(), perm)
}

// FileToBlob reads path off disk, writes it to the object store, and
// returns its hash and recorded mode. Symlinks are stored as a blob whose
// content is the link target text.
func (w *WorkingTree) FileToBlob(path string) (h object.Hash, mode uint32, err error) {
	p := w.abs(path)
	info, err := os.Lstat(p)
	if err != nil {
		return object.Hash{}, 0, err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(p)
		if err != nil {
			return object.Hash{}, 0, err
		}
		h, err = w.store.WriteBlob([]byte(target))
		return h, object.ModeSymlink, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return object.Hash{}, 0, err
	}
	h, err = w.store.WriteBlob(data)
	if err != nil {
		return object.Hash{}, 0, err
	}
	if info.Mode()&0o111 != 0 {
		return h, object.ModeExecutable, nil
	}
	return h, object.ModeRegular, nil
}

// LsRecursive lists every tracked-candidate file path in the working tree,
// relative to root, excluding the metadata directory. Sorted for
// determinism.
func (w *WorkingTree) LsRecursive() ([]string, error) {
	var out []string
	err := filepath.Walk(w.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(w.root, p)
		if rerr != nil {
			return rerr
		}
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			if info.Name() == MetaDirName {
				return filepath.SkipDir
			}
			return nil
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// ChangedFilesCommitWouldOverwrite returns the paths where the working tree
// differs from the index (uncommitted local changes) and the checkout
// target also differs from the index at that path — i.e. files where
// switching trees would discard uncommitted work, per spec.md §4.4's
// "dirty checkout" guard.
func (w *WorkingTree) ChangedFilesCommitWouldOverwrite(idx *index.Index, targetTOC map[string]store.FileEntry) ([]string, error) {
	var out []string
	indexTOC := idx.TOC()
	for path, indexRec := range indexTOC {
		workingHash, _, err := w.FileToBlob(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		if workingHash == indexRec.Hash {
			continue // clean at this path
		}
		target, inTarget := targetTOC[path]
		if !inTarget || target.Hash != indexRec.Hash {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out, nil
}

// AddedOrModifiedFiles compares two flattened TOCs and returns every path
// present in next that is absent from, or differs in content/mode from,
// prev.
func AddedOrModifiedFiles(prev, next map[string]store.FileEntry) []string {
	var out []string
	for path, n := range next {
		p, ok := prev[path]
		if !ok || p.Hash != n.Hash || p.Mode != n.Mode {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}
