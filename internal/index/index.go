// Package index implements spec.md §4.3's staging area: a flat table of
// path -> (stage, mode, hash) entries, persisted between porcelain
// invocations.
//
// Grounded on odvcencio-got's StagingEntry/Index (pkg/repo/index.go): one
// line per entry, stage 0 for a normal staged blob and stages 1/2/3 for the
// base/ours/theirs sides of an unresolved merge conflict.
package index

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/vcsmini/vcsmini/internal/errs"
	"github.com/vcsmini/vcsmini/internal/object"
)

// Stage identifies which side of a merge conflict an entry records.
type Stage int

const (
	StageNormal Stage = 0
	StageBase   Stage = 1
	StageOurs   Stage = 2
	StageTheirs Stage = 3
)

// Record is one staged blob: its content hash and file mode.
type Record struct {
	Hash object.Hash
	Mode uint32
}

// Entry is one staged path at one stage.
type Entry struct {
	Path  string
	Stage Stage
	Record
}

// Index is the staging table, keyed by (path, stage).
type Index struct {
	path    string // file the index is persisted to
	entries map[string]map[Stage]Record
}

// Open reads an existing index file, or returns an empty Index if absent.
func Open(path string) (*Index, error) {
	idx := &Index{path: path, entries: map[string]map[Stage]Record{}}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 4)
		if len(fields) != 4 {
			return nil, errs.New(errs.Corruption, "index: malformed line %q", line)
		}
		stageN, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errs.New(errs.Corruption, "index: bad stage in %q", line)
		}
		mode, err := strconv.ParseUint(fields[1], 8, 32)
		if err != nil {
			return nil, errs.New(errs.Corruption, "index: bad mode in %q", line)
		}
		h, err := object.Parse(fields[2])
		if err != nil {
			return nil, errs.New(errs.Corruption, "index: bad hash in %q", line)
		}
		idx.set(fields[3], Stage(stageN), Record{Hash: h, Mode: uint32(mode)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) set(path string, stage Stage, rec Record) {
	m, ok := idx.entries[path]
	if !ok {
		m = map[Stage]Record{}
		idx.entries[path] = m
	}
	m[stage] = rec
}

// Save persists the index atomically (temp file + fsync + rename).
func (idx *Index) Save() error {
	dir := filepath.Dir(idx.path)
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-index-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, path := range idx.sortedPaths() {
		stages := idx.entries[path]
		for _, st := range []Stage{StageNormal, StageBase, StageOurs, StageTheirs} {
			rec, ok := stages[st]
			if !ok {
				continue
			}
			line := fmt.Sprintf("%d %o %s %s\n", st, rec.Mode, rec.Hash, path)
			if _, err := w.WriteString(line); err != nil {
				tmp.Close()
				os.Remove(tmpPath)
				return err
			}
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, idx.path)
}

func (idx *Index) sortedPaths() []string {
	paths := make([]string, 0, len(idx.entries))
	for p := range idx.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// HasFile reports whether path has any entry (normal or conflict).
func (idx *Index) HasFile(path string) bool {
	_, ok := idx.entries[path]
	return ok
}

// IsFileInConflict reports whether path carries stage 1/2/3 entries rather
// than a single stage-0 entry.
func (idx *Index) IsFileInConflict(path string) bool {
	stages, ok := idx.entries[path]
	if !ok {
		return false
	}
	_, normal := stages[StageNormal]
	return !normal
}

// ConflictedPaths returns every path currently in conflict, sorted.
func (idx *Index) ConflictedPaths() []string {
	var out []string
	for _, p := range idx.sortedPaths() {
		if idx.IsFileInConflict(p) {
			out = append(out, p)
		}
	}
	return out
}

// TOC returns the stage-0 (non-conflicted) path -> Record mapping.
func (idx *Index) TOC() map[string]Record {
	out := map[string]Record{}
	for path, stages := range idx.entries {
		if rec, ok := stages[StageNormal]; ok {
			out[path] = rec
		}
	}
	return out
}

// MatchingFiles returns every staged path (any stage) with the given
// directory-or-file pathspec prefix; pathspec == "" matches everything.
func (idx *Index) MatchingFiles(pathspec string) []string {
	var out []string
	for _, p := range idx.sortedPaths() {
		if pathspec == "" || p == pathspec || strings.HasPrefix(p, pathspec+"/") {
			out = append(out, p)
		}
	}
	return out
}

// WriteNonConflict stages path at stage 0, clearing any conflict stages.
func (idx *Index) WriteNonConflict(path string, h object.Hash, mode uint32) {
	idx.entries[path] = map[Stage]Record{StageNormal: {Hash: h, Mode: mode}}
}

// WriteRM removes path from the index entirely.
func (idx *Index) WriteRM(path string) {
	delete(idx.entries, path)
}

// WriteConflict records an unresolved three-way conflict for path. A nil
// Record for base/ours/theirs means that side has no entry (e.g. add/add).
func (idx *Index) WriteConflict(path string, base, ours, theirs *Record) {
	stages := map[Stage]Record{}
	if base != nil {
		stages[StageBase] = *base
	}
	if ours != nil {
		stages[StageOurs] = *ours
	}
	if theirs != nil {
		stages[StageTheirs] = *theirs
	}
	idx.entries[path] = stages
}

// TOCToIndex replaces the entire index contents with toc, all at stage 0 —
// used after checkout/reset to make the index mirror a tree exactly.
func (idx *Index) TOCToIndex(toc map[string]Record) {
	idx.entries = map[string]map[Stage]Record{}
	for path, rec := range toc {
		idx.WriteNonConflict(path, rec.Hash, rec.Mode)
	}
}
