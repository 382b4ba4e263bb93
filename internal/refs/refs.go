// Package refs implements spec.md §4.2's ref namespace: HEAD (attached or
// detached), MERGE_HEAD/MERGE_MSG/FETCH_HEAD transient refs, local branches
// and remote-tracking branches.
package refs

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vcsmini/vcsmini/internal/object"
)

const (
	HEAD      = "HEAD"
	MergeHead = "MERGE_HEAD"
	MergeMsg  = "MERGE_MSG"
	FetchHead = "FETCH_HEAD"

	headsPrefix   = "refs/heads/"
	remotesPrefix = "refs/remotes/"
)

var branchNameRe = regexp.MustCompile(`^[A-Za-z-]+$`)

// Exister is the slice of ObjectStore that Refs needs: whether a hash is
// already a known object, used by Hash() to distinguish a raw hash argument
// from a ref name.
type Exister interface {
	Exists(h object.Hash) bool
}

// Refs is the ref namespace rooted at a repository's metadata directory
// (".version", or the bare repo root — see spec.md §6).
//
// Grounded on microprolly/pkg/branch/head.go's HeadManager for the
// attached/detached parsing and atomic-rename writes.
type Refs struct {
	root  string
	store Exister
}

func New(root string, store Exister) *Refs {
	return &Refs{root: root, store: store}
}

// IsRef validates name against the grammar in spec.md §3: total and
// deterministic over all strings.
func IsRef(name string) bool {
	switch name {
	case HEAD, MergeHead, MergeMsg, FetchHead:
		return true
	}
	if strings.HasPrefix(name, headsPrefix) {
		return branchNameRe.MatchString(strings.TrimPrefix(name, headsPrefix))
	}
	if strings.HasPrefix(name, remotesPrefix) {
		rest := strings.TrimPrefix(name, remotesPrefix)
		remote, branch, err := splitOnce(rest, "/")
		if err != nil {
			return false
		}
		return branchNameRe.MatchString(remote) && branchNameRe.MatchString(branch)
	}
	return false
}

func splitOnce(s, sep string) (a, b string, err error) {
	i := strings.Index(s, sep)
	if i < 0 {
		return "", "", os.ErrInvalid
	}
	return s[:i], s[i+1:], nil
}

func (r *Refs) path(name string) string {
	return filepath.Join(r.root, filepath.FromSlash(name))
}

// Exists reports whether a record is present for name.
func (r *Refs) Exists(name string) bool {
	_, err := os.Stat(r.path(name))
	return err == nil
}

// Read returns the raw file content of name, trimmed of its trailing
// newline, or ok=false if it doesn't exist.
func (r *Refs) Read(name string) (content string, ok bool, err error) {
	data, err := os.ReadFile(r.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return strings.TrimRight(string(data), "\n"), true, nil
}

// Write stores content under name. A syntactically invalid name is silently
// ignored (no-op) rather than an error — this is spec.md §4.2's documented
// source contract, pinned as an Open Question decision in DESIGN.md.
func (r *Refs) Write(name, content string) error {
	if !IsRef(name) {
		return nil
	}
	p := r.path(name)
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(content + "\n"); err != nil {
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
	return os.Rename(tmpPath, p)
}

// Rm removes the record for name, if any.
func (r *Refs) Rm(name string) error {
	err := os.Remove(r.path(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// TerminalRef resolves symbolic layers down to a concrete ref name:
//   - HEAD, attached -> the refs/heads/<b> it points to
//   - MERGE_HEAD/MERGE_MSG/FETCH_HEAD -> as-is, they're never symbolic
//   - already qualified (refs/heads/... or refs/remotes/.../...) -> as-is
//   - otherwise -> treated as an unqualified local branch name
func (r *Refs) TerminalRef(name string) (string, error) {
	if name == HEAD {
		content, ok, err := r.Read(HEAD)
		if err != nil {
			return "", err
		}
		if ok {
			if target, isSymbolic := parseSymbolic(content); isSymbolic {
				return target, nil
			}
		}
		return HEAD, nil // detached: HEAD itself holds the raw hash
	}
	if name == MergeHead || name == MergeMsg || name == FetchHead {
		return name, nil
	}
	if strings.HasPrefix(name, headsPrefix) || strings.HasPrefix(name, remotesPrefix) {
		return name, nil
	}
	return headsPrefix + name, nil
}

func parseSymbolic(content string) (target string, ok bool) {
	const p = "ref: "
	if !strings.HasPrefix(content, p) {
		return "", false
	}
	return strings.TrimPrefix(content, p), true
}

// Hash resolves nameOrHash to an object hash, or ok=false if it resolves to
// nothing.
func (r *Refs) Hash(nameOrHash string) (h object.Hash, ok bool, err error) {
	if parsed, perr := object.Parse(nameOrHash); perr == nil && r.store.Exists(parsed) {
		return parsed, true, nil
	}

	terminal, err := r.TerminalRef(nameOrHash)
	if err != nil {
		return object.Hash{}, false, err
	}

	if terminal == FetchHead {
		return r.fetchHeadHash()
	}

	content, ok, err := r.Read(terminal)
	if err != nil || !ok {
		return object.Hash{}, false, err
	}
	if terminal == HEAD {
		// detached HEAD: content is a raw hash
		h, perr := object.Parse(content)
		if perr != nil {
			return object.Hash{}, false, nil
		}
		return h, true, nil
	}
	h, perr := object.Parse(content)
	if perr != nil {
		return object.Hash{}, false, nil
	}
	return h, true, nil
}

// fetchHeadHash implements spec.md §9's documented fragility: it looks up
// the FETCH_HEAD record keyed by the *current* branch name, returning
// ok=false if the fetched branch differs from the checked-out one.
func (r *Refs) fetchHeadHash() (object.Hash, bool, error) {
	branch, attached := r.HeadBranchName()
	if !attached {
		return object.Hash{}, false, nil
	}
	content, ok, err := r.Read(FetchHead)
	if err != nil || !ok {
		return object.Hash{}, false, err
	}
	for _, line := range strings.Split(content, "\n") {
		// "<hash> branch <b> of <url>"
		fields := strings.Fields(line)
		if len(fields) < 4 || fields[1] != "branch" {
			continue
		}
		if fields[2] == branch {
			h, perr := object.Parse(fields[0])
			if perr != nil {
				continue
			}
			return h, true, nil
		}
	}
	return object.Hash{}, false, nil
}

// HeadBranchName returns the <b> in refs/heads/<b> that HEAD references, or
// ok=false if HEAD is detached.
func (r *Refs) HeadBranchName() (name string, ok bool) {
	content, exists, err := r.Read(HEAD)
	if err != nil || !exists {
		return "", false
	}
	target, isSymbolic := parseSymbolic(content)
	if !isSymbolic {
		return "", false
	}
	return strings.TrimPrefix(target, headsPrefix), true
}

// IsHeadDetached reports whether HEAD holds a raw hash rather than a
// symbolic branch reference.
func (r *Refs) IsHeadDetached() bool {
	_, attached := r.HeadBranchName()
	return !attached
}

// LocalHeads returns every refs/heads/<name> -> commit hash mapping.
func (r *Refs) LocalHeads() (map[string]object.Hash, error) {
	dir := filepath.Join(r.root, filepath.FromSlash(headsPrefix))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]object.Hash{}, nil
		}
		return nil, err
	}
	out := map[string]object.Hash{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		content, ok, err := r.Read(headsPrefix + e.Name())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		h, perr := object.Parse(content)
		if perr != nil {
			continue
		}
		out[e.Name()] = h
	}
	return out, nil
}

// CommitParentHashes returns the parent hash list for the next commit:
// [HEAD, MERGE_HEAD] while merging (HEAD is the receiver, first parent),
// [] with no commits yet, else [HEAD].
func (r *Refs) CommitParentHashes() ([]object.Hash, error) {
	headHash, ok, err := r.Hash(HEAD)
	if err != nil {
		return nil, err
	}
	if r.Exists(MergeHead) {
		mergeHash, mok, err := r.Hash(MergeHead)
		if err != nil {
			return nil, err
		}
		if !mok {
			return nil, nil
		}
		if !ok {
			return []object.Hash{mergeHash}, nil
		}
		return []object.Hash{headHash, mergeHash}, nil
	}
	if !ok {
		return nil, nil
	}
	return []object.Hash{headHash}, nil
}
