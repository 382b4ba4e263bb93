// Package repo wires together ObjectStore, Refs, Index, Config and
// WorkingTree into the single handle every Porcelain operation takes — the
// "global state" spec.md's design notes call out, bundled into one
// explicitly-passed value instead of package-level globals.
//
// Grounded on odvcencio-got's Repo struct (pkg/repo/repo.go): one struct
// holding every subsystem, opened once per command invocation.
package repo

import (
	"os"
	"path/filepath"

	"github.com/vcsmini/vcsmini/internal/config"
	"github.com/vcsmini/vcsmini/internal/errs"
	"github.com/vcsmini/vcsmini/internal/graph"
	"github.com/vcsmini/vcsmini/internal/index"
	"github.com/vcsmini/vcsmini/internal/logger"
	"github.com/vcsmini/vcsmini/internal/merge"
	"github.com/vcsmini/vcsmini/internal/refs"
	"github.com/vcsmini/vcsmini/internal/store"
	"github.com/vcsmini/vcsmini/internal/worktree"
)

// MetaDirName is the non-bare repository metadata directory name.
const MetaDirName = worktree.MetaDirName

// Repo is a single open repository: its working tree root (empty for a
// bare repository) plus every subsystem needed to operate on it.
type Repo struct {
	Root    string // working tree root; "" if Bare
	MetaDir string // holds objects/, refs/, config, index, HEAD
	Bare    bool

	Store    *store.Store
	Refs     *refs.Refs
	Index    *index.Index
	Config   *config.Config
	Worktree *worktree.WorkingTree
	Graph    *graph.Graph
	Merge    *merge.Engine
	Log      logger.Logger
}

func indexPath(metaDir string) string  { return filepath.Join(metaDir, "index") }
func configPath(metaDir string) string { return filepath.Join(metaDir, "config") }
func objectsDir(metaDir string) string { return filepath.Join(metaDir, "objects") }

// MetaDirFor resolves root to its metadata directory, plus whether it's a
// bare repository: root/.version if present, else root itself if it
// directly holds objects/. Shared between Open and sync.Peer construction
// so a configured remote path resolves the same way a local Open would.
func MetaDirFor(root string) (metaDir string, bare bool, err error) {
	metaDir = filepath.Join(root, MetaDirName)
	if _, err := os.Stat(metaDir); err == nil {
		return metaDir, false, nil
	} else if !os.IsNotExist(err) {
		return "", false, err
	}
	if _, err := os.Stat(objectsDir(root)); err != nil {
		return "", false, errs.New(errs.NotInRepo, "%s is not a vcsmini repository", root)
	}
	return root, true, nil
}

// Init creates a new repository at root: a working tree with a
// root/.version metadata directory, or — if bare — a metadata directory at
// root itself with no working tree.
func Init(root string, bare bool, log logger.Logger) (*Repo, error) {
	var metaDir string
	if bare {
		metaDir = root
	} else {
		metaDir = filepath.Join(root, MetaDirName)
	}
	if err := os.MkdirAll(metaDir, 0o777); err != nil {
		return nil, err
	}

	st, err := store.Open(objectsDir(metaDir))
	if err != nil {
		return nil, err
	}
	rf := refs.New(metaDir, st)
	if err := rf.Write(refs.HEAD, "ref: refs/heads/master"); err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath(metaDir))
	if err != nil {
		return nil, err
	}
	cfg.SetBare(bare)
	if err := cfg.Save(); err != nil {
		return nil, err
	}

	idx, err := index.Open(indexPath(metaDir))
	if err != nil {
		return nil, err
	}

	return assemble(root, metaDir, bare, st, rf, cfg, idx, log), nil
}

// Open loads an existing repository rooted at root. root may be a working
// tree (containing a .version subdirectory) or a bare repository directory
// (containing objects/ directly).
func Open(root string, log logger.Logger) (*Repo, error) {
	metaDir, bare, err := MetaDirFor(root)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(objectsDir(metaDir))
	if err != nil {
		return nil, err
	}
	rf := refs.New(metaDir, st)

	cfg, err := config.Load(configPath(metaDir))
	if err != nil {
		return nil, err
	}
	if cfg.IsBare() {
		bare = true
	}

	idx, err := index.Open(indexPath(metaDir))
	if err != nil {
		return nil, err
	}

	worktreeRoot := root
	if bare {
		worktreeRoot = ""
	}
	return assemble(worktreeRoot, metaDir, bare, st, rf, cfg, idx, log), nil
}

func assemble(root, metaDir string, bare bool, st *store.Store, rf *refs.Refs, cfg *config.Config, idx *index.Index, log logger.Logger) *Repo {
	g := graph.New(st)
	me := merge.New(g)
	var wt *worktree.WorkingTree
	if !bare {
		wt = worktree.New(root, st)
	}
	return &Repo{
		Root: root, MetaDir: metaDir, Bare: bare,
		Store: st, Refs: rf, Index: idx, Config: cfg, Worktree: wt,
		Graph: g, Merge: me, Log: log,
	}
}

// SaveIndex persists the in-memory index back to disk — callers mutate
// r.Index in place and must call this once they're done for a command.
func (r *Repo) SaveIndex() error {
	return r.Index.Save()
}

// RequireWorktree returns errs.BareDisallowed if this repo has no working
// tree, for operations (add, rm, checkout, ...) that need one.
func (r *Repo) RequireWorktree() error {
	if r.Bare {
		return errs.New(errs.BareDisallowed, "this operation is disallowed in a bare repository")
	}
	return nil
}
