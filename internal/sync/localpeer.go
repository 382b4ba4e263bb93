package sync

import (
	"path/filepath"

	"github.com/vcsmini/vcsmini/internal/errs"
	"github.com/vcsmini/vcsmini/internal/object"
	"github.com/vcsmini/vcsmini/internal/refs"
	"github.com/vcsmini/vcsmini/internal/store"
)

// LocalPeer is a Peer backed by another repository's metadata directory on
// the same filesystem — the only transport spec.md requires, mirroring the
// teacher's treatment of a backup target as just another path.
type LocalPeer struct {
	url   string
	bare  bool
	store *store.Store
	refs  *refs.Refs
}

// OpenLocalPeer opens the repository rooted at metaDir (its ".version"
// directory, or the repo root itself if bare) as a sync Peer. bare says
// whether the peer is a bare repository, as repo.MetaDirFor infers it from
// the directory layout.
func OpenLocalPeer(url, metaDir string, bare bool) (*LocalPeer, error) {
	st, err := store.Open(filepath.Join(metaDir, "objects"))
	if err != nil {
		return nil, err
	}
	rf := refs.New(metaDir, st)
	return &LocalPeer{url: url, bare: bare, store: st, refs: rf}, nil
}

// CheckedOutBranch returns the branch the peer has checked out, ok=false if
// the peer is bare or HEAD is detached.
func (p *LocalPeer) CheckedOutBranch() (string, bool) {
	if p.bare {
		return "", false
	}
	return p.refs.HeadBranchName()
}

func (p *LocalPeer) URL() string { return p.url }

func (p *LocalPeer) ListBranches() (map[string]object.Hash, error) {
	return p.refs.LocalHeads()
}

func (p *LocalPeer) HasObject(h object.Hash) (bool, error) {
	return p.store.Exists(h), nil
}

func (p *LocalPeer) GetObject(h object.Hash) ([]byte, bool, error) {
	return p.store.ReadRaw(h)
}

func (p *LocalPeer) PutObjects(records map[object.Hash][]byte) error {
	for h, record := range records {
		if err := p.store.WriteRaw(h, record); err != nil {
			return err
		}
	}
	return nil
}

func (p *LocalPeer) UpdateBranch(name string, old object.Hash, hadOld bool, new object.Hash) error {
	current, hasCurrent, err := p.refs.Hash("refs/heads/" + name)
	if err != nil {
		return err
	}
	if hadOld != hasCurrent || (hadOld && current != old) {
		return errs.New(errs.NonFastForward, "refs/heads/%s: remote changed since last seen (expected %s, have %s)", name, old, current)
	}
	return p.refs.Write("refs/heads/"+name, new.String())
}
