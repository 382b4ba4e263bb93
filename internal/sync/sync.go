// Package sync implements spec.md §4.7's SyncEngine: fetch, push and clone
// against an abstract Peer, with objects always transferred before the refs
// that point at them are updated — so a crash mid-transfer never leaves a
// ref pointing at a missing object.
//
// Grounded on the teacher's cmd_pull_/cmd_restore_ (git-backup.go): walk the
// object closure, copy what the destination is missing, then land the ref.
package sync

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/vcsmini/vcsmini/internal/errs"
	"github.com/vcsmini/vcsmini/internal/logger"
	"github.com/vcsmini/vcsmini/internal/merge"
	"github.com/vcsmini/vcsmini/internal/object"
	"github.com/vcsmini/vcsmini/internal/refs"
	"github.com/vcsmini/vcsmini/internal/store"
)

// Peer is the abstract remote a Engine syncs against — a local filesystem
// path, in this module's only implementation, but deliberately narrow so a
// networked transport could satisfy it without touching Engine.
type Peer interface {
	URL() string
	ListBranches() (map[string]object.Hash, error)
	HasObject(h object.Hash) (bool, error)
	GetObject(h object.Hash) ([]byte, bool, error)
	PutObjects(records map[object.Hash][]byte) error
	UpdateBranch(name string, old object.Hash, hasOld bool, new object.Hash) error
	// CheckedOutBranch returns the branch name the peer currently has
	// checked out, ok=false if the peer is bare or detached.
	CheckedOutBranch() (name string, ok bool)
}

// Engine drives fetch/push/clone between a local repository and a Peer.
type Engine struct {
	Store *store.Store
	Refs  *refs.Refs
	Merge *merge.Engine
	Log   logger.Logger
}

func New(st *store.Store, rf *refs.Refs, mg *merge.Engine, log logger.Logger) *Engine {
	return &Engine{Store: st, Refs: rf, Merge: mg, Log: log}
}

// FetchResult summarizes one Fetch call, reported by Porcelain.
type FetchResult struct {
	RemoteName    string
	URL           string
	Branches      map[string]object.Hash
	ForcedBranches []string
	ObjectsFetched int
	BytesFetched   int64
}

// Fetch pulls every branch from peer into refs/remotes/<remoteName>/* and
// records a FETCH_HEAD entry per branch. Each call is tagged with a fresh id
// in its debug log; objects and refs are written in place, with no separate
// staging area.
func (e *Engine) Fetch(peer Peer, remoteName string) (*FetchResult, error) {
	staging := uuid.NewString()
	e.Log.Debug("fetch starting", "remote", remoteName, "staging", staging)

	branches, err := peer.ListBranches()
	if err != nil {
		return nil, err
	}

	result := &FetchResult{RemoteName: remoteName, URL: peer.URL(), Branches: branches}
	var fetchHeadLines []string

	for name, tip := range branches {
		n, bytes, err := e.fetchClosure(peer, tip)
		if err != nil {
			return nil, err
		}
		result.ObjectsFetched += n
		result.BytesFetched += bytes

		trackingRef := "refs/remotes/" + remoteName + "/" + name
		oldHash, hadOld, err := e.Refs.Hash(trackingRef)
		if err != nil {
			return nil, err
		}
		if hadOld {
			forced, err := e.Merge.IsAForceFetch(oldHash, true, tip)
			if err != nil {
				return nil, err
			}
			if forced {
				result.ForcedBranches = append(result.ForcedBranches, name)
			}
		}
		if err := e.Refs.Write(trackingRef, tip.String()); err != nil {
			return nil, err
		}
		fetchHeadLines = append(fetchHeadLines, fmt.Sprintf("%s branch %s of %s", tip, name, peer.URL()))
	}

	if err := e.Refs.Write(refs.FetchHead, joinLines(fetchHeadLines)); err != nil {
		return nil, err
	}

	e.Log.Info("fetch complete", "remote", remoteName,
		"objects", result.ObjectsFetched, "bytes", humanize.Bytes(uint64(result.BytesFetched)))
	return result, nil
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

// fetchClosure pulls tip's full object closure (commit/tree/blob) from peer,
// skipping anything already present locally, breadth-first so parents and
// blobs land before the ref that references them ever gets written.
func (e *Engine) fetchClosure(peer Peer, tip object.Hash) (objectsFetched int, bytesFetched int64, err error) {
	visited := store.HashSet{}
	queue := []object.Hash{tip}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if visited.Contains(h) {
			continue
		}
		visited.Add(h)
		if e.Store.Exists(h) {
			continue
		}

		record, ok, err := peer.GetObject(h)
		if err != nil {
			return objectsFetched, bytesFetched, err
		}
		if !ok {
			return objectsFetched, bytesFetched, errs.New(errs.Corruption, "remote is missing referenced object %s", h)
		}
		if err := e.Store.WriteRaw(h, record); err != nil {
			return objectsFetched, bytesFetched, err
		}
		objectsFetched++
		bytesFetched += int64(len(record))

		obj, err := object.Decode(record)
		if err != nil {
			return objectsFetched, bytesFetched, err
		}
		queue = append(queue, children(obj)...)
	}
	return objectsFetched, bytesFetched, nil
}

func children(obj object.Object) []object.Hash {
	switch o := obj.(type) {
	case object.Commit:
		out := append([]object.Hash{o.Tree}, o.Parents...)
		return out
	case object.Tree:
		var out []object.Hash
		for _, e := range o.Entries {
			out = append(out, e.Hash)
		}
		return out
	default:
		return nil
	}
}

// Push uploads every object reachable from localTip that peer is missing,
// then asks it to land remoteName/branchName at localTip, updating the
// local remote-tracking ref to match. The object transfer happens in full
// before UpdateBranch is called, so a failed push never leaves the remote
// with a dangling ref. Refused with errs.CheckedOutBranch if the peer is
// non-bare and has branchName checked out, and with errs.NonFastForward if
// the push isn't a fast-forward and force is false.
func (e *Engine) Push(peer Peer, remoteName, branchName string, localTip object.Hash, force bool) error {
	if checkedOut, ok := peer.CheckedOutBranch(); ok && checkedOut == branchName {
		return errs.New(errs.CheckedOutBranch, "refusing to push to the checked-out branch %q", branchName)
	}

	branches, err := peer.ListBranches()
	if err != nil {
		return err
	}
	receiver, hasReceiver := branches[branchName]
	if hasReceiver && receiver == localTip {
		e.Log.Info(errs.AlreadyUpToDateMessage())
		return nil
	}
	if hasReceiver {
		ff, err := e.Merge.CanFastForward(receiver, localTip)
		if err != nil {
			return err
		}
		if !ff && !force {
			return errs.New(errs.NonFastForward, "updates were rejected because a fast-forward push could not be completed")
		}
	}

	toSend := map[object.Hash][]byte{}
	visited := store.HashSet{}
	queue := []object.Hash{localTip}
	var bytesSent int64

	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if visited.Contains(h) {
			continue
		}
		visited.Add(h)

		has, err := peer.HasObject(h)
		if err != nil {
			return err
		}
		if has {
			continue
		}

		record, ok, err := e.Store.ReadRaw(h)
		if err != nil {
			return err
		}
		if !ok {
			return errs.New(errs.Corruption, "local object %s referenced but missing", h)
		}
		toSend[h] = record
		bytesSent += int64(len(record))

		obj, err := object.Decode(record)
		if err != nil {
			return err
		}
		queue = append(queue, children(obj)...)
	}

	if len(toSend) > 0 {
		if err := peer.PutObjects(toSend); err != nil {
			return err
		}
	}

	if err := peer.UpdateBranch(branchName, receiver, hasReceiver, localTip); err != nil {
		return err
	}
	if err := e.Refs.Write("refs/remotes/"+remoteName+"/"+branchName, localTip.String()); err != nil {
		return err
	}

	e.Log.Info("push complete", "branch", branchName, "objects", len(toSend), "bytes", humanize.Bytes(uint64(bytesSent)))
	return nil
}

// Clone performs a full fetch of every branch from peer into a brand-new
// repository, then sets up local branches mirroring the remote's (not
// remote-tracking ones — a clone's local heads start as direct copies).
func (e *Engine) Clone(peer Peer, remoteName string) (*FetchResult, error) {
	result, err := e.Fetch(peer, remoteName)
	if err != nil {
		return nil, err
	}
	for name, tip := range result.Branches {
		if err := e.Refs.Write("refs/heads/"+name, tip.String()); err != nil {
			return nil, err
		}
	}
	return result, nil
}
