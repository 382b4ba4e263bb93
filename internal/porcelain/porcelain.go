// Package porcelain implements spec.md §4.8's Porcelain: the composed,
// user-facing operations (init, add, rm, commit, branch, checkout, diff,
// remote, pull, push, status, update_index, update_ref) built on top of
// ObjectStore, Refs, Index, WorkingTree, CommitGraph, MergeEngine and
// SyncEngine.
//
// Grounded on the teacher's command dispatch table (git-backup.go's
// cmd_* functions) for the shape of one function per command, and on
// odvcencio-got's Merge/commitMerge composition for how checkout/pull
// stitch the lower layers together.
package porcelain

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/vcsmini/vcsmini/internal/diff"
	"github.com/vcsmini/vcsmini/internal/errs"
	"github.com/vcsmini/vcsmini/internal/index"
	"github.com/vcsmini/vcsmini/internal/merge"
	"github.com/vcsmini/vcsmini/internal/object"
	"github.com/vcsmini/vcsmini/internal/refs"
	"github.com/vcsmini/vcsmini/internal/repo"
	"github.com/vcsmini/vcsmini/internal/store"
	"github.com/vcsmini/vcsmini/internal/sync"
	"github.com/vcsmini/vcsmini/internal/worktree"
)

func recordsToFileEntries(recs map[string]index.Record) map[string]store.FileEntry {
	out := make(map[string]store.FileEntry, len(recs))
	for path, rec := range recs {
		out[path] = store.FileEntry{Hash: rec.Hash, Mode: rec.Mode}
	}
	return out
}

func fileEntriesToRecords(toc map[string]store.FileEntry) map[string]index.Record {
	out := make(map[string]index.Record, len(toc))
	for path, fe := range toc {
		out[path] = index.Record{Hash: fe.Hash, Mode: fe.Mode}
	}
	return out
}

// Add stages every working-tree file matching pathspec (a file or directory
// prefix; "" means everything).
func Add(r *repo.Repo, pathspec string) error {
	if err := r.RequireWorktree(); err != nil {
		return err
	}
	files, err := r.Worktree.LsRecursive()
	if err != nil {
		return err
	}
	matched := false
	for _, path := range files {
		if pathspec != "" && path != pathspec && !strings.HasPrefix(path, pathspec+"/") {
			continue
		}
		matched = true
		h, mode, err := r.Worktree.FileToBlob(path)
		if err != nil {
			return err
		}
		r.Index.WriteNonConflict(path, h, mode)
	}
	if !matched && pathspec != "" {
		return errs.New(errs.NoMatch, "pathspec %q did not match any files", pathspec)
	}
	return r.SaveIndex()
}

// RM unstages and deletes every indexed path matching pathspec. force
// (rm -f) is unsupported and always an error; recursive (rm -r) is required
// when pathspec names a directory rather than a single tracked file.
func RM(r *repo.Repo, pathspec string, force, recursive bool) error {
	if err := r.RequireWorktree(); err != nil {
		return err
	}
	if force {
		return errs.New(errs.UnsupportedFlag, "rm -f is not supported")
	}
	matches := r.Index.MatchingFiles(pathspec)
	if len(matches) == 0 {
		return errs.New(errs.NoMatch, "pathspec %q did not match any staged files", pathspec)
	}
	if !recursive {
		for _, path := range matches {
			if path != pathspec {
				return errs.New(errs.PathIsDirectory, "%q is a directory; pass -r to remove it", pathspec)
			}
		}
	}

	indexTOC := recordsToFileEntries(r.Index.TOC())
	workingTOC := map[string]store.FileEntry{}
	for _, path := range matches {
		h, mode, err := r.Worktree.FileToBlob(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		workingTOC[path] = store.FileEntry{Hash: h, Mode: mode}
	}
	if modified := worktree.AddedOrModifiedFiles(indexTOC, workingTOC); len(modified) > 0 {
		return errs.New(errs.DirtyCheckout, "target file(s) modified, refusing to remove: %s", strings.Join(modified, ", "))
	}

	for _, path := range matches {
		if err := r.Worktree.Write([]diff.FileDiff{{Kind: diff.Deleted, Path: path}}); err != nil {
			return err
		}
		r.Index.WriteRM(path)
	}
	return r.SaveIndex()
}

// Commit records the current index contents as a new commit on the current
// branch, returning its hash.
func Commit(r *repo.Repo, message string) (object.Hash, error) {
	if conflicted := r.Index.ConflictedPaths(); len(conflicted) > 0 {
		return object.Hash{}, errs.New(errs.UnresolvedConflicts, "unresolved conflicts in: %s", strings.Join(conflicted, ", "))
	}

	parents, err := r.Refs.CommitParentHashes()
	if err != nil {
		return object.Hash{}, err
	}

	merging := r.Refs.Exists(refs.MergeHead)
	if merging {
		mergeMsg, ok, err := r.Refs.Read(refs.MergeMsg)
		if err != nil {
			return object.Hash{}, err
		}
		if ok {
			message = mergeMsg
		}
	}

	toc := recordsToFileEntries(r.Index.TOC())

	if len(parents) == 1 {
		parentTOC, err := r.Store.CommitTOC(parents[0])
		if err != nil {
			return object.Hash{}, err
		}
		if tocsEqual(parentTOC, toc) {
			branch, _ := r.Refs.HeadBranchName()
			return object.Hash{}, errs.New(errs.NothingToCommit, errs.NothingToCommitMessage(branch))
		}
	}

	treeHash, err := r.Store.WriteTree(store.NestFromTOC(toc))
	if err != nil {
		return object.Hash{}, err
	}
	commitHash, err := r.Store.WriteCommit(treeHash, message, parents)
	if err != nil {
		return object.Hash{}, err
	}

	terminal, err := r.Refs.TerminalRef(refs.HEAD)
	if err != nil {
		return object.Hash{}, err
	}
	if err := r.Refs.Write(terminal, commitHash.String()); err != nil {
		return object.Hash{}, err
	}

	if merging {
		if err := r.Refs.Rm(refs.MergeHead); err != nil {
			return object.Hash{}, err
		}
		if err := r.Refs.Rm(refs.MergeMsg); err != nil {
			return object.Hash{}, err
		}
	}

	branch, _ := r.Refs.HeadBranchName()
	r.Log.Info(errs.CommitSummaryMessage(branch, commitHash, summaryLine(message)))
	return commitHash, nil
}

func summaryLine(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return message[:i]
	}
	return message
}

func tocsEqual(a, b map[string]store.FileEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for path, ea := range a {
		eb, ok := b[path]
		if !ok || ea.Hash != eb.Hash || ea.Mode != eb.Mode {
			return false
		}
	}
	return true
}

// Branch creates refs/heads/name at the current HEAD commit.
func Branch(r *repo.Repo, name string) error {
	refName := "refs/heads/" + name
	if !refs.IsRef(refName) {
		return errs.New(errs.InvalidRefName, "invalid branch name %q", name)
	}
	if r.Refs.Exists(refName) {
		return errs.New(errs.AlreadyExists, "branch %q already exists", name)
	}
	h, ok, err := r.Refs.Hash(refs.HEAD)
	if err != nil {
		return err
	}
	if !ok {
		return errs.New(errs.UnknownRevision, "HEAD has no commits yet")
	}
	return r.Refs.Write(refName, h.String())
}

// Checkout switches the working tree and HEAD to ref (a branch name or a
// raw commit hash, the latter producing a detached HEAD).
func Checkout(r *repo.Repo, ref string) error {
	if err := r.RequireWorktree(); err != nil {
		return err
	}

	branchRef := "refs/heads/" + ref
	detached := !r.Refs.Exists(branchRef)

	targetHash, ok, err := r.Refs.Hash(ref)
	if err != nil {
		return err
	}
	if !ok {
		return errs.New(errs.UnknownRevision, "unknown revision %q", ref)
	}

	curBranch, attached := r.Refs.HeadBranchName()
	if attached && curBranch == ref {
		r.Log.Info(errs.AlreadyOnMessage(ref))
		return nil
	}

	curHash, hadCur, err := r.Refs.Hash(refs.HEAD)
	if err != nil {
		return err
	}

	targetTOC, err := r.Store.CommitTOC(targetHash)
	if err != nil {
		return err
	}

	if hadCur {
		overwritten, err := r.Worktree.ChangedFilesCommitWouldOverwrite(r.Index, targetTOC)
		if err != nil {
			return err
		}
		if len(overwritten) > 0 {
			return errs.New(errs.DirtyCheckout, "local changes to %s would be overwritten by checkout", strings.Join(overwritten, ", "))
		}
	}

	var fromTOC map[string]store.FileEntry
	if hadCur {
		fromTOC, err = r.Store.CommitTOC(curHash)
		if err != nil {
			return err
		}
	}
	diffs := diffFromTOCs(fromTOC, targetTOC)
	if err := r.Worktree.Write(diffs); err != nil {
		return err
	}
	r.Index.TOCToIndex(fileEntriesToRecords(targetTOC))
	if err := r.SaveIndex(); err != nil {
		return err
	}

	if detached {
		if err := r.Refs.Write(refs.HEAD, targetHash.String()); err != nil {
			return err
		}
	} else {
		if err := r.Refs.Write(refs.HEAD, "ref: "+branchRef); err != nil {
			return err
		}
		r.Log.Info(errs.SwitchedToBranchMessage(ref))
	}
	return nil
}

func diffFromTOCs(from, to map[string]store.FileEntry) []diff.FileDiff {
	if from == nil {
		from = map[string]store.FileEntry{}
	}
	return merge.TwoWayDiff(from, to)
}

// Diff computes the path-by-path change between two commits. An omitted
// fromRev compares against the index; an omitted toRev compares against the
// working copy.
func Diff(r *repo.Repo, fromRev, toRev string) ([]diff.FileDiff, error) {
	var fromTOC map[string]store.FileEntry
	if fromRev == "" {
		fromTOC = recordsToFileEntries(r.Index.TOC())
	} else {
		toc, err := resolveCommitTOC(r, fromRev)
		if err != nil {
			return nil, err
		}
		fromTOC = toc
	}

	var toTOC map[string]store.FileEntry
	if toRev == "" {
		toc, err := workingCopyTOC(r)
		if err != nil {
			return nil, err
		}
		toTOC = toc
	} else {
		toc, err := resolveCommitTOC(r, toRev)
		if err != nil {
			return nil, err
		}
		toTOC = toc
	}

	return merge.TwoWayDiff(fromTOC, toTOC), nil
}

func resolveCommitTOC(r *repo.Repo, rev string) (map[string]store.FileEntry, error) {
	h, ok, err := r.Refs.Hash(rev)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.New(errs.UnknownRevision, "unknown revision %q", rev)
	}
	return r.Store.CommitTOC(h)
}

// workingCopyTOC hashes every working-copy file into the object store (the
// same as-needed hashing Add does) and returns the resulting TOC.
func workingCopyTOC(r *repo.Repo) (map[string]store.FileEntry, error) {
	if err := r.RequireWorktree(); err != nil {
		return nil, err
	}
	files, err := r.Worktree.LsRecursive()
	if err != nil {
		return nil, err
	}
	toc := map[string]store.FileEntry{}
	for _, path := range files {
		h, mode, err := r.Worktree.FileToBlob(path)
		if err != nil {
			return nil, err
		}
		toc[path] = store.FileEntry{Hash: h, Mode: mode}
	}
	return toc, nil
}

// FormatDiff renders a diff in git's name-status style: one letter plus
// path, A/M/D/U for added/modified/deleted/unresolved-conflict.
func FormatDiff(diffs []diff.FileDiff) string {
	var lines []string
	for _, d := range diffs {
		var code string
		switch d.Kind {
		case diff.Added:
			code = "A"
		case diff.Modified:
			code = "M"
		case diff.Deleted:
			code = "D"
		case diff.Conflict:
			code = "U"
		default:
			continue
		}
		lines = append(lines, code+"\t"+d.Path)
	}
	return strings.Join(lines, "\n")
}

// Remote adds or updates a named remote's URL.
func Remote(r *repo.Repo, name, url string) error {
	r.Config.SetRemoteURL(name, url)
	return r.Config.Save()
}

// Pull fetches remoteName's branch and fast-forwards (or three-way merges)
// it into the current branch.
func Pull(r *repo.Repo, remoteName, branch string, engine *sync.Engine, peer sync.Peer) error {
	if _, err := engine.Fetch(peer, remoteName); err != nil {
		return err
	}
	remoteTip, ok, err := r.Refs.Hash("refs/remotes/" + remoteName + "/" + branch)
	if err != nil {
		return err
	}
	if !ok {
		return errs.New(errs.RemoteRefMissing, "remote %q has no branch %q", remoteName, branch)
	}
	return mergeInto(r, remoteTip, remoteName+"/"+branch)
}

// Merge merges ref (a local branch, a remote-tracking branch, or FETCH_HEAD)
// into the current branch.
func Merge(r *repo.Repo, ref string) error {
	theirs, ok, err := r.Refs.Hash(ref)
	if err != nil {
		return err
	}
	if !ok {
		return errs.New(errs.UnknownRevision, "unknown revision %q", ref)
	}
	return mergeInto(r, theirs, ref)
}

func mergeInto(r *repo.Repo, theirs object.Hash, label string) error {
	if r.Refs.IsHeadDetached() {
		return errs.New(errs.UnsupportedFlag, "cannot merge into a detached HEAD")
	}
	ours, hadOurs, err := r.Refs.Hash(refs.HEAD)
	if err != nil {
		return err
	}
	if !hadOurs {
		return fastForwardTo(r, theirs)
	}
	upToDate, err := r.Graph.IsUpToDate(ours, theirs)
	if err != nil {
		return err
	}
	if upToDate {
		r.Log.Info(errs.AlreadyUpToDateMessage())
		return nil
	}

	canFF, err := r.Merge.CanFastForward(ours, theirs)
	if err != nil {
		return err
	}
	if canFF {
		if err := fastForwardTo(r, theirs); err != nil {
			return err
		}
		r.Log.Info(errs.FastForwardMessage())
		return nil
	}

	return performThreeWayMerge(r, ours, theirs, label)
}

// mergeBoilerplateMessage is MERGE_MSG's deterministic body, written at the
// start of a non-fast-forward merge and consumed by Commit when closing it.
func mergeBoilerplateMessage(label string) string {
	return fmt.Sprintf("Merge %s\n", label)
}

func fastForwardTo(r *repo.Repo, theirs object.Hash) error {
	ours, hadOurs, err := r.Refs.Hash(refs.HEAD)
	if err != nil {
		return err
	}
	var fromTOC map[string]store.FileEntry
	if hadOurs {
		fromTOC, err = r.Store.CommitTOC(ours)
		if err != nil {
			return err
		}
	}
	toTOC, err := r.Store.CommitTOC(theirs)
	if err != nil {
		return err
	}
	if r.Worktree != nil {
		if err := refuseIfMergeWouldOverwrite(r, toTOC); err != nil {
			return err
		}
		if err := r.Worktree.Write(diffFromTOCs(fromTOC, toTOC)); err != nil {
			return err
		}
		r.Index.TOCToIndex(fileEntriesToRecords(toTOC))
		if err := r.SaveIndex(); err != nil {
			return err
		}
	}
	terminal, err := r.Refs.TerminalRef(refs.HEAD)
	if err != nil {
		return err
	}
	return r.Refs.Write(terminal, theirs.String())
}

// refuseIfMergeWouldOverwrite blocks a merge the same way Checkout blocks a
// checkout: uncommitted working-copy changes that the incoming tree would
// clobber abort the merge instead of being silently discarded.
func refuseIfMergeWouldOverwrite(r *repo.Repo, incomingTOC map[string]store.FileEntry) error {
	overwritten, err := r.Worktree.ChangedFilesCommitWouldOverwrite(r.Index, incomingTOC)
	if err != nil {
		return err
	}
	if len(overwritten) > 0 {
		return errs.New(errs.DirtyMerge, "local changes to %s would be overwritten by merge", strings.Join(overwritten, ", "))
	}
	return nil
}

func performThreeWayMerge(r *repo.Repo, ours, theirs object.Hash, label string) error {
	theirsTOC, err := r.Store.CommitTOC(theirs)
	if err != nil {
		return err
	}
	if r.Worktree != nil {
		if err := refuseIfMergeWouldOverwrite(r, theirsTOC); err != nil {
			return err
		}
	}

	if err := r.Refs.Write(refs.MergeHead, theirs.String()); err != nil {
		return err
	}
	if err := r.Refs.Write(refs.MergeMsg, mergeBoilerplateMessage(label)); err != nil {
		return err
	}

	base, ok, err := r.Graph.CommonAncestor(ours, theirs)
	if err != nil {
		return err
	}
	var baseTOC map[string]store.FileEntry
	if ok {
		baseTOC, err = r.Store.CommitTOC(base)
		if err != nil {
			return err
		}
	}
	oursTOC, err := r.Store.CommitTOC(ours)
	if err != nil {
		return err
	}

	diffs, hasConflicts := merge.ThreeWayDiff(baseTOC, oursTOC, theirsTOC)
	if r.Worktree != nil {
		if err := r.Worktree.Write(diffs); err != nil {
			return err
		}
	}

	merged := fileEntriesToRecords(oursTOC)
	for _, d := range diffs {
		switch d.Kind {
		case diff.Deleted:
			delete(merged, d.Path)
		case diff.Added, diff.Modified:
			merged[d.Path] = index.Record{Hash: d.Hash, Mode: d.Mode}
		case diff.Conflict:
			var b, o, t *index.Record
			if d.Base != nil {
				b = &index.Record{Hash: d.Base.Hash, Mode: d.Base.Mode}
			}
			if d.Ours != nil {
				o = &index.Record{Hash: d.Ours.Hash, Mode: d.Ours.Mode}
			}
			if d.Theirs != nil {
				t = &index.Record{Hash: d.Theirs.Hash, Mode: d.Theirs.Mode}
			}
			r.Index.WriteConflict(d.Path, b, o, t)
			delete(merged, d.Path)
		}
	}
	for path, rec := range merged {
		r.Index.WriteNonConflict(path, rec.Hash, rec.Mode)
	}
	if err := r.SaveIndex(); err != nil {
		return err
	}

	if hasConflicts {
		r.Log.Info(errs.AutomaticMergeFailedMessage())
		return nil
	}

	treeHash, err := r.Store.WriteTree(store.NestFromTOC(recordsToFileEntries(r.Index.TOC())))
	if err != nil {
		return err
	}
	commitHash, err := r.Store.WriteCommit(treeHash, mergeBoilerplateMessage(label), []object.Hash{ours, theirs})
	if err != nil {
		return err
	}
	terminal, err := r.Refs.TerminalRef(refs.HEAD)
	if err != nil {
		return err
	}
	if err := r.Refs.Write(terminal, commitHash.String()); err != nil {
		return err
	}
	if err := r.Refs.Rm(refs.MergeHead); err != nil {
		return err
	}
	return r.Refs.Rm(refs.MergeMsg)
}

// Push uploads the current branch's commits to remoteName. force allows a
// non-fast-forward update of the peer's branch.
func Push(r *repo.Repo, remoteName, branch string, force bool, engine *sync.Engine, peer sync.Peer) error {
	tip, ok, err := r.Refs.Hash("refs/heads/" + branch)
	if err != nil {
		return err
	}
	if !ok {
		return errs.New(errs.UnknownRevision, "branch %q has no commits", branch)
	}
	if err := engine.Push(peer, remoteName, branch, tip, force); err != nil {
		return errs.Wrap(errs.NonFastForward, err, errs.PushFailedMessage(peer.URL()))
	}
	return nil
}

// Status renders a human-readable report of the current branch, staged
// changes, and unresolved conflicts.
func Status(r *repo.Repo) (string, error) {
	var b strings.Builder
	branch, attached := r.Refs.HeadBranchName()
	if attached {
		fmt.Fprintf(&b, "# On %s\n", branch)
	} else {
		h, _, _ := r.Refs.Hash(refs.HEAD)
		fmt.Fprintf(&b, "# HEAD detached at %s\n", h)
	}

	conflicted := r.Index.ConflictedPaths()
	if len(conflicted) > 0 {
		color.New(color.FgRed).Fprintln(&b, "# Unmerged paths:")
		for _, p := range conflicted {
			fmt.Fprintf(&b, "#\tboth modified:   %s\n", p)
		}
	}

	if r.Worktree != nil {
		ours, hadOurs, err := r.Refs.Hash(refs.HEAD)
		if err != nil {
			return "", err
		}
		var headTOC map[string]store.FileEntry
		if hadOurs {
			headTOC, err = r.Store.CommitTOC(ours)
			if err != nil {
				return "", err
			}
		}
		indexTOC := recordsToFileEntries(r.Index.TOC())
		staged := merge.TwoWayDiff(headTOC, indexTOC)
		if len(staged) > 0 {
			color.New(color.FgGreen).Fprintln(&b, "# Changes to be committed:")
			for _, d := range staged {
				fmt.Fprintf(&b, "#\t%s:   %s\n", d.Kind, d.Path)
			}
		} else if len(conflicted) == 0 {
			fmt.Fprintln(&b, "nothing to commit, working directory clean")
		}
	}

	return b.String(), nil
}

// UpdateIndex is the low-level plumbing counterpart of `add`: stage path at
// hash/mode directly, bypassing the working tree. Add itself writes to the
// index without going through this function.
func UpdateIndex(r *repo.Repo, path string, h object.Hash, mode uint32) error {
	r.Index.WriteNonConflict(path, h, mode)
	return r.SaveIndex()
}

// UpdateRef is the low-level plumbing operation for ref writes (Branch and
// Checkout write their refs directly and do not call it): resolve refOrHash
// to a hash, require it name a commit object, and
// write the terminal form of refToUpdate. Unlike Refs.Write (a silent no-op
// on invalid names), this is the porcelain-level enforcement point: an
// invalid ref name is a reported error here.
func UpdateRef(r *repo.Repo, refToUpdate, refOrHash string) error {
	terminal, err := r.Refs.TerminalRef(refToUpdate)
	if err != nil {
		return err
	}
	if !refs.IsRef(terminal) {
		return errs.New(errs.InvalidRefName, "invalid ref name %q", refToUpdate)
	}
	h, ok, err := r.Refs.Hash(refOrHash)
	if err != nil {
		return err
	}
	if !ok {
		return errs.New(errs.UnknownRevision, "unknown revision %q", refOrHash)
	}
	obj, ok, err := r.Store.Read(h)
	if err != nil {
		return err
	}
	if !ok || obj.Kind() != object.KindCommit {
		return errs.New(errs.WrongObjectType, "%s does not name a commit", refOrHash)
	}
	return r.Refs.Write(terminal, h.String())
}
