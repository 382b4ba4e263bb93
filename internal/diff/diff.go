// Package diff holds the tree-diff model shared between the merge engine
// (which computes diffs) and the working tree (which materializes them).
// Kept as its own package so neither merge nor worktree has to import the
// other just for this shape.
package diff

import "github.com/vcsmini/vcsmini/internal/object"

// ChangeKind classifies one path's change between two trees (or, in a
// three-way diff, its merge disposition).
type ChangeKind int

const (
	Same ChangeKind = iota
	Added
	Modified
	Deleted
	Conflict
)

func (k ChangeKind) String() string {
	switch k {
	case Same:
		return "same"
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// FileDiff is one path's change. For Added/Modified, Hash/Mode describe the
// new blob. For Conflict, Base/Ours/Theirs describe the three sides (a nil
// pointer means that side has no entry, i.e. an add/add or delete/modify
// conflict).
type FileDiff struct {
	Path  string
	Kind  ChangeKind
	Hash  object.Hash
	Mode  uint32

	Base   *Side
	Ours   *Side
	Theirs *Side
}

// Side is one branch's view of a conflicted path.
type Side struct {
	Hash object.Hash
	Mode uint32
}
