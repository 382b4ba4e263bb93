package store

import "github.com/vcsmini/vcsmini/internal/object"

// HashSet is a set of object.Hash, kept as internal plumbing for
// AllHashes-style bookkeeping and for CommitGraph's ancestor sets.
//
// Grounded on the teacher's set.go Sha1Set template type.
type HashSet map[object.Hash]struct{}

func (s HashSet) Add(h object.Hash) { s[h] = struct{}{} }

func (s HashSet) Contains(h object.Hash) bool {
	_, ok := s[h]
	return ok
}

// Elements returns all set members as a slice.
func (s HashSet) Elements() []object.Hash {
	ev := make([]object.Hash, 0, len(s))
	for h := range s {
		ev = append(ev, h)
	}
	return ev
}
