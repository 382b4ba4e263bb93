package object

import (
	"encoding/binary"
	"fmt"
	"sort"

	"lab.nexedi.com/kirr/go123/mem"
)

// Kind discriminates the three object variants. Closed sum — see spec.md §9
// "Polymorphism": a tagged variant, not open polymorphism, so Encode/Decode
// stay exhaustive.
type Kind byte

const (
	KindBlob Kind = iota
	KindTree
	KindCommit
)

func (k Kind) String() string {
	switch k {
	case KindBlob:
		return "blob"
	case KindTree:
		return "tree"
	case KindCommit:
		return "commit"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

// Object is implemented by Blob, Tree and Commit.
type Object interface {
	Kind() Kind
	// Encode returns the canonical byte record hashed to address this object.
	Encode() []byte
}

// Blob is an opaque byte sequence; no structure imposed.
type Blob struct {
	Data []byte
}

func (Blob) Kind() Kind { return KindBlob }

func (b Blob) Encode() []byte {
	return append([]byte{byte(KindBlob)}, b.Data...)
}

// File modes recorded on blob tree entries, modeled on the native
// syscall.Stat_t mode bits the teacher's file_to_blob/blob_to_file pair
// inspects — just enough to round-trip the executable bit and symlinks.
// Tree entries (KindTree) carry no mode; it is implicitly ModeDir.
const (
	ModeRegular    uint32 = 0o100644
	ModeExecutable uint32 = 0o100755
	ModeSymlink    uint32 = 0o120000
	ModeDir        uint32 = 0o040000
)

// TreeEntry is one name -> (kind, mode, hash) mapping inside a Tree.
//
// Kind must be KindBlob or KindTree; names are single path segments (no "/").
// Mode is meaningful only for KindBlob entries.
type TreeEntry struct {
	Name string
	Kind Kind
	Mode uint32
	Hash Hash
}

// Tree is an ordered mapping of name -> (kind, hash). Canonical serialization
// sorts entries by name; names must be unique within a tree.
type Tree struct {
	Entries []TreeEntry
}

func (Tree) Kind() Kind { return KindTree }

// NewTree builds a Tree from possibly-unsorted entries, sorting them and
// rejecting duplicate names.
func NewTree(entries []TreeEntry) (Tree, error) {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Name == sorted[i-1].Name {
			return Tree{}, fmt.Errorf("tree: duplicate entry name %q", sorted[i].Name)
		}
	}
	return Tree{Entries: sorted}, nil
}

func (t Tree) Encode() []byte {
	buf := []byte{byte(KindTree)}
	for _, e := range t.Entries {
		var lenbuf [4]byte
		binary.BigEndian.PutUint32(lenbuf[:], uint32(len(e.Name)))
		buf = append(buf, lenbuf[:]...)
		buf = append(buf, e.Name...)
		buf = append(buf, byte(e.Kind))
		var modebuf [4]byte
		binary.BigEndian.PutUint32(modebuf[:], e.Mode)
		buf = append(buf, modebuf[:]...)
		buf = append(buf, e.Hash.Bytes()...)
	}
	return buf
}

// EntryByName looks up a single entry, or ok=false if absent.
func (t Tree) EntryByName(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// Commit references a tree and 0/1/2 parents.
type Commit struct {
	Tree    Hash
	Parents []Hash
	Message []byte
}

func (Commit) Kind() Kind { return KindCommit }

func (c Commit) Encode() []byte {
	buf := []byte{byte(KindCommit)}
	buf = append(buf, c.Tree.Bytes()...)
	buf = append(buf, byte(len(c.Parents)))
	for _, p := range c.Parents {
		buf = append(buf, p.Bytes()...)
	}
	buf = append(buf, c.Message...)
	return buf
}

// IsMerge reports whether the commit has two parents.
func (c Commit) IsMerge() bool { return len(c.Parents) == 2 }

// Decode parses a canonical byte record back into an Object. A record that
// doesn't match any known variant's framing is a corruption error — this is
// the one place spec.md §4.1 calls fatal rather than a normal "not found".
func Decode(record []byte) (Object, error) {
	if len(record) < 1 {
		return nil, fmt.Errorf("object: empty record")
	}
	kind := Kind(record[0])
	body := record[1:]
	switch kind {
	case KindBlob:
		return Blob{Data: append([]byte(nil), body...)}, nil

	case KindTree:
		var entries []TreeEntry
		for len(body) > 0 {
			if len(body) < 4 {
				return nil, fmt.Errorf("object: truncated tree entry header")
			}
			nlen := binary.BigEndian.Uint32(body[:4])
			body = body[4:]
			if uint32(len(body)) < nlen+1+4+RawSize {
				return nil, fmt.Errorf("object: truncated tree entry body")
			}
			name := mem.String(body[:nlen])
			body = body[nlen:]
			ekind := Kind(body[0])
			body = body[1:]
			mode := binary.BigEndian.Uint32(body[:4])
			body = body[4:]
			var h Hash
			copy(h.h[:], body[:RawSize])
			body = body[RawSize:]
			if ekind != KindBlob && ekind != KindTree {
				return nil, fmt.Errorf("object: tree entry %q has invalid kind %v", name, ekind)
			}
			entries = append(entries, TreeEntry{Name: name, Kind: ekind, Mode: mode, Hash: h})
		}
		return Tree{Entries: entries}, nil

	case KindCommit:
		if len(body) < RawSize+1 {
			return nil, fmt.Errorf("object: truncated commit header")
		}
		var tree Hash
		copy(tree.h[:], body[:RawSize])
		body = body[RawSize:]
		nparents := int(body[0])
		body = body[1:]
		if len(body) < nparents*RawSize {
			return nil, fmt.Errorf("object: truncated commit parents")
		}
		parents := make([]Hash, nparents)
		for i := 0; i < nparents; i++ {
			copy(parents[i].h[:], body[:RawSize])
			body = body[RawSize:]
		}
		return Commit{Tree: tree, Parents: parents, Message: append([]byte(nil), body...)}, nil

	default:
		return nil, fmt.Errorf("object: unknown kind byte %d", record[0])
	}
}
