// Package object defines the content-addressed object model: blobs, trees
// and commits, their canonical serialization, and the Hash value type used
// to address them.
package object

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// RawSize is the width, in bytes, of a Hash.
//
// spec.md allows "SHA-1 or a modern replacement"; we pick SHA-256.
const RawSize = sha256.Size

// Hash is a fixed-width content address.
//
// NOTE zero value Hash{} is the null hash, used by Refs/Index/Graph to mean
// "no object" without needing a separate pointer or ok-bool in most call
// sites.
type Hash struct {
	h [RawSize]byte
}

var _ fmt.Stringer = Hash{}

// Sum computes the Hash of a canonical object record.
func Sum(record []byte) Hash {
	return Hash{h: sha256.Sum256(record)}
}

func (h Hash) String() string {
	return hex.EncodeToString(h.h[:])
}

// Parse decodes a hex string into a Hash.
func Parse(s string) (Hash, error) {
	var h Hash
	if hex.DecodedLen(len(s)) != RawSize {
		return Hash{}, fmt.Errorf("hash: %q invalid length", s)
	}
	if _, err := hex.Decode(h.h[:], []byte(s)); err != nil {
		return Hash{}, fmt.Errorf("hash: %q invalid: %w", s, err)
	}
	return h, nil
}

// IsZero reports whether h is the null hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Bytes returns the raw digest bytes.
func (h Hash) Bytes() []byte {
	return h.h[:]
}

// Less reports h < other in byte order — used for stable sort/tie-break.
func (h Hash) Less(other Hash) bool {
	return bytes.Compare(h.h[:], other.h[:]) < 0
}

// ByHash sorts a slice of Hash in byte order, for stable output across runs.
type ByHash []Hash

func (p ByHash) Len() int           { return len(p) }
func (p ByHash) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
func (p ByHash) Less(i, j int) bool { return p[i].Less(p[j]) }
