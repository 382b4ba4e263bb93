// Package graph implements spec.md §4.5's CommitGraph: ancestry queries
// over the commit DAG, resolved with a generation-number-pruned
// bidirectional search rather than a full-history walk.
//
// Grounded on odvcencio-got's pkg/repo/merge.go (FindMergeBase /
// mergeBaseMaxHeap): commits are painted with which side(s) of the merge
// reached them, explored in generation-number order via a max-heap, and a
// commit painted by both sides is a merge-base candidate.
package graph

import (
	"container/heap"
	"sort"

	"github.com/vcsmini/vcsmini/internal/object"
	"github.com/vcsmini/vcsmini/internal/store"
)

// Graph answers ancestry questions over the commits in a Store.
type Graph struct {
	store *store.Store
}

func New(st *store.Store) *Graph {
	return &Graph{store: st}
}

// generation returns a commit's generation number: 0 for a root commit,
// else 1 + max(parents' generation numbers). Memoized across calls sharing
// the same memo map.
func (g *Graph) generation(memo map[object.Hash]int, h object.Hash) (int, error) {
	if v, ok := memo[h]; ok {
		return v, nil
	}
	c, err := g.store.ReadCommit(h)
	if err != nil {
		return 0, err
	}
	if len(c.Parents) == 0 {
		memo[h] = 0
		return 0, nil
	}
	best := -1
	for _, p := range c.Parents {
		pg, err := g.generation(memo, p)
		if err != nil {
			return 0, err
		}
		if pg > best {
			best = pg
		}
	}
	memo[h] = best + 1
	return best + 1, nil
}

// Ancestors returns every proper ancestor of h (not including h itself).
func (g *Graph) Ancestors(h object.Hash) (store.HashSet, error) {
	out := store.HashSet{}
	queue := []object.Hash{h}
	seen := store.HashSet{}
	seen.Add(h)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		c, err := g.store.ReadCommit(cur)
		if err != nil {
			return nil, err
		}
		for _, p := range c.Parents {
			if seen.Contains(p) {
				continue
			}
			seen.Add(p)
			out.Add(p)
			queue = append(queue, p)
		}
	}
	return out, nil
}

// IsAncestor reports whether candidate is h itself or a proper ancestor of
// it.
func (g *Graph) IsAncestor(candidate, h object.Hash) (bool, error) {
	if candidate == h {
		return true, nil
	}
	ancestors, err := g.Ancestors(h)
	if err != nil {
		return false, err
	}
	return ancestors.Contains(candidate), nil
}

// IsUpToDate reports whether remote is already reachable from local — i.e.
// fetching/merging remote into local would be a no-op.
func (g *Graph) IsUpToDate(local, remote object.Hash) (bool, error) {
	return g.IsAncestor(remote, local)
}

// genNode is one entry in the merge-base search heap.
type genNode struct {
	hash object.Hash
	gen  int
}

type genHeap []genNode

func (h genHeap) Len() int { return len(h) }
func (h genHeap) Less(i, j int) bool {
	if h[i].gen != h[j].gen {
		return h[i].gen > h[j].gen // max-heap: highest generation first
	}
	return h[i].hash.Less(h[j].hash)
}
func (h genHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *genHeap) Push(x interface{}) { *h = append(*h, x.(genNode)) }
func (h *genHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

const (
	flagA flag = 1 << iota
	flagB
	flagResult
)

type flag uint8

// CommonAncestor finds a merge base of a and b: a commit reachable from
// both that is not itself an ancestor of another common ancestor. Resolved
// deterministically (highest generation number, then lowest hash) rather
// than enumerating every minimal common ancestor — see DESIGN.md's Open
// Question decision.
func (g *Graph) CommonAncestor(a, b object.Hash) (object.Hash, bool, error) {
	if a == b {
		return a, true, nil
	}

	memo := map[object.Hash]int{}
	flags := map[object.Hash]flag{}
	pq := &genHeap{}
	heap.Init(pq)

	ga, err := g.generation(memo, a)
	if err != nil {
		return object.Hash{}, false, err
	}
	gb, err := g.generation(memo, b)
	if err != nil {
		return object.Hash{}, false, err
	}
	flags[a] = flagA
	flags[b] = flagB
	heap.Push(pq, genNode{a, ga})
	heap.Push(pq, genNode{b, gb})

	var results []object.Hash
	for pq.Len() > 0 {
		n := heap.Pop(pq).(genNode)
		f := flags[n.hash]
		if f&flagResult != 0 {
			continue
		}
		if f&flagA != 0 && f&flagB != 0 {
			results = append(results, n.hash)
			flags[n.hash] = f | flagResult
			continue // ancestors of a found base aren't minimal bases
		}
		c, err := g.store.ReadCommit(n.hash)
		if err != nil {
			return object.Hash{}, false, err
		}
		for _, p := range c.Parents {
			prev, exists := flags[p]
			merged := prev | f
			if exists && merged == prev {
				continue
			}
			flags[p] = merged
			pg, err := g.generation(memo, p)
			if err != nil {
				return object.Hash{}, false, err
			}
			heap.Push(pq, genNode{p, pg})
		}
	}

	if len(results) == 0 {
		return object.Hash{}, false, nil
	}
	sort.Slice(results, func(i, j int) bool {
		gi, gj := memo[results[i]], memo[results[j]]
		if gi != gj {
			return gi > gj
		}
		return results[i].Less(results[j])
	})
	return results[0], true, nil
}
