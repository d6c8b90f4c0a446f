package region

import (
	"github.com/biogo/store/interval"
)

// chromIndex is a per-chromosome augmented interval tree mapping a
// query range to the contiguous run of region indices it overlaps.
// Keyed by [start-1, end) per spec.md §4.5's RegionMatrix indexing
// rule; built with github.com/biogo/store/interval, the same
// augmented-tree package already present in the teacher's dependency
// graph via biogo/store/llrb (encoding/bampair/shard_info.go).
type chromIndex struct {
	tree    *interval.Tree
	minIx   uint32
	maxIx   uint32
}

// regionNode adapts a Region into biogo/store/interval's Interval
// contract: a Range() and a unique ID().
type regionNode struct {
	interval.IntRange
	ix uint32
}

func (n regionNode) ID() uintptr                { return uintptr(n.ix) }
func (n regionNode) Range() interval.IntRange   { return n.IntRange }
func (n regionNode) Overlap(b interval.IntRange) bool {
	return n.IntRange.Start < b.End && b.Start < n.IntRange.End
}

func newChromIndex(regions []Region, ixs []int) *chromIndex {
	t := &interval.Tree{}
	idx := &chromIndex{tree: t}
	for i, ri := range ixs {
		r := regions[ri]
		node := regionNode{
			IntRange: interval.IntRange{Start: int(r.Start) - 1, End: int(r.End)},
			ix:       r.Ix,
		}
		_ = t.Insert(node, true)
		if i == 0 {
			idx.minIx, idx.maxIx = r.Ix, r.Ix
		} else {
			if r.Ix < idx.minIx {
				idx.minIx = r.Ix
			}
			if r.Ix > idx.maxIx {
				idx.maxIx = r.Ix
			}
		}
	}
	t.AdjustRanges()
	return idx
}

// query returns the contiguous [lo,hi] (inclusive) region-index range
// overlapping [start,end). ok is false if nothing overlaps.
func (idx *chromIndex) query(start, end uint32) (lo, hi uint32, ok bool) {
	q := interval.IntRange{Start: int(start) - 1, End: int(end)}
	matches := idx.tree.Get(q)
	if len(matches) == 0 {
		return 0, 0, false
	}
	first := true
	for _, m := range matches {
		n := m.(regionNode)
		if first {
			lo, hi = n.ix, n.ix
			first = false
			continue
		}
		if n.ix < lo {
			lo = n.ix
		}
		if n.ix > hi {
			hi = n.ix
		}
	}
	return lo, hi, true
}
