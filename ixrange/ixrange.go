// Package ixrange defines half-open ranges of region indices, and the
// comparison vocabulary used throughout the store to reason about them.
//
// This is the region-index analogue of the teacher's biopb.Coord /
// biopb.CoordRange: instead of comparing (RefId, Pos, Seq) triples, we
// compare a single dense uint32 index.
package ixrange

import "fmt"

// Range is a half-open range [Start, Limit) of region indices.
type Range struct {
	Start uint32
	Limit uint32
}

// Single returns the range containing exactly the one index ix.
func Single(ix uint32) Range { return Range{ix, ix + 1} }

// Len returns the number of indices covered by r.
func (r Range) Len() int {
	if r.Limit <= r.Start {
		return 0
	}
	return int(r.Limit - r.Start)
}

// Empty reports whether r covers no indices.
func (r Range) Empty() bool { return r.Limit <= r.Start }

// LT reports whether r sorts strictly before r1 (by Start, then Limit).
func (r Range) LT(r1 Range) bool {
	if r.Start != r1.Start {
		return r.Start < r1.Start
	}
	return r.Limit < r1.Limit
}

// LE reports whether r sorts at or before r1.
func (r Range) LE(r1 Range) bool { return !r1.LT(r) }

// GE reports whether r sorts at or after r1.
func (r Range) GE(r1 Range) bool { return !r.LT(r1) }

// GT reports whether r sorts strictly after r1.
func (r Range) GT(r1 Range) bool { return r1.LT(r) }

// EQ reports whether r and r1 cover the same range.
func (r Range) EQ(r1 Range) bool { return r.Start == r1.Start && r.Limit == r1.Limit }

// Intersects reports whether r and r1 share at least one index.
func (r Range) Intersects(r1 Range) bool {
	return r.Start < r1.Limit && r1.Start < r.Limit
}

// Contains reports whether ix lies within r.
func (r Range) Contains(ix uint32) bool {
	return r.Start <= ix && ix < r.Limit
}

// ContainsRange reports whether r1 is entirely within r.
func (r Range) ContainsRange(r1 Range) bool {
	return r.Start <= r1.Start && r1.Limit <= r.Limit
}

// Intersection returns the overlap of r and r1. The result is Empty()
// if they do not intersect.
func (r Range) Intersection(r1 Range) Range {
	start := r.Start
	if r1.Start > start {
		start = r1.Start
	}
	limit := r.Limit
	if r1.Limit < limit {
		limit = r1.Limit
	}
	if limit < start {
		limit = start
	}
	return Range{start, limit}
}

// Union returns the smallest range covering both r and r1. Callers
// should only use this when they know the ranges are meant to be
// merged (e.g. prefetch expansion); it does not check adjacency.
func (r Range) Union(r1 Range) Range {
	if r.Empty() {
		return r1
	}
	if r1.Empty() {
		return r
	}
	start := r.Start
	if r1.Start < start {
		start = r1.Start
	}
	limit := r.Limit
	if r1.Limit > limit {
		limit = r1.Limit
	}
	return Range{start, limit}
}

// FromInclusive builds the half-open Range [lo, hi] (both endpoints
// inclusive), the convention spec.md §4.4 mandates at the query-planner
// boundary.
func FromInclusive(lo, hi uint32) Range { return Range{lo, hi + 1} }

func (r Range) String() string { return fmt.Sprintf("[%d,%d)", r.Start, r.Limit) }
