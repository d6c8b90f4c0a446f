// Package partition implements the Partition Map of spec.md §4.2: a
// sorted vector of partition-break indices derived from the Region
// Table, translating a region index to a partition index in O(log P).
package partition

import (
	"sort"

	"github.com/grailbio/hic/region"
)

// Strategy decides where partition breaks fall, given the ordered
// region sequence.
type Strategy interface {
	// Breaks returns the strictly increasing sequence of break
	// indices: partition p covers region indices
	// [breaks[p-1], breaks[p]) with breaks[-1]=0 implicit.
	Breaks(regions []region.Region) []uint32
}

// byChromosome is the default strategy: a break is emitted whenever
// the chromosome changes.
type byChromosome struct{}

// ByChromosome is the default partition strategy: one partition per
// chromosome.
func ByChromosome() Strategy { return byChromosome{} }

func (byChromosome) Breaks(regions []region.Region) []uint32 {
	var breaks []uint32
	for i := 1; i < len(regions); i++ {
		if regions[i].Chromosome != regions[i-1].Chromosome {
			breaks = append(breaks, uint32(i))
		}
	}
	return breaks
}

// fixed is the fixed-bin strategy: breaks at B, 2B, ....
type fixed struct{ b uint32 }

// Fixed returns a partition strategy that breaks every B region
// indices, regardless of chromosome boundaries. B must be >= 1.
func Fixed(b uint32) Strategy {
	if b < 1 {
		b = 1
	}
	return fixed{b}
}

func (f fixed) Breaks(regions []region.Region) []uint32 {
	var breaks []uint32
	for b := f.b; int(b) < len(regions); b += f.b {
		breaks = append(breaks, b)
	}
	return breaks
}

// Map maps region indices to partition indices (I3: part(ix) =
// upper_bound(breaks, ix)).
type Map struct {
	breaks []uint32 // strictly increasing; breaks[-1]=0 and breaks[P]=nRegions are implicit.
	nRegions uint32
}

// Build constructs a Map from regions using the given strategy.
func Build(regions []region.Region, strat Strategy) *Map {
	return &Map{breaks: strat.Breaks(regions), nRegions: uint32(len(regions))}
}

// FromBreaks reconstructs a Map from a previously-persisted breaks
// vector (the partition_breaks metadata attribute of spec.md §6).
func FromBreaks(breaks []uint32, nRegions uint32) *Map {
	cp := append([]uint32(nil), breaks...)
	return &Map{breaks: cp, nRegions: nRegions}
}

// Breaks returns the persisted breaks vector.
func (m *Map) Breaks() []uint32 { return m.breaks }

// NumPartitions returns the partition count P.
func (m *Map) NumPartitions() int { return len(m.breaks) + 1 }

// Part returns the partition index containing region index ix, via
// binary search over breaks (sort.Search, the same binary-search
// idiom as interval.SearchPosTypes).
func (m *Map) Part(ix uint32) int {
	return sort.Search(len(m.breaks), func(i int) bool { return m.breaks[i] > ix })
}

// Range returns the contiguous, half-open region-index range covered
// by partition p.
func (m *Map) Range(p int) (lo, hi uint32) {
	if p > 0 {
		lo = m.breaks[p-1]
	}
	if p < len(m.breaks) {
		hi = m.breaks[p]
	} else {
		hi = m.nRegions
	}
	return lo, hi
}

// CoversWhole reports whether [lo,hi) (half-open) entirely covers
// partition p's range — used by query.Planner's full-partition fast
// path.
func (m *Map) CoversWhole(p int, lo, hi uint32) bool {
	pLo, pHi := m.Range(p)
	return lo <= pLo && hi >= pHi
}
