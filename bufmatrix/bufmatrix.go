// Package bufmatrix implements the Buffered Matrix Overlay of spec.md
// §4.6: caches the last materialized window and prefetches a larger
// one per strategy, amortizing repeated adjacent queries.
package bufmatrix

import (
	"math"

	"github.com/grailbio/hic/matrix"
	"github.com/grailbio/hic/region"
)

// Strategy decides how far to expand a requested [lo,hi] region-index
// range on prefetch.
type Strategy interface {
	// Expand returns the prefetch bounds for a requested [lo,hi]
	// (inclusive) within an axis whose valid indices run to maxIx
	// (inclusive). openLo/openHi mark an originally-unspecified
	// endpoint, which bypasses expansion on that side (spec.md §4.6).
	Expand(lo, hi uint32, openLo, openHi bool, maxIx uint32) (uint32, uint32)
}

// All prefetches the entire axis once; subsequent queries always hit.
func All() Strategy { return allStrategy{} }

type allStrategy struct{}

func (allStrategy) Expand(lo, hi uint32, openLo, openHi bool, maxIx uint32) (uint32, uint32) {
	return 0, maxIx
}

// Fixed prefetches [lo-k, hi+k], clamped at 1 and maxIx.
func Fixed(k uint32) Strategy { return fixedStrategy{k} }

type fixedStrategy struct{ k uint32 }

func (f fixedStrategy) Expand(lo, hi uint32, openLo, openHi bool, maxIx uint32) (uint32, uint32) {
	if !openLo {
		lo = clampSub(lo, f.k)
	}
	if !openHi {
		hi = clampAdd(hi, f.k, maxIx)
	}
	return lo, hi
}

// Relative prefetches [lo-k*L, hi+k*L] where L=hi-lo, clamped at 1 and
// maxIx.
func Relative(k float64) Strategy { return relativeStrategy{k} }

type relativeStrategy struct{ k float64 }

func (r relativeStrategy) Expand(lo, hi uint32, openLo, openHi bool, maxIx uint32) (uint32, uint32) {
	l := float64(hi) - float64(lo)
	if l < 0 {
		l = 0
	}
	delta := uint32(math.Round(r.k * l))
	if !openLo {
		lo = clampSub(lo, delta)
	}
	if !openHi {
		hi = clampAdd(hi, delta, maxIx)
	}
	return lo, hi
}

// clampSub subtracts d from v, floored at 1 — spec.md §4.6 clamps
// fixed/relative prefetch expansion "at 1 and chromosome end", not 0.
func clampSub(v, d uint32) uint32 {
	if d+1 >= v {
		return 1
	}
	return v - d
}

func clampAdd(v, d, max uint32) uint32 {
	if v+d > max || v+d < v {
		return max
	}
	return v + d
}

// Request is one Overlay.Get call's row/col window, expressed in
// resolved (inclusive) region-index bounds; OpenLo/OpenHi mark an
// unspecified endpoint on that axis.
type Request struct {
	RowLo, RowHi         uint32
	RowOpenLo, RowOpenHi bool
	ColLo, ColHi         uint32
	ColOpenLo, ColOpenHi bool
}

// Overlay caches the last materialized RegionMatrix and its buffered
// region-index extent, per spec.md §4.6.
type Overlay struct {
	regions  *region.Table
	asm      *matrix.Assembler
	strategy Strategy

	hasCache             bool
	bufRowLo, bufRowHi   uint32
	bufColLo, bufColHi   uint32
	cached               *matrix.RegionMatrix
}

// New returns an Overlay over asm using the given prefetch strategy,
// resolving region metadata against regions.
func New(regions *region.Table, asm *matrix.Assembler, strategy Strategy) *Overlay {
	return &Overlay{regions: regions, asm: asm, strategy: strategy}
}

// FromMatrix seeds the overlay's cache directly from an
// already-materialized matrix (spec.md §6:
// "BufferedMatrix::from_matrix(m)"), treating its full row/col
// region-index span as the buffered extent. rm's row/col regions must
// be contiguous by index, as any Assemble result over an IndexRange
// key is.
func FromMatrix(regions *region.Table, asm *matrix.Assembler, strategy Strategy, rm *matrix.RegionMatrix) *Overlay {
	o := New(regions, asm, strategy)
	o.cached = rm
	o.hasCache = true
	if len(rm.RowRegions) > 0 {
		o.bufRowLo, o.bufRowHi = rm.RowRegions[0].Ix, rm.RowRegions[len(rm.RowRegions)-1].Ix
	}
	if len(rm.ColRegions) > 0 {
		o.bufColLo, o.bufColHi = rm.ColRegions[0].Ix, rm.ColRegions[len(rm.ColRegions)-1].Ix
	}
	return o
}

func (o *Overlay) contains(req Request) bool {
	if !o.hasCache {
		return false
	}
	if !req.RowOpenLo && req.RowLo < o.bufRowLo {
		return false
	}
	if !req.RowOpenHi && req.RowHi > o.bufRowHi {
		return false
	}
	if !req.ColOpenLo && req.ColLo < o.bufColLo {
		return false
	}
	if !req.ColOpenHi && req.ColHi > o.bufColHi {
		return false
	}
	return true
}

// Get resolves req, reusing the cache (by slicing it, since any cache
// built by this Overlay spans a contiguous region-index range) if it
// already covers the request, else prefetching an expanded window per
// strategy and replacing the cache.
func (o *Overlay) Get(req Request, opts matrix.Options) (*matrix.RegionMatrix, error) {
	if o.contains(req) {
		rowRegions, err := o.regions.ResolveRegions(region.IndexRange(req.RowLo, req.RowHi))
		if err != nil {
			return nil, err
		}
		colRegions, err := o.regions.ResolveRegions(region.IndexRange(req.ColLo, req.ColHi))
		if err != nil {
			return nil, err
		}
		return o.cached.Matrix(
			region.IndexRange(rowRegions[0].Ix-o.bufRowLo, rowRegions[len(rowRegions)-1].Ix-o.bufRowLo),
			region.IndexRange(colRegions[0].Ix-o.bufColLo, colRegions[len(colRegions)-1].Ix-o.bufColLo),
		)
	}

	rowMax, err := o.axisMax(req.RowLo, req.RowHi)
	if err != nil {
		return nil, err
	}
	colMax, err := o.axisMax(req.ColLo, req.ColHi)
	if err != nil {
		return nil, err
	}

	pRowLo, pRowHi := o.strategy.Expand(req.RowLo, req.RowHi, req.RowOpenLo, req.RowOpenHi, rowMax)
	pColLo, pColHi := o.strategy.Expand(req.ColLo, req.ColHi, req.ColOpenLo, req.ColOpenHi, colMax)

	rowRegions, err := o.regions.ResolveRegions(region.IndexRange(pRowLo, pRowHi))
	if err != nil {
		return nil, err
	}
	colRegions, err := o.regions.ResolveRegions(region.IndexRange(pColLo, pColHi))
	if err != nil {
		return nil, err
	}

	rm, err := o.asm.Assemble(rowRegions, colRegions, opts)
	if err != nil {
		return nil, err
	}
	o.cached = rm
	o.hasCache = true
	o.bufRowLo, o.bufRowHi = pRowLo, pRowHi
	o.bufColLo, o.bufColHi = pColLo, pColHi

	return o.cached.Matrix(
		region.IndexRange(req.RowLo-pRowLo, req.RowHi-pRowLo),
		region.IndexRange(req.ColLo-pColLo, req.ColHi-pColLo),
	)
}

// axisMax returns the highest region index on the same chromosome as
// the region at lo (used as the clamp ceiling for Fixed/Relative
// expansion); hi is assumed to share lo's chromosome, per spec.md
// §4.6's per-axis, single-chromosome prefetch model.
func (o *Overlay) axisMax(lo, hi uint32) (uint32, error) {
	r, err := o.regions.Get(lo)
	if err != nil {
		return 0, err
	}
	_, max, err := o.regions.ResolveWholeChrom(r.Chromosome)
	if err != nil {
		return 0, err
	}
	return max, nil
}

// BufferedMin returns the minimum non-zero value currently buffered,
// or ok=false if nothing is buffered (spec.md §6's buffered_min, for
// UI auto-scaling).
func (o *Overlay) BufferedMin() (v float64, ok bool) {
	if !o.hasCache {
		return 0, false
	}
	found := false
	min := 0.0
	for _, row := range o.cached.Data {
		for _, x := range row {
			if x == 0 {
				continue
			}
			if !found || x < min {
				min = x
				found = true
			}
		}
	}
	return min, found
}

// BufferedMax returns the maximum value currently buffered, or
// ok=false if nothing is buffered.
func (o *Overlay) BufferedMax() (v float64, ok bool) {
	if !o.hasCache {
		return 0, false
	}
	found := false
	max := 0.0
	for _, row := range o.cached.Data {
		for _, x := range row {
			if !found || x > max {
				max = x
				found = true
			}
		}
	}
	return max, found
}
