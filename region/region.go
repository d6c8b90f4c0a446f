// Package region implements the Region Table of spec.md §4.1: an
// ordered, immutable-after-flush sequence of genomic regions, along
// with chromosome/range-keyed resolution.
package region

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/log"
	"github.com/grailbio/hic/errs"
)

// Region is one row of the Region Table: a genomic interval with a
// stable dense index and two normalization attributes.
type Region struct {
	Ix         uint32
	Chromosome string
	Start      uint32
	End        uint32
	Valid      bool
	Bias       float64
	Ext        map[string]interface{}
}

// newDefaultRegion fills in the defaults spec.md §3 declares
// (valid=true, bias=1.0).
func newDefaultRegion(chrom string, start, end uint32) Region {
	return Region{Chromosome: chrom, Start: start, End: end, Valid: true, Bias: 1.0}
}

// Table is the Region Table: Growing until Freeze is called (spec.md
// §4.7; hic.Store does so at its first edge operation), after which
// Append is rejected.
type Table struct {
	regions []Region
	byChrom map[string][]int // chromosome -> indices into regions, in order.
	frozen  bool

	trees map[string]*chromIndex // lazily built, one per chromosome.
}

// New returns an empty, Growing region table.
func New() *Table {
	return &Table{byChrom: make(map[string][]int)}
}

// Append adds a new region at the next dense index. It returns
// errs.ErrRegionsFrozen if the table has already been frozen.
func (t *Table) Append(chrom string, start, end uint32) (uint32, error) {
	if t.frozen {
		return 0, errs.Wrap(errs.ErrRegionsFrozen, "Append")
	}
	r := newDefaultRegion(chrom, start, end)
	r.Ix = uint32(len(t.regions))
	t.regions = append(t.regions, r)
	t.byChrom[chrom] = append(t.byChrom[chrom], int(r.Ix))
	return r.Ix, nil
}

// AppendRegion adds a fully-specified region (used by callers that
// already carry valid/bias/ext, e.g. a round-trip reload).
func (t *Table) AppendRegion(r Region) (uint32, error) {
	if t.frozen {
		return 0, errs.Wrap(errs.ErrRegionsFrozen, "AppendRegion")
	}
	r.Ix = uint32(len(t.regions))
	t.regions = append(t.regions, r)
	t.byChrom[r.Chromosome] = append(t.byChrom[r.Chromosome], int(r.Ix))
	return r.Ix, nil
}

// Freeze implements the Growing→Frozen transition of spec.md §4.7.
// It is idempotent.
func (t *Table) Freeze() {
	if t.frozen {
		return
	}
	t.frozen = true
	log.Debug.Printf("region.Table: frozen at %d regions", len(t.regions))
}

// Frozen reports whether the table has been frozen.
func (t *Table) Frozen() bool { return t.frozen }

// Len returns the number of regions in the table.
func (t *Table) Len() int { return len(t.regions) }

// Get returns the region at index ix.
func (t *Table) Get(ix uint32) (Region, error) {
	if int(ix) >= len(t.regions) {
		return Region{}, errs.Wrap(errs.ErrIndexOutOfRange, "Get", ix)
	}
	return t.regions[ix], nil
}

// SetBias updates the bias of region ix in place. This is the
// ApplyBias mutator of SPEC_FULL.md §9, modeled on the original's
// in-place `regions[i].bias = ...` pattern.
func (t *Table) SetBias(ix uint32, bias float64) error {
	if int(ix) >= len(t.regions) {
		return errs.Wrap(errs.ErrIndexOutOfRange, "SetBias", ix)
	}
	t.regions[ix].Bias = bias
	return nil
}

// SetValid updates the valid flag of region ix in place.
func (t *Table) SetValid(ix uint32, valid bool) error {
	if int(ix) >= len(t.regions) {
		return errs.Wrap(errs.ErrIndexOutOfRange, "SetValid", ix)
	}
	t.regions[ix].Valid = valid
	return nil
}

// Iter yields regions in index order. When lazy is true, each yielded
// Region is a copy of the table's entry that shares its Ext map with
// the table. When lazy is false, each Region (including its Ext map)
// is deep-copied.
func (t *Table) Iter(lazy bool) []Region {
	out := make([]Region, len(t.regions))
	for i, r := range t.regions {
		if lazy {
			out[i] = r
			continue
		}
		out[i] = r
		if r.Ext != nil {
			ext := make(map[string]interface{}, len(r.Ext))
			for k, v := range r.Ext {
				ext[k] = v
			}
			out[i].Ext = ext
		}
	}
	return out
}

// Chromosomes returns the distinct chromosome names in first-seen
// order, which is also the order partition.ByChromosome relies on.
func (t *Table) Chromosomes() []string {
	seen := make(map[string]bool, len(t.byChrom))
	var order []string
	for _, r := range t.regions {
		if !seen[r.Chromosome] {
			seen[r.Chromosome] = true
			order = append(order, r.Chromosome)
		}
	}
	return order
}

// Invalidate drops any cached per-chromosome interval trees, forcing
// them to be rebuilt on next Resolve. Region tables are immutable
// after Freeze, so this is only needed by callers who mutate via
// AppendRegion before freezing and then resolve by range.
func (t *Table) Invalidate() { t.trees = nil }

func (t *Table) ensureTree(chrom string) (*chromIndex, error) {
	if t.trees == nil {
		t.trees = make(map[string]*chromIndex)
	}
	if idx, ok := t.trees[chrom]; ok {
		return idx, nil
	}
	ixs, ok := t.byChrom[chrom]
	if !ok {
		return nil, t.unknownChromosome(chrom)
	}
	idx := newChromIndex(t.regions, ixs)
	t.trees[chrom] = idx
	return idx, nil
}

func (t *Table) unknownChromosome(chrom string) error {
	suggestion := t.suggestChromosome(chrom)
	if suggestion != "" {
		return errs.Wrap(errs.ErrUnknownChromosome, "Resolve",
			fmt.Sprintf("%q (did you mean %q?)", chrom, suggestion))
	}
	return errs.Wrap(errs.ErrUnknownChromosome, "Resolve", fmt.Sprintf("%q", chrom))
}

// ResolveChromRange returns the contiguous, inclusive [lo,hi] region
// index range overlapping [start,end) on the given chromosome.
func (t *Table) ResolveChromRange(chrom string, start, end uint32) (lo, hi uint32, err error) {
	idx, err := t.ensureTree(chrom)
	if err != nil {
		return 0, 0, err
	}
	lo32, hi32, ok := idx.query(start, end)
	if !ok {
		return 0, 0, errs.Wrap(errs.ErrEmptyRange, "Resolve", fmt.Sprintf("%s:%d-%d", chrom, start, end))
	}
	return lo32, hi32, nil
}

// ResolveWholeChrom returns the contiguous region-index range covering
// all regions of chrom.
func (t *Table) ResolveWholeChrom(chrom string) (lo, hi uint32, err error) {
	ixs, ok := t.byChrom[chrom]
	if !ok {
		return 0, 0, t.unknownChromosome(chrom)
	}
	if len(ixs) == 0 {
		return 0, 0, errs.Wrap(errs.ErrEmptyRange, "Resolve", chrom)
	}
	sorted := append([]int(nil), ixs...)
	sort.Ints(sorted)
	return uint32(sorted[0]), uint32(sorted[len(sorted)-1]), nil
}
