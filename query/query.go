// Package query implements the Query Planner of spec.md §4.4: given a
// pair of region-index ranges, it enumerates the SubTables to visit,
// generates the canonical and mirror predicates, and deduplicates
// results lying in the overlap of both, grounded on sharder.go's
// intersectIndexBlocks range-intersection idiom for selecting which
// indexed blocks a predicate scan must visit.
package query

import (
	"fmt"

	"github.com/blainsmith/seahash"
	"github.com/grailbio/hic/edge"
	"github.com/grailbio/hic/ixrange"
	"github.com/grailbio/hic/partition"
	"github.com/grailbio/hic/schema"
	"github.com/grailbio/hic/tablestore"
	"github.com/pkg/errors"
)

// Planner plans and executes range queries against an edge.Store.
type Planner struct {
	pmap *partition.Map
	es   *edge.Store
}

// New returns a Planner over the given partition map and edge store.
func New(pmap *partition.Map, es *edge.Store) *Planner {
	return &Planner{pmap: pmap, es: es}
}

// Row is one yielded edge: an unmasked stored row matched by a
// SubTable full scan or by the P1/P2 predicates over the window's
// bounding envelope (spec.md §4.4). It is not re-checked against the
// exact row x col index lists, so it may lie outside the requested
// window and its transpose (see Query).
type Row schema.Row

// Query resolves every stored edge touching the window spanned by
// rowIxs x colIxs. rowIxs/colIxs need not be contiguous; the planner
// computes their bounding envelope [r0,r1]/[c0,c1] to select
// candidate SubTables and predicates (a superset when the index list
// has gaps), and callers (typically matrix.Assembler) are responsible
// for discarding edges whose endpoints fall in a gap.
func (p *Planner) Query(rowIxs, colIxs []uint32) ([]schema.Row, error) {
	r0, r1, err := bounds(rowIxs)
	if err != nil {
		return nil, err
	}
	c0, c1, err := bounds(colIxs)
	if err != nil {
		return nil, err
	}

	ir0, ir1 := p.pmap.Part(r0), p.pmap.Part(r1)
	ic0, ic1 := p.pmap.Part(c0), p.pmap.Part(c1)

	parts, err := p.es.Scan()
	if err != nil {
		return nil, errors.Wrap(err, "query.Planner.Query: Scan")
	}
	byKey := make(map[[2]int]edge.Partition, len(parts))
	for _, pt := range parts {
		byKey[[2]int{pt.I, pt.J}] = pt
	}

	overlapLo, overlapHi, hasOverlap := overlap(r0, r1, c0, c1)

	var out []schema.Row
	seen := newDedupSet()

	for i := ir0; i <= ir1; i++ {
		for j := ic0; j <= ic1; j++ {
			si, sj := i, j
			if si > sj {
				si, sj = sj, si
			}
			pt, ok := byKey[[2]int{si, sj}]
			if !ok {
				continue
			}

			if p.pmap.CoversWhole(i, r0, r1+1) && p.pmap.CoversWhole(j, c0, c1+1) {
				rows, err := scanAll(pt.Table)
				if err != nil {
					return nil, errors.Wrapf(err, "query.Planner.Query: full scan of %d,%d", si, sj)
				}
				out = appendDedup(out, seen, rows)
				continue
			}

			p1 := tablestore.Predicate{Source: ixrange.FromInclusive(r0, r1), Sink: ixrange.FromInclusive(c0, c1)}
			rows, err := scanPredicate(pt.Table, p1)
			if err != nil {
				return nil, errors.Wrapf(err, "query.Planner.Query: P1 scan of %d,%d", si, sj)
			}
			out = appendDedup(out, seen, rows)

			p2 := tablestore.Predicate{Source: ixrange.FromInclusive(c0, r1), Sink: ixrange.FromInclusive(r0, r1)}
			rows, err = scanPredicate(pt.Table, p2)
			if err != nil {
				return nil, errors.Wrapf(err, "query.Planner.Query: P2 scan of %d,%d", si, sj)
			}
			for _, row := range rows {
				if hasOverlap && inRange(row.Source, overlapLo, overlapHi) && inRange(row.Sink, overlapLo, overlapHi) {
					continue // already emitted by P1; suppress per spec.md §4.4.
				}
				out = appendDedup(out, seen, []schema.Row{row})
			}
		}
	}
	return out, nil
}

func bounds(ixs []uint32) (lo, hi uint32, err error) {
	if len(ixs) == 0 {
		return 0, 0, fmt.Errorf("hic: query.Planner: empty region-index list")
	}
	lo, hi = ixs[0], ixs[0]
	for _, ix := range ixs[1:] {
		if ix < lo {
			lo = ix
		}
		if ix > hi {
			hi = ix
		}
	}
	return lo, hi, nil
}

// overlap returns O = [max(r0,c0), min(r1,c1)] per spec.md §4.4, and
// whether it is non-empty.
func overlap(r0, r1, c0, c1 uint32) (lo, hi uint32, ok bool) {
	lo = r0
	if c0 > lo {
		lo = c0
	}
	hi = r1
	if c1 < hi {
		hi = c1
	}
	return lo, hi, lo <= hi
}

func inRange(ix, lo, hi uint32) bool { return ix >= lo && ix <= hi }

func scanAll(tbl tablestore.Table) ([]schema.Row, error) {
	it, err := tbl.Scan()
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []schema.Row
	for it.Next() {
		r := it.Row()
		if !r.Masked {
			out = append(out, r)
		}
	}
	return out, it.Err()
}

func scanPredicate(tbl tablestore.Table, p tablestore.Predicate) ([]schema.Row, error) {
	it, err := tbl.Where(p)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []schema.Row
	for it.Next() {
		r := it.Row()
		if !r.Masked {
			out = append(out, r)
		}
	}
	return out, it.Err()
}

// dedupSet tracks (source,sink) pairs already yielded, keyed by a
// seahash digest of their encoded bytes rather than a [2]uint32 map
// key — a cheap fixed-size hash of a small byte key, the same role
// the library plays elsewhere in the corpus.
type dedupSet struct {
	seen map[uint64]struct{}
}

func newDedupSet() *dedupSet { return &dedupSet{seen: make(map[uint64]struct{})} }

func (d *dedupSet) seenBefore(s, t uint32) bool {
	key := pairHash(s, t)
	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}

func pairHash(s, t uint32) uint64 {
	var buf [8]byte
	buf[0] = byte(s)
	buf[1] = byte(s >> 8)
	buf[2] = byte(s >> 16)
	buf[3] = byte(s >> 24)
	buf[4] = byte(t)
	buf[5] = byte(t >> 8)
	buf[6] = byte(t >> 16)
	buf[7] = byte(t >> 24)
	return seahash.Sum64(buf[:])
}

func appendDedup(out []schema.Row, seen *dedupSet, rows []schema.Row) []schema.Row {
	for _, r := range rows {
		if seen.seenBefore(r.Source, r.Sink) {
			continue
		}
		out = append(out, r)
	}
	return out
}
