package region

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/hic/errs"
)

// Key is anything spec.md §6 allows as a region-axis key: an integer
// index, a half-open integer range, a "chrom:start-end" string, a
// Region, or a list of any of those. Construct one with the helpers
// below rather than the struct literal.
type Key struct {
	kind     keyKind
	ix       uint32
	lo, hi   uint32 // inclusive, used when kind == keyRange
	chromStr string
	list     []Key
}

type keyKind int

const (
	keyIndex keyKind = iota
	keyRange
	keyChromString
	keyChromWhole
	keyList
)

// Index builds a Key selecting the single region at ix.
func Index(ix uint32) Key { return Key{kind: keyIndex, ix: ix} }

// IndexRange builds a Key selecting the inclusive region-index range
// [lo, hi].
func IndexRange(lo, hi uint32) Key { return Key{kind: keyRange, lo: lo, hi: hi} }

// Chrom builds a Key selecting every region of the named chromosome.
func Chrom(name string) Key { return Key{kind: keyChromWhole, chromStr: name} }

// ChromRangeKey builds a Key from a "chrom:start-end" style query; use
// ParseString if the string itself needs parsing.
func ChromRangeKey(chrom string, start, end uint32) Key {
	return Key{kind: keyChromString, chromStr: chrom, lo: start, hi: end}
}

// List builds a Key that concatenates the resolution of each element
// along the axis, in order.
func List(keys ...Key) Key { return Key{kind: keyList, list: keys} }

// ParseString parses "chr:start-end", a bare chromosome name, or a
// bare integer index into a Key.
func ParseString(s string) (Key, error) {
	if !strings.Contains(s, ":") {
		if n, err := strconv.ParseUint(s, 10, 32); err == nil {
			return Index(uint32(n)), nil
		}
		return Chrom(s), nil
	}
	parts := strings.SplitN(s, ":", 2)
	chrom := parts[0]
	rangePart := parts[1]
	dash := strings.Index(rangePart, "-")
	if dash < 0 {
		return Key{}, fmt.Errorf("hic: malformed region string %q: expected chrom:start-end", s)
	}
	startStr, endStr := rangePart[:dash], rangePart[dash+1:]
	start, err := strconv.ParseUint(strings.ReplaceAll(startStr, ",", ""), 10, 32)
	if err != nil {
		return Key{}, fmt.Errorf("hic: malformed start position in %q: %w", s, err)
	}
	end, err := strconv.ParseUint(strings.ReplaceAll(endStr, ",", ""), 10, 32)
	if err != nil {
		return Key{}, fmt.Errorf("hic: malformed end position in %q: %w", s, err)
	}
	return Key{kind: keyChromString, chromStr: chrom, lo: uint32(start), hi: uint32(end)}, nil
}

// Resolve resolves k against t, returning the region-index list in
// resolution order (concatenated for keyList).
func (t *Table) Resolve(k Key) ([]uint32, error) {
	switch k.kind {
	case keyIndex:
		if int(k.ix) >= len(t.regions) {
			return nil, errs.Wrap(errs.ErrIndexOutOfRange, "Resolve", k.ix)
		}
		return []uint32{k.ix}, nil
	case keyRange:
		if k.hi < k.lo || int(k.hi) >= len(t.regions) {
			return nil, errs.Wrap(errs.ErrIndexOutOfRange, "Resolve", fmt.Sprintf("[%d,%d]", k.lo, k.hi))
		}
		out := make([]uint32, 0, k.hi-k.lo+1)
		for ix := k.lo; ix <= k.hi; ix++ {
			out = append(out, ix)
		}
		return out, nil
	case keyChromWhole:
		lo, hi, err := t.ResolveWholeChrom(k.chromStr)
		if err != nil {
			return nil, err
		}
		return indexSeq(lo, hi), nil
	case keyChromString:
		// A bare chromosome name parsed into keyChromString with lo==hi==0
		// (ParseString never produces that) always carries an explicit
		// range by construction.
		lo, hi, err := t.ResolveChromRange(k.chromStr, k.lo, k.hi)
		if err != nil {
			return nil, err
		}
		return indexSeq(lo, hi), nil
	case keyList:
		var out []uint32
		for _, sub := range k.list {
			ixs, err := t.Resolve(sub)
			if err != nil {
				return nil, err
			}
			out = append(out, ixs...)
		}
		if len(out) == 0 {
			return nil, errs.Wrap(errs.ErrEmptyRange, "Resolve", "empty list")
		}
		return out, nil
	default:
		return nil, fmt.Errorf("hic: invalid region key")
	}
}

// ResolveRegions is a convenience wrapper around Resolve that
// materializes full Region values (non-lazy).
func (t *Table) ResolveRegions(k Key) ([]Region, error) {
	ixs, err := t.Resolve(k)
	if err != nil {
		return nil, err
	}
	out := make([]Region, len(ixs))
	for i, ix := range ixs {
		r, err := t.Get(ix)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func indexSeq(lo, hi uint32) []uint32 {
	out := make([]uint32, 0, hi-lo+1)
	for ix := lo; ix <= hi; ix++ {
		out = append(out, ix)
	}
	return out
}
