package matrix

import "github.com/grailbio/hic/region"

// axisIndex resolves region/chromosome-string keys against one axis
// of an already-materialized RegionMatrix, by rebuilding a small
// region.Table over that axis's regions and reusing its interval-tree
// resolution (spec.md §4.5: "one tree per chromosome, keyed by
// [start-1,end), payload = axis index").
type axisIndex struct {
	tbl      *region.Table
	localIx  map[uint32]int // table-local ix -> position within the axis slice
}

func buildAxisIndex(regions []region.Region) (*axisIndex, error) {
	tbl := region.New()
	localIx := make(map[uint32]int, len(regions))
	for pos, r := range regions {
		ix, err := tbl.AppendRegion(r)
		if err != nil {
			return nil, err
		}
		localIx[ix] = pos
	}
	return &axisIndex{tbl: tbl, localIx: localIx}, nil
}

// Positions resolves k against the axis and returns the corresponding
// positions within the original regions slice, in resolution order.
func (a *axisIndex) Positions(k region.Key) ([]int, error) {
	ixs, err := a.tbl.Resolve(k)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(ixs))
	for i, ix := range ixs {
		out[i] = a.localIx[ix]
	}
	return out, nil
}

// Matrix resolves rowKey against rm's row axis and colKey against its
// column axis, returning a new RegionMatrix over the selected
// sub-window — "matrix(key) composed with a sub-slice on string key
// equals a direct matrix of the narrower key" (spec.md §8's round-trip
// property).
func (rm *RegionMatrix) Matrix(rowKey, colKey region.Key) (*RegionMatrix, error) {
	rowIdx, err := buildAxisIndex(rm.RowRegions)
	if err != nil {
		return nil, err
	}
	colIdx, err := buildAxisIndex(rm.ColRegions)
	if err != nil {
		return nil, err
	}
	rowPos, err := rowIdx.Positions(rowKey)
	if err != nil {
		return nil, err
	}
	colPos, err := colIdx.Positions(colKey)
	if err != nil {
		return nil, err
	}

	out := &RegionMatrix{
		Data:       make([][]float64, len(rowPos)),
		RowRegions: make([]region.Region, len(rowPos)),
		ColRegions: make([]region.Region, len(colPos)),
	}
	if rm.RowMask != nil {
		out.RowMask = make([]bool, len(rowPos))
	}
	if rm.ColMask != nil {
		out.ColMask = make([]bool, len(colPos))
	}
	for i, rp := range rowPos {
		out.Data[i] = make([]float64, len(colPos))
		out.RowRegions[i] = rm.RowRegions[rp]
		if rm.RowMask != nil {
			out.RowMask[i] = rm.RowMask[rp]
		}
		for j, cp := range colPos {
			out.Data[i][j] = rm.Data[rp][cp]
		}
	}
	for j, cp := range colPos {
		out.ColRegions[j] = rm.ColRegions[cp]
		if rm.ColMask != nil {
			out.ColMask[j] = rm.ColMask[cp]
		}
	}
	return out, nil
}
