// Package matrix implements the Matrix Assembler of spec.md §4.5: it
// materializes a dense 2-D window over a queried row/col range,
// mirrors the half-matrix across the diagonal, applies bias
// normalization, and optionally masks invalid regions.
package matrix

import (
	"math"

	"github.com/grailbio/hic/query"
	"github.com/grailbio/hic/region"
	"github.com/grailbio/hic/schema"
)

// Options configures one Matrix call, per spec.md §6's
// matrix(key, score_field='weight', default=0.0, mask_invalid=false).
type Options struct {
	// ScoreField names the schema extension field to read as the
	// matrix entry value. The zero value ("") selects the built-in
	// weight column.
	ScoreField string
	// Default is the fill value for entries with no stored edge.
	Default float64
	// MaskInvalid, when true, masks rows/columns whose region has
	// Valid=false.
	MaskInvalid bool
}

// RegionMatrix is a dense 2-D array carrying its row/col region
// metadata (spec.md §4.5/§9: "a RegionMatrix value type that wraps a
// dense array and two region vectors").
type RegionMatrix struct {
	Data       [][]float64
	RowRegions []region.Region
	ColRegions []region.Region
	// RowMask and ColMask are non-nil only when MaskInvalid was set;
	// RowMask[i]==true means row i should be treated as masked.
	RowMask []bool
	ColMask []bool
}

// Assembler materializes RegionMatrix values from a query.Planner's
// results.
type Assembler struct {
	planner *query.Planner
}

// New returns an Assembler over the given planner.
func New(planner *query.Planner) *Assembler {
	return &Assembler{planner: planner}
}

// Assemble builds the dense window for rowRegions x colRegions,
// mirroring the half-matrix, applying bias, and masking per opts.
func (a *Assembler) Assemble(rowRegions, colRegions []region.Region, opts Options) (*RegionMatrix, error) {
	rowIxs := ixsOf(rowRegions)
	colIxs := ixsOf(colRegions)

	rows, err := a.planner.Query(rowIxs, colIxs)
	if err != nil {
		return nil, err
	}

	M, N := len(rowRegions), len(colRegions)
	rowPos := indexPositions(rowIxs)
	colPos := indexPositions(colIxs)

	data := make([][]float64, M)
	for i := range data {
		data[i] = make([]float64, N)
		for j := range data[i] {
			data[i][j] = opts.Default
		}
	}

	for _, r := range rows {
		v := scoreOf(r, opts.ScoreField)
		// Write (s,t) at (ir,jr) and its mirror (jr',ir') (ir=row
		// position of s, jr=col position of t), coinciding on the
		// diagonal (step 2 of spec.md §4.5).
		if ir, ok := rowPos[r.Source]; ok {
			if jr, ok := colPos[r.Sink]; ok {
				data[ir][jr] = v
			}
		}
		if ir, ok := rowPos[r.Sink]; ok {
			if jr, ok := colPos[r.Source]; ok {
				data[ir][jr] = v
			}
		}
	}

	applyBias(data, rowRegions, colRegions)

	rm := &RegionMatrix{Data: data, RowRegions: rowRegions, ColRegions: colRegions}
	if opts.MaskInvalid {
		rm.RowMask = invalidMask(rowRegions)
		rm.ColMask = invalidMask(colRegions)
	}
	return rm, nil
}

// AssembleScalar is the single-integer-pair path of spec.md §4.5 step
// 5: returns the scalar matrix[0][0] rather than a 1x1 RegionMatrix.
func (a *Assembler) AssembleScalar(rowRegion, colRegion region.Region, opts Options) (float64, error) {
	rm, err := a.Assemble([]region.Region{rowRegion}, []region.Region{colRegion}, opts)
	if err != nil {
		return 0, err
	}
	return rm.Data[0][0], nil
}

func ixsOf(regions []region.Region) []uint32 {
	out := make([]uint32, len(regions))
	for i, r := range regions {
		out[i] = r.Ix
	}
	return out
}

// indexPositions maps a region index to its position within the
// (possibly non-contiguous) axis list.
func indexPositions(ixs []uint32) map[uint32]int {
	out := make(map[uint32]int, len(ixs))
	for pos, ix := range ixs {
		out[ix] = pos
	}
	return out
}

// ScoreOf extracts the matrix-entry value of r for the given score
// field ("" or "weight" selects the built-in weight column), for
// callers (e.g. hic.Store.MatrixEntries) that need the same
// field-coercion rules Assemble uses internally.
func ScoreOf(r schema.Row, field string) float64 { return scoreOf(r, field) }

func scoreOf(r schema.Row, field string) float64 {
	if field == "" || field == "weight" {
		return r.Weight
	}
	v, ok := r.Fields[field]
	if !ok {
		return math.NaN()
	}
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	default:
		return math.NaN()
	}
}

// applyBias divides every entry by row_bias[i]*col_bias[j], in place
// (spec.md §4.5 step 3; NaN biases propagate by ordinary float
// division, no special-casing required).
func applyBias(data [][]float64, rowRegions, colRegions []region.Region) {
	for i, rr := range rowRegions {
		for j, cr := range colRegions {
			data[i][j] /= rr.Bias * cr.Bias
		}
	}
}

func invalidMask(regions []region.Region) []bool {
	out := make([]bool, len(regions))
	for i, r := range regions {
		out[i] = !r.Valid
	}
	return out
}

// RowSums returns the sum of each row's unmasked entries (SPEC_FULL.md
// §9 supplemented reduction, mirroring the original's per-row
// marginal-sum helper).
func (rm *RegionMatrix) RowSums() []float64 {
	out := make([]float64, len(rm.Data))
	for i, row := range rm.Data {
		if rm.RowMask != nil && rm.RowMask[i] {
			continue
		}
		var sum float64
		for j, v := range row {
			if rm.ColMask != nil && rm.ColMask[j] {
				continue
			}
			sum += v
		}
		out[i] = sum
	}
	return out
}

// ColSums returns the sum of each column's unmasked entries.
func (rm *RegionMatrix) ColSums() []float64 {
	if len(rm.Data) == 0 {
		return nil
	}
	out := make([]float64, len(rm.Data[0]))
	for j := range out {
		if rm.ColMask != nil && rm.ColMask[j] {
			continue
		}
		var sum float64
		for i, row := range rm.Data {
			if rm.RowMask != nil && rm.RowMask[i] {
				continue
			}
			sum += row[j]
		}
		out[j] = sum
	}
	return out
}
