package hic_test

import (
	"testing"

	"github.com/grailbio/hic"
	"github.com/grailbio/hic/bufmatrix"
	"github.com/grailbio/hic/edge"
	"github.com/grailbio/hic/matrix"
	"github.com/grailbio/hic/region"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildStore appends the three regions of spec.md §8's literal
// scenarios (chr1:0-10, chr1:10-20, chr2:0-10) and returns the open
// store plus its cleanup func.
func buildStore(t *testing.T) (*hic.Store, func()) {
	dir, cleanup := testutil.TempDir(t, "", "")
	st, err := hic.Create(dir, hic.DefaultOptions())
	require.NoError(t, err)

	ix0, err := st.AddRegion("chr1", 0, 10)
	require.NoError(t, err)
	ix1, err := st.AddRegion("chr1", 10, 20)
	require.NoError(t, err)
	ix2, err := st.AddRegion("chr2", 0, 10)
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 1, 2}, []uint32{ix0, ix1, ix2})

	return st, cleanup
}

// TestScenario1PartitioningAndFlush exercises spec.md §8 scenario 1
// through the root Store: after flush, all three edges (spanning the
// chr1/chr2 partition break) come back from a full-range Edges query.
func TestScenario1PartitioningAndFlush(t *testing.T) {
	st, cleanup := buildStore(t)
	defer cleanup()

	opts := st.DefaultAddOpts()
	require.NoError(t, st.AddEdge(edge.Edge{Source: 0, Sink: 1, Weight: 5.0}, opts))
	require.NoError(t, st.AddEdge(edge.Edge{Source: 1, Sink: 2, Weight: 3.0}, opts))
	require.NoError(t, st.AddEdge(edge.Edge{Source: 0, Sink: 2, Weight: 1.0}, opts))
	require.NoError(t, st.Flush(true))

	rows, err := st.Edges(region.IndexRange(0, 2))
	require.NoError(t, err)
	require.Len(t, rows, 3)
}

// TestScenario2FullMatrix exercises spec.md §8 scenario 2: matrix()
// with full key and default biases yields the symmetric 3x3 array.
func TestScenario2FullMatrix(t *testing.T) {
	st, cleanup := buildStore(t)
	defer cleanup()

	opts := st.DefaultAddOpts()
	require.NoError(t, st.AddEdge(edge.Edge{Source: 0, Sink: 1, Weight: 5.0}, opts))
	require.NoError(t, st.AddEdge(edge.Edge{Source: 1, Sink: 2, Weight: 3.0}, opts))
	require.NoError(t, st.AddEdge(edge.Edge{Source: 0, Sink: 2, Weight: 1.0}, opts))
	require.NoError(t, st.Flush(true))

	key := region.IndexRange(0, 2)
	rm, err := st.Matrix(key, key, matrix.Options{})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{
		{0, 5, 1},
		{5, 0, 3},
		{1, 3, 0},
	}, rm.Data)
}

// TestScenario3Bias exercises spec.md §8 scenario 3: applying
// per-region bias divides the corresponding row/col entries by the
// outer product of the two biases.
func TestScenario3Bias(t *testing.T) {
	st, cleanup := buildStore(t)
	defer cleanup()

	opts := st.DefaultAddOpts()
	require.NoError(t, st.AddEdge(edge.Edge{Source: 0, Sink: 1, Weight: 5.0}, opts))
	require.NoError(t, st.AddEdge(edge.Edge{Source: 1, Sink: 2, Weight: 3.0}, opts))
	require.NoError(t, st.AddEdge(edge.Edge{Source: 0, Sink: 2, Weight: 1.0}, opts))
	require.NoError(t, st.Flush(true))

	require.NoError(t, st.ApplyBias(1, 2.0))
	require.NoError(t, st.ApplyBias(2, 0.5))

	key := region.IndexRange(0, 2)
	rm, err := st.Matrix(key, key, matrix.Options{})
	require.NoError(t, err)
	assert.InDelta(t, 2.5, rm.Data[0][1], 1e-9)
	assert.InDelta(t, 3.0, rm.Data[2][1], 1e-9)
}

// TestScenario4ChromSubMatrix exercises spec.md §8 scenario 4:
// matrix("chr1") returns the 2x2 top-left sub-matrix with the right
// row/col regions.
func TestScenario4ChromSubMatrix(t *testing.T) {
	st, cleanup := buildStore(t)
	defer cleanup()

	opts := st.DefaultAddOpts()
	require.NoError(t, st.AddEdge(edge.Edge{Source: 0, Sink: 1, Weight: 5.0}, opts))
	require.NoError(t, st.AddEdge(edge.Edge{Source: 1, Sink: 2, Weight: 3.0}, opts))
	require.NoError(t, st.AddEdge(edge.Edge{Source: 0, Sink: 2, Weight: 1.0}, opts))
	require.NoError(t, st.Flush(true))

	key := region.Chrom("chr1")
	rm, err := st.Matrix(key, key, matrix.Options{})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{
		{0, 5},
		{5, 0},
	}, rm.Data)
	require.Len(t, rm.RowRegions, 2)
	require.Len(t, rm.ColRegions, 2)
	assert.Equal(t, uint32(0), rm.RowRegions[0].Ix)
	assert.Equal(t, uint32(1), rm.RowRegions[1].Ix)
}

// TestScenario5AdditiveMerge exercises spec.md §8 scenario 5: adding
// (0,1,7.0) without replace combines additively with the existing
// (0,1,5.0) row into weight 12.0.
func TestScenario5AdditiveMerge(t *testing.T) {
	st, cleanup := buildStore(t)
	defer cleanup()

	opts := st.DefaultAddOpts()
	require.NoError(t, st.AddEdge(edge.Edge{Source: 0, Sink: 1, Weight: 5.0}, opts))
	require.NoError(t, st.AddEdge(edge.Edge{Source: 0, Sink: 1, Weight: 7.0}, opts))
	require.NoError(t, st.Flush(true))

	rows, err := st.Edges(region.IndexRange(0, 1))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 12.0, rows[0].Weight, 1e-9)
}

// TestScenario6MappableAndMaskInvalid exercises spec.md §8 scenario 6:
// mappable() is all-true over the three connected regions; marking
// region 2 invalid and querying with mask_invalid=true masks row/col 2.
func TestScenario6MappableAndMaskInvalid(t *testing.T) {
	st, cleanup := buildStore(t)
	defer cleanup()

	opts := st.DefaultAddOpts()
	require.NoError(t, st.AddEdge(edge.Edge{Source: 0, Sink: 1, Weight: 5.0}, opts))
	require.NoError(t, st.AddEdge(edge.Edge{Source: 1, Sink: 2, Weight: 3.0}, opts))
	require.NoError(t, st.AddEdge(edge.Edge{Source: 0, Sink: 2, Weight: 1.0}, opts))
	require.NoError(t, st.Flush(true))

	mappable, err := st.Mappable()
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, true}, mappable)

	require.NoError(t, st.SetValid(2, false))

	key := region.IndexRange(0, 2)
	rm, err := st.Matrix(key, key, matrix.Options{MaskInvalid: true})
	require.NoError(t, err)
	require.NotNil(t, rm.RowMask)
	require.NotNil(t, rm.ColMask)
	assert.Equal(t, []bool{false, false, true}, rm.RowMask)
	assert.Equal(t, []bool{false, false, true}, rm.ColMask)
}

// TestMatrixEntries checks matrix_entries(key, score_field) yields the
// same (s,t,w) triples Edges resolves, via the iterator form.
func TestMatrixEntries(t *testing.T) {
	st, cleanup := buildStore(t)
	defer cleanup()

	opts := st.DefaultAddOpts()
	require.NoError(t, st.AddEdge(edge.Edge{Source: 0, Sink: 1, Weight: 5.0}, opts))
	require.NoError(t, st.Flush(true))

	key := region.IndexRange(0, 1)
	it, err := st.MatrixEntries(key, key, "")
	require.NoError(t, err)
	var got []edge.Triple
	for it.Next() {
		got = append(got, it.Triple())
	}
	require.NoError(t, it.Err())
	require.Len(t, got, 1)
	assert.Equal(t, edge.Triple{Source: 0, Sink: 1, Score: 5.0}, got[0])
}

// TestEdgeSubsetAliasesEdges checks spec.md §6's dual naming: Edges and
// EdgeSubset return the same result for the same key.
func TestEdgeSubsetAliasesEdges(t *testing.T) {
	st, cleanup := buildStore(t)
	defer cleanup()

	opts := st.DefaultAddOpts()
	require.NoError(t, st.AddEdge(edge.Edge{Source: 0, Sink: 1, Weight: 5.0}, opts))
	require.NoError(t, st.Flush(true))

	key := region.Chrom("chr1")
	viaEdges, err := st.Edges(key)
	require.NoError(t, err)
	viaSubset, err := st.EdgeSubset(key)
	require.NoError(t, err)
	assert.Equal(t, viaEdges, viaSubset)
}

// TestCloseAndReopenRoundTrip exercises spec.md §8's round-trip
// property: build, flush, close, reopen yields a byte-equivalent edge
// set and region table.
func TestCloseAndReopenRoundTrip(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	opts := hic.DefaultOptions()
	st, err := hic.Create(dir, opts)
	require.NoError(t, err)
	_, err = st.AddRegion("chr1", 0, 10)
	require.NoError(t, err)
	_, err = st.AddRegion("chr1", 10, 20)
	require.NoError(t, err)
	_, err = st.AddRegion("chr2", 0, 10)
	require.NoError(t, err)

	addOpts := st.DefaultAddOpts()
	require.NoError(t, st.AddEdge(edge.Edge{Source: 0, Sink: 1, Weight: 5.0}, addOpts))
	require.NoError(t, st.AddEdge(edge.Edge{Source: 1, Sink: 2, Weight: 3.0}, addOpts))
	require.NoError(t, st.Flush(true))
	require.NoError(t, st.Close())

	reopened, err := hic.Open(dir, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, reopened.LenRegions())

	n, err := reopened.LenEdges()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	key := region.IndexRange(0, 2)
	rm, err := reopened.Matrix(key, key, matrix.Options{})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{
		{0, 5, 0},
		{5, 0, 3},
		{0, 3, 0},
	}, rm.Data)
}

// TestNewOverlay checks a Buffered Matrix Overlay constructed off a
// Store serves a query within its prefetched extent without error.
func TestNewOverlay(t *testing.T) {
	st, cleanup := buildStore(t)
	defer cleanup()

	opts := st.DefaultAddOpts()
	require.NoError(t, st.AddEdge(edge.Edge{Source: 0, Sink: 1, Weight: 5.0}, opts))
	require.NoError(t, st.Flush(true))

	overlay, err := st.NewOverlay(bufmatrix.All())
	require.NoError(t, err)

	rm, err := overlay.Get(bufmatrix.Request{RowLo: 0, RowHi: 1, ColLo: 0, ColHi: 1}, matrix.Options{})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{
		{0, 5},
		{5, 0},
	}, rm.Data)
}

// TestMaskEdgeThroughStore exercises spec.md §3's mask-style
// invalidation via the root Store API.
func TestMaskEdgeThroughStore(t *testing.T) {
	st, cleanup := buildStore(t)
	defer cleanup()

	opts := st.DefaultAddOpts()
	require.NoError(t, st.AddEdge(edge.Edge{Source: 0, Sink: 1, Weight: 5.0}, opts))
	require.NoError(t, st.Flush(true))

	require.NoError(t, st.MaskEdge(0, 1, true))

	n, err := st.LenEdges()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	mappable, err := st.Mappable()
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, false}, mappable)
}
