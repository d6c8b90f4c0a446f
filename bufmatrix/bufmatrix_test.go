package bufmatrix_test

import (
	"testing"

	"github.com/grailbio/hic/bufmatrix"
	"github.com/grailbio/hic/edge"
	"github.com/grailbio/hic/matrix"
	"github.com/grailbio/hic/partition"
	"github.com/grailbio/hic/query"
	"github.com/grailbio/hic/region"
	"github.com/grailbio/hic/schema"
	"github.com/grailbio/hic/tablestore/filestore"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRelativeStrategyPrefetch exercises spec.md §8's literal buffered
// overlay scenario: strategy relative(1), query [100,200] prefetches
// [1,300] (clamped); a subsequent query [150,180] reuses the cache.
func TestRelativeStrategyPrefetch(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	regions := region.New()
	for i := 0; i < 301; i++ {
		_, err := regions.Append("chr1", uint32(i*10), uint32(i*10+10))
		require.NoError(t, err)
	}
	pmap := partition.Build(regions.Iter(false), partition.ByChromosome())
	st, err := filestore.Create(dir)
	require.NoError(t, err)
	es, err := edge.New(pmap, uint32(regions.Len()), schema.Schema{}, st, "/edges", 0)
	require.NoError(t, err)
	require.NoError(t, es.Flush())

	asm := matrix.New(query.New(pmap, es))
	overlay := bufmatrix.New(regions, asm, bufmatrix.Relative(1))

	_, err = overlay.Get(bufmatrix.Request{RowLo: 100, RowHi: 200, ColLo: 100, ColHi: 200}, matrix.Options{})
	require.NoError(t, err)

	rm, err := overlay.Get(bufmatrix.Request{RowLo: 150, RowHi: 180, ColLo: 150, ColHi: 180}, matrix.Options{})
	require.NoError(t, err)
	assert.Len(t, rm.RowRegions, 31)
	assert.Equal(t, uint32(150), rm.RowRegions[0].Ix)
	assert.Equal(t, uint32(180), rm.RowRegions[len(rm.RowRegions)-1].Ix)
}

func TestFixedStrategyClamp(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	regions := region.New()
	for i := 0; i < 10; i++ {
		_, err := regions.Append("chr1", uint32(i*10), uint32(i*10+10))
		require.NoError(t, err)
	}
	pmap := partition.Build(regions.Iter(false), partition.ByChromosome())
	st, err := filestore.Create(dir)
	require.NoError(t, err)
	es, err := edge.New(pmap, uint32(regions.Len()), schema.Schema{}, st, "/edges", 0)
	require.NoError(t, err)
	require.NoError(t, es.Flush())

	asm := matrix.New(query.New(pmap, es))
	overlay := bufmatrix.New(regions, asm, bufmatrix.Fixed(3))

	rm, err := overlay.Get(bufmatrix.Request{RowLo: 1, RowHi: 2, ColLo: 1, ColHi: 2}, matrix.Options{})
	require.NoError(t, err)
	// Fixed(3) around [1,2] wants [-2,5], clamped at floor 1.
	assert.Equal(t, uint32(1), rm.RowRegions[0].Ix)
	assert.Equal(t, uint32(2), rm.RowRegions[len(rm.RowRegions)-1].Ix)
}

func TestBufferedMinMax(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	regions := region.New()
	_, err := regions.Append("chr1", 0, 10)
	require.NoError(t, err)
	_, err = regions.Append("chr1", 10, 20)
	require.NoError(t, err)
	pmap := partition.Build(regions.Iter(false), partition.ByChromosome())
	st, err := filestore.Create(dir)
	require.NoError(t, err)
	es, err := edge.New(pmap, uint32(regions.Len()), schema.Schema{}, st, "/edges", 0)
	require.NoError(t, err)
	require.NoError(t, es.AddEdge(edge.Edge{Source: 0, Sink: 1, Weight: 5.0, Fields: map[string]interface{}{}}, edge.DefaultAddOpts()))
	require.NoError(t, es.Flush())

	asm := matrix.New(query.New(pmap, es))
	overlay := bufmatrix.New(regions, asm, bufmatrix.All())

	_, ok := overlay.BufferedMin()
	assert.False(t, ok)

	_, err = overlay.Get(bufmatrix.Request{RowLo: 0, RowHi: 1, ColLo: 0, ColHi: 1}, matrix.Options{})
	require.NoError(t, err)

	min, ok := overlay.BufferedMin()
	require.True(t, ok)
	assert.Equal(t, 5.0, min)

	max, ok := overlay.BufferedMax()
	require.True(t, ok)
	assert.Equal(t, 5.0, max)
}
