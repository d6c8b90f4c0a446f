package edge_test

import (
	"testing"

	"github.com/grailbio/hic/edge"
	"github.com/grailbio/hic/partition"
	"github.com/grailbio/hic/region"
	"github.com/grailbio/hic/schema"
	"github.com/grailbio/hic/tablestore/filestore"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildScenario(t *testing.T) (*region.Table, *partition.Map, *edge.Store, func()) {
	dir, cleanup := testutil.TempDir(t, "", "")

	regions := region.New()
	_, err := regions.Append("chr1", 0, 10)
	require.NoError(t, err)
	_, err = regions.Append("chr1", 10, 20)
	require.NoError(t, err)
	_, err = regions.Append("chr2", 0, 10)
	require.NoError(t, err)

	pmap := partition.Build(regions.Iter(false), partition.ByChromosome())

	st, err := filestore.Create(dir)
	require.NoError(t, err)

	es, err := edge.New(pmap, uint32(regions.Len()), schema.Schema{}, st, "/edges", 0)
	require.NoError(t, err)

	return regions, pmap, es, cleanup
}

// TestScenario1AndFlush exercises spec.md §8 scenario 1: after flush,
// part_0_0 holds {(0,1,5.0)}, part_0_1 holds {(0,2,1.0),(1,2,3.0)}.
func TestScenario1AndFlush(t *testing.T) {
	_, pmap, es, cleanup := buildScenario(t)
	defer cleanup()

	assert.Equal(t, []uint32{2}, pmap.Breaks())

	opts := edge.DefaultAddOpts()
	require.NoError(t, es.AddEdge(edge.Edge{Source: 0, Sink: 1, Weight: 5.0, Fields: map[string]interface{}{}}, opts))
	require.NoError(t, es.AddEdge(edge.Edge{Source: 1, Sink: 2, Weight: 3.0, Fields: map[string]interface{}{}}, opts))
	require.NoError(t, es.AddEdge(edge.Edge{Source: 0, Sink: 2, Weight: 1.0, Fields: map[string]interface{}{}}, opts))
	require.NoError(t, es.Flush())

	parts, err := es.Scan()
	require.NoError(t, err)
	require.Len(t, parts, 2)

	for _, p := range parts {
		it, err := p.Table.Scan()
		require.NoError(t, err)
		var got [][2]uint32
		for it.Next() {
			r := it.Row()
			got = append(got, [2]uint32{r.Source, r.Sink})
		}
		require.NoError(t, it.Err())
		it.Close()
		if p.I == 0 && p.J == 0 {
			assert.Equal(t, [][2]uint32{{0, 1}}, got)
		} else if p.I == 0 && p.J == 1 {
			assert.ElementsMatch(t, [][2]uint32{{0, 2}, {1, 2}}, got)
		}
	}
}

// TestNodeIndexOutOfRange exercises the check_nodes error mode of
// spec.md §4.3.
func TestNodeIndexOutOfRange(t *testing.T) {
	_, _, es, cleanup := buildScenario(t)
	defer cleanup()

	err := es.AddEdge(edge.Edge{Source: 0, Sink: 99, Weight: 1.0}, edge.DefaultAddOpts())
	require.Error(t, err)
}

// TestAdditiveMerge exercises spec.md §8 scenario 5: re-adding (0,1)
// without replace combines additively to 12.0.
func TestAdditiveMerge(t *testing.T) {
	_, _, es, cleanup := buildScenario(t)
	defer cleanup()

	opts := edge.DefaultAddOpts()
	require.NoError(t, es.AddEdge(edge.Edge{Source: 0, Sink: 1, Weight: 5.0, Fields: map[string]interface{}{}}, opts))
	require.NoError(t, es.Flush())
	require.NoError(t, es.AddEdge(edge.Edge{Source: 0, Sink: 1, Weight: 7.0, Fields: map[string]interface{}{}}, opts))
	require.NoError(t, es.Flush())

	parts, err := es.Scan()
	require.NoError(t, err)
	for _, p := range parts {
		if p.I != 0 || p.J != 0 {
			continue
		}
		it, err := p.Table.Scan()
		require.NoError(t, err)
		require.True(t, it.Next())
		r := it.Row()
		assert.Equal(t, 12.0, r.Weight)
		it.Close()
	}
}

// TestMappable exercises spec.md §8 scenario 6's mappable() vector.
func TestMappable(t *testing.T) {
	_, _, es, cleanup := buildScenario(t)
	defer cleanup()

	opts := edge.DefaultAddOpts()
	require.NoError(t, es.AddEdge(edge.Edge{Source: 0, Sink: 1, Weight: 5.0, Fields: map[string]interface{}{}}, opts))
	require.NoError(t, es.AddEdge(edge.Edge{Source: 1, Sink: 2, Weight: 3.0, Fields: map[string]interface{}{}}, opts))
	require.NoError(t, es.AddEdge(edge.Edge{Source: 0, Sink: 2, Weight: 1.0, Fields: map[string]interface{}{}}, opts))
	require.NoError(t, es.Flush())

	mask, err := es.Mappable(3)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, true}, mask)
}

// TestMaskEdge exercises spec.md §3's mask-style invalidation: a
// masked edge survives on disk (Len unchanged) but drops out of
// Mappable and a full Scan sees it with Masked=true.
func TestMaskEdge(t *testing.T) {
	_, _, es, cleanup := buildScenario(t)
	defer cleanup()

	opts := edge.DefaultAddOpts()
	require.NoError(t, es.AddEdge(edge.Edge{Source: 0, Sink: 1, Weight: 5.0, Fields: map[string]interface{}{}}, opts))
	require.NoError(t, es.AddEdge(edge.Edge{Source: 1, Sink: 2, Weight: 3.0, Fields: map[string]interface{}{}}, opts))
	require.NoError(t, es.Flush())

	require.NoError(t, es.MaskEdge(1, 0, true)) // reversed order, canonicalized internally

	n, err := es.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	mask, err := es.Mappable(3)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, true}, mask)

	parts, err := es.Scan()
	require.NoError(t, err)
	var found bool
	for _, p := range parts {
		if p.I != 0 || p.J != 0 {
			continue
		}
		it, err := p.Table.Scan()
		require.NoError(t, err)
		for it.Next() {
			r := it.Row()
			if r.Source == 0 && r.Sink == 1 {
				found = true
				assert.True(t, r.Masked)
			}
		}
		it.Close()
	}
	assert.True(t, found)

	err = es.MaskEdge(50, 51, true)
	require.Error(t, err)
}

// TestBulkFlushThreshold exercises the B_buf automatic-flush path.
func TestBulkFlushThreshold(t *testing.T) {
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

	es, err := edge.New(pmap, uint32(regions.Len()), schema.Schema{}, st, "/edges", 1)
	require.NoError(t, err)

	opts := edge.DefaultAddOpts()
	require.NoError(t, es.AddEdge(edge.Edge{Source: 0, Sink: 1, Weight: 1.0, Fields: map[string]interface{}{}}, opts))
	require.NoError(t, es.AddEdge(edge.Edge{Source: 0, Sink: 1, Weight: 1.0, Fields: map[string]interface{}{}}, opts))

	// The second AddEdge pushes the buffer past bBuf=1, so both staged
	// (0,1) rows are flushed and additively merged into one stored row;
	// without the automatic flush Len would count 2 buffered rows.
	n, err := es.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
