package query_test

import (
	"testing"

	"github.com/grailbio/hic/edge"
	"github.com/grailbio/hic/partition"
	"github.com/grailbio/hic/query"
	"github.com/grailbio/hic/region"
	"github.com/grailbio/hic/schema"
	"github.com/grailbio/hic/tablestore/filestore"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPlanner(t *testing.T) (*partition.Map, *query.Planner, func()) {
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

	opts := edge.DefaultAddOpts()
	require.NoError(t, es.AddEdge(edge.Edge{Source: 0, Sink: 1, Weight: 5.0, Fields: map[string]interface{}{}}, opts))
	require.NoError(t, es.AddEdge(edge.Edge{Source: 1, Sink: 2, Weight: 3.0, Fields: map[string]interface{}{}}, opts))
	require.NoError(t, es.AddEdge(edge.Edge{Source: 0, Sink: 2, Weight: 1.0, Fields: map[string]interface{}{}}, opts))
	require.NoError(t, es.Flush())

	return pmap, query.New(pmap, es), cleanup
}

func TestQueryFullWindow(t *testing.T) {
	_, p, cleanup := buildPlanner(t)
	defer cleanup()

	rows, err := p.Query([]uint32{0, 1, 2}, []uint32{0, 1, 2})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

// TestQueryWithinOnePartition exercises the "query range fully within
// one partition" boundary of spec.md §8: only part_0_0 visited.
func TestQueryWithinOnePartition(t *testing.T) {
	_, p, cleanup := buildPlanner(t)
	defer cleanup()

	rows, err := p.Query([]uint32{0, 1}, []uint32{0, 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint32(0), rows[0].Source)
	assert.Equal(t, uint32(1), rows[0].Sink)
}

// TestQueryNoDuplicateAcrossPartitionBreak exercises "query range
// spans a partition break: both partitions are visited; no duplicate
// rows".
func TestQueryNoDuplicateAcrossPartitionBreak(t *testing.T) {
	_, p, cleanup := buildPlanner(t)
	defer cleanup()

	rows, err := p.Query([]uint32{0, 1, 2}, []uint32{0, 1, 2})
	require.NoError(t, err)
	seen := map[[2]uint32]bool{}
	for _, r := range rows {
		key := [2]uint32{r.Source, r.Sink}
		assert.False(t, seen[key], "duplicate row %v", key)
		seen[key] = true
	}
}
