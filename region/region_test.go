package region_test

import (
	"testing"

	"github.com/grailbio/hic/errs"
	"github.com/grailbio/hic/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSample(t *testing.T) *region.Table {
	tbl := region.New()
	_, err := tbl.Append("chr1", 0, 10)
	require.NoError(t, err)
	_, err = tbl.Append("chr1", 10, 20)
	require.NoError(t, err)
	_, err = tbl.Append("chr2", 0, 10)
	require.NoError(t, err)
	return tbl
}

func TestAppendAndGet(t *testing.T) {
	tbl := buildSample(t)
	assert.Equal(t, 3, tbl.Len())
	r, err := tbl.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "chr1", r.Chromosome)
	assert.Equal(t, uint32(10), r.Start)
	assert.True(t, r.Valid)
	assert.Equal(t, 1.0, r.Bias)
}

func TestGetOutOfRange(t *testing.T) {
	tbl := buildSample(t)
	_, err := tbl.Get(99)
	assert.ErrorIs(t, err, errs.ErrIndexOutOfRange)
}

func TestFreezeRejectsAppend(t *testing.T) {
	tbl := buildSample(t)
	tbl.Freeze()
	_, err := tbl.Append("chr3", 0, 5)
	assert.ErrorIs(t, err, errs.ErrRegionsFrozen)
}

func TestResolveChromWhole(t *testing.T) {
	tbl := buildSample(t)
	ixs, err := tbl.Resolve(region.Chrom("chr1"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1}, ixs)
}

func TestResolveChromRange(t *testing.T) {
	tbl := buildSample(t)
	ixs, err := tbl.Resolve(region.ChromRangeKey("chr1", 5, 15))
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1}, ixs)
}

func TestResolveUnknownChromosome(t *testing.T) {
	tbl := buildSample(t)
	_, err := tbl.Resolve(region.Chrom("chr9"))
	assert.ErrorIs(t, err, errs.ErrUnknownChromosome)
}

func TestResolveUnknownChromosomeSuggestsTypo(t *testing.T) {
	tbl := buildSample(t)
	_, err := tbl.Resolve(region.Chrom("chr1x"))
	assert.ErrorIs(t, err, errs.ErrUnknownChromosome)
	assert.Contains(t, err.Error(), "chr1")
}

func TestResolveIndexAndRange(t *testing.T) {
	tbl := buildSample(t)
	ixs, err := tbl.Resolve(region.Index(2))
	require.NoError(t, err)
	assert.Equal(t, []uint32{2}, ixs)

	ixs, err = tbl.Resolve(region.IndexRange(0, 2))
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2}, ixs)
}

func TestResolveList(t *testing.T) {
	tbl := buildSample(t)
	ixs, err := tbl.Resolve(region.List(region.Index(2), region.Chrom("chr1")))
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 0, 1}, ixs)
}

func TestParseStringRoundTrip(t *testing.T) {
	k, err := region.ParseString("chr1:5-15")
	require.NoError(t, err)
	tbl := buildSample(t)
	ixs, err := tbl.Resolve(k)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1}, ixs)
}

func TestSetBiasAndValid(t *testing.T) {
	tbl := buildSample(t)
	require.NoError(t, tbl.SetBias(1, 2.0))
	require.NoError(t, tbl.SetValid(2, false))
	r1, _ := tbl.Get(1)
	r2, _ := tbl.Get(2)
	assert.Equal(t, 2.0, r1.Bias)
	assert.False(t, r2.Valid)
}
