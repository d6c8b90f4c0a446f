package rowmask_test

import (
	"testing"

	"github.com/grailbio/hic/rowmask"
	"github.com/stretchr/testify/assert"
)

func TestSetGet(t *testing.T) {
	var m rowmask.Mask
	m.Grow(3)
	assert.False(t, m.Get(0))
	assert.False(t, m.Get(1))
	assert.False(t, m.Get(2))

	m.Set(1, true)
	assert.False(t, m.Get(0))
	assert.True(t, m.Get(1))
	assert.False(t, m.Get(2))

	m.Set(1, false)
	assert.False(t, m.Get(1))
}

func TestGrowBeyondLen(t *testing.T) {
	var m rowmask.Mask
	m.Set(70, true)
	assert.Equal(t, 71, m.Len())
	assert.True(t, m.Get(70))
	assert.False(t, m.Get(69))
	assert.False(t, m.Get(0))
}

func TestUnsetBeyondLenIsFalse(t *testing.T) {
	var m rowmask.Mask
	assert.False(t, m.Get(1000))
}
