package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinear(t *testing.T) {
	var idx Index = Linear{}
	idx.Set(32)
	idx.Clear(32)
	idx.Reset()

	for _, off := range []uint32{0, 16, 4080} {
		assert.Equal(t, off, idx.Next(off))
	}
}

func TestBitmap(t *testing.T) {
	b := NewBitmap(16)
	assert.Equal(t, None, b.Next(0))

	b.Set(16)
	b.Set(64)
	b.Set(4080)
	assert.Equal(t, 3, b.Count())

	assert.Equal(t, uint32(16), b.Next(0))
	assert.Equal(t, uint32(16), b.Next(16))
	assert.Equal(t, uint32(64), b.Next(17))
	assert.Equal(t, uint32(4080), b.Next(80))
	assert.Equal(t, None, b.Next(4096))

	b.Clear(64)
	assert.Equal(t, uint32(4080), b.Next(32))

	b.Reset()
	assert.Equal(t, 0, b.Count())
	assert.Equal(t, None, b.Next(0))
}

func TestNew(t *testing.T) {
	assert.IsType(t, &Bitmap{}, New(true, 16))
	assert.IsType(t, Linear{}, New(false, 16))
}
