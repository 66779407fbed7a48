package segment

import (
	"testing"

	"github.com/hupe1980/nvram/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderLayout(t *testing.T) {
	h := NewHeader(7, 4096)
	b := make([]byte, HeaderSize)
	h.Encode(b)

	assert.Equal(t, []byte{'N', 'V', 'R', 'S'}, b[0:4])
	assert.Equal(t, byte(StateValid), b[4])
	assert.Equal(t, byte(Version), b[6])
	assert.Equal(t, byte(7), b[8])
	assert.Equal(t, byte(HeaderSize), b[9])
	assert.Equal(t, []byte{0x00, 0x10}, b[10:12])

	got, ok := Trusted(b)
	assert.True(t, ok)
	assert.Equal(t, h, got)

	b[8] = 8 // seq changed without fixing the CRC
	_, ok = Trusted(b)
	assert.False(t, ok)
}

func TestNewer(t *testing.T) {
	assert.True(t, Newer(2, 1))
	assert.False(t, Newer(1, 2))
	assert.False(t, Newer(5, 5))
	// Wraparound: 3 follows 250.
	assert.True(t, Newer(3, 250))
	assert.False(t, Newer(250, 3))
	assert.True(t, Newer(0, 255))
}

func TestItemStart(t *testing.T) {
	assert.Equal(t, 16, ItemStart)
}

func TestScan(t *testing.T) {
	mem := storage.NewMemory(4*4096, 4096)

	res, err := Scan(mem, 0, 4*4096, 4096)
	require.NoError(t, err)
	assert.False(t, res.Found)

	_, err = WriteHeader(mem, 4096, 250, 4096)
	require.NoError(t, err)
	_, err = WriteHeader(mem, 3*4096, 3, 4096)
	require.NoError(t, err)

	res, err = Scan(mem, 0, 4*4096, 4096)
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, uint32(3*4096), res.Offset)
	assert.Equal(t, uint8(3), res.Header.SeqID)
	assert.Equal(t, []uint32{4096}, res.Stale)

	require.NoError(t, MarkObsolete(mem, 4096))
	res, err = Scan(mem, 0, 4*4096, 4096)
	require.NoError(t, err)
	assert.Equal(t, uint32(3*4096), res.Offset)
	assert.Empty(t, res.Stale)

	// Obsolete touches only the state byte.
	raw := mem.Bytes()[4096 : 4096+HeaderSize]
	assert.Equal(t, byte(StateObsolete), raw[4])
	assert.Equal(t, byte(250), raw[8])
}

func TestScan_IgnoresCorruptHeader(t *testing.T) {
	mem := storage.NewMemory(2*4096, 4096)

	_, err := WriteHeader(mem, 0, 1, 4096)
	require.NoError(t, err)
	_, err = WriteHeader(mem, 4096, 2, 4096)
	require.NoError(t, err)
	mem.Corrupt(4096+9, []byte{0x00}) // head_size byte is covered by the CRC

	res, err := Scan(mem, 0, 2*4096, 4096)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), res.Offset)
}

func TestBlankAndErase(t *testing.T) {
	f := storage.NewFaulty(storage.NewMemory(2*4096, 4096))
	scratch := make([]byte, 128)

	erased, err := EraseIfDirty(f, 0, 4096, scratch)
	require.NoError(t, err)
	assert.False(t, erased)
	assert.Equal(t, 0, f.Erases())

	require.NoError(t, f.Write(4000, []byte{0}))
	blank, err := Blank(f, 0, 4096, scratch)
	require.NoError(t, err)
	assert.False(t, blank)

	erased, err = EraseIfDirty(f, 0, 4096, scratch)
	require.NoError(t, err)
	assert.True(t, erased)
	assert.Equal(t, 1, f.Erases())

	blank, err = Blank(f, 0, 4096, scratch)
	require.NoError(t, err)
	assert.True(t, blank)
}

func TestScan_GeometryMismatch(t *testing.T) {
	mem := storage.NewMemory(4*4096, 4096)

	// Formatted with 8 KiB segments, scanned as 4 KiB.
	_, err := WriteHeader(mem, 0, 1, 2*4096)
	require.NoError(t, err)
	_, err = Scan(mem, 0, 4*4096, 4096)
	require.ErrorIs(t, err, ErrGeometry)

	// Formatted with 4 KiB segments, scanned as 8 KiB.
	mem = storage.NewMemory(4*4096, 4096)
	_, err = WriteHeader(mem, 2*4096, 1, 4096)
	require.NoError(t, err)
	_, err = Scan(mem, 0, 4*4096, 2*4096)
	require.ErrorIs(t, err, ErrGeometry)

	res, err := Scan(mem, 0, 4*4096, 4096)
	require.NoError(t, err)
	assert.Equal(t, uint32(2*4096), res.Offset)
}
