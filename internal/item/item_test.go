package item

import (
	"bytes"
	"testing"

	"github.com/hupe1980/nvram/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignedSize(t *testing.T) {
	tests := []struct {
		name    string
		dataLen int
		want    uint32
	}{
		{"vol", 1, 16},      // 8 + 4 + 1 = 13
		{"vol", 4, 16},      // 8 + 4 + 4 = 16
		{"vol", 5, 32},      // 17
		{"a", 0, 16},        // 10
		{string(bytes.Repeat([]byte("n"), MaxNameLen)), MaxDataSize, MaxSize},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SizeOf(tt.name, tt.dataLen), "%s/%d", tt.name, tt.dataLen)
	}
	assert.Equal(t, uint32(640), uint32(MaxSize))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("x", 0))
	assert.NoError(t, Validate(string(make([]byte, MaxNameLen)), MaxDataSize))
	assert.ErrorIs(t, Validate("", 1), ErrEmptyName)
	assert.ErrorIs(t, Validate(string(make([]byte, MaxNameLen+1)), 1), ErrNameTooLong)
	assert.ErrorIs(t, Validate("x", MaxDataSize+1), ErrDataTooLarge)
}

func TestHeaderLayout(t *testing.T) {
	h := Header{Magic: Magic, State: StateValid, CRC: 0x12, Hash: 0x34, NameSize: 4, DataSize: 0x0201}
	b := make([]byte, HeaderSize)
	h.Encode(b)
	assert.Equal(t, []byte{'I', 0xFF, 0x12, 0x34, 0xFF, 4, 0x01, 0x02}, b)
	assert.Equal(t, h, DecodeHeader(b))
}

func TestCodec_WriteClassify(t *testing.T) {
	mem := storage.NewMemory(4096, 4096)
	c := NewCodec(0)

	data := bytes.Repeat([]byte{0xA5, 0x5A, 0x00}, 100) // spans several scratch chunks
	size, err := c.Write(mem, 32, "eq.preset", data)
	require.NoError(t, err)
	assert.Equal(t, SizeOf("eq.preset", len(data)), size)

	rec, st, err := c.Classify(mem, 32, 4096-32, true)
	require.NoError(t, err)
	assert.Equal(t, Valid, st)
	assert.Equal(t, "eq.preset", rec.Name)
	assert.Equal(t, uint32(32), rec.Addr)
	assert.Equal(t, size, rec.Size())

	buf := make([]byte, 1024)
	n, err := ReadData(mem, rec, buf)
	require.NoError(t, err)
	assert.Equal(t, data, buf[:n])

	n, err = ReadData(mem, rec, buf[:10])
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	ok, err := c.Equal(mem, rec, data)
	require.NoError(t, err)
	assert.True(t, ok)

	other := append([]byte(nil), data...)
	other[len(other)-1] ^= 1
	ok, err = c.Equal(mem, rec, other)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Equal(mem, rec, data[:3])
	require.NoError(t, err)
	assert.False(t, ok)

	// Padding stays erased and the next slot is the frontier.
	_, st, err = c.Classify(mem, 32+size, 4096-32-size, true)
	require.NoError(t, err)
	assert.Equal(t, Empty, st)
}

func TestCodec_RejectsOversized(t *testing.T) {
	f := storage.NewFaulty(storage.NewMemory(4096, 4096))
	c := NewCodec(0)

	_, err := c.Write(f, 0, "x", make([]byte, MaxDataSize+1))
	assert.ErrorIs(t, err, ErrDataTooLarge)
	_, err = c.Write(f, 0, string(make([]byte, MaxNameSize)), nil)
	assert.ErrorIs(t, err, ErrNameTooLong)
	assert.Equal(t, 0, f.Writes())
}

func TestCodec_Retire(t *testing.T) {
	mem := storage.NewMemory(4096, 4096)
	c := NewCodec(0)

	_, err := c.Write(mem, 0, "vol", []byte{0x20})
	require.NoError(t, err)
	rec, st, err := c.Classify(mem, 0, 4096, false)
	require.NoError(t, err)
	require.Equal(t, Valid, st)

	require.NoError(t, rec.Retire(mem))
	rec2, st, err := c.Classify(mem, 0, 4096, true)
	require.NoError(t, err)
	assert.Equal(t, Obsolete, st)
	assert.Equal(t, uint32(16), rec2.Size())
}

func TestCodec_CorruptPayloadIsRetired(t *testing.T) {
	mem := storage.NewMemory(4096, 4096)
	c := NewCodec(0)

	var healed []uint32
	c.OnCorrupt = func(addr uint32, err error) {
		assert.NoError(t, err)
		healed = append(healed, addr)
	}

	_, err := c.Write(mem, 16, "bt.addr", []byte{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	// Flip a payload byte behind the codec's back.
	mem.Corrupt(16+HeaderSize+8, []byte{0x00})

	// Without CRC checking the record still looks live.
	_, st, err := c.Classify(mem, 16, 4080, false)
	require.NoError(t, err)
	assert.Equal(t, Valid, st)

	_, st, err = c.Classify(mem, 16, 4080, true)
	require.NoError(t, err)
	assert.Equal(t, Invalid, st)
	assert.Equal(t, []uint32{16}, healed)

	_, st, err = c.Classify(mem, 16, 4080, true)
	require.NoError(t, err)
	assert.Equal(t, Obsolete, st)
}

func TestCodec_ClassifyGarbage(t *testing.T) {
	c := NewCodec(0)

	tests := []struct {
		name string
		raw  []byte
		want Status
	}{
		{"erased", bytes.Repeat([]byte{0xFF}, 16), Empty},
		{"bad magic", []byte{'X', 0xFF, 0, 0, 0, 2, 0, 0}, Invalid},
		{"bad state", []byte{'I', 0x00, 0, 'a', 0, 2, 0, 0, 'a', 0}, Invalid},
		{"zero name", []byte{'I', 0xFF, 0, 0, 0, 0, 0, 0}, Invalid},
		{"huge data", []byte{'I', 0xFF, 0, 'a', 0, 2, 0xFF, 0x0F, 'a', 0}, Invalid},
		{"bad hash", []byte{'I', 0xFF, 0, 'b', 0, 2, 0, 0, 'a', 0}, Invalid},
		{"unterminated", []byte{'I', 0xFF, 0, 'a', 0, 1, 0, 0, 'a'}, Invalid},
		{"torn header", []byte{'I', 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, Invalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := storage.NewMemory(4096, 4096)
			require.NoError(t, mem.Write(0, tt.raw))
			_, st, err := c.Classify(mem, 0, 4096, true)
			require.NoError(t, err)
			assert.Equal(t, tt.want, st)
		})
	}
}

func TestCodec_ClassifyBounds(t *testing.T) {
	mem := storage.NewMemory(4096, 4096)
	c := NewCodec(0)

	_, err := c.Write(mem, 4064, "key", make([]byte, 20)) // 32 bytes
	require.NoError(t, err)

	_, st, err := c.Classify(mem, 4064, 32, false)
	require.NoError(t, err)
	assert.Equal(t, Valid, st)

	// A record claiming more than the segment holds is garbage.
	_, st, err = c.Classify(mem, 4064, 16, false)
	require.NoError(t, err)
	assert.Equal(t, Invalid, st)

	_, st, err = c.Classify(mem, 4090, 6, false)
	require.NoError(t, err)
	assert.Equal(t, Invalid, st)
}

func TestCodec_Copy(t *testing.T) {
	mem := storage.NewMemory(8192, 4096)
	c := NewCodec(0)

	data := bytes.Repeat([]byte("x"), 300)
	_, err := c.Write(mem, 16, "name", data)
	require.NoError(t, err)
	rec, _, err := c.Classify(mem, 16, 4080, true)
	require.NoError(t, err)

	require.NoError(t, c.Copy(mem, rec, 4096+16))
	moved, st, err := c.Classify(mem, 4096+16, 4080, true)
	require.NoError(t, err)
	assert.Equal(t, Valid, st)
	assert.Equal(t, rec.Header, moved.Header)
	assert.Equal(t, "name", moved.Name)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "empty", Empty.String())
	assert.Equal(t, "valid", Valid.String())
	assert.Equal(t, "obsolete", Obsolete.String())
	assert.Equal(t, "invalid", Invalid.String())
}
