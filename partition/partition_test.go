package partition

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name  string
		parts []Partition
		err   string
	}{
		{"ok", []Partition{{User, 0, 0x4000}, {Factory, 0x4000, 0x2000}}, ""},
		{"unordered ok", []Partition{{Factory, 0x4000, 0x2000}, {User, 0, 0x4000}}, ""},
		{"no name", []Partition{{"", 0, 0x1000}}, "no name"},
		{"duplicate", []Partition{{User, 0, 0x1000}, {User, 0x1000, 0x1000}}, "duplicate"},
		{"empty", []Partition{{User, 0, 0}}, "empty"},
		{"overlap", []Partition{{User, 0, 0x2000}, {Factory, 0x1000, 0x1000}}, "overlaps"},
		{"wraps", []Partition{{User, 0xFFFFF000, 0x2000}}, "32-bit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.parts...)
			if tt.err == "" {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestLookupAndFit(t *testing.T) {
	tbl, err := Layout(0x4000, 0x2000, 0x1000)
	require.NoError(t, err)

	p, ok := tbl.Lookup(FactoryRW)
	require.True(t, ok)
	assert.Equal(t, Partition{FactoryRW, 0x6000, 0x1000}, p)

	_, ok = tbl.Lookup("missing")
	assert.False(t, ok)

	require.NoError(t, tbl.Fit(0x7000, 0x1000))
	assert.ErrorIs(t, tbl.Fit(0x6000, 0x1000), ErrInvalid)
	assert.ErrorIs(t, tbl.Fit(0x7000, 0x4000), ErrInvalid)

	noRW, err := Layout(0x4000, 0x2000, 0)
	require.NoError(t, err)
	assert.Len(t, noRW.Partitions(), 2)
}

func TestLoad(t *testing.T) {
	doc := `
partitions:
  - name: nvram_user
    offset: 0
    size: 16K
  - name: nvram_factory
    offset: 0x4000
    size: 8192
  - name: nvram_factory_rw
    offset: 0x6000
    size: 0x1000
`
	tbl, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []Partition{
		{User, 0, 0x4000},
		{Factory, 0x4000, 0x2000},
		{FactoryRW, 0x6000, 0x1000},
	}, tbl.Partitions())
}

func TestLoad_Errors(t *testing.T) {
	tests := map[string]string{
		"empty":         "",
		"unknown field": "partitions:\n  - name: a\n    offset: 0\n    size: 1\n    flags: ro\n",
		"bad size":      "partitions:\n  - name: a\n    offset: 0\n    size: lots\n",
		"overflow":      "partitions:\n  - name: a\n    offset: 0\n    size: 8192M\n",
		"overlap":       "partitions:\n  - {name: a, offset: 0, size: 8K}\n  - {name: b, offset: 4K, size: 4K}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(doc))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	tbl, err := Layout(0x10000, 0x4000, 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tbl.Encode(&buf))

	path := filepath.Join(t.TempDir(), "parts.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	back, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, tbl.Partitions(), back.Partitions())
}
