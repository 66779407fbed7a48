package nvram

import (
	"context"
	"testing"

	"github.com/hupe1980/nvram/backup"
	"github.com/hupe1980/nvram/blobstore"
	"github.com/hupe1980/nvram/partition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupRestore(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	for _, c := range []backup.Compression{backup.None, backup.LZ4, backup.Zstd} {
		t.Run(c.String(), func(t *testing.T) {
			archive := backup.NewArchive(store, backup.WithCompression(c))
			dev := newDevice()
			s := openStore(t, dev, layout(t))

			require.NoError(t, s.Set(ctx, "wifi.ssid", []byte("home")))
			require.NoError(t, s.SetFactory(ctx, "mac", []byte("00:11:22:33:44:55")))
			require.NoError(t, s.Backup(ctx, archive, c.String()))

			regions, err := archive.Regions(ctx, c.String())
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{partition.User, partition.Factory, partition.FactoryRW}, regions)

			require.NoError(t, s.Set(ctx, "wifi.ssid", []byte("office")))
			require.NoError(t, s.Set(ctx, "added.later", []byte("x")))
			require.NoError(t, s.SetFactory(ctx, "mac", nil))

			require.NoError(t, s.Restore(ctx, archive, c.String()))
			assert.Equal(t, "home", read(t, s, "wifi.ssid"))
			assert.Equal(t, "00:11:22:33:44:55", readFactory(t, s, "mac"))
			_, err = s.Get(ctx, "added.later", make([]byte, 8))
			assert.ErrorIs(t, err, ErrNotFound)

			// The restored content is what a fresh boot sees.
			rebooted := openStore(t, dev, layout(t))
			assert.Equal(t, "home", read(t, rebooted, "wifi.ssid"))
		})
	}
}

func TestRestore_OntoAnotherDevice(t *testing.T) {
	ctx := context.Background()
	archive := backup.NewArchive(blobstore.NewMemoryStore())

	src := openStore(t, newDevice(), layout(t))
	require.NoError(t, src.Set(ctx, "lang", []byte("en")))
	require.NoError(t, src.Backup(ctx, archive, "golden"))

	dst := openStore(t, newDevice(), layout(t))
	require.NoError(t, dst.Restore(ctx, archive, "golden"))
	assert.Equal(t, "en", read(t, dst, "lang"))
}

func TestRestore_UnknownTag(t *testing.T) {
	ctx := context.Background()
	archive := backup.NewArchive(blobstore.NewMemoryStore())
	s := openStore(t, newDevice(), layout(t))

	err := s.Restore(ctx, archive, "nothing")
	require.ErrorIs(t, err, ErrNotFound)

	err = s.Backup(ctx, archive, "bad/tag")
	require.ErrorIs(t, err, backup.ErrInvalidTag)
}

func TestRestore_VerifiesBeforeWriting(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	archive := backup.NewArchive(store)
	s := openStore(t, newDevice(), layout(t))

	require.NoError(t, s.Set(ctx, "k", []byte("before")))
	require.NoError(t, s.Backup(ctx, archive, "t1"))
	require.NoError(t, s.Set(ctx, "k", []byte("after")))

	frame, err := store.Get(ctx, "t1/"+partition.Factory+".img")
	require.NoError(t, err)
	frame[len(frame)-1] ^= 0xFF
	require.NoError(t, store.Put(ctx, "t1/"+partition.Factory+".img", frame))

	err = s.Restore(ctx, archive, "t1")
	require.Error(t, err)

	// The User image was intact but nothing was programmed.
	assert.Equal(t, "after", read(t, s, "k"))
}

func TestRestore_SizeMismatch(t *testing.T) {
	ctx := context.Background()
	archive := backup.NewArchive(blobstore.NewMemoryStore())

	small, err := partition.Layout(2*blockSize, 2*blockSize, 2*blockSize)
	require.NoError(t, err)
	src := openStore(t, newDevice(), small)
	require.NoError(t, src.Backup(ctx, archive, "small"))

	dst := openStore(t, newDevice(), layout(t))
	err = dst.Restore(ctx, archive, "small")
	require.ErrorIs(t, err, ErrGeometry)
}

func TestRestore_ForeignSegmentSize(t *testing.T) {
	ctx := context.Background()
	archive := backup.NewArchive(blobstore.NewMemoryStore())

	src := openStore(t, newDevice(), layout(t), WithSegmentSize(2*blockSize))
	require.NoError(t, src.Set(ctx, "k", []byte("wide")))
	require.NoError(t, src.Backup(ctx, archive, "wide"))

	dst := openStore(t, newDevice(), layout(t))
	require.NoError(t, dst.Set(ctx, "k", []byte("narrow")))

	err := dst.Restore(ctx, archive, "wide")
	require.ErrorIs(t, err, ErrGeometry)
	assert.Equal(t, "narrow", read(t, dst, "k"))
}
