package minio

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/nvram/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ blobstore.Store = (*Store)(nil)

func TestTranslate(t *testing.T) {
	assert.Equal(t, blobstore.ErrNotFound, translate(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.Equal(t, blobstore.ErrNotFound, translate(minio.ErrorResponse{Code: "NotFound"}))

	other := errors.New("boom")
	assert.Equal(t, other, translate(other))
}

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := "localhost:9000"
	accessKey := "minioadmin"
	secretKey := "minioadmin"
	bucket := "test-nvram"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	// Check if MinIO is reachable
	_, err = client.ListBuckets(ctx)
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	store := NewStore(client, bucket, "test-prefix/")
	require.NoError(t, store.EnsureBucket(ctx))

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "tag/user.img", data))

	got, err := store.Get(ctx, "tag/user.img")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	names, err := store.List(ctx, "tag/")
	require.NoError(t, err)
	assert.Contains(t, names, "tag/user.img")

	require.NoError(t, store.Delete(ctx, "tag/user.img"))
	require.NoError(t, store.Delete(ctx, "tag/user.img"))

	_, err = store.Get(ctx, "tag/user.img")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
