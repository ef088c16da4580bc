package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	archive := NewLocalStorage(StorageConfig{Bucket: t.TempDir(), Prefix: "digests"}, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, archive.PutObject(ctx, "units/abc/analysis.json", []byte(`{"ok":true}`), "application/json"))

	data, err := archive.GetObject(ctx, "units/abc/analysis.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))

	_, err = archive.GetObject(ctx, "units/missing.json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrObjectNotFound))

	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, StorageBackendLocal, storageErr.Backend)
	assert.Equal(t, "get_object", storageErr.Operation)
}

func TestLocalStorageKeepsKeysInsideBase(t *testing.T) {
	base := t.TempDir()
	archive := NewLocalStorage(StorageConfig{Bucket: base}, zap.NewNop())

	path, err := archive.resolve("../../etc/passwd")
	require.NoError(t, err)
	assert.Contains(t, path, base)
}

func TestFactory(t *testing.T) {
	factory := NewStorageFactory(zap.NewNop())

	archive, err := factory.CreateStorage(StorageConfig{Backend: StorageBackendNone})
	require.NoError(t, err)
	assert.Nil(t, archive)

	archive, err = factory.CreateStorage(StorageConfig{Backend: StorageBackendLocal, Bucket: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, archive)

	_, err = factory.CreateStorage(StorageConfig{Backend: StorageBackendLocal})
	assert.Error(t, err)

	_, err = factory.CreateStorage(StorageConfig{Backend: "rclone"})
	assert.Error(t, err)

	_, err = NewStorage(nil, zap.NewNop())
	assert.Error(t, err)
}

func TestFileCache(t *testing.T) {
	cache, err := NewFileCache(t.TempDir(), time.Hour, zap.NewNop())
	require.NoError(t, err)

	type entry struct {
		Text string `json:"text"`
	}

	var out entry
	assert.False(t, cache.Get("captions", "dQw4w9WgXcQ", &out))

	require.NoError(t, cache.Set("captions", "dQw4w9WgXcQ", entry{Text: "hello"}))
	require.True(t, cache.Get("captions", "dQw4w9WgXcQ", &out))
	assert.Equal(t, "hello", out.Text)

	// Entries expire after the ttl
	cache.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.False(t, cache.Get("captions", "dQw4w9WgXcQ", &out))

	cache.now = time.Now
	require.NoError(t, cache.Clear("captions"))
	assert.False(t, cache.Get("captions", "dQw4w9WgXcQ", &out))
}
