package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LocalStorage implements Archive on the local filesystem
type LocalStorage struct {
	config   StorageConfig
	logger   *zap.Logger
	basePath string
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(config StorageConfig, logger *zap.Logger) *LocalStorage {
	// For local storage, we use the bucket as the base directory
	basePath := config.Bucket
	if config.Prefix != "" {
		basePath = filepath.Join(basePath, config.Prefix)
	}

	return &LocalStorage{
		config:   config,
		logger:   logger,
		basePath: basePath,
	}
}

// resolve maps key to a path that cannot escape the base directory
func (l *LocalStorage) resolve(key string) (string, error) {
	cleaned := filepath.Clean("/" + filepath.FromSlash(key))
	path := filepath.Join(l.basePath, cleaned)
	if !strings.HasPrefix(path, filepath.Clean(l.basePath)) {
		return "", errors.New("key escapes archive directory")
	}
	return path, nil
}

// PutObject writes body to a file under the base directory
func (l *LocalStorage) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	destPath, err := l.resolve(key)
	if err != nil {
		return NewStorageError("put_object", key, StorageBackendLocal, err)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return NewStorageError("put_object", destPath, StorageBackendLocal, err)
	}

	// Write through a temp file so readers never see a partial object
	tmp := destPath + ".tmp"
	if err := os.WriteFile(tmp, body, 0644); err != nil {
		return NewStorageError("put_object", destPath, StorageBackendLocal, err)
	}
	if err := os.Rename(tmp, destPath); err != nil {
		os.Remove(tmp)
		return NewStorageError("put_object", destPath, StorageBackendLocal, err)
	}

	l.logger.Debug("Wrote to local storage",
		zap.String("path", destPath),
		zap.Int("bytes", len(body)))

	return nil
}

// GetObject reads a file from the base directory
func (l *LocalStorage) GetObject(ctx context.Context, key string) ([]byte, error) {
	path, err := l.resolve(key)
	if err != nil {
		return nil, NewStorageError("get_object", key, StorageBackendLocal, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NewStorageError("get_object", path, StorageBackendLocal, ErrObjectNotFound)
		}
		return nil, NewStorageError("get_object", path, StorageBackendLocal, err)
	}

	return data, nil
}

// Close closes any resources used by the storage implementation
func (l *LocalStorage) Close() error {
	l.logger.Debug("Closing local storage")
	return nil
}
