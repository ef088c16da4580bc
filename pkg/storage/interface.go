package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrObjectNotFound is returned by GetObject when the key does not exist
var ErrObjectNotFound = errors.New("object not found")

// Archive defines the object store that keeps pipeline artifacts
type Archive interface {
	// PutObject writes body under key, replacing any previous object
	PutObject(ctx context.Context, key string, body []byte, contentType string) error

	// GetObject reads the object stored under key
	GetObject(ctx context.Context, key string) ([]byte, error)

	// Close closes any resources used by the storage implementation
	Close() error
}

// StorageConfig represents configuration for archive backends
type StorageConfig struct {
	Backend StorageBackend `json:"backend"`
	Bucket  string         `json:"bucket"`
	Prefix  string         `json:"prefix"`

	// AWS SDK specific settings
	AWSRegion   string `json:"aws_region,omitempty"`
	AWSProfile  string `json:"aws_profile,omitempty"`
	AWSEndpoint string `json:"aws_endpoint,omitempty"`

	Timeout time.Duration `json:"timeout"`
}

// StorageBackend represents the type of storage backend
type StorageBackend string

const (
	StorageBackendNone  StorageBackend = "none"
	StorageBackendAWS   StorageBackend = "aws"
	StorageBackendLocal StorageBackend = "local"
)

// String returns the string representation of StorageBackend
func (s StorageBackend) String() string {
	return string(s)
}

// StorageError represents a storage operation error
type StorageError struct {
	Operation string
	Path      string
	Backend   StorageBackend
	Err       error
}

// Error implements the error interface
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [%s] during %s operation on %s: %v",
		e.Backend, e.Operation, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new storage error
func NewStorageError(operation, path string, backend StorageBackend, err error) *StorageError {
	return &StorageError{
		Operation: operation,
		Path:      path,
		Backend:   backend,
		Err:       err,
	}
}

// NewStorage creates an archive based on configuration. The none backend
// yields a nil Archive and no error.
func NewStorage(storageConfig *StorageConfig, logger *zap.Logger) (Archive, error) {
	if storageConfig == nil {
		return nil, fmt.Errorf("storage config cannot be nil")
	}

	factory := NewStorageFactory(logger)
	return factory.CreateStorage(*storageConfig)
}

// joinKey prefixes key with the configured prefix
func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}
