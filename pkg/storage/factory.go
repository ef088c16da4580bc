package storage

import (
	"fmt"

	"go.uber.org/zap"
)

// DefaultStorageFactory creates archives from configuration
type DefaultStorageFactory struct {
	logger *zap.Logger
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(logger *zap.Logger) *DefaultStorageFactory {
	return &DefaultStorageFactory{
		logger: logger,
	}
}

// CreateStorage creates an archive instance based on the configuration
func (f *DefaultStorageFactory) CreateStorage(config StorageConfig) (Archive, error) {
	switch config.Backend {
	case StorageBackendNone, "":
		f.logger.Debug("Artifact archive disabled")
		return nil, nil
	case StorageBackendAWS:
		if config.Bucket == "" {
			return nil, fmt.Errorf("archive bucket is required for the aws backend")
		}
		archive, err := NewAWSStorage(config, f.logger)
		if err != nil {
			return nil, err
		}
		return archive, nil
	case StorageBackendLocal:
		if config.Bucket == "" {
			return nil, fmt.Errorf("archive bucket (base directory) is required for the local backend")
		}
		return NewLocalStorage(config, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", config.Backend)
	}
}
