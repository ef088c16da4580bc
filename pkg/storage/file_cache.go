package storage

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"go.uber.org/zap"
)

// FileCache keeps JSON documents on disk for a limited time
type FileCache struct {
	logger   *zap.Logger
	cacheDir string
	ttl      time.Duration
	now      func() time.Time
}

// cachedEntry wraps a cached value with its bookkeeping
type cachedEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Namespace string          `json:"namespace"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// NewFileCache creates a new file cache. A zero ttl disables expiry.
func NewFileCache(cacheDir string, ttl time.Duration, logger *zap.Logger) (*FileCache, error) {
	if cacheDir == "" {
		cacheDir = ".digest-cache"
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &FileCache{
		logger:   logger,
		cacheDir: cacheDir,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// getCachePath returns the file path for a cache entry
func (c *FileCache) getCachePath(namespace, key string) string {
	safe := unsafeKeyChars.ReplaceAllString(key, "_")
	if len(safe) > 64 {
		sum := sha1.Sum([]byte(key))
		safe = safe[:32] + "_" + hex.EncodeToString(sum[:8])
	}
	filename := fmt.Sprintf("%s_cache_%s.json", namespace, safe)
	return filepath.Join(c.cacheDir, filename)
}

// Get decodes a cached value into out. It reports false when the entry is
// missing, expired or unreadable.
func (c *FileCache) Get(namespace, key string, out any) bool {
	cachePath := c.getCachePath(namespace, key)

	data, err := os.ReadFile(cachePath)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("Failed to read cache file", zap.String("path", cachePath), zap.Error(err))
		}
		return false
	}

	var cached cachedEntry
	if err := json.Unmarshal(data, &cached); err != nil {
		c.logger.Warn("Failed to unmarshal cache data", zap.String("path", cachePath), zap.Error(err))
		return false
	}

	// Verify cache is for the same key
	if cached.Namespace != namespace || cached.Key != key {
		c.logger.Warn("Cache entry key mismatch", zap.String("path", cachePath))
		return false
	}

	age := c.now().Sub(cached.Timestamp)
	if c.ttl > 0 && age > c.ttl {
		c.logger.Debug("Cache entry expired",
			zap.String("namespace", namespace),
			zap.String("key", key),
			zap.Duration("age", age),
			zap.Duration("ttl", c.ttl))
		return false
	}

	if err := json.Unmarshal(cached.Value, out); err != nil {
		c.logger.Warn("Failed to decode cached value", zap.String("path", cachePath), zap.Error(err))
		return false
	}

	c.logger.Debug("Using cached entry",
		zap.String("namespace", namespace),
		zap.String("key", key),
		zap.Duration("age", age))

	return true
}

// Set stores value under key
func (c *FileCache) Set(namespace, key string, value any) error {
	cachePath := c.getCachePath(namespace, key)

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	data, err := json.MarshalIndent(cachedEntry{
		Timestamp: c.now(),
		Namespace: namespace,
		Key:       key,
		Value:     raw,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := os.WriteFile(cachePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	c.logger.Debug("Cached entry",
		zap.String("namespace", namespace),
		zap.String("key", key),
		zap.String("path", cachePath))

	return nil
}

// Clear removes all entries of a namespace
func (c *FileCache) Clear(namespace string) error {
	pattern := filepath.Join(c.cacheDir, namespace+"_cache_*.json")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("failed to list cache files: %w", err)
	}

	for _, file := range files {
		if err := os.Remove(file); err != nil {
			c.logger.Warn("Failed to remove cache file", zap.String("path", file), zap.Error(err))
		}
	}

	c.logger.Info("Cleared cache", zap.String("namespace", namespace), zap.Int("files_removed", len(files)))
	return nil
}
