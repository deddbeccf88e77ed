package storage

import (
	"fmt"
	"strings"
)

// NewStorage creates an ObjectStorage for the configured type. "local" uses
// the filesystem; every other type talks to an S3-compatible endpoint.
func NewStorage(cfg *S3Config) (ObjectStorage, error) {
	if cfg.Type == StorageTypeLocal {
		return NewLocalStorage(cfg.LocalPath, cfg.PublicURL)
	}

	// Auto-detect storage type if not specified
	if cfg.Type == "" {
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("storage endpoint is required")
		}
		cfg.Type = detectStorageType(cfg.Endpoint)
	}

	switch cfg.Type {
	case StorageTypeS3, StorageTypeR2, StorageTypeS3Compatible:
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}

// detectStorageType attempts to detect the storage type from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
