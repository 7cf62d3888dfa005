package cache

import (
	"fmt"
	"path/filepath"

	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/pkg/filesystem"
	"github.com/doeshing/sage-go/internal/ports"
)

// DefaultDir is the cache root when the config leaves cache.dir empty.
func DefaultDir() string {
	return filepath.Join(filesystem.UserHomeDir(), ".sage", "cache")
}

// Open builds the backend selected by cfg.
func Open(cfg domain.Config) (ports.CacheRepository, error) {
	dir := filesystem.ExpandPath(cfg.Cache.Dir)
	if dir == "" {
		dir = DefaultDir()
	}
	switch backend := cfg.GetCacheBackend(); backend {
	case domain.CacheBackendFile:
		return NewFileCache(filepath.Join(dir, "consultations"), cfg.GetCacheTTL(), cfg.GetCacheMaxEntries()), nil
	case domain.CacheBackendSQLite:
		store, err := NewSQLiteCache(filepath.Join(dir, "cache.db"), cfg.GetCacheTTL(), cfg.GetCacheMaxEntries())
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
