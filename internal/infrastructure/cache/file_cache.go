// Package cache stores finished consultations addressed by content hash.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/ports"
)

const entrySuffix = ".json"

// FileCache stores one JSON document per cache key. Entries are written to a
// temporary file and renamed into place, so a reader sees either the old
// entry or the new one, never a partial write.
type FileCache struct {
	dir        string
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

// NewFileCache returns a cache rooted at dir.
func NewFileCache(dir string, ttl time.Duration, maxEntries int) *FileCache {
	if ttl <= 0 {
		ttl = domain.DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = domain.DefaultMaxCacheEntries
	}
	return &FileCache{
		dir:        dir,
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get retrieves a cache entry. Expired or corrupt entries are removed and
// reported as misses.
func (c *FileCache) Get(key string) (domain.CacheEntry, bool, error) {
	if key == "" {
		return domain.CacheEntry{}, false, nil
	}
	path := c.pathFor(key)
	entry, err := readEntry(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return domain.CacheEntry{}, false, nil
	case errors.Is(err, errCorruptEntry), err == nil && entry.Expired(c.now()):
		_ = os.Remove(path)
		return domain.CacheEntry{}, false, nil
	case err != nil:
		return domain.CacheEntry{}, false, err
	}
	return entry, true, nil
}

// Put stores entry, replacing any previous entry under the same key.
func (c *FileCache) Put(entry domain.CacheEntry) error {
	if entry.Key == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = c.now().UTC()
	}
	if entry.TTL == 0 {
		entry.TTL = domain.Duration(c.ttl)
	}
	if err := os.MkdirAll(c.dir, domain.DirectoryPermissions); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, ".entry-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp entry: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp entry: %w", err)
	}
	if err := os.Rename(tmpName, c.pathFor(entry.Key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return c.evictIfNeeded()
}

// Location exposes the cache directory path.
func (c *FileCache) Location() string {
	return c.dir
}

// Clear removes all cached entries.
func (c *FileCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return os.RemoveAll(c.dir)
}

// Entries lists readable cache entries, newest first.
func (c *FileCache) Entries() ([]domain.CacheEntry, error) {
	paths, err := c.entryPaths()
	if err != nil {
		return nil, err
	}
	entries := make([]domain.CacheEntry, 0, len(paths))
	for _, path := range paths {
		if entry, err := readEntry(path); err == nil {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}

// Settings returns the current TTL/max settings.
func (c *FileCache) Settings() domain.CacheSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CacheSettings{
		Backend:    domain.CacheBackendFile,
		Dir:        c.dir,
		TTL:        domain.Duration(c.ttl),
		MaxEntries: c.maxEntries,
	}
}

// Update adjusts TTL/max entries at runtime. Existing entries keep the TTL
// they were written with.
func (c *FileCache) Update(settings domain.CacheSettings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if settings.MaxEntries > 0 {
		c.maxEntries = settings.MaxEntries
	}
	if settings.TTL > 0 {
		c.ttl = settings.TTL.Std()
	}
	return nil
}

func (c *FileCache) pathFor(key string) string {
	return filepath.Join(c.dir, key+entrySuffix)
}

func (c *FileCache) entryPaths() ([]string, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(dirEntries))
	for _, d := range dirEntries {
		if d.Type().IsRegular() && strings.HasSuffix(d.Name(), entrySuffix) {
			paths = append(paths, filepath.Join(c.dir, d.Name()))
		}
	}
	return paths, nil
}

// evictIfNeeded drops the oldest entries, by creation time, until at most
// maxEntries remain. Corrupt files count as oldest.
func (c *FileCache) evictIfNeeded() error {
	paths, err := c.entryPaths()
	if err != nil || len(paths) <= c.maxEntries {
		return err
	}
	created := make(map[string]time.Time, len(paths))
	for _, path := range paths {
		if entry, err := readEntry(path); err == nil {
			created[path] = entry.CreatedAt
		}
	}
	sort.Slice(paths, func(i, j int) bool { return created[paths[i]].Before(created[paths[j]]) })
	for _, path := range paths[:len(paths)-c.maxEntries] {
		_ = os.Remove(path)
	}
	return nil
}

var errCorruptEntry = errors.New("corrupt cache entry")

func readEntry(path string) (domain.CacheEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.CacheEntry{}, err
	}
	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return domain.CacheEntry{}, fmt.Errorf("%w: %s", errCorruptEntry, filepath.Base(path))
	}
	return entry, nil
}

var _ ports.CacheRepository = (*FileCache)(nil)
