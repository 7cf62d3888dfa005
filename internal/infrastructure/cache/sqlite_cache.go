package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/ports"
)

// SQLiteCache keeps cache entries in a single SQLite database. Each entry is
// one row written with INSERT OR REPLACE.
type SQLiteCache struct {
	db         *sql.DB
	path       string
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

// NewSQLiteCache creates (or opens) the database at path.
func NewSQLiteCache(path string, ttl time.Duration, maxEntries int) (*SQLiteCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if ttl <= 0 {
		ttl = domain.DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = domain.DefaultMaxCacheEntries
	}
	store := &SQLiteCache{db: db, path: path, maxEntries: maxEntries, ttl: ttl, now: time.Now}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteCache) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS entries (
		key TEXT PRIMARY KEY,
		scope TEXT,
		created_at INTEGER NOT NULL,
		expires_at INTEGER,
		payload BLOB NOT NULL
	);`)
	if err != nil {
		return fmt.Errorf("init cache schema: %w", err)
	}
	return nil
}

// Get returns the entry for key. Expired rows are deleted and reported as misses.
func (s *SQLiteCache) Get(key string) (domain.CacheEntry, bool, error) {
	if key == "" {
		return domain.CacheEntry{}, false, nil
	}
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM entries WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CacheEntry{}, false, nil
	}
	if err != nil {
		return domain.CacheEntry{}, false, err
	}
	var entry domain.CacheEntry
	if err := json.Unmarshal(payload, &entry); err != nil || entry.Expired(s.now()) {
		_, _ = s.db.Exec(`DELETE FROM entries WHERE key = ?`, key)
		return domain.CacheEntry{}, false, nil
	}
	return entry, true, nil
}

// Put stores entry, replacing any previous row for the key.
func (s *SQLiteCache) Put(entry domain.CacheEntry) error {
	if entry.Key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	if entry.TTL == 0 {
		entry.TTL = domain.Duration(s.ttl)
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	var expires interface{}
	if at := entry.ExpiresAt(); !at.IsZero() {
		expires = at.UnixNano()
	}
	if _, err := s.db.Exec(`INSERT OR REPLACE INTO entries (key, scope, created_at, expires_at, payload) VALUES (?, ?, ?, ?, ?)`,
		entry.Key, entry.Scope, entry.CreatedAt.UnixNano(), expires, payload); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	_, err = s.db.Exec(`DELETE FROM entries WHERE key NOT IN (
		SELECT key FROM entries ORDER BY created_at DESC LIMIT ?
	)`, s.maxEntries)
	return err
}

// Clear deletes every row.
func (s *SQLiteCache) Clear() error {
	_, err := s.db.Exec(`DELETE FROM entries`)
	return err
}

// Entries lists stored entries, newest first.
func (s *SQLiteCache) Entries() ([]domain.CacheEntry, error) {
	rows, err := s.db.Query(`SELECT payload FROM entries ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []domain.CacheEntry
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var entry domain.CacheEntry
		if err := json.Unmarshal(payload, &entry); err == nil {
			entries = append(entries, entry)
		}
	}
	return entries, rows.Err()
}

// Purge removes expired rows and reports how many were deleted.
func (s *SQLiteCache) Purge() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM entries WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.now().UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Location returns the database path.
func (s *SQLiteCache) Location() string {
	return s.path
}

// Settings returns the current TTL/max settings.
func (s *SQLiteCache) Settings() domain.CacheSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CacheSettings{
		Backend:    domain.CacheBackendSQLite,
		Dir:        filepath.Dir(s.path),
		TTL:        domain.Duration(s.ttl),
		MaxEntries: s.maxEntries,
	}
}

// Update adjusts TTL/max entries at runtime.
func (s *SQLiteCache) Update(settings domain.CacheSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if settings.MaxEntries > 0 {
		s.maxEntries = settings.MaxEntries
	}
	if settings.TTL > 0 {
		s.ttl = settings.TTL.Std()
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteCache) Close() error {
	return s.db.Close()
}

var _ ports.CacheRepository = (*SQLiteCache)(nil)
