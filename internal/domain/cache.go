package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// CacheEntry stores a finished consultation. Entries are written whole and
// replaced, never mutated.
type CacheEntry struct {
	Key       string             `json:"key"`
	Scope     string             `json:"scope,omitempty"`
	Providers []string           `json:"providers"`
	Models    []string           `json:"models"`
	Result    ConsultationResult `json:"result"`
	Report    *ConsensusReport   `json:"report,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	TTL       Duration           `json:"ttl"`
}

// ExpiresAt returns the expiry instant; zero TTL never expires.
func (e CacheEntry) ExpiresAt() time.Time {
	if e.TTL <= 0 {
		return time.Time{}
	}
	return e.CreatedAt.Add(e.TTL.Std())
}

// Expired reports whether the entry is past its TTL at now.
func (e CacheEntry) Expired(now time.Time) bool {
	expires := e.ExpiresAt()
	return !expires.IsZero() && !now.Before(expires)
}

// CacheSettings is the cache section of the config.
type CacheSettings struct {
	Enabled    *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Backend    string   `yaml:"backend,omitempty" json:"backend,omitempty"`
	Dir        string   `yaml:"dir,omitempty" json:"dir,omitempty"`
	TTL        Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`
	MaxEntries int      `yaml:"max_entries,omitempty" json:"max_entries,omitempty"`
}

// IsEnabled reports whether cache reads and writes happen. Default: enabled.
func (s CacheSettings) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Cache backends.
const (
	CacheBackendFile   = "file"
	CacheBackendSQLite = "sqlite"
)

// CanonicalContent normalizes line endings and surrounding whitespace so that
// cosmetic differences do not change the cache key.
func CanonicalContent(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	return strings.TrimSpace(content)
}

// ModelPairs renders provider=model pairs sorted by provider name.
func ModelPairs(models map[string]string) []string {
	pairs := make([]string, 0, len(models))
	for provider, model := range models {
		pairs = append(pairs, provider+"="+model)
	}
	sort.Strings(pairs)
	return pairs
}

// CacheKey derives the content address of a consultation: SHA-256 over the
// scope, canonical prompt, canonical content, sorted provider names and sorted
// model list. Every field is length-prefixed so no two distinct inputs share
// an encoding.
func CacheKey(scope, prompt, content string, providers, models []string) string {
	h := sha256.New()
	writeField := func(value string) {
		var size [8]byte
		binary.BigEndian.PutUint64(size[:], uint64(len(value)))
		h.Write(size[:])
		h.Write([]byte(value))
	}
	writeList := func(values []string) {
		sorted := append([]string(nil), values...)
		sort.Strings(sorted)
		writeField(strings.Join(sorted, "\x00"))
		var count [8]byte
		binary.BigEndian.PutUint64(count[:], uint64(len(sorted)))
		h.Write(count[:])
	}

	writeField("sage/cache/v2")
	writeField(scope)
	writeField(CanonicalContent(prompt))
	writeField(CanonicalContent(content))
	writeList(providers)
	writeList(models)
	return hex.EncodeToString(h.Sum(nil))
}
