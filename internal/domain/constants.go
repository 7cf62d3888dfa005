package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// Timeout and duration constants
const (
	// DefaultProviderTimeout applies when neither the request nor the provider sets one
	DefaultProviderTimeout = 120 * time.Second
	// DefaultProbeTimeout bounds the availability probe
	DefaultProbeTimeout = 5 * time.Second
	// DeadlineGrace is added to the longest provider timeout to form the consultation deadline
	DeadlineGrace = 5 * time.Second
	// ProcessWaitDelay bounds how long a killed provider may hold its output pipes
	ProcessWaitDelay = 2 * time.Second
)

// Retry constants
const (
	DefaultRetryAttempts        = 2
	DefaultBaseBackoff          = 2 * time.Second
	DefaultMaxBackoff           = 30 * time.Second
	DefaultRateLimitMinFailures = 2
)

// DefaultRateLimitPatterns are lowercase substrings that identify throttling.
var DefaultRateLimitPatterns = []string{
	"rate limit",
	"rate-limit",
	"ratelimit",
	"429",
	"too many requests",
	"quota",
	"overloaded",
	"resource exhausted",
	"resource_exhausted",
}

// Cache constants
const (
	// DefaultCacheTTL keeps consultations for a week
	DefaultCacheTTL = 7 * 24 * time.Hour
	// DefaultMaxCacheEntries is the maximum number of cache entries
	DefaultMaxCacheEntries = 500
)

// Misc defaults
const (
	// DefaultContext is the provider list used when a caller context is unknown
	DefaultContext = "default"
	// DefaultServerAddr is the HTTP API listen address
	DefaultServerAddr = "127.0.0.1:8787"
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339
)
