package domain

import (
	"fmt"
	"time"
)

// FindProvider searches for a provider by its name.
func (c *Config) FindProvider(name string) (ProviderSpec, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderSpec{}, false
}

// HasProvider checks if a provider with the given name exists in the configuration.
func (c *Config) HasProvider(name string) bool {
	_, exists := c.FindProvider(name)
	return exists
}

// EnabledProviders returns every enabled provider in declaration order.
func (c *Config) EnabledProviders() []ProviderSpec {
	var out []ProviderSpec
	for _, p := range c.Providers {
		if p.IsEnabled() {
			out = append(out, p)
		}
	}
	return out
}

// ProvidersForContext resolves the provider list of a calling context.
// Unknown contexts fall back to "default"; without a default every enabled
// provider is returned. Disabled or undeclared names are dropped.
func (c *Config) ProvidersForContext(name string) []ProviderSpec {
	names, ok := c.Contexts[name]
	if !ok {
		names, ok = c.Contexts[DefaultContext]
	}
	if !ok {
		return c.EnabledProviders()
	}

	seen := make(map[string]bool, len(names))
	var out []ProviderSpec
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		if p, found := c.FindProvider(n); found && p.IsEnabled() {
			out = append(out, p)
		}
	}
	return out
}

// RoutedModel returns the routing-table model for a provider in a context.
func (c *Config) RoutedModel(context, provider string) (string, bool) {
	table, ok := c.Routing[context]
	if !ok {
		return "", false
	}
	model, ok := table[provider]
	return model, ok && model != ""
}

// GetMinRequired returns the minimum successful providers, at least 1.
func (c *Config) GetMinRequired() int {
	if c.Consultation.MinRequired <= 0 {
		return 1
	}
	return c.Consultation.MinRequired
}

// GetCacheTTL returns the cache TTL with default fallback.
func (c *Config) GetCacheTTL() time.Duration {
	if c.Cache.TTL <= 0 {
		return DefaultCacheTTL
	}
	return c.Cache.TTL.Std()
}

// GetCacheMaxEntries returns the maximum number of cache entries.
func (c *Config) GetCacheMaxEntries() int {
	if c.Cache.MaxEntries <= 0 {
		return DefaultMaxCacheEntries
	}
	return c.Cache.MaxEntries
}

// GetCacheBackend returns the cache backend with default fallback.
func (c *Config) GetCacheBackend() string {
	if c.Cache.Backend == "" {
		return CacheBackendFile
	}
	return c.Cache.Backend
}

// GetThresholds returns recommendation cutoffs, falling back per field.
func (c *Config) GetThresholds() Thresholds {
	t := c.Consensus.Thresholds
	if t.ApproveMin <= 0 {
		t.ApproveMin = DefaultThresholds.ApproveMin
	}
	if t.RejectMax <= 0 {
		t.RejectMax = DefaultThresholds.RejectMax
	}
	return t
}

// GetRetry returns retry settings with defaults filled in.
func (c *Config) GetRetry() RetrySettings {
	r := c.Consultation.Retry
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = DefaultRetryAttempts
	}
	if r.BaseBackoff <= 0 {
		r.BaseBackoff = Duration(DefaultBaseBackoff)
	}
	if r.MaxBackoff <= 0 {
		r.MaxBackoff = Duration(DefaultMaxBackoff)
	}
	if r.MinFailures <= 0 {
		r.MinFailures = DefaultRateLimitMinFailures
	}
	if len(r.Patterns) == 0 {
		r.Patterns = DefaultRateLimitPatterns
	}
	return r
}

// GetServerAddr returns the HTTP listen address.
func (c *Config) GetServerAddr() string {
	if c.Server.Addr == "" {
		return DefaultServerAddr
	}
	return c.Server.Addr
}

// ValidateConsistency checks cross-references inside the configuration.
func (c *Config) ValidateConsistency() error {
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if seen[p.Name] {
			return fmt.Errorf("provider %s declared twice", p.Name)
		}
		seen[p.Name] = true
	}
	for ctx, names := range c.Contexts {
		for _, n := range names {
			if !seen[n] {
				return fmt.Errorf("context %s references unknown provider %s", ctx, n)
			}
		}
	}
	for ctx, table := range c.Routing {
		for provider := range table {
			if !seen[provider] {
				return fmt.Errorf("routing %s references unknown provider %s", ctx, provider)
			}
		}
	}
	return nil
}
