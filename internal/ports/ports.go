// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the application core and external
// adapters (infrastructure). The consultation use case depends only on these
// interfaces, so executors, caches and progress sinks can be swapped for stubs
// in tests or for other backends in production.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., Invoker, CacheStore)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: Application depends on abstractions, not implementations
package ports

import (
	"context"

	"github.com/doeshing/sage-go/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.sage/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
	Path() string
}

// ProviderRegistry lists the providers configured for a calling context.
type ProviderRegistry interface {
	ListConfigured(skillContext string) []domain.ProviderSpec
	Select(skillContext string, names []string) []domain.ProviderSpec
	Find(name string) (domain.ProviderSpec, bool)
}

// AvailabilityProber answers whether a provider executable can be run at all.
// Results are memoized; an unavailable provider is omitted, never an error.
type AvailabilityProber interface {
	IsAvailable(ctx context.Context, spec domain.ProviderSpec) bool
}

// VersionProber is implemented by probers that also report the probe output.
type VersionProber interface {
	AvailabilityProber
	Probe(ctx context.Context, spec domain.ProviderSpec) ProbeResult
	Reset()
}

// ProbeResult is the memoized outcome of one availability probe.
type ProbeResult struct {
	Available bool
	Path      string
	Version   string
	Err       error
}

// ModelResolver picks the model for one provider: per-call override, then
// routing table, then provider default.
type ModelResolver interface {
	Resolve(provider string, overrides map[string]string, skillContext string) string
}

// Invoker runs exactly one provider once. Provider-side failures are encoded
// in the returned ToolResponse status; Invoke never returns an error.
type Invoker interface {
	Invoke(ctx context.Context, spec domain.ProviderSpec, req domain.InvocationRequest, model string) domain.ToolResponse
}

// Normalizer recovers the canonical envelope from a provider's raw output.
// Only Parsed is modified; status is never changed.
type Normalizer interface {
	Normalize(strategy string, resp domain.ToolResponse) domain.ToolResponse
}

// ConsensusBuilder aggregates successful responses into a report.
type ConsensusBuilder interface {
	Build(result domain.ConsultationResult) (domain.ConsensusReport, error)
}

// FlagFilter removes denied flags from caller or config supplied arguments.
type FlagFilter interface {
	Filter(args []string) (kept []string, dropped []string)
}

// CacheStore persists finished consultations addressed by cache key.
type CacheStore interface {
	Get(key string) (domain.CacheEntry, bool, error)
	Put(entry domain.CacheEntry) error
}

// CacheRepository exposes cache inspection for CLI, HTTP and doctor.
type CacheRepository interface {
	CacheStore
	Clear() error
	Entries() ([]domain.CacheEntry, error)
	Location() string
	Settings() domain.CacheSettings
	Update(domain.CacheSettings) error
}

// ProgressEmitter receives lifecycle events. Emitting never blocks and never
// alters control flow.
type ProgressEmitter interface {
	Emit(kind domain.ProgressKind, consultationID string, payload map[string]interface{})
}

// ProgressSource is implemented by emitters that can be observed.
type ProgressSource interface {
	ProgressEmitter
	Subscribe(buffer int) (<-chan domain.ProgressEvent, func())
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stderr, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
