// Package registry answers which providers are configured for a caller and
// which of them can actually be run on this machine.
package registry

import (
	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/ports"
)

// Registry is an immutable view over the providers declared in the config.
type Registry struct {
	config domain.Config
}

// New snapshots cfg. Later config edits need a new Registry.
func New(cfg domain.Config) *Registry {
	return &Registry{config: cfg}
}

// ListConfigured returns the enabled providers for a calling context, in
// configured order. Unknown contexts use the default list.
func (r *Registry) ListConfigured(skillContext string) []domain.ProviderSpec {
	return r.config.ProvidersForContext(skillContext)
}

// Find looks up a provider by name, enabled or not.
func (r *Registry) Find(name string) (domain.ProviderSpec, bool) {
	return r.config.FindProvider(name)
}

// All returns every declared provider including disabled ones.
func (r *Registry) All() []domain.ProviderSpec {
	return append([]domain.ProviderSpec(nil), r.config.Providers...)
}

// Select narrows the context's providers to names. Empty names keep all.
// Names that are not configured for the context are ignored.
func (r *Registry) Select(skillContext string, names []string) []domain.ProviderSpec {
	specs := r.ListConfigured(skillContext)
	if len(names) == 0 {
		return specs
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []domain.ProviderSpec
	for _, spec := range specs {
		if want[spec.Name] {
			out = append(out, spec)
		}
	}
	return out
}

var _ ports.ProviderRegistry = (*Registry)(nil)
