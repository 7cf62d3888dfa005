// Package resolver picks the model each provider runs with.
package resolver

import (
	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/ports"
)

// Wildcard is the override key that applies to every provider.
const Wildcard = "*"

// Resolver applies, in order: explicit per-call override, routing table for
// the calling context, provider default. It holds no mutable state.
type Resolver struct {
	config domain.Config
}

// New builds a resolver over cfg's routing table and provider defaults.
func New(cfg domain.Config) *Resolver {
	return &Resolver{config: cfg}
}

// Resolve returns the model for provider, or "" when nothing is configured.
func (r *Resolver) Resolve(provider string, overrides map[string]string, skillContext string) string {
	if model := overrides[provider]; model != "" {
		return model
	}
	if model := overrides[Wildcard]; model != "" {
		return model
	}
	if model, ok := r.config.RoutedModel(skillContext, provider); ok {
		return model
	}
	if spec, ok := r.config.FindProvider(provider); ok {
		return spec.DefaultModel
	}
	return ""
}

// ResolveAll resolves every spec. Providers without a model are omitted.
func (r *Resolver) ResolveAll(specs []domain.ProviderSpec, overrides map[string]string, skillContext string) map[string]string {
	out := make(map[string]string, len(specs))
	for _, spec := range specs {
		if model := r.Resolve(spec.Name, overrides, skillContext); model != "" {
			out[spec.Name] = model
		}
	}
	return out
}

var _ ports.ModelResolver = (*Resolver)(nil)
