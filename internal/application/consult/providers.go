package consult

import (
	"context"

	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/ports"
)

// Providers lists the providers a calling context would consult, with
// availability and the model each would run.
func (s *Service) Providers(ctx context.Context, skillContext string) []domain.ProviderStatus {
	if s.Registry == nil {
		return nil
	}
	var prober ports.AvailabilityProber
	if s.Orchestrator != nil {
		prober = s.Orchestrator.Prober
	}

	specs := s.Registry.ListConfigured(skillContext)
	out := make([]domain.ProviderStatus, 0, len(specs))
	for _, spec := range specs {
		status := domain.ProviderStatus{
			Name:       spec.Name,
			Executable: spec.Executable,
			Available:  true,
			Model:      spec.DefaultModel,
			Timeout:    domain.Duration(spec.EffectiveTimeout(0)),
		}
		if s.Resolver != nil {
			status.Model = s.Resolver.Resolve(spec.Name, nil, skillContext)
		}
		switch p := prober.(type) {
		case ports.VersionProber:
			probe := p.Probe(ctx, spec)
			status.Available = probe.Available
			status.Path = probe.Path
			status.Version = probe.Version
		case ports.AvailabilityProber:
			status.Available = p.IsAvailable(ctx, spec)
		}
		out = append(out, status)
	}
	return out
}
