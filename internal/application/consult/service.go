package consult

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/ports"
)

// Service runs the consultation lifecycle end-to-end: cache lookup,
// parallel dispatch, consensus, cache write.
type Service struct {
	Registry     ports.ProviderRegistry
	Resolver     ports.ModelResolver
	Orchestrator *Orchestrator
	Builder      ports.ConsensusBuilder
	Progress     ports.ProgressEmitter
	Logger       ports.Logger

	// Cache is optional; nil disables caching.
	Cache       ports.CacheStore
	CacheTTL    time.Duration
	MinRequired int
}

// Run answers one consultation request.
func (s *Service) Run(ctx context.Context, req domain.ConsultRequest) (domain.ConsultOutcome, error) {
	if s.Registry == nil || s.Orchestrator == nil || s.Builder == nil {
		return domain.ConsultOutcome{}, errors.New("consult.Service dependencies not satisfied")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	inv := req.Invocation
	if err := inv.Validate(); err != nil {
		return domain.ConsultOutcome{}, err
	}

	minRequired := req.MinRequired
	if minRequired <= 0 {
		minRequired = s.MinRequired
	}
	if minRequired <= 0 {
		minRequired = 1
	}

	specs := s.Registry.Select(inv.Context, req.Providers)
	if len(specs) == 0 {
		return domain.ConsultOutcome{}, &domain.ConsultationError{
			Kind:        domain.ErrNoProvidersAvailable,
			MinRequired: minRequired,
		}
	}

	names := domain.ProviderNames(specs)
	models := make(map[string]string, len(specs))
	if s.Resolver != nil {
		for _, spec := range specs {
			if model := s.Resolver.Resolve(spec.Name, inv.ModelOverrides, inv.Context); model != "" {
				models[spec.Name] = model
			}
		}
	}
	key := domain.CacheKey(inv.Scope, inv.Prompt, inv.Content, names, domain.ModelPairs(models))
	outcome := domain.ConsultOutcome{CacheKey: key}

	if s.Cache != nil && !req.Refresh {
		if cached, ok := s.lookup(key); ok {
			return cached, nil
		}
	}

	result, err := s.Orchestrator.Consult(ctx, inv, specs, minRequired)
	outcome.Result = result
	if err != nil {
		return outcome, err
	}

	report, err := s.Builder.Build(result)
	if err != nil {
		return outcome, fmt.Errorf("build consensus: %w", err)
	}
	outcome.Report = report
	s.emit(domain.ProgressConsensusReady, result.ID, map[string]interface{}{
		"recommendation": string(report.Recommendation),
		"agreement":      string(report.Agreement),
		"overall_score":  report.OverallScore,
		"issues":         len(report.Issues),
	})

	if s.Cache != nil {
		s.store(outcome, names, models)
	}
	return outcome, nil
}

func (s *Service) lookup(key string) (domain.ConsultOutcome, bool) {
	s.emit(domain.ProgressCacheCheck, "", map[string]interface{}{"key": key})
	entry, ok, err := s.Cache.Get(key)
	if err != nil {
		s.logger().Warn("cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		ok = false
	}
	if !ok || entry.Report == nil {
		s.emit(domain.ProgressCacheMiss, "", map[string]interface{}{"key": key})
		return domain.ConsultOutcome{}, false
	}
	s.emit(domain.ProgressCacheHit, entry.Result.ID, map[string]interface{}{
		"key":        key,
		"created_at": entry.CreatedAt.Format(domain.TimestampFormat),
	})
	return domain.ConsultOutcome{
		Result:    entry.Result,
		Report:    *entry.Report,
		CacheKey:  key,
		FromCache: true,
	}, true
}

func (s *Service) store(outcome domain.ConsultOutcome, names []string, models map[string]string) {
	report := outcome.Report
	entry := domain.CacheEntry{
		Key:       outcome.CacheKey,
		Scope:     outcome.Result.Request.Scope,
		Providers: domain.SortedStrings(names),
		Models:    domain.ModelPairs(models),
		Result:    outcome.Result,
		Report:    &report,
		CreatedAt: time.Now().UTC(),
		TTL:       domain.Duration(s.CacheTTL),
	}
	if err := s.Cache.Put(entry); err != nil {
		s.logger().Warn("cache write failed", map[string]interface{}{"key": entry.Key, "error": err.Error()})
		return
	}
	s.emit(domain.ProgressCacheSave, outcome.Result.ID, map[string]interface{}{"key": entry.Key})
}

func (s *Service) emit(kind domain.ProgressKind, id string, payload map[string]interface{}) {
	if s.Progress != nil {
		s.Progress.Emit(kind, id, payload)
	}
}

func (s *Service) logger() ports.Logger {
	if s.Logger == nil {
		return nopLogger{}
	}
	return s.Logger
}
