package doctor

import (
	"context"
	"fmt"
	"strings"

	appconfig "github.com/doeshing/sage-go/internal/application/config"
	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/ports"
)

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider ports.ConfigProvider
	Prober         ports.VersionProber
	Flags          ports.FlagFilter
	Cache          ports.CacheRepository
}

// Run executes checks and returns a report.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	checks = append(checks, ok("Config file", fmt.Sprintf("loaded %s (format %s)", s.ConfigProvider.Path(), cfg.ConfigFormatVersion)))

	if err := appconfig.Validate(cfg); err != nil {
		checks = append(checks, fail("Config validation", err.Error()))
	} else {
		checks = append(checks, ok("Config validation", "configuration is consistent"))
	}

	checks = append(checks, s.providerChecks(ctx, cfg)...)

	if s.Flags != nil {
		checks = append(checks, flagCheck(cfg, s.Flags))
	} else {
		checks = append(checks, warn("Flag policy", "flag policy not initialized"))
	}

	checks = append(checks, s.cacheCheck(cfg))

	return domain.HealthReport{Checks: checks}, nil
}

func (s *Service) providerChecks(ctx context.Context, cfg domain.Config) []domain.HealthCheck {
	enabled := cfg.EnabledProviders()
	if s.Prober == nil {
		return []domain.HealthCheck{warn("Providers", "prober not initialized")}
	}
	s.Prober.Reset()

	var checks []domain.HealthCheck
	available := 0
	for _, spec := range enabled {
		name := "Provider " + spec.Name
		res := s.Prober.Probe(ctx, spec)
		if !res.Available {
			detail := spec.Executable + " not available"
			if res.Err != nil {
				detail = res.Err.Error()
			}
			checks = append(checks, warn(name, detail))
			continue
		}
		available++
		detail := res.Path
		if res.Version != "" {
			detail += " (" + res.Version + ")"
		}
		checks = append(checks, ok(name, detail))
	}

	switch {
	case available == 0:
		checks = append(checks, fail("Providers", fmt.Sprintf("none of %d enabled providers can run", len(enabled))))
	case available < cfg.GetMinRequired():
		checks = append(checks, warn("Providers", fmt.Sprintf("%d available, min_required is %d", available, cfg.GetMinRequired())))
	default:
		checks = append(checks, ok("Providers", fmt.Sprintf("%d of %d available", available, len(enabled))))
	}
	return checks
}

func flagCheck(cfg domain.Config, flags ports.FlagFilter) domain.HealthCheck {
	var offenders []string
	for _, spec := range cfg.Providers {
		if _, dropped := flags.Filter(spec.Args); len(dropped) > 0 {
			offenders = append(offenders, spec.Name+": "+strings.Join(dropped, " "))
		}
	}
	if len(offenders) > 0 {
		return warn("Flag policy", "denied flags in provider args will be dropped: "+strings.Join(offenders, "; "))
	}
	return ok("Flag policy", "provider args pass the denied-flag filter")
}

func (s *Service) cacheCheck(cfg domain.Config) domain.HealthCheck {
	if !cfg.Cache.IsEnabled() {
		return warn("Cache", "disabled in config")
	}
	if s.Cache == nil {
		return fail("Cache", fmt.Sprintf("%s backend could not be opened", cfg.GetCacheBackend()))
	}
	entries, err := s.Cache.Entries()
	if err != nil {
		return fail("Cache", fmt.Sprintf("%s unreadable: %v", s.Cache.Location(), err))
	}
	return ok("Cache", fmt.Sprintf("%s backend at %s, %d entries", s.Cache.Settings().Backend, s.Cache.Location(), len(entries)))
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
