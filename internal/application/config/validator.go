package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/doeshing/sage-go/internal/domain"
)

// Validate ensures config structure is consistent.
func Validate(cfg domain.Config) error {
	if len(cfg.Providers) == 0 {
		return errors.New("at least one provider must be configured")
	}
	for i, p := range cfg.Providers {
		if err := validateProvider(p); err != nil {
			return fmt.Errorf("providers[%d]: %w", i, err)
		}
	}
	if err := cfg.ValidateConsistency(); err != nil {
		return err
	}
	if err := validateRouting(cfg); err != nil {
		return err
	}
	if err := validateConsultation(cfg); err != nil {
		return err
	}
	if err := validateConsensus(cfg.Consensus); err != nil {
		return err
	}
	if err := validateCache(cfg.Cache); err != nil {
		return err
	}
	if err := validateSecurity(cfg.Security); err != nil {
		return err
	}
	return validateLogging(cfg.Logging)
}

func validateProvider(p domain.ProviderSpec) error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name must be set")
	}
	if strings.TrimSpace(p.Executable) == "" {
		return fmt.Errorf("%s: executable must be set", p.Name)
	}
	switch p.PromptMode {
	case "", domain.PromptModeArg, domain.PromptModeStdin:
	default:
		return fmt.Errorf("%s: prompt_mode must be arg|stdin, got %s", p.Name, p.PromptMode)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("%s: timeout must be >= 0", p.Name)
	}
	if !p.SupportsModel(p.DefaultModel) {
		return fmt.Errorf("%s: default model %s not in models list", p.Name, p.DefaultModel)
	}
	return nil
}

func validateRouting(cfg domain.Config) error {
	for ctx, table := range cfg.Routing {
		for provider, model := range table {
			spec, _ := cfg.FindProvider(provider)
			if !spec.SupportsModel(model) {
				return fmt.Errorf("routing %s: model %s not supported by %s", ctx, model, provider)
			}
		}
	}
	return nil
}

func validateConsultation(cfg domain.Config) error {
	c := cfg.Consultation
	if c.MinRequired < 0 {
		return errors.New("consultation.min_required must be >= 0")
	}
	if enabled := len(cfg.EnabledProviders()); cfg.GetMinRequired() > enabled {
		return fmt.Errorf("consultation.min_required %d exceeds %d enabled providers", cfg.GetMinRequired(), enabled)
	}
	if c.MaxParallel < 0 {
		return errors.New("consultation.max_parallel must be >= 0")
	}
	if c.Deadline < 0 {
		return errors.New("consultation.deadline must be >= 0")
	}
	r := c.Retry
	if r.MaxAttempts < 0 || r.MinFailures < 0 {
		return errors.New("consultation.retry counts must be >= 0")
	}
	if r.BaseBackoff < 0 || r.MaxBackoff < 0 {
		return errors.New("consultation.retry backoffs must be >= 0")
	}
	if r.BaseBackoff > 0 && r.MaxBackoff > 0 && r.BaseBackoff > r.MaxBackoff {
		return fmt.Errorf("consultation.retry.base_backoff %s exceeds max_backoff %s", r.BaseBackoff, r.MaxBackoff)
	}
	return nil
}

func validateConsensus(c domain.ConsensusSettings) error {
	for name, v := range map[string]float64{"approve_min": c.ApproveMin, "reject_max": c.RejectMax} {
		if v != 0 && (v < domain.MinScore || v > domain.MaxScore) {
			return fmt.Errorf("consensus.%s must be within %v..%v, got %v", name, domain.MinScore, domain.MaxScore, v)
		}
	}
	if c.ApproveMin != 0 && c.RejectMax != 0 && c.RejectMax >= c.ApproveMin {
		return fmt.Errorf("consensus.reject_max %v must be below approve_min %v", c.RejectMax, c.ApproveMin)
	}
	switch c.IssueMatching {
	case "", domain.IssueMatchingExact, domain.IssueMatchingFuzzy:
	default:
		return fmt.Errorf("consensus.issue_matching must be exact|fuzzy, got %s", c.IssueMatching)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("consensus.similarity_threshold must be within 0..1, got %v", c.SimilarityThreshold)
	}
	return nil
}

func validateCache(cache domain.CacheSettings) error {
	switch cache.Backend {
	case "", domain.CacheBackendFile, domain.CacheBackendSQLite:
	default:
		return fmt.Errorf("cache.backend must be file|sqlite, got %s", cache.Backend)
	}
	if cache.TTL < 0 {
		return errors.New("cache.ttl must be >= 0")
	}
	if cache.MaxEntries < 0 {
		return errors.New("cache.max_entries must be >= 0")
	}
	return nil
}

func validateSecurity(sec domain.SecuritySettings) error {
	for _, pattern := range sec.DeniedFlags {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("security.denied_flags: %w", err)
		}
	}
	return nil
}

func validateLogging(l domain.LoggingSettings) error {
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug|info|warn|error, got %s", l.Level)
	}
	switch strings.ToLower(l.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text|json, got %s", l.Format)
	}
	return nil
}
