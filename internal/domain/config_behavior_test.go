package domain_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/doeshing/sage-go/internal/domain"
)

func boolPtr(v bool) *bool { return &v }

func testConfig() domain.Config {
	return domain.Config{
		Providers: []domain.ProviderSpec{
			{Name: "claude", Executable: "claude"},
			{Name: "gemini", Executable: "gemini"},
			{Name: "codex", Executable: "codex", Enabled: boolPtr(false)},
		},
		Contexts: map[string][]string{
			"default":  {"claude", "gemini", "codex"},
			"security": {"gemini", "gemini", "claude"},
		},
		Routing: map[string]map[string]string{
			"architecture": {"claude": "opus"},
		},
	}
}

// TestConfig_ProvidersForContext tests context-based provider lists
func TestConfig_ProvidersForContext(t *testing.T) {
	tests := []struct {
		name    string
		config  domain.Config
		context string
		want    []string
	}{
		{
			name:    "known context keeps order and drops duplicates",
			config:  testConfig(),
			context: "security",
			want:    []string{"gemini", "claude"},
		},
		{
			name:    "unknown context falls back to default and skips disabled",
			config:  testConfig(),
			context: "architecture",
			want:    []string{"claude", "gemini"},
		},
		{
			name: "no contexts returns every enabled provider",
			config: domain.Config{
				Providers: []domain.ProviderSpec{
					{Name: "a"},
					{Name: "b", Enabled: boolPtr(false)},
					{Name: "c"},
				},
			},
			context: "anything",
			want:    []string{"a", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := domain.ProviderNames(tt.config.ProvidersForContext(tt.context))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ProvidersForContext() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestConfig_RoutedModel tests routing table lookups
func TestConfig_RoutedModel(t *testing.T) {
	cfg := testConfig()

	if model, ok := cfg.RoutedModel("architecture", "claude"); !ok || model != "opus" {
		t.Errorf("RoutedModel(architecture, claude) = %q, %v; want opus, true", model, ok)
	}
	if _, ok := cfg.RoutedModel("architecture", "gemini"); ok {
		t.Error("expected no route for gemini")
	}
	if _, ok := cfg.RoutedModel("missing", "claude"); ok {
		t.Error("expected no route for unknown context")
	}
}

// TestConfig_ValidateConsistency tests cross-reference validation
func TestConfig_ValidateConsistency(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*domain.Config)
		wantError bool
	}{
		{name: "valid configuration", mutate: func(*domain.Config) {}},
		{
			name: "duplicate provider",
			mutate: func(c *domain.Config) {
				c.Providers = append(c.Providers, domain.ProviderSpec{Name: "claude"})
			},
			wantError: true,
		},
		{
			name: "context references unknown provider",
			mutate: func(c *domain.Config) {
				c.Contexts["review"] = []string{"ghost"}
			},
			wantError: true,
		},
		{
			name: "routing references unknown provider",
			mutate: func(c *domain.Config) {
				c.Routing["security"] = map[string]string{"ghost": "x"}
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.ValidateConsistency()
			if tt.wantError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// TestConfig_Defaults tests getters with default fallbacks
func TestConfig_Defaults(t *testing.T) {
	var cfg domain.Config

	if got := cfg.GetMinRequired(); got != 1 {
		t.Errorf("GetMinRequired() = %d, want 1", got)
	}
	if got := cfg.GetCacheTTL(); got != domain.DefaultCacheTTL {
		t.Errorf("GetCacheTTL() = %v, want %v", got, domain.DefaultCacheTTL)
	}
	if got := cfg.GetCacheBackend(); got != domain.CacheBackendFile {
		t.Errorf("GetCacheBackend() = %s, want file", got)
	}
	if got := cfg.GetThresholds(); got != domain.DefaultThresholds {
		t.Errorf("GetThresholds() = %+v, want %+v", got, domain.DefaultThresholds)
	}
	retry := cfg.GetRetry()
	if retry.MaxAttempts != domain.DefaultRetryAttempts || retry.MinFailures != domain.DefaultRateLimitMinFailures {
		t.Errorf("GetRetry() = %+v", retry)
	}
	if len(retry.Patterns) == 0 {
		t.Error("expected default rate-limit patterns")
	}
}
