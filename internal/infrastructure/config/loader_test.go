package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/doeshing/sage-go/internal/domain"
)

func TestLoadWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	loader := NewFileLoader(path)

	cfg, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if names := domain.ProviderNames(cfg.Providers); len(names) != 3 || names[0] != "claude" {
		t.Fatalf("providers = %v", names)
	}
	if cfg.GetCacheTTL() != 168*time.Hour || cfg.GetThresholds() != domain.DefaultThresholds {
		t.Fatalf("unexpected defaults: ttl=%s thresholds=%+v", cfg.GetCacheTTL(), cfg.GetThresholds())
	}
	if err := cfg.ValidateConsistency(); err != nil {
		t.Fatalf("default config inconsistent: %v", err)
	}
	if loader.Path() != path {
		t.Fatalf("Path() = %s", loader.Path())
	}
}

func TestLoadReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `providers:
  - name: local
    executable: ./bin/local
    timeout: 45s
consultation:
  min_required: 2
consensus:
  approve_min: 9
cache:
  backend: sqlite
  dir: ~/somewhere
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewFileLoader(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(cfg.Providers) != 1 || cfg.Providers[0].Timeout.Std() != 45*time.Second {
		t.Fatalf("providers = %+v", cfg.Providers)
	}
	if cfg.GetMinRequired() != 2 || cfg.GetCacheBackend() != domain.CacheBackendSQLite {
		t.Fatalf("unexpected settings: %+v", cfg)
	}
	if got := cfg.GetThresholds(); got.ApproveMin != 9 || got.RejectMax != 3 {
		t.Fatalf("thresholds = %+v", got)
	}
	if !filepath.IsAbs(cfg.Cache.Dir) {
		t.Fatalf("cache dir not expanded: %s", cfg.Cache.Dir)
	}
	if cfg.Consensus.IssueMatching != domain.IssueMatchingExact || cfg.Logging.Level != "warn" {
		t.Fatalf("hydrated defaults missing: %+v %+v", cfg.Consensus, cfg.Logging)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	if _, err := Parse([]byte("cache:\n  tll: 1h\n")); err == nil {
		t.Fatal("expected error for misspelled key")
	}
	if _, err := Parse(nil); err != nil {
		t.Fatalf("empty document should parse: %v", err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SAGE_CACHE_TTL", "2h")
	t.Setenv("SAGE_CACHE_BACKEND", "sqlite")
	t.Setenv("SAGE_MIN_REQUIRED", "3")
	t.Setenv("SAGE_LOG_LEVEL", "info")
	t.Setenv("SAGE_SERVER_ADDR", "127.0.0.1:9999")
	t.Setenv("SAGE_CONSULT_DEADLINE", "90s")

	cfg, err := NewFileLoader(filepath.Join(t.TempDir(), "config.yaml")).Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.GetCacheTTL() != 2*time.Hour || cfg.GetCacheBackend() != "sqlite" || cfg.GetMinRequired() != 3 {
		t.Fatalf("cache/min overrides not applied: %+v %+v", cfg.Cache, cfg.Consultation)
	}
	if cfg.Logging.Level != "info" || cfg.GetServerAddr() != "127.0.0.1:9999" || cfg.Consultation.Deadline.Std() != 90*time.Second {
		t.Fatalf("overrides not applied: %+v", cfg)
	}

	t.Setenv("SAGE_DEBUG", "true")
	cfg, err = NewFileLoader(filepath.Join(t.TempDir(), "config.yaml")).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("SAGE_DEBUG should force debug, got %s", cfg.Logging.Level)
	}
}

func TestEnvironmentOverrideRejectsGarbage(t *testing.T) {
	t.Setenv("SAGE_MIN_REQUIRED", "many")
	if _, err := NewFileLoader(filepath.Join(t.TempDir(), "config.yaml")).Load(context.Background()); err == nil {
		t.Fatal("expected error for non-numeric SAGE_MIN_REQUIRED")
	}
}

func TestConfigPathFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SAGE_CONFIG", filepath.Join(dir, "custom.yaml"))
	if got := NewFileLoader("").Path(); got != filepath.Join(dir, "custom.yaml") {
		t.Fatalf("Path() = %s", got)
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if len(cfg.EnabledProviders()) == 0 {
		t.Fatal("default config has no providers")
	}
	for _, p := range cfg.Providers {
		if len(p.SafetyFlags) == 0 {
			t.Errorf("default provider %s has no safety flags", p.Name)
		}
	}
}

func TestSaveRoundTripsWithBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	loader := NewFileLoader(path)
	cfg, err := loader.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	backup, err := loader.Backup()
	if err != nil {
		t.Fatalf("Backup error: %v", err)
	}
	if _, err := os.Stat(backup); err != nil {
		t.Fatalf("backup missing: %v", err)
	}

	cfg.Cache.MaxEntries = 42
	if err := loader.Save(cfg); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	reloaded, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if reloaded.GetCacheMaxEntries() != 42 || len(reloaded.Providers) != len(cfg.Providers) {
		t.Fatalf("saved config not reloaded: %+v", reloaded.Cache)
	}
}
