package doctor

import (
	"context"
	"errors"
	"testing"

	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/ports"
)

type stubConfig struct {
	cfg domain.Config
	err error
}

func (s stubConfig) Load(context.Context) (domain.Config, error) { return s.cfg, s.err }
func (s stubConfig) Path() string                                { return "/tmp/sage/config.yaml" }

type stubProber struct {
	results map[string]ports.ProbeResult
	resets  int
}

func (p *stubProber) IsAvailable(ctx context.Context, spec domain.ProviderSpec) bool {
	return p.Probe(ctx, spec).Available
}

func (p *stubProber) Probe(_ context.Context, spec domain.ProviderSpec) ports.ProbeResult {
	return p.results[spec.Name]
}

func (p *stubProber) Reset() { p.resets++ }

type denyYolo struct{}

func (denyYolo) Filter(args []string) ([]string, []string) {
	var kept, dropped []string
	for _, a := range args {
		if a == "--yolo" {
			dropped = append(dropped, a)
			continue
		}
		kept = append(kept, a)
	}
	return kept, dropped
}

type stubCache struct {
	ports.CacheRepository
	entries []domain.CacheEntry
	err     error
}

func (c stubCache) Entries() ([]domain.CacheEntry, error) { return c.entries, c.err }
func (c stubCache) Location() string                     { return "/tmp/sage/cache" }
func (c stubCache) Settings() domain.CacheSettings {
	return domain.CacheSettings{Backend: domain.CacheBackendFile}
}

func testConfig() domain.Config {
	return domain.Config{
		ConfigFormatVersion: "1",
		Providers: []domain.ProviderSpec{
			{Name: "claude", Executable: "claude"},
			{Name: "gemini", Executable: "gemini", Args: []string{"--yolo"}},
		},
	}
}

func statuses(report domain.HealthReport) map[string]domain.HealthStatus {
	out := make(map[string]domain.HealthStatus, len(report.Checks))
	for _, c := range report.Checks {
		out[c.Name] = c.Status
	}
	return out
}

func TestDoctorReportsEachConcern(t *testing.T) {
	prober := &stubProber{results: map[string]ports.ProbeResult{
		"claude": {Available: true, Path: "/usr/bin/claude", Version: "1.0.0"},
		"gemini": {Err: errors.New("exec: \"gemini\": executable file not found in $PATH")},
	}}
	svc := &Service{
		ConfigProvider: stubConfig{cfg: testConfig()},
		Prober:         prober,
		Flags:          denyYolo{},
		Cache:          stubCache{entries: make([]domain.CacheEntry, 3)},
	}

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	got := statuses(report)
	want := map[string]domain.HealthStatus{
		"Config file":       domain.HealthOK,
		"Config validation": domain.HealthOK,
		"Provider claude":   domain.HealthOK,
		"Provider gemini":   domain.HealthWarn,
		"Providers":         domain.HealthOK,
		"Flag policy":       domain.HealthWarn,
		"Cache":             domain.HealthOK,
	}
	for name, status := range want {
		if got[name] != status {
			t.Errorf("%s = %q, want %q", name, got[name], status)
		}
	}
	if prober.resets != 1 {
		t.Fatal("doctor should re-probe providers")
	}
	if !report.Healthy() {
		t.Fatal("warnings alone must not make the report unhealthy")
	}
}

func TestDoctorFailsWithoutProviders(t *testing.T) {
	svc := &Service{
		ConfigProvider: stubConfig{cfg: testConfig()},
		Prober:         &stubProber{},
		Cache:          stubCache{err: errors.New("permission denied")},
	}
	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	got := statuses(report)
	if got["Providers"] != domain.HealthError || got["Cache"] != domain.HealthError || got["Flag policy"] != domain.HealthWarn {
		t.Fatalf("unexpected statuses: %v", got)
	}
	if report.Healthy() {
		t.Fatal("report should be unhealthy")
	}
}

func TestDoctorConfigLoadFailure(t *testing.T) {
	svc := &Service{ConfigProvider: stubConfig{err: errors.New("yaml: line 3")}}
	report, err := svc.Run(context.Background())
	if err == nil || len(report.Checks) != 1 || report.Checks[0].Status != domain.HealthError {
		t.Fatalf("report=%+v err=%v", report, err)
	}
}
