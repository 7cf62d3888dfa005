package registry

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/ports"
)

// Prober checks provider executables once per process and remembers the
// answer. Concurrent callers for the same provider share a single probe.
type Prober struct {
	timeout  time.Duration
	lookPath func(string) (string, error)

	mu      sync.Mutex
	entries map[string]*probeEntry
}

type probeEntry struct {
	done   chan struct{}
	result ports.ProbeResult
}

// NewProber builds a prober with the default probe timeout.
func NewProber() *Prober {
	return &Prober{
		timeout:  domain.DefaultProbeTimeout,
		lookPath: exec.LookPath,
		entries:  make(map[string]*probeEntry),
	}
}

// WithLookPath replaces executable lookup (tests).
func (p *Prober) WithLookPath(fn func(string) (string, error)) *Prober {
	p.lookPath = fn
	return p
}

// WithTimeout overrides the probe timeout.
func (p *Prober) WithTimeout(timeout time.Duration) *Prober {
	if timeout > 0 {
		p.timeout = timeout
	}
	return p
}

// IsAvailable reports whether spec's executable exists and answers its probe.
func (p *Prober) IsAvailable(ctx context.Context, spec domain.ProviderSpec) bool {
	return p.Probe(ctx, spec).Available
}

// Probe returns the memoized probe result for spec.
func (p *Prober) Probe(ctx context.Context, spec domain.ProviderSpec) ports.ProbeResult {
	p.mu.Lock()
	entry, ok := p.entries[spec.Name]
	if !ok {
		entry = &probeEntry{done: make(chan struct{})}
		p.entries[spec.Name] = entry
		p.mu.Unlock()
		entry.result = p.run(ctx, spec)
		close(entry.done)
		if ctx.Err() != nil {
			// A cancelled caller says nothing about the provider.
			p.mu.Lock()
			if p.entries[spec.Name] == entry {
				delete(p.entries, spec.Name)
			}
			p.mu.Unlock()
		}
		return entry.result
	}
	p.mu.Unlock()

	select {
	case <-entry.done:
		return entry.result
	case <-ctx.Done():
		return ports.ProbeResult{Err: ctx.Err()}
	}
}

// Reset forgets every memoized result.
func (p *Prober) Reset() {
	p.mu.Lock()
	p.entries = make(map[string]*probeEntry)
	p.mu.Unlock()
}

func (p *Prober) run(ctx context.Context, spec domain.ProviderSpec) ports.ProbeResult {
	if spec.Executable == "" {
		return ports.ProbeResult{Err: fmt.Errorf("provider %s has no executable", spec.Name)}
	}
	path, err := p.lookPath(spec.Executable)
	if err != nil {
		return ports.ProbeResult{Err: fmt.Errorf("%w: %s", domain.ErrProviderNotFound, spec.Executable)}
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, path, spec.GetProbeArgs()...)
	cmd.WaitDelay = domain.ProcessWaitDelay
	out, err := cmd.Output()
	if err != nil {
		if probeCtx.Err() != nil {
			return ports.ProbeResult{Path: path, Err: fmt.Errorf("probe %s: %w", spec.Name, domain.ErrProviderTimeout)}
		}
		return ports.ProbeResult{Path: path, Err: fmt.Errorf("probe %s: %w", spec.Name, err)}
	}

	version := strings.TrimSpace(string(out))
	if idx := strings.IndexByte(version, '\n'); idx >= 0 {
		version = version[:idx]
	}
	return ports.ProbeResult{Available: true, Path: path, Version: version}
}

var _ ports.VersionProber = (*Prober)(nil)
