// Package consult runs one question against several providers and turns the
// answers into a consensus.
package consult

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/ports"
)

// Orchestrator fans a request out to providers and collects exactly one
// response per provider.
type Orchestrator struct {
	Invoker    ports.Invoker
	Prober     ports.AvailabilityProber
	Resolver   ports.ModelResolver
	Normalizer ports.Normalizer
	Progress   ports.ProgressEmitter
	Logger     ports.Logger

	Settings domain.ConsultationSettings
	Retry    domain.RetrySettings

	// Sleep waits between sequential retries. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// NewID mints consultation IDs.
	NewID func() string
}

// NewOrchestrator wires an orchestrator with settings taken from cfg.
func NewOrchestrator(cfg domain.Config, invoker ports.Invoker, prober ports.AvailabilityProber,
	resolver ports.ModelResolver, normalizer ports.Normalizer, progress ports.ProgressEmitter, logger ports.Logger,
) *Orchestrator {
	return &Orchestrator{
		Invoker:    invoker,
		Prober:     prober,
		Resolver:   resolver,
		Normalizer: normalizer,
		Progress:   progress,
		Logger:     logger,
		Settings:   cfg.Consultation,
		Retry:      cfg.GetRetry(),
	}
}

// Consult dispatches req to providers in parallel. The returned result always
// holds one response per provider. A *domain.ConsultationError is returned
// when no provider is usable or fewer than minRequired succeed; in the latter
// case the result is still populated.
func (o *Orchestrator) Consult(ctx context.Context, req domain.InvocationRequest, providers []domain.ProviderSpec, minRequired int) (domain.ConsultationResult, error) {
	if o.Invoker == nil {
		return domain.ConsultationResult{}, errors.New("consult.Orchestrator dependencies not satisfied")
	}
	if err := req.Validate(); err != nil {
		return domain.ConsultationResult{}, err
	}
	if minRequired <= 0 {
		minRequired = 1
	}

	run := &consultation{
		o:      o,
		req:    req,
		states: newTracker(o.logger()),
		result: domain.ConsultationResult{
			ID:        o.newID(),
			Request:   req,
			Requested: len(providers),
			StartedAt: time.Now().UTC(),
		},
	}
	names := make([]string, 0, len(providers))
	for _, spec := range providers {
		names = append(names, spec.Name)
		run.states.add(spec.Name)
	}
	o.emit(domain.ProgressConsultationStart, run.result.ID, map[string]interface{}{
		"providers": names,
		"scope":     req.Scope,
		"context":   req.Context,
	})

	// Availability checks count against the consultation deadline too.
	run.limit = o.deadline(req, providers)
	dctx, cancel := context.WithTimeout(ctx, run.limit)
	defer cancel()

	usable := run.available(dctx, providers)
	if len(usable) == 0 {
		return run.finish(minRequired, domain.ErrNoProvidersAvailable)
	}

	run.dispatch(dctx, usable)

	if failed := run.retryCandidates(usable); len(failed) > 0 && run.rateLimited(failed) {
		run.retrySequential(dctx, failed)
	}

	return run.finish(minRequired, nil)
}

// consultation is the mutable state of one Consult call.
type consultation struct {
	o      *Orchestrator
	req    domain.InvocationRequest
	states *tracker
	result domain.ConsultationResult
	limit  time.Duration
}

// available checks every provider concurrently and returns the usable ones in
// request order. Unavailable providers are recorded as skipped.
func (c *consultation) available(ctx context.Context, providers []domain.ProviderSpec) []domain.ProviderSpec {
	ready := make([]bool, len(providers))
	if c.o.Prober == nil {
		for i := range ready {
			ready[i] = true
		}
	} else {
		var wg sync.WaitGroup
		for i, spec := range providers {
			wg.Add(1)
			go func(i int, spec domain.ProviderSpec) {
				defer wg.Done()
				ready[i] = c.o.Prober.IsAvailable(ctx, spec)
			}(i, spec)
		}
		wg.Wait()
	}

	usable := make([]domain.ProviderSpec, 0, len(providers))
	for i, spec := range providers {
		if ready[i] {
			usable = append(usable, spec)
			continue
		}
		resp := domain.Failure(spec.Name, domain.StatusNotFound, "provider "+spec.Name+" is not available", 0)
		resp.State = c.states.move(spec.Name, domain.StateSkipped)
		c.result.Responses = append(c.result.Responses, resp)
		c.o.emit(domain.ProgressProviderUnavailable, c.result.ID, map[string]interface{}{
			"provider":   spec.Name,
			"executable": spec.Executable,
		})
	}
	return usable
}

// dispatch runs usable in parallel until all report or ctx, which carries the
// consultation deadline, expires.
func (c *consultation) dispatch(dctx context.Context, usable []domain.ProviderSpec) {
	limit := c.o.Settings.MaxParallel
	if limit <= 0 || limit > len(usable) {
		limit = len(usable)
	}
	sem := make(chan struct{}, limit)
	// Buffered to len(usable) so abandoned goroutines can always deliver.
	results := make(chan domain.ToolResponse, len(usable))

	for _, spec := range usable {
		go func(spec domain.ProviderSpec) {
			select {
			case sem <- struct{}{}:
			case <-dctx.Done():
				return
			}
			defer func() { <-sem }()
			if dctx.Err() != nil {
				return
			}
			results <- c.attempt(dctx, spec, 1)
		}(spec)
	}

	pending := make(map[string]domain.ProviderSpec, len(usable))
	for _, spec := range usable {
		pending[spec.Name] = spec
	}
	for len(pending) > 0 {
		select {
		case resp := <-results:
			delete(pending, resp.Provider)
			c.record(resp)
		case <-dctx.Done():
			// Late results are discarded; the buffer keeps their senders from blocking.
			for _, spec := range usable {
				if _, open := pending[spec.Name]; !open {
					continue
				}
				resp := domain.Failure(spec.Name, domain.StatusTimeout, "consultation deadline of "+c.limit.String()+" exceeded", c.limit)
				resp.Model = c.o.resolve(spec.Name, c.req)
				c.record(resp)
			}
			return
		}
	}
}

// attempt runs one invocation of spec and normalizes its output.
func (c *consultation) attempt(ctx context.Context, spec domain.ProviderSpec, n int) domain.ToolResponse {
	model := c.o.resolve(spec.Name, c.req)
	c.states.move(spec.Name, domain.StateRunning)
	c.o.emit(domain.ProgressProviderStarted, c.result.ID, map[string]interface{}{
		"provider": spec.Name,
		"model":    model,
		"attempt":  n,
	})

	resp := c.o.Invoker.Invoke(ctx, spec, c.req, model)
	resp.Provider = spec.Name
	if c.o.Normalizer != nil {
		resp = c.o.Normalizer.Normalize(spec.GetUnwrap(), resp)
	}
	resp.Attempts = n
	return resp
}

// record stores resp, moves the provider to its terminal state and reports it.
func (c *consultation) record(resp domain.ToolResponse) {
	resp.State = c.states.move(resp.Provider, domain.StateForStatus(resp.Status))

	replaced := false
	for i := range c.result.Responses {
		if c.result.Responses[i].Provider == resp.Provider {
			c.result.Responses[i] = resp
			replaced = true
			break
		}
	}
	if !replaced {
		c.result.Responses = append(c.result.Responses, resp)
	}

	payload := map[string]interface{}{
		"provider":    resp.Provider,
		"status":      string(resp.Status),
		"model":       resp.Model,
		"duration_ms": resp.Duration.Std().Milliseconds(),
		"attempts":    resp.Attempts,
	}
	kind := domain.ProgressProviderCompleted
	if !resp.Succeeded() {
		kind = domain.ProgressProviderFailed
		payload["error"] = resp.Error
	}
	c.o.emit(kind, c.result.ID, payload)
}

func (c *consultation) retryCandidates(usable []domain.ProviderSpec) []domain.ProviderSpec {
	var failed []domain.ProviderSpec
	for _, spec := range usable {
		if resp, ok := c.result.Response(spec.Name); ok && resp.Status.Retryable() {
			failed = append(failed, spec)
		}
	}
	return failed
}

// retrySequential retries failed providers one at a time with exponential
// backoff. A retry is only started when its backoff and the provider's full
// timeout fit in what is left of the consultation deadline; otherwise the
// provider keeps its last response.
func (c *consultation) retrySequential(ctx context.Context, failed []domain.ProviderSpec) {
	retry := c.o.Retry
	for _, spec := range failed {
		last, _ := c.result.Response(spec.Name)
		for n := last.Attempts + 1; n <= retry.MaxAttempts; n++ {
			wait := backoff(retry, n-1)
			if !fits(ctx, wait+spec.EffectiveTimeout(c.req.Timeout.Std())) {
				c.o.logger().Info("retry skipped, consultation deadline too close", map[string]interface{}{
					"provider": spec.Name,
					"attempt":  n,
				})
				break
			}
			c.states.move(spec.Name, domain.StateRetrying)
			c.o.emit(domain.ProgressRetryScheduled, c.result.ID, map[string]interface{}{
				"provider":   spec.Name,
				"attempt":    n,
				"backoff_ms": wait.Milliseconds(),
				"reason":     last.Error,
			})
			if err := c.o.sleep(ctx, wait); err != nil {
				last.Error = "retry abandoned: " + err.Error()
				last.Status = domain.StatusTimeout
				last.Parsed = nil
				last.State = c.states.move(spec.Name, domain.StateTimedOut)
				c.replace(last)
				return
			}
			last = c.attempt(ctx, spec, n)
			c.record(last)
			if !last.Status.Retryable() {
				break
			}
		}
	}
}

func (c *consultation) replace(resp domain.ToolResponse) {
	for i := range c.result.Responses {
		if c.result.Responses[i].Provider == resp.Provider {
			c.result.Responses[i] = resp
			return
		}
	}
}

func (c *consultation) finish(minRequired int, kind error) (domain.ConsultationResult, error) {
	c.result.States = c.states.snapshot()
	c.result.Tally()
	c.result.Duration = domain.Duration(time.Since(c.result.StartedAt))

	c.o.emit(domain.ProgressConsultationComplete, c.result.ID, map[string]interface{}{
		"requested":   c.result.Requested,
		"succeeded":   c.result.Succeeded,
		"ratio":       c.result.Ratio,
		"duration_ms": c.result.Duration.Std().Milliseconds(),
	})

	if kind == nil && c.result.Succeeded < minRequired {
		kind = domain.ErrInsufficientConsensus
	}
	if kind == nil {
		return c.result, nil
	}
	c.o.logger().Warn("consultation failed", map[string]interface{}{
		"id":        c.result.ID,
		"requested": c.result.Requested,
		"succeeded": c.result.Succeeded,
		"reason":    kind.Error(),
	})
	return c.result, &domain.ConsultationError{
		Kind:        kind,
		Requested:   c.result.Requested,
		Succeeded:   c.result.Succeeded,
		MinRequired: minRequired,
		Attempts:    c.result.Attempts(),
	}
}

// rateLimited reports whether the failures look like provider throttling:
// enough of them at once, or any whose output names a throttling pattern.
func (c *consultation) rateLimited(failed []domain.ProviderSpec) bool {
	if c.o.Retry.MaxAttempts <= 1 {
		return false
	}
	if c.o.Retry.MinFailures > 0 && len(failed) >= c.o.Retry.MinFailures {
		return true
	}
	for _, spec := range failed {
		resp, _ := c.result.Response(spec.Name)
		text := strings.ToLower(resp.Stderr + "\n" + resp.Error)
		for _, pattern := range c.o.Retry.Patterns {
			if pattern != "" && strings.Contains(text, strings.ToLower(pattern)) {
				return true
			}
		}
	}
	return false
}

// deadline is the configured consultation deadline, or the longest effective
// provider timeout plus a grace period.
func (o *Orchestrator) deadline(req domain.InvocationRequest, usable []domain.ProviderSpec) time.Duration {
	if o.Settings.Deadline > 0 {
		return o.Settings.Deadline.Std()
	}
	var longest time.Duration
	for _, spec := range usable {
		if t := spec.EffectiveTimeout(req.Timeout.Std()); t > longest {
			longest = t
		}
	}
	return longest + domain.DeadlineGrace
}

func (o *Orchestrator) resolve(provider string, req domain.InvocationRequest) string {
	if o.Resolver == nil {
		return ""
	}
	return o.Resolver.Resolve(provider, req.ModelOverrides, req.Context)
}

func (o *Orchestrator) emit(kind domain.ProgressKind, id string, payload map[string]interface{}) {
	if o.Progress != nil {
		o.Progress.Emit(kind, id, payload)
	}
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	if o.Sleep != nil {
		return o.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) newID() string {
	if o.NewID != nil {
		return o.NewID()
	}
	return uuid.NewString()
}

func (o *Orchestrator) logger() ports.Logger {
	if o.Logger == nil {
		return nopLogger{}
	}
	return o.Logger
}

// fits reports whether d can elapse before ctx's deadline.
func fits(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	deadline, ok := ctx.Deadline()
	return !ok || time.Until(deadline) >= d
}

// backoff returns base * 2^(retry-1), capped at max.
func backoff(r domain.RetrySettings, retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	wait := r.BaseBackoff.Std()
	limit := r.MaxBackoff.Std()
	for i := 1; i < retry; i++ {
		wait *= 2
		if limit > 0 && wait >= limit {
			return limit
		}
	}
	if limit > 0 && wait > limit {
		return limit
	}
	return wait
}

// tracker guards per-provider invocation states.
type tracker struct {
	mu     sync.Mutex
	states map[string]domain.InvocationState
	logger ports.Logger
}

func newTracker(logger ports.Logger) *tracker {
	return &tracker{states: make(map[string]domain.InvocationState), logger: logger}
}

func (t *tracker) add(provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[provider] = domain.StatePending
}

// move applies a transition and returns the resulting state. Illegal
// transitions are rejected and logged; the state is left unchanged.
func (t *tracker) move(provider string, next domain.InvocationState) domain.InvocationState {
	t.mu.Lock()
	defer t.mu.Unlock()
	current, ok := t.states[provider]
	if !ok {
		current = domain.StatePending
	}
	moved, err := current.Transition(next)
	if err != nil {
		t.logger.Warn("rejected state transition", map[string]interface{}{
			"provider": provider,
			"error":    err.Error(),
		})
	}
	t.states[provider] = moved
	return moved
}

func (t *tracker) snapshot() map[string]domain.InvocationState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]domain.InvocationState, len(t.states))
	for k, v := range t.states {
		out[k] = v
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Debug(string, map[string]interface{})        {}
func (nopLogger) Info(string, map[string]interface{})         {}
func (nopLogger) Warn(string, map[string]interface{})         {}
func (nopLogger) Error(string, error, map[string]interface{}) {}
