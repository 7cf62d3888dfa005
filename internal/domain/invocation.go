package domain

import (
	"fmt"
	"strings"
	"time"
)

// InvocationRequest is one consultation question as the caller supplies it.
// It is read-only once handed to the orchestrator.
type InvocationRequest struct {
	Prompt string `json:"prompt"`

	// Content is the document being consulted about. It is sent to providers
	// after the prompt and hashed into the cache key as its own field.
	Content string `json:"content,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`

	// ModelOverrides maps provider name to model. The "*" key applies to
	// every provider without its own entry.
	ModelOverrides map[string]string `json:"model_overrides,omitempty"`

	Timeout Duration `json:"timeout,omitempty"`
	Scope   string   `json:"scope,omitempty"`

	// Context selects the routing table entry and the provider list
	// (e.g. "architecture", "security", "plan-review").
	Context string `json:"context,omitempty"`

	// ExtraArgs are caller-supplied flags. They pass through the flag policy
	// before reaching any provider.
	ExtraArgs []string `json:"extra_args,omitempty"`
}

// Validate rejects requests that are programmer errors rather than provider failures.
func (r InvocationRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("%w: prompt is empty", ErrMalformedRequest)
	}
	if r.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrMalformedRequest)
	}
	return nil
}

// Payload is the text a provider receives: the prompt, followed by the
// content after a blank line when content is present.
func (r InvocationRequest) Payload() string {
	if r.Content == "" {
		return r.Prompt
	}
	return strings.TrimRight(r.Prompt, "\n") + "\n\n" + r.Content
}

// Status is the closed set of invocation outcomes.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusTimeout        Status = "timeout"
	StatusNotFound       Status = "not_found"
	StatusInvalidOutput  Status = "invalid_output"
	StatusExecutionError Status = "execution_error"
)

// Err maps a failure status to its sentinel error. Success yields nil.
func (s Status) Err() error {
	switch s {
	case StatusTimeout:
		return ErrProviderTimeout
	case StatusNotFound:
		return ErrProviderNotFound
	case StatusInvalidOutput:
		return ErrProviderInvalidOutput
	case StatusExecutionError:
		return ErrProviderExecution
	default:
		return nil
	}
}

// Retryable reports whether the rate-limit fallback may retry this status.
func (s Status) Retryable() bool {
	return s == StatusExecutionError || s == StatusInvalidOutput
}

// ParsedContent is the canonical envelope recovered from provider output.
type ParsedContent struct {
	Text       string      `json:"text"`
	Structured bool        `json:"structured"`
	Assessment *Assessment `json:"assessment,omitempty"`
	// Empty marks output that is valid but carries no text.
	Empty bool `json:"empty,omitempty"`
}

// Assessment is the structured judgment a provider returned.
type Assessment struct {
	Scores  map[Dimension]float64 `json:"scores,omitempty"`
	Overall *float64              `json:"overall,omitempty"`
	Verdict Recommendation        `json:"verdict,omitempty"`
	Issues  []Issue               `json:"issues,omitempty"`
	Summary string                `json:"summary,omitempty"`
}

// HasScores reports whether any numeric score was recovered.
func (a *Assessment) HasScores() bool {
	return a != nil && (len(a.Scores) > 0 || a.Overall != nil)
}

// ToolResponse is the outcome of one provider invocation. Exactly one is
// produced per provider per consultation.
type ToolResponse struct {
	Provider string          `json:"provider"`
	Status   Status          `json:"status"`
	Raw      string          `json:"raw,omitempty"`
	Stderr   string          `json:"stderr,omitempty"`
	Parsed   *ParsedContent  `json:"parsed,omitempty"`
	Model    string          `json:"model,omitempty"`
	Duration Duration        `json:"duration"`
	ExitCode int             `json:"exit_code"`
	Error    string          `json:"error,omitempty"`
	Attempts int             `json:"attempts"`
	State    InvocationState `json:"state,omitempty"`
}

// Succeeded reports whether the response is usable for consensus.
func (r ToolResponse) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Validate checks that status and parsed content do not contradict each other.
func (r ToolResponse) Validate() error {
	switch r.Status {
	case StatusSuccess:
		if r.Parsed == nil {
			return fmt.Errorf("%s: success without parsed content", r.Provider)
		}
	case StatusInvalidOutput:
	case StatusTimeout, StatusNotFound, StatusExecutionError:
		if r.Parsed != nil {
			return fmt.Errorf("%s: %s carries parsed content", r.Provider, r.Status)
		}
	default:
		return fmt.Errorf("%s: unknown status %q", r.Provider, r.Status)
	}
	return nil
}

// Failure builds a failed response with no parsed content.
func Failure(provider string, status Status, detail string, elapsed time.Duration) ToolResponse {
	return ToolResponse{
		Provider: provider,
		Status:   status,
		Error:    detail,
		Duration: Duration(elapsed),
		Attempts: 1,
	}
}
