package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Provider-side failures. These are recorded in ToolResponse and never
// escape the orchestrator.
var (
	ErrProviderNotFound      = errors.New("provider executable not found")
	ErrProviderTimeout       = errors.New("provider timed out")
	ErrProviderInvalidOutput = errors.New("provider returned invalid output")
	ErrProviderExecution     = errors.New("provider execution failed")
)

// Consultation-level failures surfaced to callers.
var (
	ErrNoProvidersAvailable  = errors.New("no providers available")
	ErrInsufficientConsensus = errors.New("insufficient consensus")
	ErrNoSuccessfulResponses = errors.New("consultation has no successful responses")
	ErrMalformedRequest      = errors.New("malformed request")
)

// AttemptSummary is one provider's outcome inside a ConsultationError.
type AttemptSummary struct {
	Provider string `json:"provider"`
	Status   Status `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Attempts int    `json:"attempts"`
}

// ConsultationError is a terminal consultation failure. errors.Is matches
// its Kind (ErrNoProvidersAvailable or ErrInsufficientConsensus).
type ConsultationError struct {
	Kind        error            `json:"-"`
	Requested   int              `json:"requested"`
	Succeeded   int              `json:"succeeded"`
	MinRequired int              `json:"min_required"`
	Attempts    []AttemptSummary `json:"attempts"`
}

func (e *ConsultationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v: %d/%d providers succeeded (need %d)", e.Kind, e.Succeeded, e.Requested, e.MinRequired)
	for _, attempt := range e.Attempts {
		fmt.Fprintf(&b, "; %s=%s", attempt.Provider, attempt.Status)
		if attempt.Detail != "" {
			fmt.Fprintf(&b, " (%s)", attempt.Detail)
		}
	}
	return b.String()
}

// KindName is the machine-readable name of Kind, as used in JSON output.
func (e *ConsultationError) KindName() string {
	switch {
	case e.Kind == nil:
		return ""
	case errors.Is(e.Kind, ErrNoProvidersAvailable):
		return "no_providers_available"
	case errors.Is(e.Kind, ErrInsufficientConsensus):
		return "insufficient_consensus"
	default:
		return strings.ReplaceAll(e.Kind.Error(), " ", "_")
	}
}

// MarshalJSON adds the kind name to the encoded fields.
func (e *ConsultationError) MarshalJSON() ([]byte, error) {
	type fields ConsultationError
	return json.Marshal(struct {
		Kind string `json:"kind"`
		*fields
	}{Kind: e.KindName(), fields: (*fields)(e)})
}

func (e *ConsultationError) Is(target error) bool {
	return target == e.Kind
}

func (e *ConsultationError) Unwrap() error {
	return e.Kind
}
