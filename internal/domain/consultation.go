package domain

import "time"

// ConsultationResult collects every provider response for one request.
// Responses are kept in completion order.
type ConsultationResult struct {
	ID        string                     `json:"id"`
	Request   InvocationRequest          `json:"request"`
	Responses []ToolResponse             `json:"responses"`
	Requested int                        `json:"requested"`
	Succeeded int                        `json:"succeeded"`
	Ratio     float64                    `json:"ratio"`
	States    map[string]InvocationState `json:"states,omitempty"`
	StartedAt time.Time                  `json:"started_at"`
	Duration  Duration                   `json:"duration"`
}

// Successful returns the responses with status success.
func (r ConsultationResult) Successful() []ToolResponse {
	var out []ToolResponse
	for _, resp := range r.Responses {
		if resp.Succeeded() {
			out = append(out, resp)
		}
	}
	return out
}

// Response returns the response recorded for provider.
func (r ConsultationResult) Response(provider string) (ToolResponse, bool) {
	for _, resp := range r.Responses {
		if resp.Provider == provider {
			return resp, true
		}
	}
	return ToolResponse{}, false
}

// Attempts summarizes every provider outcome for error reporting.
func (r ConsultationResult) Attempts() []AttemptSummary {
	out := make([]AttemptSummary, 0, len(r.Responses))
	for _, resp := range r.Responses {
		out = append(out, AttemptSummary{
			Provider: resp.Provider,
			Status:   resp.Status,
			Detail:   resp.Error,
			Attempts: resp.Attempts,
		})
	}
	return out
}

// Tally recomputes Succeeded and Ratio from Responses.
func (r *ConsultationResult) Tally() {
	r.Succeeded = 0
	for _, resp := range r.Responses {
		if resp.Succeeded() {
			r.Succeeded++
		}
	}
	r.Ratio = 0
	if r.Requested > 0 {
		r.Ratio = float64(r.Succeeded) / float64(r.Requested)
	}
}

// ConsultRequest is the use-case input: the question plus dispatch options.
type ConsultRequest struct {
	Invocation InvocationRequest `json:"invocation"`

	// Providers restricts the configured provider list by name. Empty keeps all.
	Providers []string `json:"providers,omitempty"`

	// MinRequired overrides consultation.min_required when > 0.
	MinRequired int `json:"min_required,omitempty"`

	// Refresh skips the cache read but still writes the fresh result.
	Refresh bool `json:"refresh,omitempty"`
}

// ConsultOutcome is what the use case hands back to callers.
type ConsultOutcome struct {
	Result    ConsultationResult `json:"result"`
	Report    ConsensusReport    `json:"report"`
	CacheKey  string             `json:"cache_key"`
	FromCache bool               `json:"from_cache"`
}
