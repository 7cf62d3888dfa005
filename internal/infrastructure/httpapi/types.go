package httpapi

import "github.com/doeshing/sage-go/internal/domain"

// consultRequest is the flat JSON body of POST /api/v1/consultations.
type consultRequest struct {
	Prompt      string            `json:"prompt"`
	Content     string            `json:"content,omitempty"`
	Scope       string            `json:"scope,omitempty"`
	Context     string            `json:"context,omitempty"`
	Providers   []string          `json:"providers,omitempty"`
	Models      map[string]string `json:"models,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ExtraArgs   []string          `json:"extra_args,omitempty"`
	Timeout     domain.Duration   `json:"timeout,omitempty"`
	MinRequired int               `json:"min_required,omitempty"`
	Refresh     bool              `json:"refresh,omitempty"`
}

func (r consultRequest) toDomain() domain.ConsultRequest {
	return domain.ConsultRequest{
		Invocation: domain.InvocationRequest{
			Prompt:         r.Prompt,
			Content:        r.Content,
			Metadata:       r.Metadata,
			ModelOverrides: r.Models,
			Timeout:        r.Timeout,
			Scope:          r.Scope,
			Context:        r.Context,
			ExtraArgs:      r.ExtraArgs,
		},
		Providers:   r.Providers,
		MinRequired: r.MinRequired,
		Refresh:     r.Refresh,
	}
}

type errorResponse struct {
	Error        string                     `json:"error"`
	Kind         string                     `json:"kind,omitempty"`
	Consultation *domain.ConsultationError  `json:"consultation,omitempty"`
	Result       *domain.ConsultationResult `json:"result,omitempty"`
}

type cacheEntrySummary struct {
	Key            string                `json:"key"`
	Scope          string                `json:"scope,omitempty"`
	Providers      []string              `json:"providers"`
	Models         []string              `json:"models"`
	Recommendation domain.Recommendation `json:"recommendation,omitempty"`
	CreatedAt      string                `json:"created_at"`
	ExpiresAt      string                `json:"expires_at,omitempty"`
}

type cacheListResponse struct {
	Location string               `json:"location"`
	Settings domain.CacheSettings `json:"settings"`
	Entries  []cacheEntrySummary  `json:"entries"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Cache   bool   `json:"cache"`
}
