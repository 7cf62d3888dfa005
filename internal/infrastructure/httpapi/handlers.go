package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/doeshing/sage-go/internal/domain"
)

func (s *Server) handleConsult(w http.ResponseWriter, r *http.Request) {
	var body consultRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error(), Kind: "malformed_request"})
		return
	}

	outcome, err := s.opts.Consult.Run(r.Context(), body.toDomain())
	if err != nil {
		s.writeConsultError(w, outcome, err)
		return
	}
	s.writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) writeConsultError(w http.ResponseWriter, outcome domain.ConsultOutcome, err error) {
	resp := errorResponse{Error: err.Error()}

	var consultErr *domain.ConsultationError
	switch {
	case errors.Is(err, domain.ErrMalformedRequest):
		resp.Kind = "malformed_request"
		s.writeError(w, http.StatusBadRequest, resp)
	case errors.As(err, &consultErr):
		resp.Consultation = consultErr
		if outcome.Result.ID != "" {
			resp.Result = &outcome.Result
		}
		resp.Kind = consultErr.KindName()
		s.writeError(w, http.StatusUnprocessableEntity, resp)
	default:
		s.opts.Logger.Error("consultation failed", err, nil)
		s.writeError(w, http.StatusInternalServerError, resp)
	}
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	statuses := s.opts.Consult.Providers(r.Context(), r.URL.Query().Get("context"))
	s.writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleCacheList(w http.ResponseWriter, r *http.Request) {
	if s.opts.Cache == nil {
		s.writeError(w, http.StatusServiceUnavailable, errorResponse{Error: "cache disabled"})
		return
	}
	entries, err := s.opts.Cache.Entries()
	if err != nil {
		s.opts.Logger.Error("cache listing failed", err, nil)
		s.writeError(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })

	resp := cacheListResponse{
		Location: s.opts.Cache.Location(),
		Settings: s.opts.Cache.Settings(),
		Entries:  make([]cacheEntrySummary, 0, len(entries)),
	}
	for _, entry := range entries {
		summary := cacheEntrySummary{
			Key:       entry.Key,
			Scope:     entry.Scope,
			Providers: entry.Providers,
			Models:    entry.Models,
			CreatedAt: entry.CreatedAt.Format(domain.TimestampFormat),
		}
		if entry.Report != nil {
			summary.Recommendation = entry.Report.Recommendation
		}
		if expires := entry.ExpiresAt(); !expires.IsZero() {
			summary.ExpiresAt = expires.Format(domain.TimestampFormat)
		}
		resp.Entries = append(resp.Entries, summary)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.opts.Cache == nil {
		s.writeError(w, http.StatusServiceUnavailable, errorResponse{Error: "cache disabled"})
		return
	}
	if err := s.opts.Cache.Clear(); err != nil {
		s.opts.Logger.Error("cache clear failed", err, nil)
		s.writeError(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: s.opts.Version,
		Cache:   s.opts.Cache != nil,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.opts.Logger.Warn("response encoding failed", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, resp errorResponse) {
	s.writeJSON(w, status, resp)
}
