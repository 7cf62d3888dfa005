package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/doeshing/sage-go/internal/domain"
)

const (
	eventBuffer       = 64
	heartbeatInterval = 15 * time.Second
)

// handleEvents streams progress events as server-sent events. The optional
// "consultation" query parameter restricts the stream to one consultation.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.opts.Events == nil {
		s.writeError(w, http.StatusServiceUnavailable, errorResponse{Error: "progress stream unavailable"})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}

	events, unsubscribe := s.opts.Events.Subscribe(eventBuffer)
	defer unsubscribe()
	only := r.URL.Query().Get("consultation")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event, open := <-events:
			if !open {
				return
			}
			if only != "" && event.ConsultationID != only {
				continue
			}
			if err := writeEvent(w, event); err != nil {
				s.opts.Logger.Debug("event stream closed", map[string]interface{}{"error": err.Error()})
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event domain.ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Kind, data)
	return err
}
