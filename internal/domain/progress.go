package domain

import "time"

// ProgressKind names a lifecycle event.
type ProgressKind string

const (
	ProgressCacheCheck           ProgressKind = "cache_check"
	ProgressCacheHit             ProgressKind = "cache_hit"
	ProgressCacheMiss            ProgressKind = "cache_miss"
	ProgressCacheSave            ProgressKind = "cache_save"
	ProgressConsultationStart    ProgressKind = "consultation_start"
	ProgressProviderStarted      ProgressKind = "provider_started"
	ProgressProviderCompleted    ProgressKind = "provider_completed"
	ProgressProviderFailed       ProgressKind = "provider_failed"
	ProgressProviderUnavailable  ProgressKind = "provider_unavailable"
	ProgressRetryScheduled       ProgressKind = "retry_scheduled"
	ProgressConsultationComplete ProgressKind = "consultation_complete"
	ProgressConsensusReady       ProgressKind = "consensus_ready"
)

// ProgressEvent is one entry in the append-only progress stream.
type ProgressEvent struct {
	ID             string                 `json:"id"`
	Seq            uint64                 `json:"seq"`
	Kind           ProgressKind           `json:"kind"`
	ConsultationID string                 `json:"consultation_id,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
}
