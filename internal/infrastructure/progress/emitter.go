// Package progress publishes consultation lifecycle events.
package progress

import (
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/ports"
)

// Emitter builds progress events and fans them out to subscribers. Sends
// never block: a subscriber whose buffer is full misses the event.
// A nil *Emitter is a valid no-op emitter.
type Emitter struct {
	logger ports.Logger
	now    func() time.Time

	seq     atomic.Uint64
	dropped atomic.Uint64

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan domain.ProgressEvent
}

// NewEmitter creates an emitter. logger may be nil; when set every event is
// also logged at debug level.
func NewEmitter(logger ports.Logger) *Emitter {
	return &Emitter{
		logger: logger,
		now:    time.Now,
		subs:   make(map[uint64]chan domain.ProgressEvent),
	}
}

// Emit records one event.
func (e *Emitter) Emit(kind domain.ProgressKind, consultationID string, payload map[string]interface{}) {
	if e == nil {
		return
	}
	event := domain.ProgressEvent{
		ID:             uuid.NewString(),
		Seq:            e.seq.Add(1),
		Kind:           kind,
		ConsultationID: consultationID,
		Timestamp:      e.now().UTC(),
		Payload:        copyPayload(payload),
	}

	if e.logger != nil {
		fields := map[string]interface{}{
			"kind":         string(kind),
			"consultation": consultationID,
			"seq":          event.Seq,
		}
		for k, v := range event.Payload {
			fields[k] = v
		}
		e.logger.Debug("progress", fields)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- event:
		default:
			e.dropped.Add(1)
		}
	}
}

// Subscribe registers a buffered listener. The returned cancel function
// unregisters it and closes the channel; it is safe to call more than once.
func (e *Emitter) Subscribe(buffer int) (<-chan domain.ProgressEvent, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan domain.ProgressEvent, buffer)
	if e == nil {
		close(ch)
		return ch, func() {}
	}

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = ch
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			close(ch)
			e.mu.Unlock()
		})
	}
}

// Dropped counts events lost to full subscriber buffers.
func (e *Emitter) Dropped() uint64 {
	if e == nil {
		return 0
	}
	return e.dropped.Load()
}

// WriteJSONLines copies events to w, one JSON document per line, until the
// channel is closed.
func WriteJSONLines(w io.Writer, events <-chan domain.ProgressEvent) error {
	enc := json.NewEncoder(w)
	for event := range events {
		if err := enc.Encode(event); err != nil {
			return err
		}
	}
	return nil
}

func copyPayload(payload map[string]interface{}) map[string]interface{} {
	if len(payload) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	return out
}

var _ ports.ProgressSource = (*Emitter)(nil)
