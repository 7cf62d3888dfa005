package cli

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

const spinnerFrames = `|/-\`

// Spinner redraws one status line on a terminal until stopped.
type Spinner struct {
	w        io.Writer
	interval time.Duration
	label    atomic.Value

	startOnce sync.Once
	stopOnce  sync.Once
	quit      chan struct{}
	finished  chan struct{}
}

func NewSpinner(w io.Writer) *Spinner {
	s := &Spinner{
		w:        w,
		interval: 100 * time.Millisecond,
		quit:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	s.label.Store("")
	return s
}

// SetLabel is safe to call while the spinner runs.
func (s *Spinner) SetLabel(label string) {
	s.label.Store(label)
}

func (s *Spinner) Start() {
	s.startOnce.Do(func() { go s.loop() })
}

// Stop clears the line. Calling Stop on a spinner that never started is a no-op.
func (s *Spinner) Stop() {
	started := true
	s.startOnce.Do(func() { started = false })
	s.stopOnce.Do(func() {
		close(s.quit)
		if started {
			<-s.finished
		}
	})
}

func (s *Spinner) loop() {
	defer close(s.finished)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		fmt.Fprintf(s.w, "\r\033[K%c %s", spinnerFrames[frame%len(spinnerFrames)], s.label.Load().(string))
		select {
		case <-s.quit:
			fmt.Fprint(s.w, "\r\033[K")
			return
		case <-ticker.C:
		}
	}
}
