package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/doeshing/sage-go/internal/domain"
)

// progressLabel folds progress events into a one-line status.
type progressLabel struct {
	running map[string]bool
	done    int
	failed  int
	retries int
}

func newProgressLabel() *progressLabel {
	return &progressLabel{running: make(map[string]bool)}
}

// Apply updates the label state from one event and reports whether it changed.
func (p *progressLabel) Apply(event domain.ProgressEvent) bool {
	provider, _ := event.Payload["provider"].(string)
	switch event.Kind {
	case domain.ProgressProviderStarted:
		p.running[provider] = true
	case domain.ProgressProviderCompleted:
		delete(p.running, provider)
		p.done++
	case domain.ProgressProviderFailed:
		delete(p.running, provider)
		p.done++
		p.failed++
	case domain.ProgressRetryScheduled:
		p.retries++
	default:
		return false
	}
	return true
}

func (p *progressLabel) String() string {
	names := make([]string, 0, len(p.running))
	for name := range p.running {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	if len(names) > 0 {
		fmt.Fprintf(&b, "consulting %s", strings.Join(names, ", "))
	} else {
		b.WriteString("waiting")
	}
	fmt.Fprintf(&b, " (%d done", p.done)
	if p.failed > 0 {
		fmt.Fprintf(&b, ", %d failed", p.failed)
	}
	if p.retries > 0 {
		fmt.Fprintf(&b, ", %d retries", p.retries)
	}
	b.WriteString(")")
	return b.String()
}

// followSpinner keeps the spinner label current until events is closed.
func followSpinner(spinner *Spinner, events <-chan domain.ProgressEvent) {
	label := newProgressLabel()
	spinner.SetLabel(label.String())
	for event := range events {
		if label.Apply(event) {
			spinner.SetLabel(label.String())
		}
	}
}
