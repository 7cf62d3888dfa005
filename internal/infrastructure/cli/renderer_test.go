package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/doeshing/sage-go/internal/domain"
)

func TestRenderOutcome(t *testing.T) {
	outcome := domain.ConsultOutcome{
		Report: domain.ConsensusReport{
			Recommendation: domain.RecommendRevise,
			OverallScore:   6.5,
			Agreement:      domain.AgreementModerate,
			Scored:         true,
			Succeeded:      2,
			Requested:      3,
			Contributors:   []string{"claude", "gemini"},
			Dimensions: map[domain.Dimension]domain.DimensionScore{
				domain.DimensionRisk: {Mean: 5, Scores: map[string]float64{"gemini": 4, "claude": 6}},
			},
			Issues: []domain.Issue{{Description: "No rollback", Severity: domain.SeverityCritical, FlaggedBy: []string{"claude"}}},
		},
		Result: domain.ConsultationResult{Responses: []domain.ToolResponse{
			{Provider: "claude", Status: domain.StatusSuccess},
			{Provider: "codex", Status: domain.StatusTimeout, Error: "timed out after 2m0s", Duration: domain.Duration(2 * time.Minute), Attempts: 1},
		}},
	}

	var buf bytes.Buffer
	RenderOutcome(&buf, outcome)
	out := buf.String()

	for _, want := range []string{
		"Consensus: REVISE (score 6.5/10, agreement moderate)",
		"Providers: 2/3 succeeded (claude, gemini)",
		"5.0  (claude 6.0, gemini 4.0)",
		"[CRITICAL] No rollback (claude)",
		"codex: timeout after 2m0s - timed out after 2m0s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "served from cache") {
		t.Error("fresh outcome must not claim a cache hit")
	}
}

func TestRenderOutcomeUnscored(t *testing.T) {
	var buf bytes.Buffer
	RenderOutcome(&buf, domain.ConsultOutcome{
		FromCache: true,
		Report:    domain.ConsensusReport{Recommendation: domain.RecommendApprove, Agreement: domain.AgreementStrong},
	})
	out := buf.String()
	if !strings.Contains(out, "no numeric scores") || !strings.Contains(out, "served from cache") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestProgressLabel(t *testing.T) {
	label := newProgressLabel()
	events := []domain.ProgressEvent{
		{Kind: domain.ProgressProviderStarted, Payload: map[string]interface{}{"provider": "gemini"}},
		{Kind: domain.ProgressProviderStarted, Payload: map[string]interface{}{"provider": "claude"}},
		{Kind: domain.ProgressCacheCheck},
		{Kind: domain.ProgressProviderFailed, Payload: map[string]interface{}{"provider": "gemini"}},
		{Kind: domain.ProgressRetryScheduled, Payload: map[string]interface{}{"provider": "gemini"}},
	}
	changed := 0
	for _, e := range events {
		if label.Apply(e) {
			changed++
		}
	}
	if changed != 4 {
		t.Errorf("changed = %d, want 4", changed)
	}
	if got := label.String(); got != "consulting claude (1 done, 1 failed, 1 retries)" {
		t.Errorf("label = %q", got)
	}
}
