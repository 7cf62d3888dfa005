package consensus

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/sage-go/internal/domain"
)

func uniform(score float64) map[domain.Dimension]float64 {
	scores := make(map[domain.Dimension]float64, len(domain.Dimensions))
	for _, dim := range domain.Dimensions {
		scores[dim] = score
	}
	return scores
}

func scored(provider string, scores map[domain.Dimension]float64, issues ...domain.Issue) domain.ToolResponse {
	return domain.ToolResponse{
		Provider: provider,
		Status:   domain.StatusSuccess,
		Parsed: &domain.ParsedContent{
			Structured: true,
			Assessment: &domain.Assessment{Scores: scores, Issues: issues, Summary: provider + " summary"},
		},
	}
}

func verdictOnly(provider string, verdict domain.Recommendation) domain.ToolResponse {
	return domain.ToolResponse{
		Provider: provider,
		Status:   domain.StatusSuccess,
		Parsed:   &domain.ParsedContent{Structured: true, Assessment: &domain.Assessment{Verdict: verdict}},
	}
}

func result(responses ...domain.ToolResponse) domain.ConsultationResult {
	r := domain.ConsultationResult{ID: "c-1", Responses: responses, Requested: len(responses)}
	r.Tally()
	return r
}

func defaultBuilder() *Builder {
	return NewBuilder(domain.DefaultThresholds, ExactMatcher{})
}

func TestBuildStrongApprove(t *testing.T) {
	report, err := defaultBuilder().Build(result(
		scored("a", uniform(8.0)),
		scored("b", uniform(7.5)),
		scored("c", uniform(8.5)),
	))
	require.NoError(t, err)

	assert.InDelta(t, 8.0, report.OverallScore, 1e-9)
	assert.InDelta(t, 0.1667, report.Variance, 1e-3)
	assert.Equal(t, domain.AgreementStrong, report.Agreement)
	assert.Equal(t, domain.RecommendApprove, report.Recommendation)
	assert.Equal(t, []string{"a", "b", "c"}, report.Contributors)
	assert.Equal(t, 1.0, report.Ratio)
}

func TestBuildConflictedRevise(t *testing.T) {
	report, err := defaultBuilder().Build(result(
		scored("a", uniform(3.0)),
		scored("b", uniform(9.0)),
	))
	require.NoError(t, err)

	assert.InDelta(t, 6.0, report.OverallScore, 1e-9)
	assert.InDelta(t, 9.0, report.Variance, 1e-9)
	assert.Equal(t, domain.AgreementConflicted, report.Agreement)
	assert.Equal(t, domain.RecommendRevise, report.Recommendation)
}

func TestOverallIsMeanOfDimensionMeans(t *testing.T) {
	report, err := defaultBuilder().Build(result(
		scored("a", map[domain.Dimension]float64{domain.DimensionClarity: 6, domain.DimensionRisk: 2}),
		scored("b", map[domain.Dimension]float64{domain.DimensionClarity: 8}),
	))
	require.NoError(t, err)

	// clarity mean 7 over a and b; risk mean 2 from a only.
	assert.InDelta(t, 7.0, report.Dimensions[domain.DimensionClarity].Mean, 1e-9)
	assert.Equal(t, []string{"a"}, report.Dimensions[domain.DimensionRisk].Contributors)
	assert.InDelta(t, 4.5, report.OverallScore, 1e-9)
	_, hasFeasibility := report.Dimensions[domain.DimensionFeasibility]
	assert.False(t, hasFeasibility, "unreported dimensions must be excluded, not zero")

	// provider overalls: a=4, b=8 -> variance 4.
	assert.InDelta(t, 4.0, report.ProviderScores["a"], 1e-9)
	assert.InDelta(t, 4.0, report.Variance, 1e-9)
}

func TestBuildExcludesFailuresAndUnscored(t *testing.T) {
	r := result(
		scored("a", uniform(9)),
		domain.ToolResponse{Provider: "b", Status: domain.StatusTimeout},
		domain.ToolResponse{Provider: "c", Status: domain.StatusSuccess, Parsed: &domain.ParsedContent{Text: "prose only"}},
	)
	report, err := defaultBuilder().Build(r)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 3, report.Requested)
	assert.Equal(t, []string{"a", "c"}, report.Contributors)
	assert.InDelta(t, 9.0, report.OverallScore, 1e-9)
	assert.Equal(t, 0.0, report.Variance)
	assert.Equal(t, domain.AgreementStrong, report.Agreement)
}

func TestBuildRejectsZeroSuccesses(t *testing.T) {
	_, err := defaultBuilder().Build(result(
		domain.ToolResponse{Provider: "a", Status: domain.StatusTimeout},
		domain.ToolResponse{Provider: "b", Status: domain.StatusNotFound},
	))
	assert.True(t, errors.Is(err, domain.ErrNoSuccessfulResponses))
}

func TestBuildVerdictFallback(t *testing.T) {
	tests := []struct {
		name      string
		responses []domain.ToolResponse
		want      domain.Recommendation
	}{
		{
			name:      "plurality approve",
			responses: []domain.ToolResponse{verdictOnly("a", domain.RecommendApprove), verdictOnly("b", domain.RecommendApprove), verdictOnly("c", domain.RecommendReject)},
			want:      domain.RecommendApprove,
		},
		{
			name:      "tie goes to the cautious verdict",
			responses: []domain.ToolResponse{verdictOnly("a", domain.RecommendApprove), verdictOnly("b", domain.RecommendReject)},
			want:      domain.RecommendReject,
		},
		{
			name:      "no verdicts means revise",
			responses: []domain.ToolResponse{{Provider: "a", Status: domain.StatusSuccess, Parsed: &domain.ParsedContent{Text: "hmm"}}},
			want:      domain.RecommendRevise,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := defaultBuilder().Build(result(tt.responses...))
			require.NoError(t, err)
			assert.False(t, report.Scored)
			assert.Equal(t, tt.want, report.Recommendation)
		})
	}
}

func TestBuildOverallScoreOnly(t *testing.T) {
	overall := 2.5
	resp := domain.ToolResponse{
		Provider: "a",
		Status:   domain.StatusSuccess,
		Parsed:   &domain.ParsedContent{Assessment: &domain.Assessment{Overall: &overall}},
	}
	report, err := defaultBuilder().Build(result(resp))
	require.NoError(t, err)
	assert.True(t, report.Scored)
	assert.Equal(t, domain.RecommendReject, report.Recommendation)
}

func TestBuildIgnoresCompletionOrder(t *testing.T) {
	responses := []domain.ToolResponse{
		scored("alpha", map[domain.Dimension]float64{domain.DimensionClarity: 7.1, domain.DimensionRisk: 3.3},
			domain.Issue{Description: "No rollback", Severity: domain.SeverityHigh}),
		scored("beta", uniform(6.7),
			domain.Issue{Description: "no rollback.", Severity: domain.SeverityCritical, Locations: []string{"deploy.md"}}),
		scored("gamma", map[domain.Dimension]float64{domain.DimensionFeasibility: 9.9, domain.DimensionClarity: 2.2},
			domain.Issue{Description: "Missing tests", Severity: domain.SeverityLow}),
		scored("delta", uniform(5.05)),
		{Provider: "eps", Status: domain.StatusExecutionError},
	}
	want, err := defaultBuilder().Build(result(responses...))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := append([]domain.ToolResponse(nil), responses...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, err := defaultBuilder().Build(result(shuffled...))
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("report depends on response order (-want +got):\n%s", diff)
		}
	}

	require.Len(t, want.Issues, 2)
	assert.Equal(t, domain.SeverityCritical, want.Issues[0].Severity)
	assert.Equal(t, []string{"alpha", "beta"}, want.Issues[0].FlaggedBy)
	assert.Equal(t, []string{"deploy.md"}, want.Issues[0].Locations)
}

func TestFromConfigUsesThresholds(t *testing.T) {
	cfg := domain.Config{Consensus: domain.ConsensusSettings{Thresholds: domain.Thresholds{ApproveMin: 9.5, RejectMax: 2}}}
	report, err := FromConfig(cfg).Build(result(scored("a", uniform(9))))
	require.NoError(t, err)
	assert.Equal(t, domain.RecommendRevise, report.Recommendation)
}
