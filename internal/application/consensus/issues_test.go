package consensus

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/doeshing/sage-go/internal/domain"
)

func sampleIssues() []domain.Issue {
	return []domain.Issue{
		{Description: "Missing error handling in loader", Severity: domain.SeverityMedium, FlaggedBy: []string{"claude"}, Locations: []string{"loader.go"}},
		{Description: "missing error handling in loader.", Severity: domain.SeverityHigh, FlaggedBy: []string{"gemini"}},
		{Description: "Error handling missing in the loader", Severity: domain.SeverityLow, FlaggedBy: []string{"codex"}, Locations: []string{"loader.go"}},
		{Description: "No rollout plan", Severity: domain.SeverityCritical, FlaggedBy: []string{"codex"}},
		{Description: "Naming is inconsistent", Severity: domain.SeverityLow, FlaggedBy: []string{"claude"}, Locations: []string{"api.go"}},
	}
}

func reversed(in []domain.Issue) []domain.Issue {
	out := make([]domain.Issue, len(in))
	for i, issue := range in {
		out[len(in)-1-i] = issue
	}
	return out
}

func TestMergeIssuesExact(t *testing.T) {
	merged := MergeIssues(sampleIssues(), ExactMatcher{})

	assert.Len(t, merged, 4)
	assert.Equal(t, "No rollout plan", merged[0].Description)
	assert.Equal(t, domain.SeverityHigh, merged[1].Severity)
	assert.Equal(t, []string{"claude", "gemini"}, merged[1].FlaggedBy)
	assert.Equal(t, []string{"loader.go"}, merged[1].Locations)
}

func TestMergeIssuesFuzzy(t *testing.T) {
	merged := MergeIssues(sampleIssues(), FuzzyMatcher{Threshold: 0.6})

	assert.Len(t, merged, 3)
	var loader domain.Issue
	for _, issue := range merged {
		if issue.Locations != nil && issue.Locations[0] == "loader.go" {
			loader = issue
		}
	}
	assert.Equal(t, []string{"claude", "codex", "gemini"}, loader.FlaggedBy)
	assert.Equal(t, domain.SeverityHigh, loader.Severity)
}

func TestFuzzyRequiresSharedLocation(t *testing.T) {
	m := FuzzyMatcher{Threshold: 0.5}
	a := domain.Issue{Description: "cache key ignores models", Locations: []string{"cache.go"}}
	b := domain.Issue{Description: "cache key ignores model list", Locations: []string{"other.go"}}
	assert.False(t, m.Same(a, b))
	b.Locations = []string{"cache.go"}
	assert.True(t, m.Same(a, b))
	assert.True(t, m.Same(b, a))
}

func TestMergeIssuesCommutativeAndIdempotent(t *testing.T) {
	for _, matcher := range []Matcher{ExactMatcher{}, FuzzyMatcher{Threshold: 0.6}} {
		forward := MergeIssues(sampleIssues(), matcher)
		backward := MergeIssues(reversed(sampleIssues()), matcher)
		if diff := cmp.Diff(forward, backward); diff != "" {
			t.Fatalf("%T: merge depends on order (-forward +backward):\n%s", matcher, diff)
		}

		again := MergeIssues(forward, matcher)
		if diff := cmp.Diff(forward, again); diff != "" {
			t.Fatalf("%T: merge is not idempotent:\n%s", matcher, diff)
		}
	}
}

func TestMergeIssuesEmpty(t *testing.T) {
	assert.Empty(t, MergeIssues(nil, nil))
}

func TestNewMatcher(t *testing.T) {
	assert.IsType(t, ExactMatcher{}, NewMatcher("", 0))
	assert.IsType(t, FuzzyMatcher{}, NewMatcher(domain.IssueMatchingFuzzy, 0.7))
}
