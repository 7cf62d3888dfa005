package domain

import (
	"sort"
	"strings"
)

// Dimension names one scored axis of an assessment.
type Dimension string

const (
	DimensionCompleteness Dimension = "completeness"
	DimensionClarity      Dimension = "clarity"
	DimensionFeasibility  Dimension = "feasibility"
	DimensionArchitecture Dimension = "architecture"
	DimensionRisk         Dimension = "risk"
	DimensionVerification Dimension = "verification"
)

// Dimensions lists the six scored dimensions in report order.
var Dimensions = []Dimension{
	DimensionCompleteness,
	DimensionClarity,
	DimensionFeasibility,
	DimensionArchitecture,
	DimensionRisk,
	DimensionVerification,
}

// Score bounds for every dimension.
const (
	MinScore = 1.0
	MaxScore = 10.0
)

// ParseDimension normalizes a dimension key. Unknown keys return false.
func ParseDimension(raw string) (Dimension, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, " ", "_")
	switch key {
	case "completeness", "complete":
		return DimensionCompleteness, true
	case "clarity", "clear":
		return DimensionClarity, true
	case "feasibility", "feasible":
		return DimensionFeasibility, true
	case "architecture", "design":
		return DimensionArchitecture, true
	case "risk", "risks", "risk_assessment":
		return DimensionRisk, true
	case "verification", "testability", "testing":
		return DimensionVerification, true
	default:
		return "", false
	}
}

// Severity ranks issues.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// ParseSeverity maps free-form severity labels; unknown labels are medium.
func ParseSeverity(raw string) Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical", "blocker", "severe":
		return SeverityCritical
	case "high", "major", "error":
		return SeverityHigh
	case "low", "minor", "info", "nit", "trivial":
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// Rank orders severities; higher is more severe.
func (s Severity) Rank() int {
	return severityRank[s]
}

// MaxSeverity returns the more severe of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Issue is a problem flagged by one or more providers.
type Issue struct {
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	FlaggedBy   []string `json:"flagged_by"`
	Locations   []string `json:"locations,omitempty"`
}

// NormalizedDescription lowercases, collapses whitespace and trims trailing
// punctuation. Two issues with equal normalized descriptions are the same issue.
func (i Issue) NormalizedDescription() string {
	return NormalizeText(i.Description)
}

// NormalizeText is the canonical text form used for issue comparison.
func NormalizeText(raw string) string {
	fields := strings.Fields(strings.ToLower(raw))
	joined := strings.Join(fields, " ")
	return strings.TrimRight(joined, ".!;:, ")
}

// Recommendation is the final verdict of a consensus report.
type Recommendation string

const (
	RecommendApprove Recommendation = "approve"
	RecommendRevise  Recommendation = "revise"
	RecommendReject  Recommendation = "reject"
)

// ParseRecommendation maps provider verdict labels. Unknown labels return "".
func ParseRecommendation(raw string) Recommendation {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approve", "approved", "accept", "lgtm", "pass", "ship":
		return RecommendApprove
	case "revise", "changes_requested", "request_changes", "needs_work", "needs_revision", "revision":
		return RecommendRevise
	case "reject", "rejected", "fail", "block", "blocked":
		return RecommendReject
	default:
		return ""
	}
}

// Caution orders verdicts by how conservative they are; reject is most cautious.
func (r Recommendation) Caution() int {
	switch r {
	case RecommendReject:
		return 3
	case RecommendRevise:
		return 2
	case RecommendApprove:
		return 1
	default:
		return 0
	}
}

// Agreement buckets the variance of per-provider overall scores.
type Agreement string

const (
	AgreementStrong     Agreement = "strong"
	AgreementModerate   Agreement = "moderate"
	AgreementWeak       Agreement = "weak"
	AgreementConflicted Agreement = "conflicted"
)

// ClassifyAgreement buckets a population variance: < 1 strong, < 2 moderate,
// <= 3 weak, otherwise conflicted.
func ClassifyAgreement(variance float64) Agreement {
	switch {
	case variance < 1.0:
		return AgreementStrong
	case variance < 2.0:
		return AgreementModerate
	case variance <= 3.0:
		return AgreementWeak
	default:
		return AgreementConflicted
	}
}

// Thresholds are the recommendation cutoffs.
type Thresholds struct {
	ApproveMin float64 `yaml:"approve_min" json:"approve_min"`
	RejectMax  float64 `yaml:"reject_max" json:"reject_max"`
}

// DefaultThresholds approve at 8 and reject at 3.
var DefaultThresholds = Thresholds{ApproveMin: 8, RejectMax: 3}

// Recommend maps an overall score to a verdict. Scores between the reject
// and approve cutoffs, including the gaps between integer bands, are revise.
func (t Thresholds) Recommend(score float64) Recommendation {
	switch {
	case score >= t.ApproveMin:
		return RecommendApprove
	case score <= t.RejectMax:
		return RecommendReject
	default:
		return RecommendRevise
	}
}

// DimensionScore is the aggregate for one dimension.
type DimensionScore struct {
	Mean         float64            `json:"mean"`
	Contributors []string           `json:"contributors"`
	Scores       map[string]float64 `json:"scores"`
}

// ConsensusReport is the aggregated verdict returned to callers.
type ConsensusReport struct {
	ConsultationID string                       `json:"consultation_id"`
	Scope          string                       `json:"scope,omitempty"`
	Dimensions     map[Dimension]DimensionScore `json:"dimensions"`
	ProviderScores map[string]float64           `json:"provider_scores"`
	OverallScore   float64                      `json:"overall_score"`
	Variance       float64                      `json:"variance"`
	Agreement      Agreement                    `json:"agreement"`
	Recommendation Recommendation               `json:"recommendation"`
	Verdicts       map[string]Recommendation    `json:"verdicts,omitempty"`
	Issues         []Issue                      `json:"issues"`
	Summaries      map[string]string            `json:"summaries,omitempty"`
	Contributors   []string                     `json:"contributors"`
	Scored         bool                         `json:"scored"`
	Succeeded      int                          `json:"succeeded"`
	Requested      int                          `json:"requested"`
	Ratio          float64                      `json:"ratio"`
}

// IssueCounts tallies merged issues per severity.
func (r ConsensusReport) IssueCounts() map[Severity]int {
	counts := make(map[Severity]int)
	for _, issue := range r.Issues {
		counts[issue.Severity]++
	}
	return counts
}

// SortedStrings returns a sorted, de-duplicated copy of values with empty entries removed.
func SortedStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
