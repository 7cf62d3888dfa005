// Package consensus aggregates provider assessments into one verdict.
package consensus

import (
	"sort"

	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/ports"
)

// Builder turns a consultation result into a consensus report.
type Builder struct {
	thresholds domain.Thresholds
	matcher    Matcher
}

// NewBuilder creates a builder. A nil matcher means exact matching.
func NewBuilder(thresholds domain.Thresholds, matcher Matcher) *Builder {
	if matcher == nil {
		matcher = ExactMatcher{}
	}
	return &Builder{thresholds: thresholds, matcher: matcher}
}

// FromConfig wires thresholds and issue matching from cfg.
func FromConfig(cfg domain.Config) *Builder {
	return NewBuilder(cfg.GetThresholds(), NewMatcher(cfg.Consensus.IssueMatching, cfg.Consensus.SimilarityThreshold))
}

// Build aggregates the successful responses of result. Responses are
// processed in provider-name order so the report depends only on the set of
// responses, not on completion order.
func (b *Builder) Build(result domain.ConsultationResult) (domain.ConsensusReport, error) {
	successes := result.Successful()
	if len(successes) == 0 {
		return domain.ConsensusReport{}, domain.ErrNoSuccessfulResponses
	}
	sort.SliceStable(successes, func(i, j int) bool { return successes[i].Provider < successes[j].Provider })

	report := domain.ConsensusReport{
		ConsultationID: result.ID,
		Scope:          result.Request.Scope,
		Dimensions:     make(map[domain.Dimension]domain.DimensionScore),
		ProviderScores: make(map[string]float64),
		Verdicts:       make(map[string]domain.Recommendation),
		Summaries:      make(map[string]string),
		Requested:      result.Requested,
		Succeeded:      len(successes),
	}
	if report.Requested < report.Succeeded {
		report.Requested = report.Succeeded
	}
	report.Ratio = float64(report.Succeeded) / float64(report.Requested)

	var issues []domain.Issue
	var contributors []string
	for _, resp := range successes {
		contributors = append(contributors, resp.Provider)
		a := assessmentOf(resp)
		if a == nil {
			continue
		}
		if overall, ok := providerOverall(a); ok {
			report.ProviderScores[resp.Provider] = overall
		}
		for _, dim := range domain.Dimensions {
			score, ok := a.Scores[dim]
			if !ok {
				continue
			}
			ds := report.Dimensions[dim]
			if ds.Scores == nil {
				ds.Scores = make(map[string]float64)
			}
			ds.Scores[resp.Provider] = score
			ds.Contributors = append(ds.Contributors, resp.Provider)
			report.Dimensions[dim] = ds
		}
		if a.Verdict != "" {
			report.Verdicts[resp.Provider] = a.Verdict
		}
		if a.Summary != "" {
			report.Summaries[resp.Provider] = a.Summary
		}
		for _, issue := range a.Issues {
			issue.FlaggedBy = []string{resp.Provider}
			issues = append(issues, issue)
		}
	}
	report.Contributors = domain.SortedStrings(contributors)

	var dimMeans []float64
	for _, dim := range domain.Dimensions {
		ds, ok := report.Dimensions[dim]
		if !ok {
			continue
		}
		values := make([]float64, 0, len(ds.Contributors))
		for _, provider := range ds.Contributors {
			values = append(values, ds.Scores[provider])
		}
		ds.Mean = mean(values)
		report.Dimensions[dim] = ds
		dimMeans = append(dimMeans, ds.Mean)
	}

	providerValues := make([]float64, 0, len(report.ProviderScores))
	for _, provider := range report.Contributors {
		if score, ok := report.ProviderScores[provider]; ok {
			providerValues = append(providerValues, score)
		}
	}

	switch {
	case len(dimMeans) > 0:
		report.OverallScore = mean(dimMeans)
		report.Scored = true
	case len(providerValues) > 0:
		report.OverallScore = mean(providerValues)
		report.Scored = true
	}

	if report.Scored {
		report.Variance = variance(providerValues)
		report.Agreement = domain.ClassifyAgreement(report.Variance)
		report.Recommendation = b.thresholds.Recommend(report.OverallScore)
	} else {
		report.Agreement = verdictAgreement(report.Verdicts)
		report.Recommendation = pluralityVerdict(report.Verdicts)
	}

	report.Issues = MergeIssues(issues, b.matcher)
	return report, nil
}

func assessmentOf(resp domain.ToolResponse) *domain.Assessment {
	if resp.Parsed == nil {
		return nil
	}
	return resp.Parsed.Assessment
}

// providerOverall is the mean of the provider's dimension scores, or its
// reported overall score when it scored no dimension.
func providerOverall(a *domain.Assessment) (float64, bool) {
	var values []float64
	for _, dim := range domain.Dimensions {
		if score, ok := a.Scores[dim]; ok {
			values = append(values, score)
		}
	}
	if len(values) > 0 {
		return mean(values), true
	}
	if a.Overall != nil {
		return *a.Overall, true
	}
	return 0, false
}

// pluralityVerdict picks the most common verdict; ties go to the more
// cautious verdict and no verdicts at all yield revise.
func pluralityVerdict(verdicts map[string]domain.Recommendation) domain.Recommendation {
	counts := make(map[domain.Recommendation]int)
	for _, v := range verdicts {
		counts[v]++
	}
	best := domain.RecommendRevise
	bestCount := 0
	for _, candidate := range []domain.Recommendation{domain.RecommendReject, domain.RecommendRevise, domain.RecommendApprove} {
		if counts[candidate] > bestCount {
			best, bestCount = candidate, counts[candidate]
		}
	}
	return best
}

func verdictAgreement(verdicts map[string]domain.Recommendation) domain.Agreement {
	distinct := make(map[domain.Recommendation]struct{})
	for _, v := range verdicts {
		distinct[v] = struct{}{}
	}
	switch len(distinct) {
	case 0, 1:
		return domain.AgreementStrong
	case 2:
		return domain.AgreementWeak
	default:
		return domain.AgreementConflicted
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// variance is the population variance; a single value has variance 0.
func variance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values))
}

var _ ports.ConsensusBuilder = (*Builder)(nil)
