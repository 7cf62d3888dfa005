package normalize

import (
	"sort"
	"strings"

	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/pkg/jsonx"
)

// ParseAssessment recovers a structured assessment from provider text.
// It returns nil when the text carries no scores, verdict, issues or summary.
// Scores outside the 1..10 scale are ignored.
func ParseAssessment(text string) *domain.Assessment {
	obj, ok := jsonx.Object(text)
	if !ok {
		return nil
	}
	if inner, ok := obj["assessment"].(map[string]interface{}); ok {
		obj = inner
	}

	a := &domain.Assessment{}
	a.Scores = parseScores(obj)
	if v, ok := jsonx.Field(obj, "overall_score", "overall", "score"); ok {
		if f, ok := jsonx.Float(v); ok && inRange(f) {
			a.Overall = &f
		}
	}
	if v, ok := jsonx.Field(obj, "verdict", "recommendation", "decision"); ok {
		if s, ok := jsonx.String(v); ok {
			a.Verdict = domain.ParseRecommendation(s)
		}
	}
	if v, ok := jsonx.Field(obj, "issues", "concerns", "findings"); ok {
		a.Issues = parseIssues(v)
	}
	if v, ok := jsonx.Field(obj, "summary", "rationale"); ok {
		a.Summary, _ = jsonx.String(v)
	}

	if len(a.Scores) == 0 && a.Overall == nil && a.Verdict == "" && len(a.Issues) == 0 && a.Summary == "" {
		return nil
	}
	if len(a.Scores) == 0 {
		a.Scores = nil
	}
	return a
}

// parseScores reads dimension scores in sorted key order. A canonical
// dimension name beats its aliases; among aliases the first key wins.
func parseScores(obj map[string]interface{}) map[domain.Dimension]float64 {
	scores := make(map[domain.Dimension]float64)
	exact := make(map[domain.Dimension]bool)
	collect := func(m map[string]interface{}) {
		keys := make([]string, 0, len(m))
		for key := range m {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			dim, ok := domain.ParseDimension(key)
			if !ok || exact[dim] {
				continue
			}
			f, ok := jsonx.Float(m[key])
			if !ok || !inRange(f) {
				continue
			}
			canonical := strings.EqualFold(strings.TrimSpace(key), string(dim))
			if _, seen := scores[dim]; seen && !canonical {
				continue
			}
			scores[dim] = f
			exact[dim] = canonical
		}
	}
	for _, key := range []string{"scores", "dimensions", "ratings"} {
		if m, ok := obj[key].(map[string]interface{}); ok {
			collect(m)
		}
	}
	if len(scores) == 0 {
		collect(obj)
	}
	return scores
}

func parseIssues(v interface{}) []domain.Issue {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var issues []domain.Issue
	for _, item := range list {
		switch entry := item.(type) {
		case string:
			if desc := strings.TrimSpace(entry); desc != "" {
				issues = append(issues, domain.Issue{Description: desc, Severity: domain.SeverityMedium})
			}
		case map[string]interface{}:
			descValue, _ := jsonx.Field(entry, "description", "issue", "title", "message", "text")
			desc, ok := jsonx.String(descValue)
			if !ok {
				continue
			}
			issue := domain.Issue{Description: desc, Severity: domain.SeverityMedium}
			if sev, ok := jsonx.Field(entry, "severity", "level", "priority"); ok {
				s, _ := jsonx.String(sev)
				issue.Severity = domain.ParseSeverity(s)
			}
			issue.Locations = parseLocations(entry)
			issues = append(issues, issue)
		}
	}
	return issues
}

func parseLocations(entry map[string]interface{}) []string {
	var out []string
	if v, ok := jsonx.Field(entry, "location", "file", "section"); ok {
		if s, ok := jsonx.String(v); ok {
			out = append(out, s)
		}
	}
	if list, ok := entry["locations"].([]interface{}); ok {
		for _, item := range list {
			if s, ok := jsonx.String(item); ok {
				out = append(out, s)
			}
		}
	}
	return domain.SortedStrings(out)
}

func inRange(score float64) bool {
	return score >= domain.MinScore && score <= domain.MaxScore
}
