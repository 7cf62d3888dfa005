package consensus

import (
	"sort"
	"strings"
	"unicode"

	"github.com/doeshing/sage-go/internal/domain"
)

// DefaultSimilarity is the token Jaccard threshold for fuzzy matching.
const DefaultSimilarity = 0.6

// Matcher decides whether two issues describe the same problem. It must be
// symmetric.
type Matcher interface {
	Same(a, b domain.Issue) bool
}

// ExactMatcher matches on normalized description equality.
type ExactMatcher struct{}

func (ExactMatcher) Same(a, b domain.Issue) bool {
	return a.NormalizedDescription() == b.NormalizedDescription()
}

// FuzzyMatcher also matches issues that share a location and whose
// description tokens overlap by at least Threshold (Jaccard index).
type FuzzyMatcher struct {
	Threshold float64
}

func (m FuzzyMatcher) Same(a, b domain.Issue) bool {
	if (ExactMatcher{}).Same(a, b) {
		return true
	}
	if !shareLocation(a.Locations, b.Locations) {
		return false
	}
	threshold := m.Threshold
	if threshold <= 0 {
		threshold = DefaultSimilarity
	}
	return jaccard(tokens(a.Description), tokens(b.Description)) >= threshold
}

// NewMatcher maps the issue_matching config value to a matcher.
func NewMatcher(mode string, threshold float64) Matcher {
	if mode == domain.IssueMatchingFuzzy {
		return FuzzyMatcher{Threshold: threshold}
	}
	return ExactMatcher{}
}

// MergeIssues groups matching issues into connected components and folds
// each group into one issue: the lexicographically smallest description is
// kept, severity is the maximum, flagged-by and locations are sorted unions.
// The result does not depend on input order.
func MergeIssues(issues []domain.Issue, matcher Matcher) []domain.Issue {
	if len(issues) == 0 {
		return []domain.Issue{}
	}
	if matcher == nil {
		matcher = ExactMatcher{}
	}

	parent := make([]int, len(issues))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	for i := range issues {
		for j := i + 1; j < len(issues); j++ {
			if matcher.Same(issues[i], issues[j]) {
				if ri, rj := find(i), find(j); ri != rj {
					parent[rj] = ri
				}
			}
		}
	}

	groups := make(map[int][]domain.Issue)
	var roots []int
	for i, issue := range issues {
		root := find(i)
		if _, ok := groups[root]; !ok {
			roots = append(roots, root)
		}
		groups[root] = append(groups[root], issue)
	}

	merged := make([]domain.Issue, 0, len(roots))
	for _, root := range roots {
		merged = append(merged, fold(groups[root]))
	}
	sort.Slice(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if len(a.FlaggedBy) != len(b.FlaggedBy) {
			return len(a.FlaggedBy) > len(b.FlaggedBy)
		}
		return representativeLess(a, b)
	})
	return merged
}

func fold(group []domain.Issue) domain.Issue {
	rep := group[0]
	severity := domain.ParseSeverity(string(rep.Severity))
	var flagged, locations []string
	for _, issue := range group {
		if representativeLess(issue, rep) {
			rep = issue
		}
		severity = domain.MaxSeverity(severity, domain.ParseSeverity(string(issue.Severity)))
		flagged = append(flagged, issue.FlaggedBy...)
		locations = append(locations, issue.Locations...)
	}
	out := domain.Issue{
		Description: strings.TrimSpace(rep.Description),
		Severity:    severity,
		FlaggedBy:   domain.SortedStrings(flagged),
		Locations:   domain.SortedStrings(locations),
	}
	if len(out.Locations) == 0 {
		out.Locations = nil
	}
	return out
}

func representativeLess(a, b domain.Issue) bool {
	na, nb := a.NormalizedDescription(), b.NormalizedDescription()
	if na != nb {
		return na < nb
	}
	return strings.TrimSpace(a.Description) < strings.TrimSpace(b.Description)
}

func tokens(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func shareLocation(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
