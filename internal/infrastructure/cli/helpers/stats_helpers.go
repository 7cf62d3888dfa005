package helpers

import (
	"sort"

	"github.com/doeshing/sage-go/internal/domain"
)

// CountStatistic is one row of a frequency table.
type CountStatistic struct {
	Label string
	Count int
}

// TopCounts returns the most frequent labels first, ties broken by name.
// If limit is 0 or negative, returns all labels
func TopCounts(frequency map[string]int, limit int) []CountStatistic {
	stats := make([]CountStatistic, 0, len(frequency))
	for label, count := range frequency {
		stats = append(stats, CountStatistic{Label: label, Count: count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count == stats[j].Count {
			return stats[i].Label < stats[j].Label
		}
		return stats[i].Count > stats[j].Count
	})

	if limit > 0 && len(stats) > limit {
		return stats[:limit]
	}
	return stats
}

// CountByScope tallies cache entries per scope; empty scopes count as "(none)".
func CountByScope(entries []domain.CacheEntry) map[string]int {
	counts := make(map[string]int)
	for _, entry := range entries {
		scope := entry.Scope
		if scope == "" {
			scope = "(none)"
		}
		counts[scope]++
	}
	return counts
}

// CountByProvider tallies how many cached consultations each provider took part in.
func CountByProvider(entries []domain.CacheEntry) map[string]int {
	counts := make(map[string]int)
	for _, entry := range entries {
		for _, provider := range entry.Providers {
			counts[provider]++
		}
	}
	return counts
}

// SuccessRate returns successful/total as a percentage.
func SuccessRate(successful, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(successful) / float64(total) * 100.0
}
