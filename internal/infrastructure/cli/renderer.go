package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/doeshing/sage-go/internal/domain"
)

// RenderOutcome prints a consultation outcome in a friendly, ASCII-only format.
func RenderOutcome(w io.Writer, outcome domain.ConsultOutcome) {
	report := outcome.Report

	if report.Scored {
		fmt.Fprintf(w, "Consensus: %s (score %.1f/10, agreement %s)\n",
			strings.ToUpper(string(report.Recommendation)), report.OverallScore, report.Agreement)
	} else {
		fmt.Fprintf(w, "Consensus: %s (no numeric scores, agreement %s)\n",
			strings.ToUpper(string(report.Recommendation)), report.Agreement)
	}
	fmt.Fprintf(w, "Providers: %d/%d succeeded (%s)\n",
		report.Succeeded, report.Requested, strings.Join(report.Contributors, ", "))
	if outcome.FromCache {
		fmt.Fprintln(w, "Note: result served from cache")
	}

	if len(report.Dimensions) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Dimensions:")
		for _, dim := range domain.Dimensions {
			score, ok := report.Dimensions[dim]
			if !ok {
				continue
			}
			fmt.Fprintf(w, "  %-13s %4.1f  (%s)\n", dim, score.Mean, providerScores(score.Scores))
		}
	}

	if len(report.Issues) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Issues:")
		for _, issue := range report.Issues {
			fmt.Fprintf(w, "  [%s] %s (%s)\n",
				strings.ToUpper(string(issue.Severity)), issue.Description, strings.Join(issue.FlaggedBy, ", "))
		}
	}

	if len(report.Summaries) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Summaries:")
		for _, name := range sortedKeys(report.Summaries) {
			fmt.Fprintf(w, "  %s: %s\n", name, report.Summaries[name])
		}
	}

	renderFailures(w, outcome.Result)
}

// RenderFailure prints what is known about a consultation that did not reach consensus.
func RenderFailure(w io.Writer, result domain.ConsultationResult) {
	if len(result.Responses) == 0 {
		return
	}
	fmt.Fprintf(w, "Providers: %d/%d succeeded\n", result.Succeeded, result.Requested)
	renderFailures(w, result)
}

func renderFailures(w io.Writer, result domain.ConsultationResult) {
	var failed []domain.ToolResponse
	for _, resp := range result.Responses {
		if !resp.Succeeded() {
			failed = append(failed, resp)
		}
	}
	if len(failed) == 0 {
		return
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].Provider < failed[j].Provider })

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Failures:")
	for _, resp := range failed {
		fmt.Fprintf(w, "  %s: %s after %s", resp.Provider, resp.Status, resp.Duration.Std().Round(time.Millisecond))
		if resp.Attempts > 1 {
			fmt.Fprintf(w, " (%d attempts)", resp.Attempts)
		}
		if resp.Error != "" {
			fmt.Fprintf(w, " - %s", resp.Error)
		}
		fmt.Fprintln(w)
	}
}

// RenderJSON writes v as indented JSON.
func RenderJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func providerScores(scores map[string]float64) string {
	parts := make([]string, 0, len(scores))
	for _, name := range sortedKeys(scores) {
		parts = append(parts, fmt.Sprintf("%s %.1f", name, scores[name]))
	}
	return strings.Join(parts, ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
