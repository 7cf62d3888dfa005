package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/doeshing/sage-go/internal/domain"
)

// ConsultTool handles the sage_consult MCP tool.
type ConsultTool struct {
	consulter Consulter
}

// NewConsultTool creates a ConsultTool.
func NewConsultTool(consulter Consulter) *ConsultTool {
	return &ConsultTool{consulter: consulter}
}

// Definition returns the MCP tool definition for registration.
func (t *ConsultTool) Definition() mcp.Tool {
	return mcp.NewTool("sage_consult",
		mcp.WithDescription(
			"Ask every configured AI provider the same question in parallel and return "+
				"a consensus report: per-dimension scores, agreement level, merged issues "+
				"and an approve/revise/reject recommendation. Identical requests are served from cache.",
		),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("The question or review instruction sent to every provider."),
		),
		mcp.WithString("content",
			mcp.Description("The document under review (plan, design, diff). Used for the cache key."),
		),
		mcp.WithString("scope",
			mcp.Description("Free-form label grouping cached results, e.g. 'plan' or 'pr-1423'."),
		),
		mcp.WithString("context",
			mcp.Description("Calling context selecting providers and routed models, e.g. 'architecture' or 'security'."),
		),
		mcp.WithString("providers",
			mcp.Description("Comma-separated provider names to restrict the consultation to."),
		),
		mcp.WithString("models",
			mcp.Description("Comma-separated provider=model overrides, e.g. 'claude=opus,gemini=gemini-2.5-flash'."),
		),
		mcp.WithString("timeout",
			mcp.Description("Per-provider timeout as a Go duration, e.g. '90s'."),
		),
		mcp.WithNumber("min_required",
			mcp.Description("Minimum successful providers; defaults to the configured value."),
		),
		mcp.WithBoolean("refresh",
			mcp.Description("Skip the cache read and consult providers again."),
		),
	)
}

// Handle processes the sage_consult tool call.
func (t *ConsultTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt := req.GetString("prompt", "")
	if strings.TrimSpace(prompt) == "" {
		return mcp.NewToolResultError("'prompt' is required"), nil
	}
	timeout, err := domain.ParseDuration(req.GetString("timeout", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outcome, err := t.consulter.Run(ctx, domain.ConsultRequest{
		Invocation: domain.InvocationRequest{
			Prompt:         prompt,
			Content:        req.GetString("content", ""),
			Scope:          req.GetString("scope", ""),
			Context:        req.GetString("context", ""),
			ModelOverrides: pairsArg(req, "models"),
			Timeout:        timeout,
		},
		Providers:   listArg(req, "providers"),
		MinRequired: intArg(req, "min_required", 0),
		Refresh:     boolArg(req, "refresh", false),
	})
	if err != nil {
		var consultErr *domain.ConsultationError
		if errors.As(err, &consultErr) || errors.Is(err, domain.ErrMalformedRequest) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, fmt.Errorf("consultation: %w", err)
	}

	var b strings.Builder
	writeSummary(&b, outcome)
	data, err := json.MarshalIndent(outcome.Report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	b.WriteString("\n```json\n")
	b.Write(data)
	b.WriteString("\n```\n")
	return mcp.NewToolResultText(b.String()), nil
}

func writeSummary(b *strings.Builder, outcome domain.ConsultOutcome) {
	report := outcome.Report
	fmt.Fprintf(b, "## Consensus: %s\n\n", strings.ToUpper(string(report.Recommendation)))
	if report.Scored {
		fmt.Fprintf(b, "- Overall score: %.1f/10 (agreement: %s)\n", report.OverallScore, report.Agreement)
	} else {
		fmt.Fprintf(b, "- No numeric scores (agreement: %s)\n", report.Agreement)
	}
	fmt.Fprintf(b, "- Providers: %d/%d succeeded (%s)\n", report.Succeeded, report.Requested, strings.Join(report.Contributors, ", "))
	if outcome.FromCache {
		b.WriteString("- Served from cache\n")
	}
	for _, resp := range outcome.Result.Responses {
		if !resp.Succeeded() {
			fmt.Fprintf(b, "- %s failed: %s (%s)\n", resp.Provider, resp.Status, resp.Duration.Std().Round(time.Millisecond))
		}
	}
	if len(report.Issues) > 0 {
		b.WriteString("\n### Issues\n\n")
		for _, issue := range report.Issues {
			fmt.Fprintf(b, "- [%s] %s (flagged by %s)\n", issue.Severity, issue.Description, strings.Join(issue.FlaggedBy, ", "))
		}
	}
}
