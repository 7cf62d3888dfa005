package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ProvidersTool handles the sage_providers MCP tool.
type ProvidersTool struct {
	consulter Consulter
}

// NewProvidersTool creates a ProvidersTool.
func NewProvidersTool(consulter Consulter) *ProvidersTool {
	return &ProvidersTool{consulter: consulter}
}

// Definition returns the MCP tool definition for registration.
func (t *ProvidersTool) Definition() mcp.Tool {
	return mcp.NewTool("sage_providers",
		mcp.WithDescription("List the providers a consultation would use, whether each is installed, and the model it would run."),
		mcp.WithString("context",
			mcp.Description("Calling context, e.g. 'architecture'. Defaults to the default provider set."),
		),
	)
}

// Handle processes the sage_providers tool call.
func (t *ProvidersTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	statuses := t.consulter.Providers(ctx, req.GetString("context", ""))
	if len(statuses) == 0 {
		return mcp.NewToolResultText("No providers configured."), nil
	}

	var b strings.Builder
	for _, s := range statuses {
		state := "available"
		if !s.Available {
			state = "not installed"
		}
		model := s.Model
		if model == "" {
			model = "(provider default)"
		}
		fmt.Fprintf(&b, "- %s: %s, model %s, timeout %s", s.Name, state, model, s.Timeout)
		if s.Version != "" {
			fmt.Fprintf(&b, ", version %s", s.Version)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}
