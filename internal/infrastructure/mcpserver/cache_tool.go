package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/doeshing/sage-go/internal/ports"
)

// CacheClearTool handles the sage_cache_clear MCP tool.
type CacheClearTool struct {
	cache ports.CacheRepository
}

// NewCacheClearTool creates a CacheClearTool. A nil cache reports caching as disabled.
func NewCacheClearTool(cache ports.CacheRepository) *CacheClearTool {
	return &CacheClearTool{cache: cache}
}

// Definition returns the MCP tool definition for registration.
func (t *CacheClearTool) Definition() mcp.Tool {
	return mcp.NewTool("sage_cache_clear",
		mcp.WithDescription("Delete every cached consultation so the next request consults providers again."),
	)
}

// Handle processes the sage_cache_clear tool call.
func (t *CacheClearTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.cache == nil {
		return mcp.NewToolResultError("cache is disabled"), nil
	}
	entries, err := t.cache.Entries()
	if err != nil {
		return nil, fmt.Errorf("listing cache: %w", err)
	}
	if err := t.cache.Clear(); err != nil {
		return nil, fmt.Errorf("clearing cache: %w", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed %d cached consultations from %s.", len(entries), t.cache.Location())), nil
}
