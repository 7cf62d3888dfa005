package mcpserver

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// intArg extracts an integer argument; JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// listArg accepts a comma-separated string or a JSON array of strings.
func listArg(req mcp.CallToolRequest, key string) []string {
	var raw []string
	switch v := req.GetArguments()[key].(type) {
	case string:
		raw = strings.Split(v, ",")
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}
	var out []string
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// pairsArg parses "provider=model" entries; a bare model applies to every provider.
func pairsArg(req mcp.CallToolRequest, key string) map[string]string {
	items := listArg(req, key)
	if len(items) == 0 {
		return nil
	}
	out := make(map[string]string, len(items))
	for _, item := range items {
		provider, model, found := strings.Cut(item, "=")
		if !found {
			provider, model = "*", item
		}
		if provider = strings.TrimSpace(provider); provider != "" && strings.TrimSpace(model) != "" {
			out[provider] = strings.TrimSpace(model)
		}
	}
	return out
}
