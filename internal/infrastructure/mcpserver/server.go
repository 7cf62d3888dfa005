// Package mcpserver exposes consultations as MCP tools over stdio.
package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/ports"
)

// Consulter is the use case the tools call into.
type Consulter interface {
	Run(ctx context.Context, req domain.ConsultRequest) (domain.ConsultOutcome, error)
	Providers(ctx context.Context, skillContext string) []domain.ProviderStatus
}

// New creates the MCP server with every sage tool registered. cache may be nil.
func New(version string, consulter Consulter, cache ports.CacheRepository) *server.MCPServer {
	s := server.NewMCPServer(
		"sage",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	consultTool := NewConsultTool(consulter)
	s.AddTool(consultTool.Definition(), consultTool.Handle)

	providersTool := NewProvidersTool(consulter)
	s.AddTool(providersTool.Definition(), providersTool.Handle)

	cacheTool := NewCacheClearTool(cache)
	s.AddTool(cacheTool.Definition(), cacheTool.Handle)

	return s
}

// Serve blocks serving MCP over stdin/stdout.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

const instructions = `sage asks several AI command-line tools the same question in parallel and
merges their answers into one consensus report.

Use sage_consult to get a second (and third) opinion on a plan, design or
change. Pass the document in "content" and your question in "prompt".
Use sage_providers to see which providers are installed before consulting.`
