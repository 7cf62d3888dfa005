package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/doeshing/sage-go/internal/app"
	"github.com/doeshing/sage-go/internal/infrastructure/mcpserver"
	"github.com/doeshing/sage-go/internal/version"
)

// NewMCPCommand creates the mcp command serving tools over stdio
func NewMCPCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run as an MCP server on stdin/stdout",
		Long: "Run sage as a Model Context Protocol server so agents can call " +
			"sage_consult, sage_providers and sage_cache_clear. Logs go to stderr.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.ConsultService == nil {
				return errors.New(ErrConsultServiceUnavailable)
			}
			s := mcpserver.New(version.Version, container.ConsultService, container.CacheStore)
			return mcpserver.Serve(s)
		},
	}
}
