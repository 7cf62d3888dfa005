package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/doeshing/sage-go/internal/app"
	"github.com/doeshing/sage-go/internal/infrastructure/httpapi"
	"github.com/doeshing/sage-go/internal/version"
)

// NewServeCommand creates the serve command running the HTTP API
func NewServeCommand(container *app.Container) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve consultations, provider status, cache and progress events over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.ConsultService == nil {
				return errors.New(ErrConsultServiceUnavailable)
			}
			if addr == "" {
				addr = container.Config.GetServerAddr()
			}

			opts := httpapi.Options{
				Consult: container.ConsultService,
				Logger:  container.Logger,
				Version: version.Version,
			}
			if container.CacheStore != nil {
				opts.Cache = container.CacheStore
			}
			if container.Progress != nil {
				opts.Events = container.Progress
			}

			cmd.Printf("sage API listening on http://%s/api/v1\n", addr)
			return httpapi.New(opts).ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config server.addr)")
	return cmd
}
