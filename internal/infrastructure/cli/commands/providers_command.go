package commands

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/doeshing/sage-go/internal/app"
	"github.com/doeshing/sage-go/internal/domain"
)

// NewProvidersCommand creates the providers command
func NewProvidersCommand(container *app.Container) *cobra.Command {
	var skillContext string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List providers with availability and the model each would use",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.ConsultService == nil {
				return errors.New(ErrConsultServiceUnavailable)
			}
			statuses := container.ConsultService.Providers(cmd.Context(), skillContext)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), statuses)
			}
			return displayProviders(cmd.OutOrStdout(), statuses)
		},
	}

	cmd.Flags().StringVar(&skillContext, "context", "", "Calling context (e.g. architecture, security)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func displayProviders(out io.Writer, statuses []domain.ProviderStatus) error {
	if len(statuses) == 0 {
		fmt.Fprintln(out, MsgNoProvidersConfigured)
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tSTATUS\tMODEL\tTIMEOUT\tVERSION")
	for _, s := range statuses {
		status := "available"
		if !s.Available {
			status = "missing"
		}
		model := s.Model
		if model == "" {
			model = "-"
		}
		ver := s.Version
		if ver == "" {
			ver = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Name, status, model, s.Timeout, ver)
	}
	return tw.Flush()
}
