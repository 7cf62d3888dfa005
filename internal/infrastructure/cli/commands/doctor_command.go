package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/sage-go/internal/app"
	"github.com/doeshing/sage-go/internal/domain"
)

// NewDoctorCommand runs the diagnostics and exits non-zero when a check fails.
func NewDoctorCommand(container *app.Container) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check config, provider executables, flag policy and cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if container.DoctorService == nil {
				return errors.New(ErrDoctorServiceUnavailable)
			}
			report, runErr := container.DoctorService.Run(cmd.Context())

			out := cmd.OutOrStdout()
			if asJSON {
				if err := writeJSON(out, report); err != nil {
					return err
				}
			} else {
				printHealthReport(out, report)
			}

			switch {
			case runErr != nil:
				return fmt.Errorf("diagnostics aborted: %w", runErr)
			case !report.Healthy():
				return fmt.Errorf("%d check(s) failed", report.Count(domain.HealthError))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func printHealthReport(out io.Writer, report domain.HealthReport) {
	for _, check := range report.Checks {
		fmt.Fprintf(out, "[%s] %s - %s\n", strings.ToUpper(string(check.Status)), check.Name, check.Details)
	}
	fmt.Fprintf(out, "\n%d ok, %d warnings, %d errors\n",
		report.Count(domain.HealthOK), report.Count(domain.HealthWarn), report.Count(domain.HealthError))
}
