package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/doeshing/sage-go/internal/version"
)

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	Go        string `json:"go"`
	Platform  string `json:"platform"`
}

func currentVersion() versionInfo {
	return versionInfo{
		Version:   version.Version,
		Commit:    version.Commit,
		BuildDate: version.BuildDate,
		Go:        runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// NewVersionCommand prints build metadata.
func NewVersionCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show sage version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := currentVersion()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			printVersion(cmd.OutOrStdout(), info)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func printVersion(out io.Writer, info versionInfo) {
	line := "sage " + info.Version
	if info.Commit != "" {
		line += " (" + info.Commit
		if info.BuildDate != "" {
			line += ", built " + info.BuildDate
		}
		line += ")"
	}
	fmt.Fprintf(out, "%s\n%s %s\n", line, info.Go, info.Platform)
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
