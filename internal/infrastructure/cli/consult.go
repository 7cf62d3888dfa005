package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/sage-go/internal/app"
	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/infrastructure/cli/helpers"
	"github.com/doeshing/sage-go/internal/infrastructure/progress"
)

const (
	outputText = "text"
	outputJSON = "json"

	progressBuffer = 256
)

type consultOptions struct {
	contentFile  string
	scope        string
	skillContext string
	output       string
	providers    []string
	models       []string
	extraArgs    []string
	timeout      time.Duration
	minRequired  int
	refresh      bool
	progress     bool
}

func newConsultCommand(container *app.Container) *cobra.Command {
	var opts consultOptions

	cmd := &cobra.Command{
		Use:   "consult [prompt]",
		Short: "Consult every configured provider and print the consensus",
		Example: `  sage consult "Review this migration plan" --content-file plan.md --scope plan
  git diff | sage consult "Is this change safe to ship?" --content-file - --context security
  sage consult "Rate this design" --model claude=opus --output json --progress`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsult(cmd, container, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.contentFile, "content-file", "f", "", "File with the document under review (- for stdin)")
	cmd.Flags().StringVar(&opts.scope, "scope", "", "Label grouping cached results (e.g. plan, pr-1423)")
	cmd.Flags().StringVar(&opts.skillContext, "context", "", "Calling context selecting providers and routed models")
	cmd.Flags().StringVarP(&opts.output, "output", "o", outputText, "Output format: text or json")
	cmd.Flags().StringSliceVarP(&opts.providers, "provider", "p", nil, "Restrict to these providers (repeatable or comma-separated)")
	cmd.Flags().StringArrayVarP(&opts.models, "model", "m", nil, "Model override as provider=model, or a bare model for every provider")
	cmd.Flags().StringArrayVar(&opts.extraArgs, "arg", nil, "Extra flag passed to every provider (subject to the denied-flag policy)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Per-provider timeout (default from config)")
	cmd.Flags().IntVar(&opts.minRequired, "min-required", 0, "Minimum successful providers (default from config)")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "Ignore cached results and consult again")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "Stream progress events as JSON lines on stderr")

	return cmd
}

func runConsult(cmd *cobra.Command, container *app.Container, prompt string, opts consultOptions) error {
	if container.ConsultService == nil {
		return errors.New("consult service unavailable")
	}
	if opts.output != outputText && opts.output != outputJSON {
		return fmt.Errorf("unsupported output format %q (want text or json)", opts.output)
	}

	content, err := readContent(cmd.InOrStdin(), opts.contentFile)
	if err != nil {
		return err
	}
	models, err := helpers.ParseAssignments(opts.models)
	if err != nil {
		return err
	}

	req := domain.ConsultRequest{
		Invocation: domain.InvocationRequest{
			Prompt:         prompt,
			Content:        content,
			ModelOverrides: models,
			Timeout:        domain.Duration(opts.timeout),
			Scope:          opts.scope,
			Context:        opts.skillContext,
			ExtraArgs:      opts.extraArgs,
		},
		Providers:   helpers.SplitAndTrimCSV(opts.providers...),
		MinRequired: opts.minRequired,
		Refresh:     opts.refresh,
	}

	stop := watchProgress(cmd.ErrOrStderr(), container.Progress, opts)
	outcome, runErr := container.ConsultService.Run(cmd.Context(), req)
	stop()

	out := cmd.OutOrStdout()
	if opts.output == outputJSON {
		if runErr != nil {
			_ = RenderJSON(out, consultFailure{Error: runErr.Error(), Result: outcome.Result})
			return runErr
		}
		return RenderJSON(out, outcome)
	}

	if runErr != nil {
		RenderFailure(cmd.ErrOrStderr(), outcome.Result)
		return runErr
	}
	RenderOutcome(out, outcome)
	return nil
}

type consultFailure struct {
	Error  string                    `json:"error"`
	Result domain.ConsultationResult `json:"result"`
}

// watchProgress attaches a progress consumer for the duration of one
// consultation and returns the function that detaches it.
func watchProgress(w io.Writer, emitter *progress.Emitter, opts consultOptions) func() {
	if emitter == nil {
		return func() {}
	}
	switch {
	case opts.progress:
		events, cancel := emitter.Subscribe(progressBuffer)
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = progress.WriteJSONLines(w, events)
		}()
		return func() {
			cancel()
			<-done
		}
	case opts.output == outputText && isTerminal(w):
		events, cancel := emitter.Subscribe(progressBuffer)
		spinner := NewSpinner(w)
		spinner.Start()
		done := make(chan struct{})
		go func() {
			defer close(done)
			followSpinner(spinner, events)
		}()
		return func() {
			cancel()
			<-done
			spinner.Stop()
		}
	default:
		return func() {}
	}
}

func readContent(stdin io.Reader, path string) (string, error) {
	switch path {
	case "":
		return "", nil
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read content from stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read content file: %w", err)
		}
		return string(data), nil
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
