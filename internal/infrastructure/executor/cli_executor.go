// Package executor runs one provider executable for one request.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/pkg/jsonx"
	"github.com/doeshing/sage-go/internal/ports"
)

const maxErrorDetail = 512

// CLIExecutor spawns provider processes with separate stdout and stderr
// capture and classifies the outcome into a ToolResponse status.
type CLIExecutor struct {
	policy     ports.FlagFilter
	normalizer ports.Normalizer
	logger     ports.Logger
	lookPath   func(string) (string, error)
}

// NewCLIExecutor builds an executor. policy may be nil to skip flag filtering.
// normalizer decides whether output from a non-zero exit still carries an
// assessment; when nil every non-zero exit is an execution error.
func NewCLIExecutor(policy ports.FlagFilter, normalizer ports.Normalizer, logger ports.Logger) *CLIExecutor {
	return &CLIExecutor{
		policy:     policy,
		normalizer: normalizer,
		logger:     logger,
		lookPath:   exec.LookPath,
	}
}

// Invocation is the fully assembled command line for one call.
type Invocation struct {
	Args    []string
	Stdin   string
	Dropped []string
}

// Build assembles base args, filtered caller args, the model flag, safety
// flags and finally the payload (prompt plus content). Safety flags come after everything the
// policy filtered so they win on last-wins parsers.
func (e *CLIExecutor) Build(spec domain.ProviderSpec, req domain.InvocationRequest, model string) Invocation {
	var inv Invocation
	candidate := append(append([]string(nil), spec.Args...), req.ExtraArgs...)
	if e.policy != nil {
		candidate, inv.Dropped = e.policy.Filter(candidate)
	}
	args := append([]string(nil), candidate...)

	if model != "" && spec.ModelFlag != "" {
		args = append(args, spec.ModelFlag, model)
	}
	args = append(args, spec.SafetyFlags...)

	payload := req.Payload()
	switch spec.GetPromptMode() {
	case domain.PromptModeStdin:
		inv.Stdin = payload
	default:
		if spec.PromptFlag != "" {
			args = append(args, spec.PromptFlag)
		}
		args = append(args, payload)
	}
	inv.Args = args
	return inv
}

// Invoke runs spec once. It never returns an error: every provider-side
// failure is reported through the response status.
func (e *CLIExecutor) Invoke(ctx context.Context, spec domain.ProviderSpec, req domain.InvocationRequest, model string) domain.ToolResponse {
	start := time.Now()
	if spec.Name == "" || spec.Executable == "" {
		return e.finish(domain.Failure(spec.Name, domain.StatusExecutionError, "provider spec missing name or executable", time.Since(start)), model)
	}

	path, err := e.lookPath(spec.Executable)
	if err != nil {
		detail := fmt.Sprintf("executable %s not found", spec.Executable)
		return e.finish(domain.Failure(spec.Name, domain.StatusNotFound, detail, time.Since(start)), model)
	}

	inv := e.Build(spec, req, model)
	if len(inv.Dropped) > 0 {
		e.logger.Warn("dropped denied provider flags", map[string]interface{}{
			"provider": spec.Name,
			"dropped":  inv.Dropped,
		})
	}

	timeout := spec.EffectiveTimeout(req.Timeout.Std())
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(callCtx, path, inv.Args...)
	cmd.WaitDelay = domain.ProcessWaitDelay
	if inv.Stdin != "" {
		cmd.Stdin = strings.NewReader(inv.Stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("invoking provider", map[string]interface{}{
		"provider": spec.Name,
		"model":    model,
		"timeout":  timeout.String(),
		"args":     len(inv.Args),
	})

	runErr := cmd.Run()
	elapsed := time.Since(start)

	resp := domain.ToolResponse{
		Provider: spec.Name,
		Raw:      stdout.String(),
		Stderr:   stderr.String(),
		Model:    model,
		Duration: domain.Duration(elapsed),
		Attempts: 1,
	}
	if cmd.ProcessState != nil {
		resp.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case runErr != nil && callCtx.Err() != nil:
		resp.Status = domain.StatusTimeout
		if ctx.Err() != nil {
			resp.Error = "cancelled by consultation deadline"
		} else {
			resp.Error = fmt.Sprintf("timed out after %s", timeout)
		}
	case errors.Is(runErr, exec.ErrWaitDelay):
		// Exited cleanly; a grandchild kept the pipes open.
		classifyOutput(&resp)
	case runErr != nil:
		e.classifyRunError(spec, &resp, runErr)
	default:
		classifyOutput(&resp)
	}
	return e.finish(resp, model)
}

func (e *CLIExecutor) classifyRunError(spec domain.ProviderSpec, resp *domain.ToolResponse, runErr error) {
	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) {
		if errors.Is(runErr, exec.ErrNotFound) || errors.Is(runErr, os.ErrNotExist) {
			resp.Status = domain.StatusNotFound
		} else {
			resp.Status = domain.StatusExecutionError
		}
		resp.Error = truncate(runErr.Error())
		return
	}

	// Some providers exit non-zero after writing a complete assessment.
	if parsed := e.recoverAssessment(spec, *resp); parsed != nil {
		resp.Status = domain.StatusSuccess
		resp.Parsed = parsed
		return
	}

	resp.Status = domain.StatusExecutionError
	detail := strings.TrimSpace(resp.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(resp.Raw)
	}
	if detail == "" {
		detail = runErr.Error()
	}
	resp.Error = truncate(fmt.Sprintf("exit %d: %s", exitErr.ExitCode(), detail))
}

// recoverAssessment returns the parsed output of a failed run only when it
// normalizes to a structured assessment and is not an error envelope.
func (e *CLIExecutor) recoverAssessment(spec domain.ProviderSpec, resp domain.ToolResponse) *domain.ParsedContent {
	if e.normalizer == nil || !utf8.ValidString(resp.Raw) {
		return nil
	}
	obj, ok := jsonx.Object(resp.Raw)
	if !ok {
		return nil
	}
	if isError, _ := obj["is_error"].(bool); isError {
		return nil
	}
	resp.Status = domain.StatusSuccess
	normalized := e.normalizer.Normalize(spec.GetUnwrap(), resp)
	if normalized.Parsed == nil || !normalized.Parsed.Structured {
		return nil
	}
	return normalized.Parsed
}

func classifyOutput(resp *domain.ToolResponse) {
	trimmed := strings.TrimSpace(resp.Raw)
	switch {
	case trimmed == "":
		resp.Status = domain.StatusInvalidOutput
		resp.Error = "provider produced no output"
	case !utf8.ValidString(resp.Raw):
		resp.Status = domain.StatusInvalidOutput
		resp.Error = "provider output is not valid UTF-8"
	default:
		resp.Status = domain.StatusSuccess
		resp.Parsed = &domain.ParsedContent{Text: trimmed}
	}
}

func (e *CLIExecutor) finish(resp domain.ToolResponse, model string) domain.ToolResponse {
	if resp.Model == "" {
		resp.Model = model
	}
	resp.State = domain.StateForStatus(resp.Status)
	fields := map[string]interface{}{
		"provider": resp.Provider,
		"status":   string(resp.Status),
		"duration": resp.Duration.String(),
	}
	if resp.Succeeded() {
		e.logger.Debug("provider finished", fields)
	} else {
		fields["detail"] = resp.Error
		e.logger.Warn("provider failed", fields)
	}
	return resp
}

func truncate(s string) string {
	if len(s) <= maxErrorDetail {
		return s
	}
	cut := maxErrorDetail
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

var _ ports.Invoker = (*CLIExecutor)(nil)
