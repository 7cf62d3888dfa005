package executor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/infrastructure/normalize"
	"github.com/doeshing/sage-go/internal/infrastructure/security"
	"github.com/doeshing/sage-go/internal/pkg/logger"
)

func writeProvider(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "provider")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write provider script: %v", err)
	}
	return path
}

func newExecutor(t *testing.T) *CLIExecutor {
	t.Helper()
	policy, err := security.NewFlagPolicy(nil)
	if err != nil {
		t.Fatalf("NewFlagPolicy error: %v", err)
	}
	return NewCLIExecutor(policy, normalize.New(), logger.Nop())
}

func TestBuildArgumentOrder(t *testing.T) {
	exec := newExecutor(t)
	spec := domain.ProviderSpec{
		Name:        "codex",
		Executable:  "codex",
		Args:        []string{"exec", "--json", "--full-auto"},
		ModelFlag:   "--model",
		SafetyFlags: []string{"--sandbox", "read-only"},
		PromptFlag:  "-p",
	}
	req := domain.InvocationRequest{
		Prompt:    "review this",
		ExtraArgs: []string{"--verbose", "--sandbox", "danger-full-access"},
	}

	inv := exec.Build(spec, req, "o3")
	want := []string{"exec", "--json", "--verbose", "--model", "o3", "--sandbox", "read-only", "-p", "review this"}
	if diff := cmp.Diff(want, inv.Args); diff != "" {
		t.Errorf("Build() args mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"--full-auto", "--sandbox", "danger-full-access"}, inv.Dropped); diff != "" {
		t.Errorf("Build() dropped mismatch (-want +got):\n%s", diff)
	}

	spec.PromptMode = domain.PromptModeStdin
	spec.ModelFlag = ""
	inv = exec.Build(spec, req, "o3")
	if inv.Stdin != "review this" {
		t.Errorf("expected prompt on stdin, got %q", inv.Stdin)
	}
	for _, arg := range inv.Args {
		if arg == "review this" || arg == "o3" {
			t.Errorf("unexpected arg %q in stdin mode without model flag", arg)
		}
	}
}

func TestBuildKeepsGeminiReadOnly(t *testing.T) {
	spec := domain.ProviderSpec{
		Name:        "gemini",
		Executable:  "gemini",
		Args:        []string{"--output-format", "json"},
		PromptFlag:  "-p",
		SafetyFlags: []string{"--approval-mode", "default"},
	}
	req := domain.InvocationRequest{Prompt: "review", ExtraArgs: []string{"-y", "--approval-mode", "auto_edit"}}

	inv := newExecutor(t).Build(spec, req, "")
	want := []string{"--output-format", "json", "--approval-mode", "default", "-p", "review"}
	if diff := cmp.Diff(want, inv.Args); diff != "" {
		t.Errorf("Build() args mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"-y", "--approval-mode", "auto_edit"}, inv.Dropped); diff != "" {
		t.Errorf("Build() dropped mismatch (-want +got):\n%s", diff)
	}
}

func TestInvokeClassification(t *testing.T) {
	tests := []struct {
		name       string
		script     string
		mode       domain.PromptMode
		timeout    time.Duration
		wantStatus domain.Status
		wantText   string
		wantParsed bool
	}{
		{
			name:       "plain text success",
			script:     `echo "looks good"`,
			wantStatus: domain.StatusSuccess,
			wantText:   "looks good",
			wantParsed: true,
		},
		{
			name:       "prompt echoed from argument",
			script:     `echo "got: $1"`,
			wantStatus: domain.StatusSuccess,
			wantText:   "got: hello",
			wantParsed: true,
		},
		{
			name:       "prompt read from stdin",
			script:     `read line; echo "stdin: $line"`,
			mode:       domain.PromptModeStdin,
			wantStatus: domain.StatusSuccess,
			wantText:   "stdin: hello",
			wantParsed: true,
		},
		{
			name:       "non-zero exit with assessment is recovered",
			script:     `echo '{"verdict":"approve","overall_score":8}'; exit 1`,
			wantStatus: domain.StatusSuccess,
			wantText:   `{"verdict":"approve","overall_score":8}`,
			wantParsed: true,
		},
		{
			name:       "non-zero exit with unstructured json",
			script:     `echo '{"result":"ok"}'; exit 1`,
			wantStatus: domain.StatusExecutionError,
		},
		{
			name:       "non-zero exit with error envelope",
			script:     `echo '{"type":"result","is_error":true,"result":"API Error: 429 Too Many Requests"}'; exit 1`,
			wantStatus: domain.StatusExecutionError,
		},
		{
			name:       "non-zero exit without output",
			script:     `echo "boom" >&2; exit 2`,
			wantStatus: domain.StatusExecutionError,
		},
		{
			name:       "empty output",
			script:     `exit 0`,
			wantStatus: domain.StatusInvalidOutput,
		},
		{
			name:       "non utf8 output",
			script:     `printf '\377\376'`,
			wantStatus: domain.StatusInvalidOutput,
		},
		{
			name:       "timeout",
			script:     `exec sleep 5`,
			timeout:    200 * time.Millisecond,
			wantStatus: domain.StatusTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := domain.ProviderSpec{
				Name:       "fake",
				Executable: writeProvider(t, tt.script),
				PromptMode: tt.mode,
				Timeout:    domain.Duration(tt.timeout),
			}
			resp := newExecutor(t).Invoke(context.Background(), spec, domain.InvocationRequest{Prompt: "hello"}, "")

			if resp.Status != tt.wantStatus {
				t.Fatalf("Status = %s, want %s (error: %s)", resp.Status, tt.wantStatus, resp.Error)
			}
			if (resp.Parsed != nil) != tt.wantParsed {
				t.Fatalf("Parsed presence = %v, want %v", resp.Parsed != nil, tt.wantParsed)
			}
			if tt.wantParsed && resp.Parsed.Text != tt.wantText {
				t.Fatalf("Parsed.Text = %q, want %q", resp.Parsed.Text, tt.wantText)
			}
			if err := resp.Validate(); err != nil {
				t.Fatalf("Validate error: %v", err)
			}
			if resp.State != domain.StateForStatus(resp.Status) {
				t.Fatalf("State = %s for status %s", resp.State, resp.Status)
			}
		})
	}
}

func TestInvokeExecutionErrorDetail(t *testing.T) {
	spec := domain.ProviderSpec{Name: "fake", Executable: writeProvider(t, `echo "429 Too Many Requests" >&2; exit 1`)}
	resp := newExecutor(t).Invoke(context.Background(), spec, domain.InvocationRequest{Prompt: "hi"}, "")
	if resp.ExitCode != 1 {
		t.Fatalf("ExitCode = %d, want 1", resp.ExitCode)
	}
	if !strings.Contains(resp.Error, "Too Many Requests") {
		t.Fatalf("expected stderr in error detail, got %q", resp.Error)
	}
}

func TestInvokeNotFound(t *testing.T) {
	spec := domain.ProviderSpec{Name: "ghost", Executable: "sage-missing-provider-binary"}
	resp := newExecutor(t).Invoke(context.Background(), spec, domain.InvocationRequest{Prompt: "hi"}, "opus")
	if resp.Status != domain.StatusNotFound {
		t.Fatalf("Status = %s, want not_found", resp.Status)
	}
	if resp.Model != "opus" {
		t.Fatalf("Model = %q, want opus", resp.Model)
	}
}

func TestInvokeParentCancellationIsTimeout(t *testing.T) {
	spec := domain.ProviderSpec{Name: "slow", Executable: writeProvider(t, `exec sleep 5`)}
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	start := time.Now()
	resp := newExecutor(t).Invoke(ctx, spec, domain.InvocationRequest{Prompt: "hi"}, "")
	if resp.Status != domain.StatusTimeout {
		t.Fatalf("Status = %s, want timeout", resp.Status)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Fatalf("invoke took %s after cancellation", elapsed)
	}
}

func TestInvokeSendsContent(t *testing.T) {
	req := domain.InvocationRequest{Prompt: "Review this plan", Content: "step 1: drop the users table"}
	tests := []struct {
		name string
		mode domain.PromptMode
		body string
	}{
		{name: "stdin", mode: domain.PromptModeStdin, body: `cat; echo "$@"`},
		{name: "argument", body: `echo "$@"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := domain.ProviderSpec{Name: "fake", Executable: writeProvider(t, tt.body), PromptMode: tt.mode}
			resp := newExecutor(t).Invoke(context.Background(), spec, req, "")
			if resp.Status != domain.StatusSuccess {
				t.Fatalf("Status = %s, want success (error: %s)", resp.Status, resp.Error)
			}
			if !strings.Contains(resp.Raw, "Review this plan") || !strings.Contains(resp.Raw, "step 1: drop the users table") {
				t.Fatalf("provider did not receive prompt and content, got %q", resp.Raw)
			}
		})
	}
}

func TestInvokeErrorEnvelopeKeepsDetail(t *testing.T) {
	script := `echo '{"type":"result","is_error":true,"result":"API Error: 429 Too Many Requests"}'; exit 1`
	spec := domain.ProviderSpec{Name: "claude", Executable: writeProvider(t, script), Unwrap: "claude"}
	resp := newExecutor(t).Invoke(context.Background(), spec, domain.InvocationRequest{Prompt: "hi"}, "")
	if resp.Status != domain.StatusExecutionError {
		t.Fatalf("Status = %s, want execution_error", resp.Status)
	}
	if !strings.Contains(resp.Error, "429") {
		t.Fatalf("expected throttling detail in error, got %q", resp.Error)
	}
	if resp.Parsed != nil {
		t.Fatal("expected no parsed content for an error envelope")
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	s := strings.Repeat("a", maxErrorDetail-1) + "é" + "tail"
	got := truncate(s)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate split a rune: %q", got[len(got)-8:])
	}
	if want := strings.Repeat("a", maxErrorDetail-1) + "..."; got != want {
		t.Fatalf("truncate() = %q..., want cut before the multi-byte rune", got[maxErrorDetail-4:])
	}
	if short := truncate("short"); short != "short" {
		t.Fatalf("truncate(short) = %q", short)
	}
}
