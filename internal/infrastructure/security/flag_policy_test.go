package security

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFlagPolicyFilter(t *testing.T) {
	policy, err := NewFlagPolicy([]string{`^--unsafe-extra$`})
	if err != nil {
		t.Fatalf("NewFlagPolicy error: %v", err)
	}

	tests := []struct {
		name        string
		args        []string
		wantKept    []string
		wantDropped []string
	}{
		{
			name:     "safe flags pass through",
			args:     []string{"--output-format", "json", "-p"},
			wantKept: []string{"--output-format", "json", "-p"},
		},
		{
			name:        "denied flag removed",
			args:        []string{"--dangerously-skip-permissions", "--verbose"},
			wantKept:    []string{"--verbose"},
			wantDropped: []string{"--dangerously-skip-permissions"},
		},
		{
			name:        "denied value removes its flag",
			args:        []string{"--sandbox", "danger-full-access", "--json"},
			wantKept:    []string{"--json"},
			wantDropped: []string{"--sandbox", "danger-full-access"},
		},
		{
			name:        "inline value",
			args:        []string{"--permission-mode=bypassPermissions"},
			wantKept:    []string{},
			wantDropped: []string{"--permission-mode=bypassPermissions"},
		},
		{
			name:        "gemini auto-approval",
			args:        []string{"-y", "--approval-mode", "auto_edit", "--output-format", "json"},
			wantKept:    []string{"--output-format", "json"},
			wantDropped: []string{"-y", "--approval-mode", "auto_edit"},
		},
		{
			name:        "gemini inline approval mode",
			args:        []string{"--approval-mode=auto_edit", "--approval-mode=default"},
			wantKept:    []string{"--approval-mode=default"},
			wantDropped: []string{"--approval-mode=auto_edit"},
		},
		{
			name:        "configured pattern",
			args:        []string{"--unsafe-extra", "--yolo"},
			wantKept:    []string{},
			wantDropped: []string{"--unsafe-extra", "--yolo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept, dropped := policy.Filter(tt.args)
			if diff := cmp.Diff(tt.wantKept, kept); diff != "" {
				t.Errorf("kept mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantDropped, dropped); diff != "" {
				t.Errorf("dropped mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFlagPolicyCheck(t *testing.T) {
	policy, err := NewFlagPolicy(nil)
	if err != nil {
		t.Fatalf("NewFlagPolicy error: %v", err)
	}
	violations := policy.Check([]string{"-p", "--full-auto"})
	if len(violations) != 1 || violations[0].Arg != "--full-auto" {
		t.Fatalf("unexpected violations: %+v", violations)
	}
}

func TestFlagPolicyRejectsBadPattern(t *testing.T) {
	if _, err := NewFlagPolicy([]string{"("}); err == nil {
		t.Fatal("expected compile error")
	}
}
