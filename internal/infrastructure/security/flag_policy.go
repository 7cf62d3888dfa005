package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/doeshing/sage-go/internal/ports"
)

// FlagPolicy strips flags that would let a provider write to disk or skip
// its permission prompts. Safety flags from the provider spec are appended
// after filtering and are not subject to it.
type FlagPolicy struct {
	rules []compiledRule
}

type compiledRule struct {
	re   *regexp.Regexp
	rule DeniedFlag
}

// DeniedFlag describes a regex-based deny rule.
type DeniedFlag struct {
	Pattern string `yaml:"pattern"`
	Message string `yaml:"message"`
}

// Violation is one argument rejected by the policy.
type Violation struct {
	Arg     string
	Pattern string
	Message string
}

// NewFlagPolicy compiles the default rules plus extra patterns from config.
func NewFlagPolicy(extra []string) (*FlagPolicy, error) {
	rules := defaultRules()
	for _, pattern := range extra {
		if strings.TrimSpace(pattern) == "" {
			continue
		}
		rules = append(rules, DeniedFlag{Pattern: pattern, Message: "denied by configuration"})
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile denied flag %q: %w", rule.Pattern, err)
		}
		compiled = append(compiled, compiledRule{re: re, rule: rule})
	}
	return &FlagPolicy{rules: compiled}, nil
}

// Filter returns args without denied entries. When a denied value follows a
// bare flag ("--sandbox danger-full-access") the flag is dropped with it.
func (p *FlagPolicy) Filter(args []string) (kept []string, dropped []string) {
	if p == nil {
		return args, nil
	}
	kept = make([]string, 0, len(args))
	for i, arg := range args {
		if p.match(arg) == nil {
			kept = append(kept, arg)
			continue
		}
		if i > 0 && !isFlag(arg) && isBareFlag(args[i-1]) && len(kept) > 0 && kept[len(kept)-1] == args[i-1] {
			dropped = append(dropped, kept[len(kept)-1])
			kept = kept[:len(kept)-1]
		}
		dropped = append(dropped, arg)
	}
	return kept, dropped
}

// Check lists every argument the policy would drop.
func (p *FlagPolicy) Check(args []string) []Violation {
	if p == nil {
		return nil
	}
	var out []Violation
	for _, arg := range args {
		if rule := p.match(arg); rule != nil {
			out = append(out, Violation{Arg: arg, Pattern: rule.rule.Pattern, Message: rule.rule.Message})
		}
	}
	return out
}

func (p *FlagPolicy) match(arg string) *compiledRule {
	for i := range p.rules {
		if p.rules[i].re.MatchString(arg) {
			return &p.rules[i]
		}
	}
	return nil
}

func isFlag(arg string) bool {
	return strings.HasPrefix(arg, "-")
}

func isBareFlag(arg string) bool {
	return isFlag(arg) && !strings.Contains(arg, "=")
}

func defaultRules() []DeniedFlag {
	return []DeniedFlag{
		{Pattern: `^--dangerously-skip-permissions(=.*)?$`, Message: "skips permission prompts"},
		{Pattern: `^--dangerously-bypass-approvals-and-sandbox(=.*)?$`, Message: "disables sandbox and approvals"},
		{Pattern: `^--full-auto(=.*)?$`, Message: "enables unattended writes"},
		{Pattern: `(?i)yolo`, Message: "auto-approves every action"},
		{Pattern: `^-y$`, Message: "auto-approves every action"},
		{Pattern: `auto_edit`, Message: "auto-approves file edits"},
		{Pattern: `danger-full-access`, Message: "grants full filesystem access"},
		{Pattern: `workspace-write`, Message: "grants workspace write access"},
		{Pattern: `bypassPermissions`, Message: "bypasses permission mode"},
		{Pattern: `acceptEdits`, Message: "auto-accepts file edits"},
		{Pattern: `^--allow-all-tools$`, Message: "enables every tool"},
	}
}

var _ ports.FlagFilter = (*FlagPolicy)(nil)
