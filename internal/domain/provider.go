// Package domain defines core business entities and value objects for sage.
//
// This file contains provider definitions used throughout the application.
// A provider is an external command-line tool that is consulted for its
// opinion; the domain layer only describes how to call it, never how the
// process is spawned.
package domain

import "time"

// PromptMode controls how the prompt reaches the provider executable.
type PromptMode string

const (
	// PromptModeArg passes the prompt as the final argument (after PromptFlag when set).
	PromptModeArg PromptMode = "arg"
	// PromptModeStdin writes the prompt to the process's standard input.
	PromptModeStdin PromptMode = "stdin"
)

// ProviderSpec describes a provider declared in the config file.
// Specs are loaded once at startup and treated as immutable afterwards.
type ProviderSpec struct {
	Name       string   `yaml:"name" json:"name"`
	Executable string   `yaml:"executable" json:"executable"`
	Args       []string `yaml:"args,omitempty" json:"args,omitempty"`

	// PromptMode selects argument or stdin delivery. Default: arg.
	PromptMode PromptMode `yaml:"prompt_mode,omitempty" json:"prompt_mode,omitempty"`

	// PromptFlag is placed before the prompt argument (e.g. "-p"). Ignored in stdin mode.
	PromptFlag string `yaml:"prompt_flag,omitempty" json:"prompt_flag,omitempty"`

	// ModelFlag is the flag used to select a model (e.g. "--model"). Empty means
	// the provider does not support model selection and resolved models are only
	// recorded, not passed.
	ModelFlag string `yaml:"model_flag,omitempty" json:"model_flag,omitempty"`

	// SafetyFlags are always appended to every invocation, after any other flag,
	// so that last-wins parsers keep the provider read-only.
	SafetyFlags []string `yaml:"safety_flags,omitempty" json:"safety_flags,omitempty"`

	// ProbeArgs is the no-op invocation used by the availability prober.
	// Default: ["--version"].
	ProbeArgs []string `yaml:"probe_args,omitempty" json:"probe_args,omitempty"`

	Timeout         Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	DefaultModel    string   `yaml:"model,omitempty" json:"model,omitempty"`
	SupportedModels []string `yaml:"models,omitempty" json:"models,omitempty"`

	// Unwrap names the normalizer strategy. Defaults to the provider name.
	Unwrap string `yaml:"unwrap,omitempty" json:"unwrap,omitempty"`

	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// IsEnabled reports whether the provider participates in consultations.
// Providers are enabled unless explicitly disabled.
func (p ProviderSpec) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// EffectiveTimeout returns the per-call override when set, then the provider
// default, then DefaultProviderTimeout.
func (p ProviderSpec) EffectiveTimeout(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	if p.Timeout > 0 {
		return p.Timeout.Std()
	}
	return DefaultProviderTimeout
}

// GetPromptMode returns the prompt delivery mode with default fallback.
func (p ProviderSpec) GetPromptMode() PromptMode {
	if p.PromptMode == "" {
		return PromptModeArg
	}
	return p.PromptMode
}

// GetProbeArgs returns the probe arguments with default fallback.
func (p ProviderSpec) GetProbeArgs() []string {
	if len(p.ProbeArgs) == 0 {
		return []string{"--version"}
	}
	return p.ProbeArgs
}

// GetUnwrap returns the normalizer strategy name with default fallback.
func (p ProviderSpec) GetUnwrap() string {
	if p.Unwrap == "" {
		return p.Name
	}
	return p.Unwrap
}

// SupportsModel reports whether model is in the supported list. An empty
// supported list accepts any model.
func (p ProviderSpec) SupportsModel(model string) bool {
	if len(p.SupportedModels) == 0 || model == "" {
		return true
	}
	for _, m := range p.SupportedModels {
		if m == model {
			return true
		}
	}
	return false
}

// ProviderNames returns the names of specs in their given order.
func ProviderNames(specs []ProviderSpec) []string {
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		names = append(names, spec.Name)
	}
	return names
}

// ProviderStatus describes a configured provider as one calling context sees it.
type ProviderStatus struct {
	Name       string   `json:"name"`
	Executable string   `json:"executable"`
	Available  bool     `json:"available"`
	Path       string   `json:"path,omitempty"`
	Version    string   `json:"version,omitempty"`
	Model      string   `json:"model,omitempty"`
	Timeout    Duration `json:"timeout"`
}
