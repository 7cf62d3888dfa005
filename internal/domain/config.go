package domain

// Config mirrors ~/.sage/config.yaml.
type Config struct {
	ConfigFormatVersion string                       `yaml:"config_format_version"`
	Providers           []ProviderSpec               `yaml:"providers"`
	Contexts            map[string][]string          `yaml:"contexts,omitempty"`
	Routing             map[string]map[string]string `yaml:"routing,omitempty"`
	Consultation        ConsultationSettings         `yaml:"consultation"`
	Consensus           ConsensusSettings            `yaml:"consensus"`
	Cache               CacheSettings                `yaml:"cache"`
	Security            SecuritySettings             `yaml:"security"`
	Logging             LoggingSettings              `yaml:"logging"`
	Server              ServerSettings               `yaml:"server"`
}

// ConsultationSettings controls dispatch.
type ConsultationSettings struct {
	MinRequired int           `yaml:"min_required"`
	Deadline    Duration      `yaml:"deadline,omitempty"`
	MaxParallel int           `yaml:"max_parallel,omitempty"`
	Retry       RetrySettings `yaml:"retry"`
}

// RetrySettings drives the sequential fallback after a rate-limit signal.
type RetrySettings struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseBackoff Duration `yaml:"base_backoff"`
	MaxBackoff  Duration `yaml:"max_backoff"`
	MinFailures int      `yaml:"min_failures"`
	Patterns    []string `yaml:"patterns,omitempty"`
}

// ConsensusSettings configures scoring and issue merging.
type ConsensusSettings struct {
	Thresholds          `yaml:",inline"`
	IssueMatching       string  `yaml:"issue_matching,omitempty"`
	SimilarityThreshold float64 `yaml:"similarity_threshold,omitempty"`
}

// Issue matching modes.
const (
	IssueMatchingExact = "exact"
	IssueMatchingFuzzy = "fuzzy"
)

// SecuritySettings lists flag patterns that must never reach a provider.
type SecuritySettings struct {
	DeniedFlags []string `yaml:"denied_flags,omitempty"`
}

// LoggingSettings selects level and handler format.
type LoggingSettings struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// ServerSettings configures the HTTP API.
type ServerSettings struct {
	Addr string `yaml:"addr,omitempty"`
}
