package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/sage-go/assets"
	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/pkg/filesystem"
	"github.com/doeshing/sage-go/internal/ports"
)

// FileLoader loads YAML configuration from ~/.sage/config.yaml (overridable via SAGE_CONFIG).
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Load implements ports.ConfigProvider. A missing file is created from the
// embedded defaults. Environment overrides are applied last.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.Path()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return domain.Config{}, err
		}
		if err := writeDefault(path); err != nil {
			return domain.Config{}, err
		}
		data = assets.DefaultConfigYAML()
	}

	cfg, err := Parse(data)
	if err != nil {
		return domain.Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := applyEnv(&cfg); err != nil {
		return domain.Config{}, fmt.Errorf("environment overrides: %w", err)
	}
	return cfg, nil
}

// Path returns the config file location.
func (l *FileLoader) Path() string {
	if l.overridePath != "" {
		return filesystem.ExpandPath(l.overridePath)
	}
	if custom := os.Getenv("SAGE_CONFIG"); custom != "" {
		return filesystem.ExpandPath(custom)
	}
	return filepath.Join(filesystem.UserHomeDir(), ".sage", "config.yaml")
}

// Save writes cfg back to the config file.
func (l *FileLoader) Save(cfg domain.Config) error {
	path := l.Path()
	if err := ensureConfigDir(path); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, domain.SecureFilePermissions)
}

// Backup copies the current config file next to itself with a timestamp
// suffix and returns the backup path.
func (l *FileLoader) Backup() (string, error) {
	path := l.Path()
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	backup := fmt.Sprintf("%s.%s.bak", path, time.Now().UTC().Format("20060102T150405"))
	if err := os.WriteFile(backup, data, domain.SecureFilePermissions); err != nil {
		return "", err
	}
	return backup, nil
}

// Reset overwrites the config file with the embedded defaults.
func (l *FileLoader) Reset() (domain.Config, error) {
	path := l.Path()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, err
	}
	if err := writeDefault(path); err != nil {
		return domain.Config{}, err
	}
	return Default(), nil
}

// Parse decodes YAML and fills defaults. Unknown keys are rejected so typos
// do not silently fall back to defaults.
func Parse(data []byte) (domain.Config, error) {
	var cfg domain.Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return domain.Config{}, err
	}
	return hydrateDefaults(cfg), nil
}

// Default returns the embedded default configuration.
func Default() domain.Config {
	cfg, err := Parse(assets.DefaultConfigYAML())
	if err != nil {
		panic(fmt.Sprintf("embedded default config is invalid: %v", err))
	}
	return cfg
}

func ensureConfigDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, domain.DirectoryPermissions)
}

func writeDefault(path string) error {
	return os.WriteFile(path, assets.DefaultConfigYAML(), domain.SecureFilePermissions)
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = "1"
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = filepath.Join(filesystem.UserHomeDir(), ".sage", "cache")
	}
	cfg.Cache.Dir = filesystem.ExpandPath(cfg.Cache.Dir)
	if cfg.Consensus.IssueMatching == "" {
		cfg.Consensus.IssueMatching = domain.IssueMatchingExact
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "warn"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	return cfg
}

// envOverrides are read with envconfig; zero values leave the file setting alone.
type envOverrides struct {
	CacheTTL     time.Duration `envconfig:"SAGE_CACHE_TTL"`
	CacheBackend string        `envconfig:"SAGE_CACHE_BACKEND"`
	CacheDir     string        `envconfig:"SAGE_CACHE_DIR"`
	MinRequired  int           `envconfig:"SAGE_MIN_REQUIRED"`
	LogLevel     string        `envconfig:"SAGE_LOG_LEVEL"`
	ServerAddr   string        `envconfig:"SAGE_SERVER_ADDR"`
	Deadline     time.Duration `envconfig:"SAGE_CONSULT_DEADLINE"`
	Debug        bool          `envconfig:"SAGE_DEBUG"`
}

func applyEnv(cfg *domain.Config) error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return err
	}
	if env.CacheTTL > 0 {
		cfg.Cache.TTL = domain.Duration(env.CacheTTL)
	}
	if env.CacheBackend != "" {
		cfg.Cache.Backend = env.CacheBackend
	}
	if env.CacheDir != "" {
		cfg.Cache.Dir = filesystem.ExpandPath(env.CacheDir)
	}
	if env.MinRequired > 0 {
		cfg.Consultation.MinRequired = env.MinRequired
	}
	if env.LogLevel != "" {
		cfg.Logging.Level = env.LogLevel
	}
	if env.Debug {
		cfg.Logging.Level = "debug"
	}
	if env.ServerAddr != "" {
		cfg.Server.Addr = env.ServerAddr
	}
	if env.Deadline > 0 {
		cfg.Consultation.Deadline = domain.Duration(env.Deadline)
	}
	return nil
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
