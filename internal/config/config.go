// Package config loads and persists depot's configuration. The config is
// constructed once at startup and handed to component constructors; no
// component reads it from ambient process state.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cindergrace/depot/internal/fileutil"
)

type Config struct {
	Paths     Paths     `yaml:"paths"`
	Downloads Downloads `yaml:"downloads"`
	Disk      Disk      `yaml:"disk"`
	Security  Security  `yaml:"security"`
	Features  []string  `yaml:"features"`
}

// Paths locates the catalog document and the two storage roots. Models and
// backup are conceptually distinct directories, though they may share a
// filesystem.
type Paths struct {
	Models  string `yaml:"models"`
	Backup  string `yaml:"backup"`
	Catalog string `yaml:"catalog"`
}

// Downloads is the orchestrator policy.
type Downloads struct {
	Parallelism int `yaml:"parallelism"`
	MaxRetries  int `yaml:"max_retries"`
	RetryBaseMS int `yaml:"retry_base_ms"`
	TimeoutSecs int `yaml:"timeout_secs"`
}

// Disk holds the free-space classification thresholds.
type Disk struct {
	WarnFreeGB      int `yaml:"warn_free_gb"`
	LowFreeGB       int `yaml:"low_free_gb"`
	WarnUsedPercent int `yaml:"warn_used_percent"`
}

// Security holds the TLS override. Verification is mandatory unless this is
// set explicitly; setting it is logged at transport construction.
type Security struct {
	InsecureSkipTLSVerify bool `yaml:"insecure_skip_tls_verify"`
}

const (
	configDir   = ".depot"
	configFile  = "config.yaml"
	modelsDir   = "models"
	backupDir   = "backup"
	catalogFile = "workflow_models.json"
)

func GetHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func ConfigPath() string {
	return filepath.Join(GetHomeDir(), configDir, configFile)
}

func DefaultConfig() *Config {
	root := filepath.Join(GetHomeDir(), configDir)
	return &Config{
		Paths: Paths{
			Models:  filepath.Join(root, modelsDir),
			Backup:  filepath.Join(root, backupDir),
			Catalog: filepath.Join(root, catalogFile),
		},
		Downloads: Downloads{
			Parallelism: 2,
			MaxRetries:  3,
			RetryBaseMS: 500,
			TimeoutSecs: 60,
		},
		Disk: Disk{
			WarnFreeGB:      10,
			LowFreeGB:       50,
			WarnUsedPercent: 90,
		},
		Security: Security{},
		Features: []string{"backup", "sweep"},
	}
}

func Load() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := fileutil.AtomicWriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// EnsureDirectories creates the models and backup roots if absent.
func EnsureDirectories(cfg *Config) error {
	for _, dir := range []string{cfg.Paths.Models, cfg.Paths.Backup} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
