package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when --config is not given.
const DefaultPath = "banksync.yaml"

// EnvPrefix prefixes every environment override, e.g. BANKSYNC_BACKEND_BASE_URL.
const EnvPrefix = "BANKSYNC_"

// Config represents the top-level banksync.yaml configuration.
type Config struct {
	Backend    BackendConfig    `yaml:"backend" env:", prefix=BACKEND_"`
	Auth       AuthConfig       `yaml:"auth" env:", prefix=AUTH_"`
	Sync       SyncConfig       `yaml:"sync" env:", prefix=SYNC_"`
	Thresholds ThresholdsConfig `yaml:"thresholds" env:", prefix=THRESHOLDS_"`
	Logging    LoggingConfig    `yaml:"logging" env:", prefix=LOG_"`
	Activity   ActivityConfig   `yaml:"activity" env:", prefix=ACTIVITY_"`
	Locale     string           `yaml:"locale" env:"LOCALE, overwrite"`
}

// BackendConfig locates the bank-integration API.
type BackendConfig struct {
	BaseURL        string        `yaml:"base_url" env:"BASE_URL, overwrite"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT, overwrite"` // non-sync calls
}

// AuthConfig supplies the per-request credential.
type AuthConfig struct {
	Token string `yaml:"token,omitempty" env:"TOKEN, overwrite"`
}

// SyncConfig controls sync and preview execution.
type SyncConfig struct {
	Deadline     time.Duration `yaml:"deadline" env:"DEADLINE, overwrite"`
	DefaultScope string        `yaml:"default_scope" env:"DEFAULT_SCOPE, overwrite"`
}

// ThresholdsConfig controls how candidate confidence is presented.
type ThresholdsConfig struct {
	AutoConfirm float64 `yaml:"auto_confirm" env:"AUTO_CONFIRM, overwrite"`
	ReviewFlag  float64 `yaml:"review_flag" env:"REVIEW_FLAG, overwrite"`
}

// LoggingConfig controls the logger.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL, overwrite"`
	Format string `yaml:"format" env:"FORMAT, overwrite"` // "text" or "json"
}

// ActivityConfig locates the local activity log.
type ActivityConfig struct {
	Dir string `yaml:"dir" env:"DIR, overwrite"`
}

// Load reads a banksync.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault reads path if it exists and falls back to Default otherwise.
// Environment overrides are applied in both cases.
func LoadOrDefault(ctx context.Context, path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
	} else if err != nil {
		return nil, err
	}
	if err := ApplyEnv(ctx, cfg, envconfig.OsLookuper()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with BANKSYNC_* variables found by l.
func ApplyEnv(ctx context.Context, cfg *Config, l envconfig.Lookuper) error {
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, l),
	})
	if err != nil {
		return fmt.Errorf("applying environment: %w", err)
	}
	return nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new installation.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:        "http://localhost:8000/api/bank-integration",
			RequestTimeout: 30 * time.Second,
		},
		Sync: SyncConfig{
			Deadline:     60 * time.Second,
			DefaultScope: "recent",
		},
		Thresholds: ThresholdsConfig{
			AutoConfirm: 0.95,
			ReviewFlag:  0.70,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Activity: ActivityConfig{
			Dir: ".banksync",
		},
		Locale: "en",
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Backend.BaseURL == "":
		return errors.New("backend.base_url is required")
	case c.Backend.RequestTimeout <= 0:
		return fmt.Errorf("backend.request_timeout must be positive, got %s", c.Backend.RequestTimeout)
	case c.Sync.Deadline <= 0:
		return fmt.Errorf("sync.deadline must be positive, got %s", c.Sync.Deadline)
	case c.Thresholds.AutoConfirm < 0 || c.Thresholds.AutoConfirm > 1:
		return fmt.Errorf("thresholds.auto_confirm must be in [0,1], got %v", c.Thresholds.AutoConfirm)
	case c.Thresholds.ReviewFlag < 0 || c.Thresholds.ReviewFlag > 1:
		return fmt.Errorf("thresholds.review_flag must be in [0,1], got %v", c.Thresholds.ReviewFlag)
	case c.Thresholds.ReviewFlag > c.Thresholds.AutoConfirm:
		return fmt.Errorf("thresholds.review_flag (%v) exceeds auto_confirm (%v)", c.Thresholds.ReviewFlag, c.Thresholds.AutoConfirm)
	}
	return nil
}
