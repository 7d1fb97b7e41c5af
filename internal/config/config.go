// Package config loads the ledger configuration from YAML. Durations
// appear in the file as millisecond integers and sizes as bytes; the
// accessor methods convert them into the types the other packages take.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mvoigt/decledger/internal/alert"
	"github.com/mvoigt/decledger/internal/criticality"
	"github.com/mvoigt/decledger/internal/filestore"
	"github.com/mvoigt/decledger/internal/monitor"
	"github.com/mvoigt/decledger/internal/retention"
)

// Rotation controls file store generation rollover.
type Rotation struct {
	MaxEntries int   `yaml:"max_entries"`
	MaxBytes   int64 `yaml:"max_bytes"`
	Compress   bool  `yaml:"compress"`
}

// Alerts holds the rolling-window alert thresholds. MaxAvgProcessingMS
// is milliseconds.
type Alerts struct {
	Window             int     `yaml:"window"`
	ViolationRate      float64 `yaml:"violation_rate"`
	MinAvgConfidence   float64 `yaml:"min_avg_confidence"`
	MaxAvgProcessingMS int     `yaml:"max_avg_processing_ms"`
}

// Config holds all configurable ledger parameters.
type Config struct {
	Dir                 string                `yaml:"dir"`
	RetentionDays       int                   `yaml:"retention_days"`
	ExpiredGenerations  string                `yaml:"expired_generations"` // "archive" or "delete"
	CheckpointInterval  int                   `yaml:"checkpoint_interval"`
	Rotation            Rotation              `yaml:"rotation"`
	CriticalityWeights  criticality.Weights   `yaml:"criticality_weights"`
	ProcessingCeilingMS int                   `yaml:"processing_ceiling_ms"`
	Alerts              Alerts                `yaml:"alerts"`
	Webhooks            []alert.WebhookConfig `yaml:"webhooks"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Dir:                "",
		RetentionDays:      1825,
		ExpiredGenerations: string(retention.ModeArchive),
		CheckpointInterval: 100,
		Rotation: Rotation{
			MaxEntries: 10000,
			MaxBytes:   64 << 20,
			Compress:   true,
		},
		CriticalityWeights:  criticality.DefaultWeights(),
		ProcessingCeilingMS: 1000,
		Alerts: Alerts{
			Window:             100,
			ViolationRate:      0.3,
			MinAvgConfidence:   0.5,
			MaxAvgProcessingMS: 1000,
		},
	}
}

// DefaultPath returns ~/.decledger/config.yaml, or "" when the home
// directory cannot be resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".decledger", "config.yaml")
}

// Load reads configuration from a YAML file. Empty path falls back to
// ~/.decledger/config.yaml. Missing file returns defaults. Invalid
// YAML or invalid values return an error.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash loads configuration and returns the SHA-256 of the raw
// YAML bytes on disk, so status output can tell which file is live.
// When no file exists the hash is the SHA-256 of empty input.
func LoadWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if path == "" || os.IsNotExist(err) {
			h := sha256.Sum256(nil)
			return DefaultConfig(), "sha256:" + hex.EncodeToString(h[:]), nil
		}
		return nil, "", fmt.Errorf("read config: %w", err)
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	// Start with defaults, YAML overwrites only specified fields.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, hash, nil
}

// Validate rejects values the ledger cannot run with.
func (c *Config) Validate() error {
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention_days must not be negative, got %d", c.RetentionDays)
	}
	switch retention.Mode(c.ExpiredGenerations) {
	case retention.ModeArchive, retention.ModeDelete:
	default:
		return fmt.Errorf("expired_generations must be %q or %q, got %q",
			retention.ModeArchive, retention.ModeDelete, c.ExpiredGenerations)
	}
	if c.CheckpointInterval <= 0 {
		return fmt.Errorf("checkpoint_interval must be positive, got %d", c.CheckpointInterval)
	}
	if c.Alerts.ViolationRate < 0 || c.Alerts.ViolationRate > 1 {
		return fmt.Errorf("alerts.violation_rate must be in [0,1], got %g", c.Alerts.ViolationRate)
	}
	if c.Alerts.MinAvgConfidence < 0 || c.Alerts.MinAvgConfidence > 1 {
		return fmt.Errorf("alerts.min_avg_confidence must be in [0,1], got %g", c.Alerts.MinAvgConfidence)
	}
	return nil
}

// EffectiveDir resolves the ledger directory, defaulting to
// ~/.decledger/ledger.
func (c *Config) EffectiveDir() (string, error) {
	if c.Dir != "" {
		return c.Dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve ledger dir: %w", err)
	}
	return filepath.Join(home, ".decledger", "ledger"), nil
}

// Retention returns the retention window as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// RetentionMode returns the configured handling of expired generations.
func (c *Config) RetentionMode() retention.Mode {
	return retention.Mode(c.ExpiredGenerations)
}

// ProcessingCeiling returns the slow-processing ceiling as a duration.
func (c *Config) ProcessingCeiling() time.Duration {
	return time.Duration(c.ProcessingCeilingMS) * time.Millisecond
}

// FilestoreOptions converts the rotation settings.
func (c *Config) FilestoreOptions() filestore.Options {
	return filestore.Options{
		MaxEntries: c.Rotation.MaxEntries,
		MaxBytes:   c.Rotation.MaxBytes,
		Compress:   c.Rotation.Compress,
	}
}

// MonitorThresholds converts the alert settings.
func (c *Config) MonitorThresholds() monitor.Thresholds {
	return monitor.Thresholds{
		Window:           c.Alerts.Window,
		ViolationRate:    c.Alerts.ViolationRate,
		MinAvgConfidence: c.Alerts.MinAvgConfidence,
		MaxAvgProcessing: time.Duration(c.Alerts.MaxAvgProcessingMS) * time.Millisecond,
	}
}

// DefaultConfigYAML returns a commented YAML string for decledger init.
func DefaultConfigYAML() string {
	return `# decledger configuration
# Generated by: decledger init
#
# All durations are millisecond integers; sizes are bytes.

# Ledger data directory. Empty means ~/.decledger/ledger.
dir: ""

# How long entries are kept. 1825 days = 5 years.
retention_days: 1825

# What happens to generations older than the retention window:
#   archive - move the generation file to <dir>/archive/
#   delete  - remove the file and its index rows (tombstoned)
expired_generations: archive

# A chain checkpoint is recorded every N entries.
checkpoint_interval: 100

# File store generation rollover.
rotation:
  max_entries: 10000
  max_bytes: 67108864
  compress: true

# Per-signal criticality score contributions.
# Tiers: >=80 critical, >=50 high, >=20 medium, else low.
criticality_weights:
  violation: 25
  low_confidence: 30
  moderate_confidence: 15
  compliance_flag: 25
  slow_processing: 10
  very_slow_processing: 20
  drift_detected: 15
  emergency_mode: 30

# Processing time above which the slow-processing weight applies.
processing_ceiling_ms: 1000

# Rolling-window alert thresholds.
alerts:
  window: 100
  violation_rate: 0.3
  min_avg_confidence: 0.5
  max_avg_processing_ms: 1000

# Webhook alert destinations. Format: generic | slack | pagerduty.
# An empty severities list matches critical alerts only.
# webhooks:
#   - url: https://hooks.slack.com/services/XXX
#     format: slack
#     severities: [warning, critical]
`
}
