package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mvoigt/decledger/internal/retention"
)

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.RetentionDays != 1825 {
		t.Errorf("retention_days = %d, want 1825", cfg.RetentionDays)
	}
	if cfg.ExpiredGenerations != "archive" {
		t.Errorf("expired_generations = %s, want archive", cfg.ExpiredGenerations)
	}
	if cfg.CheckpointInterval != 100 {
		t.Errorf("checkpoint_interval = %d, want 100", cfg.CheckpointInterval)
	}
	if cfg.Rotation.MaxEntries != 10000 {
		t.Errorf("rotation.max_entries = %d, want 10000", cfg.Rotation.MaxEntries)
	}
	if !cfg.Rotation.Compress {
		t.Error("compression should default on")
	}
	if cfg.CriticalityWeights.Violation != 25 {
		t.Errorf("violation weight = %d, want 25", cfg.CriticalityWeights.Violation)
	}
	if cfg.Alerts.ViolationRate != 0.3 {
		t.Errorf("alerts.violation_rate = %f, want 0.3", cfg.Alerts.ViolationRate)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/decledger/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.RetentionDays != 1825 {
		t.Errorf("retention_days = %d, want default 1825", cfg.RetentionDays)
	}
}

func TestLoadPartialYAMLKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
retention_days: 30
expired_generations: delete
alerts:
  violation_rate: 0.5
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RetentionDays != 30 {
		t.Errorf("retention_days = %d, want 30", cfg.RetentionDays)
	}
	if cfg.RetentionMode() != retention.ModeDelete {
		t.Errorf("mode = %s, want delete", cfg.RetentionMode())
	}
	if cfg.Alerts.ViolationRate != 0.5 {
		t.Errorf("violation_rate = %f, want 0.5", cfg.Alerts.ViolationRate)
	}
	// Unspecified fields keep their defaults.
	if cfg.CheckpointInterval != 100 {
		t.Errorf("checkpoint_interval = %d, want default 100", cfg.CheckpointInterval)
	}
	if cfg.CriticalityWeights.EmergencyMode != 30 {
		t.Errorf("emergency weight = %d, want default 30", cfg.CriticalityWeights.EmergencyMode)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "retention_days: [oops"},
		{"negative retention", "retention_days: -1"},
		{"unknown mode", "expired_generations: shred"},
		{"violation rate out of range", "alerts:\n  violation_rate: 1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadWithHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("retention_days: 10\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, hash1, err := LoadWithHash(path)
	if err != nil {
		t.Fatal(err)
	}
	_, hash2, err := LoadWithHash(path)
	if err != nil {
		t.Fatal(err)
	}
	if hash1 != hash2 {
		t.Error("hash not stable for unchanged file")
	}

	if err := os.WriteFile(path, []byte("retention_days: 20\n"), 0600); err != nil {
		t.Fatal(err)
	}
	_, hash3, err := LoadWithHash(path)
	if err != nil {
		t.Fatal(err)
	}
	if hash3 == hash1 {
		t.Error("hash unchanged after edit")
	}
}

func TestConversions(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Retention() != 1825*24*time.Hour {
		t.Errorf("retention = %v", cfg.Retention())
	}
	if cfg.ProcessingCeiling() != time.Second {
		t.Errorf("ceiling = %v", cfg.ProcessingCeiling())
	}

	th := cfg.MonitorThresholds()
	if th.Window != 100 || th.MaxAvgProcessing != time.Second {
		t.Errorf("thresholds = %+v", th)
	}

	opts := cfg.FilestoreOptions()
	if opts.MaxBytes != 64<<20 || !opts.Compress {
		t.Errorf("filestore options = %+v", opts)
	}
}
