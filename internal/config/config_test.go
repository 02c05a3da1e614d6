package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"log/slog"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "SERVER_PORT", "SERVER_READ_TIMEOUT_SECONDS", "SERVER_WRITE_TIMEOUT_SECONDS",
		"SERVER_SHUTDOWN_TIMEOUT_SECONDS", "LOG_LEVEL", "LOG_FORMAT", "DATABASE_URL",
		"MIGRATIONS_DIR", "CONFIG_FILE", "COVERAGE_THRESHOLD", "QUICK_UNFOLLOW_DAYS",
		"SNAPSHOT_BATCH_SIZE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != defaultPort {
		t.Errorf("expected default port %q, got %q", defaultPort, cfg.Server.Port)
	}
	if cfg.Logging.Level != slog.LevelInfo {
		t.Errorf("expected default log level %v, got %v", slog.LevelInfo, cfg.Logging.Level)
	}
	if cfg.Logging.Format != defaultLogFormat {
		t.Errorf("expected default log format %q, got %q", defaultLogFormat, cfg.Logging.Format)
	}
	if cfg.Engine.CoverageThreshold != defaultCoverageThreshold {
		t.Errorf("expected default coverage threshold %v, got %v", defaultCoverageThreshold, cfg.Engine.CoverageThreshold)
	}
	if cfg.Engine.QuickUnfollowDays != defaultQuickUnfollowDays {
		t.Errorf("expected default quick-unfollow window %d, got %d", defaultQuickUnfollowDays, cfg.Engine.QuickUnfollowDays)
	}
	if cfg.Engine.SnapshotBatchSize != defaultSnapshotBatchSize {
		t.Errorf("expected default snapshot batch size %d, got %d", defaultSnapshotBatchSize, cfg.Engine.SnapshotBatchSize)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	clearConfigEnv(t)

	overrides := map[string]string{
		"SERVER_PORT":                 "9090",
		"SERVER_READ_TIMEOUT_SECONDS": "30",
		"LOG_LEVEL":                   "debug",
		"LOG_FORMAT":                  "text",
		"DATABASE_URL":                "postgres://localhost/followlytics_test",
		"COVERAGE_THRESHOLD":          "0.9",
		"QUICK_UNFOLLOW_DAYS":         "3",
		"SNAPSHOT_BATCH_SIZE":         "100",
	}
	for key, value := range overrides {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected overridden port 9090, got %q", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("expected read timeout %v, got %v", 30*time.Second, cfg.Server.ReadTimeout)
	}
	if cfg.Logging.Level != slog.LevelDebug {
		t.Errorf("expected log level %v, got %v", slog.LevelDebug, cfg.Logging.Level)
	}
	if cfg.Database.URL != overrides["DATABASE_URL"] {
		t.Errorf("expected database URL %q, got %q", overrides["DATABASE_URL"], cfg.Database.URL)
	}
	if cfg.Engine.CoverageThreshold != 0.9 {
		t.Errorf("expected coverage threshold 0.9, got %v", cfg.Engine.CoverageThreshold)
	}
	if cfg.Engine.QuickUnfollowDays != 3 {
		t.Errorf("expected quick-unfollow window 3, got %d", cfg.Engine.QuickUnfollowDays)
	}
	if cfg.Engine.SnapshotBatchSize != 100 {
		t.Errorf("expected snapshot batch size 100, got %d", cfg.Engine.SnapshotBatchSize)
	}
}

func TestLoadFromFileEnvWins(t *testing.T) {
	clearConfigEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "followlytics.yaml")
	contents := []byte(`
server:
  port: "7070"
engine:
  coverage_threshold: 0.75
  quick_unfollow_days: 14
`)
	if err := os.WriteFile(path, contents, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("COVERAGE_THRESHOLD", "0.85")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected file port 7070, got %q", cfg.Server.Port)
	}
	if cfg.Engine.QuickUnfollowDays != 14 {
		t.Errorf("expected file quick-unfollow window 14, got %d", cfg.Engine.QuickUnfollowDays)
	}
	// Environment overlays the file.
	if cfg.Engine.CoverageThreshold != 0.85 {
		t.Errorf("expected env coverage threshold 0.85, got %v", cfg.Engine.CoverageThreshold)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad log format", key: "LOG_FORMAT", value: "pretty"},
		{name: "bad log level", key: "LOG_LEVEL", value: "loud"},
		{name: "bad coverage threshold", key: "COVERAGE_THRESHOLD", value: "1.5"},
		{name: "negative quick-unfollow window", key: "QUICK_UNFOLLOW_DAYS", value: "-1"},
		{name: "zero batch size", key: "SNAPSHOT_BATCH_SIZE", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s, got nil", tt.key, tt.value)
			}
		})
	}
}
