package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents runtime configuration. Values come from an optional YAML file
// (CONFIG_FILE) overlaid by environment variables; environment wins.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Engine   EngineConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	ConnectTimeout     time.Duration
	MigrationsDir      string
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// EngineConfig holds the change-detection tunables.
type EngineConfig struct {
	// CoverageThreshold is the minimum extracted/known ratio for a run's diff to
	// be trusted. A conservative heuristic, not a platform guarantee.
	CoverageThreshold float64

	// QuickUnfollowDays is the follow-to-unfollow window that classifies a
	// follower as a quick unfollower.
	QuickUnfollowDays int

	// SnapshotBatchSize bounds the number of follower records written per
	// transaction during snapshot commit.
	SnapshotBatchSize int

	// SchedulerSyncInterval is how often the scan scheduler re-reads the target
	// list to pick up schedule changes.
	SchedulerSyncInterval time.Duration
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultCoverageThreshold = 0.80
	defaultQuickUnfollowDays = 7
	defaultSnapshotBatchSize = 500
	defaultSchedulerSync     = time.Minute

	defaultMigrationsDir = "./migrations"
)

// fileConfig mirrors the YAML config file layout; all fields are optional.
type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Engine struct {
		CoverageThreshold float64 `yaml:"coverage_threshold"`
		QuickUnfollowDays int     `yaml:"quick_unfollow_days"`
		SnapshotBatchSize int     `yaml:"snapshot_batch_size"`
	} `yaml:"engine"`
}

// Load reads configuration, applying defaults when values are not provided.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Port:            defaultPort,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Database: DatabaseConfig{
			MaxConnections:     25,
			MaxIdleConnections: 5,
			ConnMaxLifetime:    5 * time.Minute,
			ConnectTimeout:     10 * time.Second,
			MigrationsDir:      defaultMigrationsDir,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Engine: EngineConfig{
			CoverageThreshold:     defaultCoverageThreshold,
			QuickUnfollowDays:     defaultQuickUnfollowDays,
			SnapshotBatchSize:     defaultSnapshotBatchSize,
			SchedulerSyncInterval: defaultSchedulerSync,
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.Engine.CoverageThreshold <= 0 || cfg.Engine.CoverageThreshold > 1 {
		return Config{}, fmt.Errorf("coverage threshold must be in (0, 1], got %v", cfg.Engine.CoverageThreshold)
	}
	if cfg.Engine.SnapshotBatchSize < 1 {
		return Config{}, fmt.Errorf("snapshot batch size must be positive, got %d", cfg.Engine.SnapshotBatchSize)
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if fc.Server.Port != "" {
		cfg.Server.Port = fc.Server.Port
	}
	if fc.Database.URL != "" {
		cfg.Database.URL = fc.Database.URL
	}
	if fc.Logging.Level != "" {
		level, err := parseLogLevel(fc.Logging.Level)
		if err != nil {
			return fmt.Errorf("invalid logging.level: %w", err)
		}
		cfg.Logging.Level = level
	}
	if fc.Logging.Format != "" {
		cfg.Logging.Format = fc.Logging.Format
	}
	if fc.Engine.CoverageThreshold != 0 {
		cfg.Engine.CoverageThreshold = fc.Engine.CoverageThreshold
	}
	if fc.Engine.QuickUnfollowDays != 0 {
		cfg.Engine.QuickUnfollowDays = fc.Engine.QuickUnfollowDays
	}
	if fc.Engine.SnapshotBatchSize != 0 {
		cfg.Engine.SnapshotBatchSize = fc.Engine.SnapshotBatchSize
	}

	return nil
}

func applyEnv(cfg *Config) error {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	} else if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Server.Port = port
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		cfg.Database.MigrationsDir = v
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if v := os.Getenv("COVERAGE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid COVERAGE_THRESHOLD: %w", err)
		}
		cfg.Engine.CoverageThreshold = f
	}

	if v := os.Getenv("QUICK_UNFOLLOW_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid QUICK_UNFOLLOW_DAYS: must be a positive integer")
		}
		cfg.Engine.QuickUnfollowDays = n
	}

	if v := os.Getenv("SNAPSHOT_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid SNAPSHOT_BATCH_SIZE: must be a positive integer")
		}
		cfg.Engine.SnapshotBatchSize = n
	}

	return nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
