// Package config loads settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings.
type Config struct {
	Database Database `yaml:"database"`
	Gmail    Gmail    `yaml:"gmail"`
	LLM      LLM      `yaml:"llm"`
	Analyzer Analyzer `yaml:"analyzer"`
	Redis    Redis    `yaml:"redis"`
	Metrics  Metrics  `yaml:"metrics"`
	Log      Log      `yaml:"log"`
}

type Database struct {
	Driver string `yaml:"driver"` // "sqlite" or "pgx"
	DSN    string `yaml:"dsn"`
}

type Gmail struct {
	Credentials  string        `yaml:"credentials"`
	Token        string        `yaml:"token"`
	Limit        int64         `yaml:"limit"`
	Keywords     []string      `yaml:"keywords"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type LLM struct {
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	Timeout           time.Duration `yaml:"timeout"`
	KnowledgeBaseFile string        `yaml:"knowledge_base_file"`
}

type Analyzer struct {
	Workers  int    `yaml:"workers"`
	Schedule string `yaml:"schedule"` // cron spec used by "assist run"
}

type Redis struct {
	URL      string        `yaml:"url"` // empty disables claims
	ClaimTTL time.Duration `yaml:"claim_ttl"`
}

type Metrics struct {
	Addr string `yaml:"addr"` // empty disables the /metrics listener
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Database: Database{Driver: "sqlite"},
		Gmail: Gmail{
			Credentials:  "credentials.json",
			Token:        "token.json",
			Limit:        10,
			Keywords:     []string{"Support", "Query", "Request", "Help"},
			PollInterval: 60 * time.Second,
		},
		LLM: LLM{
			Model:   "gemini-2.5-flash-lite",
			Timeout: 60 * time.Second,
		},
		Analyzer: Analyzer{Workers: 1, Schedule: "@every 1m"},
		Redis:    Redis{ClaimTTL: 5 * time.Minute},
		Log:      Log{Level: "info", Format: "console"},
	}
}

// Load reads path (when non-empty) over the defaults, expanding ${VAR}
// references, then applies environment overrides. A missing file at
// path is an error; an empty path means defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	}

	cfg.Database.Driver = envOrDefault("ASSIST_DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = envOrDefault("ASSIST_DB_DSN", cfg.Database.DSN)
	cfg.Gmail.Credentials = envOrDefault("ASSIST_GMAIL_CREDENTIALS", cfg.Gmail.Credentials)
	cfg.Gmail.PollInterval = envOrDefaultDuration("ASSIST_POLL_INTERVAL", cfg.Gmail.PollInterval)
	cfg.LLM.APIKey = firstNonEmpty(os.Getenv("GEMINI_API_KEY"), cfg.LLM.APIKey)
	cfg.LLM.Model = envOrDefault("ASSIST_LLM_MODEL", cfg.LLM.Model)
	cfg.Analyzer.Workers = envOrDefaultInt("ASSIST_ANALYZER_WORKERS", cfg.Analyzer.Workers)
	cfg.Redis.URL = envOrDefault("ASSIST_REDIS_URL", cfg.Redis.URL)
	cfg.Metrics.Addr = envOrDefault("ASSIST_METRICS_ADDR", cfg.Metrics.Addr)
	cfg.Log.Level = envOrDefault("ASSIST_LOG_LEVEL", cfg.Log.Level)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "sqlite", "pgx":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver))
	}
	if c.Database.Driver == "pgx" && c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn: required for pgx"))
	}
	if c.Gmail.Limit <= 0 {
		errs = append(errs, fmt.Errorf("gmail.limit: must be positive, got %d", c.Gmail.Limit))
	}
	if len(c.Gmail.Keywords) == 0 {
		errs = append(errs, errors.New("gmail.keywords: at least one keyword required"))
	}
	if c.Gmail.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("gmail.poll_interval: must be positive, got %s", c.Gmail.PollInterval))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("llm.timeout: must be positive, got %s", c.LLM.Timeout))
	}
	if c.Analyzer.Workers < 1 {
		errs = append(errs, fmt.Errorf("analyzer.workers: must be at least 1, got %d", c.Analyzer.Workers))
	}
	return errors.Join(errs...)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
