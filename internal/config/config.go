// Package config loads service configuration from an optional YAML file,
// an optional .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendHybrid   = "hybrid" // earnings and checkpoints in postgres, gauges in clickhouse
)

// Config is the full service configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Midgard   MidgardConfig   `yaml:"midgard"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
}

type StorageConfig struct {
	Backend       string `yaml:"backend"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

type MidgardConfig struct {
	URL               string        `yaml:"url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // <= 0 disables limiting
	Burst             int           `yaml:"burst"`
	PageSize          int           `yaml:"page_size"`
}

type IngestionConfig struct {
	Pools   []string      `yaml:"pools"`
	Period  time.Duration `yaml:"period"`
	Workers int           `yaml:"workers"`
}

type HTTPConfig struct {
	Addr   string `yaml:"addr"`
	Secret string `yaml:"secret"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // console or json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Backend: BackendMemory},
		Midgard: MidgardConfig{
			URL:               "https://midgard.ninerealms.com",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 5,
			Burst:             1,
			PageSize:          400,
		},
		Ingestion: IngestionConfig{
			Pools:   []string{"BTC.BTC"},
			Period:  time.Hour,
			Workers: 8,
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
}

// Load builds a Config from defaults, then path (skipped when empty), then
// envFiles (missing files are ignored), then the process environment.
// Already-set environment variables win over .env values.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	num := func(key string, set func(string) error) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			if err := set(strings.TrimSpace(v)); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}

	str("STORAGE_BACKEND", &c.Storage.Backend)
	str("POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("CLICKHOUSE_DSN", &c.Storage.ClickhouseDSN)
	str("MIDGARD_URL", &c.Midgard.URL)
	str("SECRET_KEY", &c.HTTP.Secret)
	str("HTTP_ADDR", &c.HTTP.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_FILE", &c.Log.File)

	if v, ok := lookup("POOLS"); ok && strings.TrimSpace(v) != "" {
		c.Ingestion.Pools = SplitList(v)
	}

	num("MIDGARD_TIMEOUT", func(v string) (err error) {
		c.Midgard.Timeout, err = time.ParseDuration(v)
		return err
	})
	num("MIDGARD_RPS", func(v string) (err error) {
		c.Midgard.RequestsPerSecond, err = strconv.ParseFloat(v, 64)
		return err
	})
	num("PAGE_SIZE", func(v string) (err error) {
		c.Midgard.PageSize, err = strconv.Atoi(v)
		return err
	})
	num("SCHEDULE_PERIOD", func(v string) (err error) {
		c.Ingestion.Period, err = time.ParseDuration(v)
		return err
	})
	num("INGEST_WORKERS", func(v string) (err error) {
		c.Ingestion.Workers, err = strconv.Atoi(v)
		return err
	})

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %w", errors.Join(errs...))
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for the postgres backend")
		}
	case BackendHybrid:
		if c.Storage.PostgresDSN == "" || c.Storage.ClickhouseDSN == "" {
			return errors.New("storage.postgres_dsn and storage.clickhouse_dsn are required for the hybrid backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of memory, postgres, hybrid", c.Storage.Backend)
	}

	if c.Midgard.URL == "" {
		return errors.New("midgard.url is required")
	}
	if c.Midgard.Timeout <= 0 {
		return errors.New("midgard.timeout must be greater than 0")
	}
	if c.Midgard.PageSize < 1 || c.Midgard.PageSize > 400 {
		return errors.New("midgard.page_size must be between 1 and 400")
	}
	if len(c.Ingestion.Pools) == 0 {
		return errors.New("ingestion.pools must name at least one pool")
	}
	if c.Ingestion.Period <= 0 {
		return errors.New("ingestion.period must be greater than 0")
	}
	if c.Ingestion.Workers <= 0 {
		return errors.New("ingestion.workers must be greater than 0")
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("log.format %q is not console or json", c.Log.Format)
	}
	return nil
}

// SplitList splits a comma separated list, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
