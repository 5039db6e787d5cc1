// Package config loads service configuration from an optional YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the card scanner.
type Config struct {
	Port string `yaml:"port" env:"PORT" env-default:"8080"`
	Env  string `yaml:"env" env:"ENVIRONMENT" env-default:"production"`

	// go-sqlite3 DSN
	DBPath string `yaml:"db_path" env:"DB_PATH" env-default:"./tcg_scan.db?_foreign_keys=on"`

	CORSAllowedOrigins string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:5173,http://localhost:3000"`

	// Empty means the embedded vocabulary.
	VocabularyPath string `yaml:"vocabulary_path" env:"VOCABULARY_PATH" env-default:""`

	OCR     OCRConfig     `yaml:"ocr"`
	TCGCSV  TCGCSVConfig  `yaml:"tcgcsv"`
	Catalog CatalogConfig `yaml:"catalog"`
}

// OCRConfig controls the image OCR collaborator and run persistence.
type OCRConfig struct {
	Enabled   bool   `yaml:"enabled" env:"OCR_ENABLED" env-default:"true"`
	Language  string `yaml:"language" env:"OCR_LANGUAGE" env-default:"eng"`
	CacheSize int    `yaml:"cache_size" env:"OCR_CACHE_SIZE" env-default:"128"`
	// PersistRuns appends every identification to ocr_runs/ocr_results.
	PersistRuns bool `yaml:"persist_runs" env:"PERSIST_OCR_RUNS" env-default:"true"`
}

// TCGCSVConfig configures the upstream pricing API client.
type TCGCSVConfig struct {
	BaseURL    string        `yaml:"base_url" env:"TCGCSV_BASE_URL" env-default:"https://tcgcsv.com/tcgplayer"`
	CategoryID int           `yaml:"category_id" env:"TCGCSV_CATEGORY_ID" env-default:"3"`
	Throttle   time.Duration `yaml:"throttle" env:"TCGCSV_THROTTLE" env-default:"150ms"`
	Retries    int           `yaml:"retries" env:"TCGCSV_RETRIES" env-default:"3"`
	Timeout    time.Duration `yaml:"timeout" env:"TCGCSV_TIMEOUT" env-default:"30s"`
}

// CatalogConfig controls catalog ingestion.
type CatalogConfig struct {
	SyncOnStartup bool `yaml:"sync_on_startup" env:"SYNC_CATALOG_ON_STARTUP" env-default:"false"`
}

// Load reads path if it exists, otherwise environment variables only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
			return cfg, cfg.validate()
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.TCGCSV.CategoryID <= 0 {
		return fmt.Errorf("tcgcsv.category_id must be positive, got %d", c.TCGCSV.CategoryID)
	}
	if c.TCGCSV.Retries < 1 {
		return fmt.Errorf("tcgcsv.retries must be at least 1, got %d", c.TCGCSV.Retries)
	}
	if c.OCR.CacheSize < 1 {
		return fmt.Errorf("ocr.cache_size must be at least 1, got %d", c.OCR.CacheSize)
	}
	return nil
}

// IsLocal reports whether the service runs in a developer environment.
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == "development"
}

// AllowedOrigins splits CORSAllowedOrigins.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
