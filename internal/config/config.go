package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. GITCOHORT_INGEST_WORKERS
const EnvPrefix = "GITCOHORT"

// Config holds all configuration settings
type Config struct {
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	Ingest IngestConfig `mapstructure:"ingest" yaml:"ingest"`
	Plot   PlotConfig   `mapstructure:"plot" yaml:"plot"`
	Cache  CacheConfig  `mapstructure:"cache" yaml:"cache"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
	File  string `mapstructure:"file" yaml:"file"` // empty logs to stderr only
}

type IngestConfig struct {
	Workers int  `mapstructure:"workers" yaml:"workers"`
	MinYear int  `mapstructure:"min_year" yaml:"min_year"`
	Force   bool `mapstructure:"force" yaml:"force"`
}

// PlotConfig holds the defaults of the plot command; flags override each field
type PlotConfig struct {
	Cohort     string `mapstructure:"cohort" yaml:"cohort"`
	Interval   string `mapstructure:"interval" yaml:"interval"`
	Unit       string `mapstructure:"unit" yaml:"unit"`
	Format     string `mapstructure:"format" yaml:"format"`
	MaxCohorts int    `mapstructure:"max_cohorts" yaml:"max_cohorts"`
	BriefDays  int    `mapstructure:"brief_days" yaml:"brief_days"`
	// RegistrableDomains collapses domain cohorts to their registrable domain
	RegistrableDomains bool `mapstructure:"registrable_domains" yaml:"registrable_domains"`
}

type CacheConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Path of the bbolt series cache; empty means <store>.cache next to a SQLite store
	Path string `mapstructure:"path" yaml:"path"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Ingest: IngestConfig{
			Workers: 4,
			MinYear: 1980,
		},
		Plot: PlotConfig{
			Cohort:   "firstyear",
			Interval: "year",
			Unit:     "authors",
			Format:   "long",
		},
		Cache: CacheConfig{
			Enabled: true,
		},
	}
}

// Load reads configuration from path, or from the standard locations when path is
// empty. A missing config file is not an error; defaults and the environment apply.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	setDefaults(v, cfg)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".gitcohort")
		v.AddConfigPath(".")
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".gitcohort"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Log.File = expandPath(cfg.Log.File)
	cfg.Cache.Path = expandPath(cfg.Cache.Path)
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.json", cfg.Log.JSON)
	v.SetDefault("log.file", cfg.Log.File)

	v.SetDefault("ingest.workers", cfg.Ingest.Workers)
	v.SetDefault("ingest.min_year", cfg.Ingest.MinYear)
	v.SetDefault("ingest.force", cfg.Ingest.Force)

	v.SetDefault("plot.cohort", cfg.Plot.Cohort)
	v.SetDefault("plot.interval", cfg.Plot.Interval)
	v.SetDefault("plot.unit", cfg.Plot.Unit)
	v.SetDefault("plot.format", cfg.Plot.Format)
	v.SetDefault("plot.max_cohorts", cfg.Plot.MaxCohorts)
	v.SetDefault("plot.brief_days", cfg.Plot.BriefDays)
	v.SetDefault("plot.registrable_domains", cfg.Plot.RegistrableDomains)

	v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	v.SetDefault("cache.path", cfg.Cache.Path)
}

// loadEnvFiles loads .env files in order of precedence; variables already set win
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		homeEnvFile := filepath.Join(homeDir, ".gitcohort", ".env")
		if _, err := os.Stat(homeEnvFile); err == nil {
			_ = godotenv.Load(homeEnvFile)
		}
	}
}

// CachePath returns where the series cache of store lives. Postgres stores share one
// cache under the user cache directory.
func (c *Config) CachePath(store string) string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	if !IsPostgresDSN(store) {
		return store + ".cache"
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "gitcohort", "series.cache")
}

// IsPostgresDSN reports whether store names a PostgreSQL database rather than a file
func IsPostgresDSN(store string) bool {
	return strings.HasPrefix(store, "postgres://") || strings.HasPrefix(store, "postgresql://")
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, path[1:])
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, c)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
