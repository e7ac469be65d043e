// Package config handles configuration loading for marketgate.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the complete application configuration. Provider credentials
// are deliberately absent: they are discovered by internal/credentials
// under their historical TIINGO_* names, not by this file.
type Config struct {
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
	Upstream UpstreamConfig `mapstructure:"upstream" yaml:"upstream"`
	News     NewsConfig     `mapstructure:"news"     yaml:"news"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// Addr returns the listen address.
func (a APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// UpstreamConfig holds Tiingo client settings.
type UpstreamConfig struct {
	BaseURL          string `mapstructure:"base_url"          yaml:"base_url"`
	TimeoutSec       int    `mapstructure:"timeout_sec"       yaml:"timeout_sec"`
	RetryAttempts    int    `mapstructure:"retry_attempts"    yaml:"retry_attempts"`
	RateMaxRequests  int    `mapstructure:"rate_max_requests" yaml:"rate_max_requests"`
	RateWindowMillis int    `mapstructure:"rate_window_ms"    yaml:"rate_window_ms"`
}

// NewsConfig holds the RSS fallback feed settings.
type NewsConfig struct {
	FeedsEnabled bool `mapstructure:"feeds_enabled" yaml:"feeds_enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.marketgate/config.yaml (home directory)
//  3. /etc/marketgate/config.yaml (system)
//
// Environment variables override file values, prefixed MARKETGATE_,
// e.g. MARKETGATE_API_PORT.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".marketgate"))
	v.AddConfigPath("/etc/marketgate")

	v.SetEnvPrefix("MARKETGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine; defaults + env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("MARKETGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"*"})

	v.SetDefault("upstream.base_url", "https://api.tiingo.com")
	v.SetDefault("upstream.timeout_sec", 10)
	v.SetDefault("upstream.retry_attempts", 3)
	v.SetDefault("upstream.rate_max_requests", 5)
	v.SetDefault("upstream.rate_window_ms", 1000)

	v.SetDefault("news.feeds_enabled", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
