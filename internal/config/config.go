package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/zombar/monitorclient/internal/endpoint"
	"github.com/zombar/monitorclient/pkg/logging"
)

// EnvPrefix is prepended to every environment variable, e.g. MONITOR_API_ORIGIN
const EnvPrefix = "MONITOR"

// Config holds all application configuration
type Config struct {
	API     API     `mapstructure:"api"`
	Batch   Batch   `mapstructure:"batch"`
	Logging Logging `mapstructure:"logging"`
	Tracing Tracing `mapstructure:"tracing"`
}

// API holds the backend location and request settings
type API struct {
	Origin  string        `mapstructure:"origin"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Batch holds queue, journal and status server settings
type Batch struct {
	RedisAddr   string        `mapstructure:"redis_addr"`
	DBPath      string        `mapstructure:"db_path"`
	Concurrency int           `mapstructure:"concurrency"`
	StatusAddr  string        `mapstructure:"status_addr"`
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
}

// Logging holds logger settings
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Tracing holds OpenTelemetry settings
type Tracing struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// Options tells Load where to look. Zero values use the defaults.
type Options struct {
	ConfigFile string         // explicit config file; otherwise ./.monitorclient.yaml or $HOME
	EnvFile    string         // dotenv file, ".env" when empty
	Flags      *pflag.FlagSet // command line flags that override every other source
}

// flagKeys maps command line flag names to configuration keys
var flagKeys = map[string]string{
	"origin":     "api.origin",
	"base-url":   "api.base_url",
	"timeout":    "api.timeout",
	"log-level":  "logging.level",
	"log-format": "logging.format",
	"log-file":   "logging.file",
}

// Load reads configuration from defaults, an optional YAML file, the dotenv
// file, MONITOR_* environment variables and flags, in increasing precedence.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// Load .env file if it exists; variables already set are kept
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("error loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName(".monitorclient")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("error binding flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.origin", "")
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.timeout", "0s")

	v.SetDefault("batch.redis_addr", "localhost:6379")
	v.SetDefault("batch.db_path", "monitorclient.db")
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("batch.status_addr", ":9090")
	v.SetDefault("batch.task_timeout", "5m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "monitorclient")
}

func validate(cfg *Config) error {
	if cfg.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative: %s", cfg.API.Timeout)
	}
	if cfg.Batch.Concurrency <= 0 {
		return fmt.Errorf("batch.concurrency must be positive: %d", cfg.Batch.Concurrency)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json: %q", cfg.Logging.Format)
	}
	return nil
}

// BaseURL is the backend address: the explicit override when set, otherwise
// the origin resolved against the local fallback.
func (c *Config) BaseURL() string {
	return endpoint.BaseURL(c.API.BaseURL, c.API.Origin)
}

// LogOptions converts the logging section for pkg/logging
func (c *Config) LogOptions() logging.Options {
	return logging.Options{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		File:   c.Logging.File,
	}
}
