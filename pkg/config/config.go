// Package config loads stepview's configuration: defaults, an optional
// YAML config file, and STEPVIEW_* environment overrides, in that order.
// CLI flags are applied on top by the command layer.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	// envPrefix turns period into STEPVIEW_PERIOD and
	// fetch.concurrency into STEPVIEW_FETCH_CONCURRENCY.
	envPrefix = "STEPVIEW"

	DefaultPeriod         = "day"
	DefaultOutput         = "table"
	DefaultConcurrency    = 10
	DefaultRetryAttempts  = 5
	DefaultRequestsPerSec = 10
)

// Config is the root configuration for stepview.
type Config struct {
	// Profiles is the comma-separated list of AWS profiles to query.
	Profiles string `mapstructure:"profiles"`

	// Period names the lookback window (minute, hour, today, day,
	// week, month, year).
	Period string `mapstructure:"period"`

	// Tags is a comma-separated key=value filter, AND-combined.
	Tags string `mapstructure:"tags"`

	// Regions lists regions to probe per profile. Empty means the
	// profile's configured default region.
	Regions []string `mapstructure:"regions"`

	// Output is table, json or yaml.
	Output string `mapstructure:"output"`

	Fetch FetchConfig `mapstructure:"fetch"`
}

// FetchConfig tunes the execution fetcher.
type FetchConfig struct {
	// Concurrency bounds parallel state machine fetches per profile.
	Concurrency int `mapstructure:"concurrency"`

	// RetryAttempts is the number of tries per API call when throttled.
	RetryAttempts uint `mapstructure:"retry_attempts"`

	// RequestsPerSec caps the client-side request rate per profile.
	RequestsPerSec float64 `mapstructure:"requests_per_sec"`
}

// Load builds the configuration. path points at an explicit config file;
// when empty, stepview.yaml is looked up in the working directory and is
// optional.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("profiles", "")
	v.SetDefault("period", DefaultPeriod)
	v.SetDefault("tags", "")
	v.SetDefault("regions", []string{})
	v.SetDefault("output", DefaultOutput)
	v.SetDefault("fetch.concurrency", DefaultConcurrency)
	v.SetDefault("fetch.retry_attempts", DefaultRetryAttempts)
	v.SetDefault("fetch.requests_per_sec", DefaultRequestsPerSec)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else {
		v.SetConfigName("stepview")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the fetch tunables. Profile, period, tag and output
// values are validated where they are parsed.
func (c *Config) Validate() error {
	if c.Fetch.Concurrency <= 0 {
		return fmt.Errorf("fetch.concurrency must be positive, got %d", c.Fetch.Concurrency)
	}

	if c.Fetch.RetryAttempts == 0 {
		return fmt.Errorf("fetch.retry_attempts must be at least 1")
	}

	if c.Fetch.RequestsPerSec <= 0 {
		return fmt.Errorf("fetch.requests_per_sec must be positive, got %v", c.Fetch.RequestsPerSec)
	}

	return nil
}
