// Package config loads run settings.
//
// Precedence, lowest first: built-in defaults, the YAML file named by
// --config or $PEERINGMATCHER_CONFIG, PEERINGMATCHER_* environment variables,
// then command-line flags (applied by the caller).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"peeringmatcher/internal/overlap"
)

const (
	SourceAPI      = "api"
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
)

const (
	DefaultASN    = 8283
	DefaultAPIURL = "https://www.peeringdb.com/api"
)

type Config struct {
	DefaultASN   uint32        `yaml:"default_asn"`
	Source       string        `yaml:"source"`
	APIURL       string        `yaml:"api_url"`
	APIKey       string        `yaml:"api_key"`
	DSN          string        `yaml:"dsn"`
	Timeout      time.Duration `yaml:"timeout"`
	Concurrency  int           `yaml:"concurrency"`
	Retries      int           `yaml:"retries"`
	ExchangeRule string        `yaml:"exchange_rule"`
	FacilityRule string        `yaml:"facility_rule"`
	LogLevel     string        `yaml:"log_level"`
	ServeAddr    string        `yaml:"serve_addr"`
	MetricsFile  string        `yaml:"metrics_file"`
}

func Default() *Config {
	return &Config{
		DefaultASN:  DefaultASN,
		Source:      SourceAPI,
		APIURL:      DefaultAPIURL,
		Timeout:     30 * time.Second,
		Concurrency: 4,
		Retries:     3,
		LogLevel:    "warn",
		ServeAddr:   ":8080",
	}
}

// Load reads path (if non-empty) over the defaults and then applies the
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("PEERINGMATCHER_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("PEERINGMATCHER_SOURCE", &c.Source)
	str("PEERINGMATCHER_API_URL", &c.APIURL)
	str("PEERINGMATCHER_API_KEY", &c.APIKey)
	str("PEERINGMATCHER_DSN", &c.DSN)
	str("PEERINGMATCHER_EXCHANGE_RULE", &c.ExchangeRule)
	str("PEERINGMATCHER_FACILITY_RULE", &c.FacilityRule)
	str("PEERINGMATCHER_LOG_LEVEL", &c.LogLevel)
	str("PEERINGMATCHER_SERVE_ADDR", &c.ServeAddr)
	str("PEERINGMATCHER_METRICS_FILE", &c.MetricsFile)

	if v, ok := lookup("PEERINGMATCHER_DEFAULT_ASN"); ok && v != "" {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return fmt.Errorf("PEERINGMATCHER_DEFAULT_ASN: %w", err)
		}
		c.DefaultASN = uint32(n)
	}
	if v, ok := lookup("PEERINGMATCHER_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("PEERINGMATCHER_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v, ok := lookup("PEERINGMATCHER_CONCURRENCY"); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("PEERINGMATCHER_CONCURRENCY: %w", err)
		}
		c.Concurrency = n
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.Source = strings.ToLower(strings.TrimSpace(c.Source))
	if c.Source == "" {
		c.Source = SourceAPI
	}
	if strings.TrimSpace(c.APIURL) == "" {
		c.APIURL = DefaultAPIURL
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
}

// Finalize normalizes values set after Load, such as command-line flags,
// and validates the result.
func (c *Config) Finalize() error {
	c.applyDefaults()
	return c.Validate()
}

// Validate checks settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	switch c.Source {
	case SourceAPI:
	case SourcePostgres, SourceSQLite:
		if strings.TrimSpace(c.DSN) == "" {
			return fmt.Errorf("source %q requires a dsn", c.Source)
		}
	default:
		return fmt.Errorf("unknown source %q (want api, postgres or sqlite)", c.Source)
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	return nil
}

// Policy builds the threshold policy. Empty rules keep the per-kind defaults.
func (c *Config) Policy() (overlap.Policy, error) {
	ex, err := overlap.ParseRule(c.ExchangeRule)
	if err != nil {
		return overlap.Policy{}, fmt.Errorf("exchange_rule: %w", err)
	}
	fac, err := overlap.ParseRule(c.FacilityRule)
	if err != nil {
		return overlap.Policy{}, fmt.Errorf("facility_rule: %w", err)
	}
	return overlap.Policy{Exchange: ex, Facility: fac}, nil
}
