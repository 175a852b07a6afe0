package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Solver  SolverConfig  `yaml:"solver"`
	Session SessionConfig `yaml:"session"`
	Solve   SolveConfig   `yaml:"solve"`
	API     APIConfig     `yaml:"api"`
	Logging LoggingConfig `yaml:"logging"`
	Influx  InfluxConfig  `yaml:"influx"`
	Archive ArchiveConfig `yaml:"archive"`
}

type SolverConfig struct {
	URL               string        `yaml:"url" validate:"required,url"`
	HTTPURL           string        `yaml:"http_url" validate:"omitempty,url"`
	Protocol          string        `yaml:"protocol" validate:"oneof=json legacy auto"`
	Reconnect         bool          `yaml:"reconnect"`
	ReconnectMaxDelay time.Duration `yaml:"reconnect_max_delay" validate:"gte=0"`
}

type SessionConfig struct {
	PeriodicForcesSearching bool          `yaml:"periodic_forces_searching"`
	HistoryMaxPoints        int           `yaml:"history_max_points" validate:"gte=0"`
	DomainFallback          time.Duration `yaml:"domain_fallback" validate:"gt=0"`
}

// SolveConfig holds the trigger defaults substituted for unparsable input.
type SolveConfig struct {
	DefaultTimeout int `yaml:"default_timeout" validate:"gt=0"`
	DefaultOrder   int `yaml:"default_order" validate:"gt=1"`
}

type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" validate:"required_if=Enabled true,omitempty,hostname_port"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

type InfluxConfig struct {
	Enabled     bool   `yaml:"enabled"`
	URL         string `yaml:"url" validate:"required_if=Enabled true,omitempty,url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org" validate:"required_if=Enabled true"`
	Bucket      string `yaml:"bucket" validate:"required_if=Enabled true"`
	Measurement string `yaml:"measurement" validate:"required"`
	Buffer      int    `yaml:"buffer" validate:"gt=0"`
}

type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

var validate = validator.New()

func defaultConfig() *Config {
	return &Config{
		Solver: SolverConfig{
			URL:               "ws://localhost:8080/ws",
			Protocol:          "json",
			ReconnectMaxDelay: 30 * time.Second,
		},
		Session: SessionConfig{
			PeriodicForcesSearching: true,
			DomainFallback:          100 * time.Second,
		},
		Solve: SolveConfig{
			DefaultTimeout: 30,
			DefaultOrder:   5,
		},
		API: APIConfig{
			Addr: "127.0.0.1:9464",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Influx: InfluxConfig{
			URL:         "http://localhost:8086",
			Org:         "rulerdash",
			Bucket:      "solver",
			Measurement: "solver_history",
			Buffer:      1024,
		},
		Archive: ArchiveConfig{
			Path: defaultArchivePath(),
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads path over the defaults. A missing file is not an error: the
// defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, cfg.Validate()
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// HTTPBase returns the solver's HTTP base URL, derived from the websocket
// URL (ws://host:port/ws -> http://host:port) unless set explicitly.
func (c *Config) HTTPBase() string {
	if c.Solver.HTTPURL != "" {
		return strings.TrimRight(c.Solver.HTTPURL, "/")
	}
	u, err := url.Parse(c.Solver.URL)
	if err != nil || u.Host == "" {
		return "http://localhost:8080"
	}
	scheme := "http"
	if strings.HasPrefix(u.Scheme, "wss") {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host)
}

func defaultArchivePath() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return dir + "/rulerdash/archive"
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.local/state/rulerdash/archive"
	}
	return "rulerdash-archive"
}
