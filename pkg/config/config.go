// Package config loads the settings of a Socrata client from a YAML file
// and SOCRATA_* environment variables. Nothing in the SDK reads the
// environment on its own; a loaded Config is passed to the client
// explicitly.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/socrata/socrata-sdk-go/utils"
)

const (
	EnvHost              = "SOCRATA_HOST"
	EnvUsername          = "SOCRATA_USERNAME"
	EnvPassword          = "SOCRATA_PASSWORD"
	EnvAppToken          = "SOCRATA_APP_TOKEN"
	EnvLogLevel          = "SOCRATA_LOG_LEVEL"
	EnvLogJSON           = "SOCRATA_LOG_JSON"
	EnvRequestsPerMinute = "SOCRATA_REQUESTS_PER_MINUTE"
	EnvPollInterval      = "SOCRATA_POLL_INTERVAL"
	EnvMaxPolls          = "SOCRATA_MAX_POLLS"
	EnvMaxFlushRetries   = "SOCRATA_MAX_FLUSH_RETRIES"
	EnvGzip              = "SOCRATA_GZIP"
	EnvTimeout           = "SOCRATA_TIMEOUT"
)

const (
	defaultLogLevel        = "info"
	defaultPollInterval    = 1 * time.Second
	defaultMaxPolls        = 300
	defaultMaxFlushRetries = 10
	defaultTimeout         = 30 * time.Second
)

// Config holds everything needed to talk to one Socrata site.
type Config struct {
	// Host is either a bare host name or the full base URL of the API.
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	AppToken string `yaml:"app_token"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	// RequestsPerMinute caps outgoing requests. Zero disables the cap.
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	MaxPolls          int           `yaml:"max_polls"`
	MaxFlushRetries   int           `yaml:"max_flush_retries"`
	Gzip              bool          `yaml:"gzip"`
	Timeout           time.Duration `yaml:"timeout"`
}

// Default returns a Config with every optional setting filled in.
func Default() Config {
	return Config{
		LogLevel:        defaultLogLevel,
		PollInterval:    defaultPollInterval,
		MaxPolls:        defaultMaxPolls,
		MaxFlushRetries: defaultMaxFlushRetries,
		Timeout:         defaultTimeout,
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("opening config file: %w", err)
	}
	defer file.Close()

	cfg, err := Parse(file)
	if err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg = cfg.WithEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML from r over the defaults. An empty document yields
// the defaults.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds a Config from the defaults and the environment only.
func FromEnv() (Config, error) {
	cfg := Default().WithEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithEnv returns a copy of c with every SOCRATA_* variable that is set
// taking precedence.
func (c Config) WithEnv() Config {
	c.Host = utils.GetEnv(EnvHost, c.Host)
	c.Username = utils.GetEnv(EnvUsername, c.Username)
	c.Password = utils.GetEnv(EnvPassword, c.Password)
	c.AppToken = utils.GetEnv(EnvAppToken, c.AppToken)
	c.LogLevel = strings.ToLower(utils.GetEnv(EnvLogLevel, c.LogLevel))
	c.LogJSON = utils.GetEnvAsBool(EnvLogJSON, c.LogJSON)
	c.RequestsPerMinute = utils.GetEnvAsInt(EnvRequestsPerMinute, c.RequestsPerMinute)
	c.PollInterval = utils.GetEnvAsDuration(EnvPollInterval, c.PollInterval)
	c.MaxPolls = utils.GetEnvAsInt(EnvMaxPolls, c.MaxPolls)
	c.MaxFlushRetries = utils.GetEnvAsInt(EnvMaxFlushRetries, c.MaxFlushRetries)
	c.Gzip = utils.GetEnvAsBool(EnvGzip, c.Gzip)
	c.Timeout = utils.GetEnvAsDuration(EnvTimeout, c.Timeout)
	return c
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var err error
	if _, urlErr := utils.URL(c.Host); urlErr != nil {
		err = multierr.Append(err, fmt.Errorf("%s: %w", EnvHost, urlErr))
	}
	if c.Username == "" {
		err = multierr.Append(err, fmt.Errorf("%s is required", EnvUsername))
	}
	if c.Password == "" {
		err = multierr.Append(err, fmt.Errorf("%s is required", EnvPassword))
	}
	if c.AppToken == "" {
		err = multierr.Append(err, fmt.Errorf("%s is required", EnvAppToken))
	}
	if _, levelErr := parseLevel(c.LogLevel); levelErr != nil {
		err = multierr.Append(err, levelErr)
	}
	if c.RequestsPerMinute < 0 {
		err = multierr.Append(err, fmt.Errorf("requests per minute must not be negative"))
	}
	if c.PollInterval < 0 {
		err = multierr.Append(err, fmt.Errorf("poll interval must not be negative"))
	}
	if c.MaxPolls <= 0 {
		err = multierr.Append(err, fmt.Errorf("max polls must be positive"))
	}
	if c.MaxFlushRetries < 0 {
		err = multierr.Append(err, fmt.Errorf("max flush retries must not be negative"))
	}
	if c.Timeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("timeout must be positive"))
	}
	return err
}

// URL returns the base endpoint derived from Host.
func (c Config) URL() (string, error) {
	return utils.URL(c.Host)
}

// BuildLogger returns a logger writing to w at the configured level.
func BuildLogger(c Config, w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	hOpts := &slog.HandlerOptions{Level: level}
	if c.LogJSON {
		return slog.New(slog.NewJSONHandler(w, hOpts))
	}
	return slog.New(slog.NewTextHandler(w, hOpts))
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
}
