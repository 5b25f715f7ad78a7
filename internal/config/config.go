package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "FORECAST_POSTER_CONFIG"
	sourceBaseURLEnv  = "SOURCE_BASE_URL"
	serviceURLEnv     = "BLUESKY_SERVICE_URL"
	identifierEnv     = "BLUESKY_IDENTIFIER"
	passwordEnv       = "BLUESKY_PASSWORD"
	pollIntervalEnv   = "POLL_INTERVAL"
	stateFileEnv      = "STATE_FILE"
	maxRetriesEnv     = "MAX_RETRIES"
	retryDelayEnv     = "RETRY_DELAY"
	rateLimitDelayEnv = "RATE_LIMIT_DELAY"
	requestTimeoutEnv = "REQUEST_TIMEOUT"
	postModeEnv       = "POST_MODE"
	maxImagesEnv      = "MAX_IMAGES"
	logLevelEnv       = "LOG_LEVEL"
	logFormatEnv      = "LOG_FORMAT"
	logFileEnv        = "LOG_FILE"
	metricsAddrEnv    = "METRICS_ADDR"
)

// Config holds high-level settings required across the application.
type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Bluesky   BlueskyConfig   `yaml:"bluesky"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	State     StateConfig     `yaml:"state"`
	Retry     RetryConfig     `yaml:"retry"`
	HTTP      HTTPConfig      `yaml:"http"`
	Publish   PublishConfig   `yaml:"publish"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// SourceConfig describes the directory-listing server.
type SourceConfig struct {
	BaseURL           string   `yaml:"baseUrl"`
	ExcludeSubstrings []string `yaml:"excludeSubstrings"`
	ImageExtension    string   `yaml:"imageExtension"`
	UserAgent         string   `yaml:"userAgent"`
}

// BlueskyConfig wires the PDS endpoint and account credentials.
type BlueskyConfig struct {
	ServiceURL string `yaml:"serviceUrl"`
	Identifier string `yaml:"identifier"`
	Password   string `yaml:"password"`
}

// SchedulerConfig defines how often the source is polled.
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// StateConfig locates the last-run marker file.
type StateConfig struct {
	Path string `yaml:"path"`
}

// RetryConfig bounds every retried network step.
type RetryConfig struct {
	MaxRetries     int           `yaml:"maxRetries"`
	Delay          time.Duration `yaml:"delay"`
	RateLimitDelay time.Duration `yaml:"rateLimitDelay"`
}

// HTTPConfig sets the per-request timeout.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// PublishConfig selects batch or per-image posting.
type PublishConfig struct {
	Mode      string `yaml:"mode"`
	MaxImages int    `yaml:"maxImages"`
}

// LoggingConfig controls verbosity and destinations.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// MetricsConfig enables the Prometheus listener when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads YAML configuration (if present), applies environment overrides and validates.
func Load() (Config, error) {
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (Config, error) {
	cfg := defaultConfig()

	if path, ok := lookup(configPathEnv); ok && path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str(sourceBaseURLEnv, &c.Source.BaseURL)
	str(serviceURLEnv, &c.Bluesky.ServiceURL)
	str(identifierEnv, &c.Bluesky.Identifier)
	str(passwordEnv, &c.Bluesky.Password)
	dur(pollIntervalEnv, &c.Scheduler.Interval)
	str(stateFileEnv, &c.State.Path)
	num(maxRetriesEnv, &c.Retry.MaxRetries)
	dur(retryDelayEnv, &c.Retry.Delay)
	dur(rateLimitDelayEnv, &c.Retry.RateLimitDelay)
	dur(requestTimeoutEnv, &c.HTTP.Timeout)
	str(postModeEnv, &c.Publish.Mode)
	num(maxImagesEnv, &c.Publish.MaxImages)
	str(logLevelEnv, &c.Logging.Level)
	str(logFormatEnv, &c.Logging.Format)
	str(logFileEnv, &c.Logging.File)
	str(metricsAddrEnv, &c.Metrics.Addr)

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Validate reports every missing or out-of-range setting.
func (c Config) Validate() error {
	var errs []error
	missing := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	missing(sourceBaseURLEnv, c.Source.BaseURL)
	missing(serviceURLEnv, c.Bluesky.ServiceURL)
	missing(identifierEnv, c.Bluesky.Identifier)
	missing(passwordEnv, c.Bluesky.Password)
	missing(stateFileEnv, c.State.Path)

	for name, raw := range map[string]string{sourceBaseURLEnv: c.Source.BaseURL, serviceURLEnv: c.Bluesky.ServiceURL} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", name, raw))
		}
	}

	if c.Scheduler.Interval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", pollIntervalEnv))
	}
	if c.Retry.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", maxRetriesEnv))
	}
	if c.Retry.Delay < 0 || c.Retry.RateLimitDelay < 0 {
		errs = append(errs, fmt.Errorf("%s and %s must not be negative", retryDelayEnv, rateLimitDelayEnv))
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", requestTimeoutEnv))
	}
	if c.Publish.MaxImages < 1 || c.Publish.MaxImages > 4 {
		errs = append(errs, fmt.Errorf("%s must be between 1 and 4", maxImagesEnv))
	}
	switch strings.ToLower(c.Publish.Mode) {
	case "", "batch", "per_image":
	default:
		errs = append(errs, fmt.Errorf("%s must be batch or per_image, got %q", postModeEnv, c.Publish.Mode))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Source: SourceConfig{
			ExcludeSubstrings: []string{"calibrated", "liferisk"},
			ImageExtension:    ".png",
			UserAgent:         "ForecastPoster/1.0",
		},
		Bluesky:   BlueskyConfig{ServiceURL: "https://bsky.social"},
		Scheduler: SchedulerConfig{Interval: 5 * time.Minute},
		State:     StateConfig{Path: "last_run.txt"},
		Retry: RetryConfig{
			MaxRetries:     3,
			Delay:          5 * time.Second,
			RateLimitDelay: 60 * time.Second,
		},
		HTTP:    HTTPConfig{Timeout: 30 * time.Second},
		Publish: PublishConfig{Mode: "batch", MaxImages: 4},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}
