package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the scrape service.
type Config struct {
	// Per-platform fetch behavior, keyed by platform name.
	Platforms map[string]PlatformConfig `yaml:"platforms" json:"platforms"`

	// Result cache settings.
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Credential pool settings.
	Credentials CredentialsConfig `yaml:"credentials" json:"credentials"`

	// Transport retry settings.
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// External extractor tool settings.
	ExtTool ExtToolConfig `yaml:"ext_tool" json:"ext_tool"`

	// Logging configuration.
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PlatformConfig holds per-platform fetch behavior.
type PlatformConfig struct {
	FetchTimeout      time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`
	ResolveTimeout    time.Duration `yaml:"resolve_timeout" json:"resolve_timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	// RequiresCredential forces a credential on every first attempt.
	RequiresCredential bool `yaml:"requires_credential" json:"requires_credential"`
	// StoryRequiresCredential forces a credential for story content.
	StoryRequiresCredential bool `yaml:"story_requires_credential" json:"story_requires_credential"`
}

// CacheConfig holds the result cache backend and TTL policy.
type CacheConfig struct {
	RedisAddr     string `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string `yaml:"redis_password" json:"redis_password"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db"`

	// TTL per content type. Durable posts get hours, ephemeral stories
	// minutes. Everything is capped at MaxTTL because third-party CDN
	// URLs inside a cached result expire on their own.
	PostTTL     time.Duration `yaml:"post_ttl" json:"post_ttl"`
	VideoTTL    time.Duration `yaml:"video_ttl" json:"video_ttl"`
	CarouselTTL time.Duration `yaml:"carousel_ttl" json:"carousel_ttl"`
	StoryTTL    time.Duration `yaml:"story_ttl" json:"story_ttl"`
	MaxTTL      time.Duration `yaml:"max_ttl" json:"max_ttl"`

	// AliasTTL is independent of result TTLs: a resolved short link stays
	// valid long after its result has expired.
	AliasTTL time.Duration `yaml:"alias_ttl" json:"alias_ttl"`
}

// CredentialsConfig holds the credential store and rotation policy.
type CredentialsConfig struct {
	PostgresDSN string `yaml:"postgres_dsn" json:"postgres_dsn"`
	// ErrorCooldownThreshold is how many cumulative errors put a
	// credential into cooldown. Policy constant with no documented
	// rationale upstream; kept configurable on purpose.
	ErrorCooldownThreshold int `yaml:"error_cooldown_threshold" json:"error_cooldown_threshold"`
	CooldownMinutes        int `yaml:"cooldown_minutes" json:"cooldown_minutes"`
}

// RetryConfig holds transport-level retry behavior.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
	// Strategy is one of exponential, linear, none.
	Strategy     string        `yaml:"strategy" json:"strategy"`
	BaseDelay    time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	JitterFactor float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// ExtToolConfig holds settings for the subprocess fallback extractor.
type ExtToolConfig struct {
	Path    string        `yaml:"path" json:"path"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultConfig returns a Config instance with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Platforms: map[string]PlatformConfig{
			"instagram": {
				FetchTimeout:            20 * time.Second,
				ResolveTimeout:          10 * time.Second,
				RequestsPerMinute:       30,
				UserAgent:               defaultUserAgent,
				StoryRequiresCredential: true,
			},
			"tiktok": {
				FetchTimeout:      15 * time.Second,
				ResolveTimeout:    10 * time.Second,
				RequestsPerMinute: 60,
				UserAgent:         defaultUserAgent,
			},
			"twitter": {
				FetchTimeout:      15 * time.Second,
				ResolveTimeout:    10 * time.Second,
				RequestsPerMinute: 60,
				UserAgent:         defaultUserAgent,
			},
			"youtube": {
				FetchTimeout:      45 * time.Second,
				ResolveTimeout:    10 * time.Second,
				RequestsPerMinute: 30,
				UserAgent:         defaultUserAgent,
			},
		},
		Cache: CacheConfig{
			PostTTL:     6 * time.Hour,
			VideoTTL:    6 * time.Hour,
			CarouselTTL: 6 * time.Hour,
			StoryTTL:    10 * time.Minute,
			MaxTTL:      12 * time.Hour,
			AliasTTL:    21 * 24 * time.Hour,
		},
		Credentials: CredentialsConfig{
			ErrorCooldownThreshold: 10,
			CooldownMinutes:        30,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			Strategy:     "exponential",
			BaseDelay:    time.Second,
			MaxDelay:     30 * time.Second,
			JitterFactor: 0.2,
		},
		ExtTool: ExtToolConfig{
			Path:    "scripts/ytdlp-extract.py",
			Timeout: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Platform returns the configuration for a platform, falling back to a
// generic entry when the platform has no explicit section.
func (c *Config) Platform(name string) PlatformConfig {
	if pc, ok := c.Platforms[name]; ok {
		return pc
	}
	return PlatformConfig{
		FetchTimeout:      30 * time.Second,
		ResolveTimeout:    10 * time.Second,
		RequestsPerMinute: 30,
		UserAgent:         defaultUserAgent,
	}
}

// LoadFromEnv overrides configuration from environment variables.
func (c *Config) LoadFromEnv() {
	if addr := os.Getenv("MEDIAGRAB_REDIS_ADDR"); addr != "" {
		c.Cache.RedisAddr = addr
	}
	if pass := os.Getenv("MEDIAGRAB_REDIS_PASSWORD"); pass != "" {
		c.Cache.RedisPassword = pass
	}
	if db := os.Getenv("MEDIAGRAB_REDIS_DB"); db != "" {
		if v, err := strconv.Atoi(db); err == nil {
			c.Cache.RedisDB = v
		}
	}
	if dsn := os.Getenv("MEDIAGRAB_POSTGRES_DSN"); dsn != "" {
		c.Credentials.PostgresDSN = dsn
	}
	if level := os.Getenv("MEDIAGRAB_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if path := os.Getenv("MEDIAGRAB_EXTTOOL_PATH"); path != "" {
		c.ExtTool.Path = path
	}
}

// LoadFromFile merges configuration from a YAML file. A missing file at
// the default location is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// findConfigFile checks default locations for a config file.
func (c *Config) findConfigFile() string {
	candidates := []string{"mediagrab.yaml", "config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".mediagrab.yaml"),
			filepath.Join(home, ".config", "mediagrab", "config.yaml"),
		)
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	switch c.Retry.Strategy {
	case "exponential", "linear", "none":
	default:
		return fmt.Errorf("unknown retry strategy: %q", c.Retry.Strategy)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1")
	}
	if c.Credentials.ErrorCooldownThreshold < 1 {
		return fmt.Errorf("error_cooldown_threshold must be at least 1")
	}
	if c.Cache.MaxTTL <= 0 {
		return fmt.Errorf("cache max_ttl must be positive")
	}
	for name, pc := range c.Platforms {
		if pc.FetchTimeout <= 0 {
			return fmt.Errorf("platform %s: fetch_timeout must be positive", name)
		}
	}
	return nil
}

// Load builds the effective configuration: defaults, then file, then env.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		return nil, err
	}
	cfg.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
