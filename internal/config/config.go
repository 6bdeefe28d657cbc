// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Healing() HealingConfig
	Browser() BrowserConfig

	// Healing Setters
	SetHealingTimeout(d time.Duration)
	SetHealingContextSelector(s string)
	SetHealingCollectionMode(m CollectionMode)
	SetHealingDebugLog(b bool)

	// Browser Setters
	SetBrowserDriver(d DriverKind)
	SetBrowserHeadless(b bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	HealingCfg HealingConfig `mapstructure:"healing" yaml:"healing"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Healing() HealingConfig { return c.HealingCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }

// --- Interface Method Implementations (Setters) ---

// Healing Setters
func (c *Config) SetHealingTimeout(d time.Duration)  { c.HealingCfg.Timeout = d }
func (c *Config) SetHealingContextSelector(s string) { c.HealingCfg.ContextSelector = s }
func (c *Config) SetHealingCollectionMode(m CollectionMode) {
	c.HealingCfg.CollectionMode = m
}
func (c *Config) SetHealingDebugLog(b bool) { c.HealingCfg.DebugLog = b }

// Browser Setters
func (c *Config) SetBrowserDriver(d DriverKind) { c.BrowserCfg.Driver = d }
func (c *Config) SetBrowserHeadless(b bool)     { c.BrowserCfg.Headless = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// CollectionMode selects how strictly the candidate collector filters elements.
type CollectionMode string

const (
	// CollectionStrict applies the interactive allow-list and the structural block-list.
	CollectionStrict CollectionMode = "strict"
	// CollectionPermissive applies the allow-list but lets structural tags through
	// when they otherwise look interactive (e.g. a div with role=button).
	CollectionPermissive CollectionMode = "permissive"
)

// HealingConfig tunes the locator resolution pipeline.
type HealingConfig struct {
	// Timeout bounds every wait in a resolution attempt.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// ShortTimeout caps the direct, sanitized and cached strategies.
	ShortTimeout time.Duration `mapstructure:"short_timeout" yaml:"short_timeout"`
	// MediumTimeout caps validation of a fuzzy candidate.
	MediumTimeout       time.Duration  `mapstructure:"medium_timeout" yaml:"medium_timeout"`
	ContextSelector     string         `mapstructure:"context_selector" yaml:"context_selector"`
	Threshold           float64        `mapstructure:"threshold" yaml:"threshold"`
	CollectionMode      CollectionMode `mapstructure:"collection_mode" yaml:"collection_mode"`
	MaxDepth            int            `mapstructure:"max_depth" yaml:"max_depth"`
	DescribeConcurrency int            `mapstructure:"describe_concurrency" yaml:"describe_concurrency"`
	PollInterval        time.Duration  `mapstructure:"poll_interval" yaml:"poll_interval"`
	ClickRetries        int            `mapstructure:"click_retries" yaml:"click_retries"`
	ClickBackoff        time.Duration  `mapstructure:"click_backoff" yaml:"click_backoff"`
	RandomRetries       int            `mapstructure:"random_retries" yaml:"random_retries"`
	RandomBackoff       time.Duration  `mapstructure:"random_backoff" yaml:"random_backoff"`
	// DebugLog appends every healing log line to DebugLogFile.
	DebugLog     bool   `mapstructure:"debug_log" yaml:"debug_log"`
	DebugLogFile string `mapstructure:"debug_log_file" yaml:"debug_log_file"`
}

// DriverKind names a browser automation backend.
type DriverKind string

const (
	DriverChromedp   DriverKind = "chromedp"
	DriverPlaywright DriverKind = "playwright"
)

// BrowserConfig holds settings for the live browser drivers.
type BrowserConfig struct {
	Driver            DriverKind    `mapstructure:"driver" yaml:"driver"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// PlaywrightBrowser is one of chromium, firefox or webkit.
	PlaywrightBrowser string   `mapstructure:"playwright_browser" yaml:"playwright_browser"`
	Args              []string `mapstructure:"args" yaml:"args"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "healer")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Healing --
	v.SetDefault("healing.timeout", "5s")
	v.SetDefault("healing.short_timeout", "1s")
	v.SetDefault("healing.medium_timeout", "2s")
	v.SetDefault("healing.context_selector", "*")
	v.SetDefault("healing.threshold", 0.4)
	v.SetDefault("healing.collection_mode", string(CollectionStrict))
	v.SetDefault("healing.max_depth", 8)
	v.SetDefault("healing.describe_concurrency", 8)
	v.SetDefault("healing.poll_interval", "50ms")
	v.SetDefault("healing.click_retries", 2)
	v.SetDefault("healing.click_backoff", "500ms")
	v.SetDefault("healing.random_retries", 3)
	v.SetDefault("healing.random_backoff", "1s")
	v.SetDefault("healing.debug_log", false)
	v.SetDefault("healing.debug_log_file", "healing-debug.log")

	// -- Browser --
	v.SetDefault("browser.driver", string(DriverChromedp))
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.playwright_browser", "chromium")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The debug flag keeps the name the test suites already export.
	if err := v.BindEnv("healing.debug_log", "DEBUG_HEALING"); err != nil {
		return nil, fmt.Errorf("error binding DEBUG_HEALING: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves "~" in file locations.
func (c *Config) expandPaths() error {
	var err error
	if c.LoggerCfg.LogFile, err = homedir.Expand(c.LoggerCfg.LogFile); err != nil {
		return fmt.Errorf("invalid logger.log_file: %w", err)
	}
	if c.HealingCfg.DebugLogFile, err = homedir.Expand(c.HealingCfg.DebugLogFile); err != nil {
		return fmt.Errorf("invalid healing.debug_log_file: %w", err)
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.HealingCfg.Validate(); err != nil {
		return fmt.Errorf("healing configuration invalid: %w", err)
	}
	if err := c.BrowserCfg.Validate(); err != nil {
		return fmt.Errorf("browser configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the healing configuration.
func (h *HealingConfig) Validate() error {
	if h.Timeout <= 0 {
		return fmt.Errorf("timeout must be a positive duration")
	}
	if h.ShortTimeout <= 0 || h.MediumTimeout <= 0 {
		return fmt.Errorf("short_timeout and medium_timeout must be positive durations")
	}
	if h.Threshold < 0.0 || h.Threshold > 1.0 {
		return fmt.Errorf("threshold must be between 0.0 and 1.0")
	}
	switch h.CollectionMode {
	case CollectionStrict, CollectionPermissive:
	default:
		return fmt.Errorf("collection_mode must be %q or %q, got %q", CollectionStrict, CollectionPermissive, h.CollectionMode)
	}
	if h.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be a positive integer")
	}
	if h.DescribeConcurrency <= 0 {
		return fmt.Errorf("describe_concurrency must be a positive integer")
	}
	if h.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be a positive duration")
	}
	if h.ClickRetries <= 0 || h.RandomRetries <= 0 {
		return fmt.Errorf("click_retries and random_retries must be positive integers")
	}
	if h.DebugLog && strings.TrimSpace(h.DebugLogFile) == "" {
		return fmt.Errorf("debug_log_file is required when debug_log is enabled")
	}
	return nil
}

// Validate checks the browser configuration.
func (b *BrowserConfig) Validate() error {
	switch b.Driver {
	case DriverChromedp, DriverPlaywright:
	default:
		return fmt.Errorf("driver must be %q or %q, got %q", DriverChromedp, DriverPlaywright, b.Driver)
	}
	switch b.PlaywrightBrowser {
	case "chromium", "firefox", "webkit":
	default:
		return fmt.Errorf("playwright_browser must be chromium, firefox or webkit")
	}
	return nil
}

// WithDefaults fills zero fields with the values SetDefaults would apply, for
// callers that build a HealingConfig by hand.
func (h HealingConfig) WithDefaults() HealingConfig {
	if h.Timeout <= 0 {
		h.Timeout = 5 * time.Second
	}
	if h.ShortTimeout <= 0 {
		h.ShortTimeout = time.Second
	}
	if h.MediumTimeout <= 0 {
		h.MediumTimeout = 2 * time.Second
	}
	if h.ContextSelector == "" {
		h.ContextSelector = "*"
	}
	if h.Threshold <= 0 {
		h.Threshold = 0.4
	}
	if h.CollectionMode == "" {
		h.CollectionMode = CollectionStrict
	}
	if h.MaxDepth <= 0 {
		h.MaxDepth = 8
	}
	if h.DescribeConcurrency <= 0 {
		h.DescribeConcurrency = 8
	}
	if h.PollInterval <= 0 {
		h.PollInterval = 50 * time.Millisecond
	}
	if h.ClickRetries <= 0 {
		h.ClickRetries = 2
	}
	if h.ClickBackoff <= 0 {
		h.ClickBackoff = 500 * time.Millisecond
	}
	if h.RandomRetries <= 0 {
		h.RandomRetries = 3
	}
	if h.RandomBackoff <= 0 {
		h.RandomBackoff = time.Second
	}
	return h
}
