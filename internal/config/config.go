// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Network  NetworkConfig  `mapstructure:"network" yaml:"network"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Capture  CaptureConfig  `mapstructure:"capture" yaml:"capture"`
}

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

// BrowserConfig holds settings for the controlled Chrome instance.
type BrowserConfig struct {
	Headless     bool     `mapstructure:"headless" yaml:"headless"`
	Args         []string `mapstructure:"args" yaml:"args"`
	UserAgent    string   `mapstructure:"user_agent" yaml:"user_agent"`
	WindowWidth  int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int      `mapstructure:"window_height" yaml:"window_height"`
}

// NetworkConfig tunes navigation and settle behavior.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// AuthConfig describes how to obtain and verify an authenticated session.
// Email and Password are only ever read from flags or the environment
// (COURSEPACK_AUTH_EMAIL / COURSEPACK_AUTH_PASSWORD), never persisted.
type AuthConfig struct {
	Email          string        `mapstructure:"email" yaml:"-"`
	Password       string        `mapstructure:"password" yaml:"-"`
	LoginURL       string        `mapstructure:"login_url" yaml:"login_url"`
	ProbeURL       string        `mapstructure:"probe_url" yaml:"probe_url"`
	LivenessCookie string        `mapstructure:"liveness_cookie" yaml:"liveness_cookie"`
	Manual         bool          `mapstructure:"manual" yaml:"manual"`
	OTPWait        time.Duration `mapstructure:"otp_wait" yaml:"otp_wait"`
	ManualWait     time.Duration `mapstructure:"manual_wait" yaml:"manual_wait"`
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// DownloadConfig controls the capture pipeline.
type DownloadConfig struct {
	OutputDir   string        `mapstructure:"output_dir" yaml:"output_dir"`
	Format      string        `mapstructure:"format" yaml:"format"`
	PDFStrategy string        `mapstructure:"pdf_strategy" yaml:"pdf_strategy"`
	Workers     int           `mapstructure:"workers" yaml:"workers"`
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
	BackoffUnit time.Duration `mapstructure:"backoff_unit" yaml:"backoff_unit"`
	// RatePerSecond paces navigations across all workers. Zero disables pacing.
	RatePerSecond float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"`
}

// CaptureConfig tunes per-lesson content extraction and rendering.
type CaptureConfig struct {
	MinTextChars     int           `mapstructure:"min_text_chars" yaml:"min_text_chars"`
	TitleMaxLen      int           `mapstructure:"title_max_len" yaml:"title_max_len"`
	PrintScale       float64       `mapstructure:"print_scale" yaml:"print_scale"`
	ScrollDwell      time.Duration `mapstructure:"scroll_dwell" yaml:"scroll_dwell"`
	ImageLoadTimeout time.Duration `mapstructure:"image_load_timeout" yaml:"image_load_timeout"`
}

// Output formats and PDF strategies accepted by Validate.
const (
	FormatText = "text"
	FormatPDF  = "pdf"
	FormatBoth = "both"

	PDFStrategyPrint      = "print"
	PDFStrategyScreenshot = "screenshot"
)

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
	v.SetDefault("logger.service_name", "coursepack")
	v.SetDefault("logger.log_file", "coursepack.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window_width", 1440)
	v.SetDefault("browser.window_height", 900)
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	// -- Network --
	v.SetDefault("network.navigation_timeout", "90s")
	v.SetDefault("network.post_load_wait", "2s")

	// -- Auth --
	v.SetDefault("auth.login_url", "https://www.educative.io/login")
	v.SetDefault("auth.probe_url", "https://www.educative.io/explore")
	v.SetDefault("auth.liveness_cookie", "logged_in")
	v.SetDefault("auth.manual", false)
	v.SetDefault("auth.otp_wait", "120s")
	v.SetDefault("auth.manual_wait", "180s")
	v.SetDefault("auth.poll_interval", "3s")

	// -- Download --
	v.SetDefault("download.output_dir", "./output")
	v.SetDefault("download.format", FormatPDF)
	v.SetDefault("download.pdf_strategy", PDFStrategyScreenshot)
	v.SetDefault("download.workers", 3)
	v.SetDefault("download.max_retries", 3)
	v.SetDefault("download.backoff_unit", "2s")
	v.SetDefault("download.rate_per_second", 2.0)

	// -- Capture --
	v.SetDefault("capture.min_text_chars", 50)
	v.SetDefault("capture.title_max_len", 80)
	v.SetDefault("capture.print_scale", 0.95)
	v.SetDefault("capture.scroll_dwell", "1s")
	v.SetDefault("capture.image_load_timeout", "10s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for credentials so they never have to live
	// in a config file on disk.
	v.BindEnv("auth.email", "COURSEPACK_AUTH_EMAIL")
	v.BindEnv("auth.password", "COURSEPACK_AUTH_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Unmarshal can miss bound env vars that have no file/default entry.
	if cfg.Auth.Email == "" {
		cfg.Auth.Email = os.Getenv("COURSEPACK_AUTH_EMAIL")
	}
	if cfg.Auth.Password == "" {
		cfg.Auth.Password = os.Getenv("COURSEPACK_AUTH_PASSWORD")
	}

	expanded, err := homedir.Expand(cfg.Download.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("expanding download.output_dir: %w", err)
	}
	cfg.Download.OutputDir = expanded

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Download.Workers <= 0 {
		return fmt.Errorf("download.workers must be a positive integer")
	}
	if c.Download.MaxRetries <= 0 {
		return fmt.Errorf("download.max_retries must be a positive integer")
	}
	if c.Download.BackoffUnit < 0 {
		return fmt.Errorf("download.backoff_unit must not be negative")
	}
	switch c.Download.Format {
	case FormatText, FormatPDF, FormatBoth:
	default:
		return fmt.Errorf("download.format must be one of %q, %q, %q", FormatText, FormatPDF, FormatBoth)
	}
	switch c.Download.PDFStrategy {
	case PDFStrategyPrint, PDFStrategyScreenshot:
	default:
		return fmt.Errorf("download.pdf_strategy must be %q or %q", PDFStrategyPrint, PDFStrategyScreenshot)
	}
	if c.Capture.PrintScale <= 0 || c.Capture.PrintScale > 2.0 {
		return fmt.Errorf("capture.print_scale must be between 0 and 2.0")
	}
	if c.Auth.LivenessCookie == "" {
		return fmt.Errorf("auth.liveness_cookie is a required configuration field")
	}
	return nil
}
