// Package config provides configuration loading and validation for the apply agent.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Defaults used when neither the config file nor the environment sets a value.
const (
	DefaultPort            = 8080
	DefaultMinScore        = 75.0
	DefaultRetryBackoff    = time.Second
	DefaultTailoringBudget = 45 * time.Second
	DefaultResolverTTL     = 6 * time.Hour
	DefaultOutputDir       = "tailored_resumes"
)

// Config represents the agent configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults, the environment or CLI flags.
type Config struct {
	// Server
	Port int `json:"port,omitempty" validate:"gte=0,lte=65535"`

	// Backing services
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	RedisURL    string `json:"redis_url,omitempty"`    // Shared resolver cache; in-memory when empty
	APIKey      string `json:"api_key,omitempty"`      // Gemini API key

	// Logging
	LogLevel       string `json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	LogDevelopment bool   `json:"log_development,omitempty"`

	// Workflow
	DefaultMinScore float64 `json:"default_min_score,omitempty" validate:"gte=0,lte=100"`
	RetryBackoff    string  `json:"retry_backoff,omitempty" validate:"omitempty,duration"`
	DeepMatch       bool    `json:"deep_match,omitempty"` // LLM-augmented scoring

	// Resume tailoring
	ResumeTailoringEnabled bool   `json:"resume_tailoring_enabled,omitempty"`
	TailoringBudget        string `json:"tailoring_budget,omitempty" validate:"omitempty,duration"`
	ResumeFormat           string `json:"resume_format,omitempty" validate:"omitempty,oneof=html latex"`
	OutputDir              string `json:"output_dir,omitempty"`
	TemplatePath           string `json:"template_path,omitempty"`

	// Browser
	ShowBrowser bool   `json:"show_browser,omitempty"` // Run Chrome headed
	StatePath   string `json:"state_path,omitempty"`   // Cookie storage state for logged-in boards
	StepDelay   string `json:"step_delay,omitempty" validate:"omitempty,duration"`

	// Resolver
	ResolverCacheTTL string `json:"resolver_cache_ttl,omitempty" validate:"omitempty,duration"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d >= 0
	})
	return v
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config error: '%s' failed '%s' validation", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("config error: %w", err)
	}

	if c.TemplatePath != "" {
		if _, err := os.Stat(c.TemplatePath); os.IsNotExist(err) {
			return fmt.Errorf("config error: template file not found: %s", c.TemplatePath)
		}
	}
	if c.ResumeFormat == "latex" && c.TemplatePath == "" {
		return fmt.Errorf("config error: 'template_path' is required for latex resumes")
	}

	return nil
}

// ApplyEnv overrides fields from the environment. Set variables win over
// the config file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("RESUME_TAILORING_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.ResumeTailoringEnabled = enabled
		}
	}
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.RedisURL == "" {
		result.RedisURL = defaults.RedisURL
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if result.RetryBackoff == "" {
		result.RetryBackoff = defaults.RetryBackoff
	}
	if result.TailoringBudget == "" {
		result.TailoringBudget = defaults.TailoringBudget
	}
	if result.ResumeFormat == "" {
		result.ResumeFormat = defaults.ResumeFormat
	}
	if result.OutputDir == "" {
		result.OutputDir = defaults.OutputDir
	}
	if result.TemplatePath == "" {
		result.TemplatePath = defaults.TemplatePath
	}
	if result.StatePath == "" {
		result.StatePath = defaults.StatePath
	}
	if result.StepDelay == "" {
		result.StepDelay = defaults.StepDelay
	}
	if result.ResolverCacheTTL == "" {
		result.ResolverCacheTTL = defaults.ResolverCacheTTL
	}

	// Numeric fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.DefaultMinScore == 0 {
		result.DefaultMinScore = defaults.DefaultMinScore
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:            DefaultPort,
		LogLevel:        "info",
		DefaultMinScore: DefaultMinScore,
		ResumeFormat:    "html",
		OutputDir:       DefaultOutputDir,
	}
}

// RetryBackoffDuration returns the parsed retry backoff or the default.
func (c *Config) RetryBackoffDuration() time.Duration {
	return parseDuration(c.RetryBackoff, DefaultRetryBackoff)
}

// TailoringBudgetDuration returns the parsed tailoring budget or the default.
func (c *Config) TailoringBudgetDuration() time.Duration {
	return parseDuration(c.TailoringBudget, DefaultTailoringBudget)
}

// StepDelayDuration returns the parsed browser step delay, zero when unset.
func (c *Config) StepDelayDuration() time.Duration {
	return parseDuration(c.StepDelay, 0)
}

// ResolverCacheTTLDuration returns the parsed resolver cache TTL or the default.
func (c *Config) ResolverCacheTTLDuration() time.Duration {
	return parseDuration(c.ResolverCacheTTL, DefaultResolverTTL)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
