// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig          `yaml:"server"`
	Auth     AuthConfig            `yaml:"auth"`
	Storage  StorageConfig         `yaml:"storage"`
	Library  LibraryConfig         `yaml:"library"`
	Playback PlaybackConfig        `yaml:"playback"`
	Rules    map[string]RuleConfig `yaml:"rules"`
	Messages map[string]string     `yaml:"messages"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr               string      `yaml:"addr" default:":8080"`
	ShutdownTimeoutSec int         `yaml:"shutdown_timeout_sec" default:"10" validate:"gte=1,lte=120"`
	Hooks              HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// AuthConfig represents account and API token configuration.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret" validate:"required,min=16"`
	TokenTTLHours int    `yaml:"token_ttl_hours" default:"24" validate:"gte=1"`
	BcryptCost    int    `yaml:"bcrypt_cost" default:"10" validate:"gte=4,lte=31"`
}

// StorageConfig represents persistence configuration.
type StorageConfig struct {
	Driver string `yaml:"driver" default:"sqlite" validate:"oneof=sqlite memory"`
	Path   string `yaml:"path" default:"data/tunebox.db"`
}

// LibraryConfig represents the playlist sources.
type LibraryConfig struct {
	Name      string           `yaml:"name" default:"Library"`
	Providers []ProviderConfig `yaml:"providers" validate:"required,min=1,dive"`
}

// ProviderConfig represents a single playlist provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=static file directory"`
	DisplayName string         `yaml:"display_name"`
	Settings    map[string]any `yaml:"settings" validate:"required"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	Backend     string `yaml:"backend" default:"clock" validate:"oneof=speaker clock"`
	StartIndex  int    `yaml:"start_index" validate:"gte=0"`
	Autoplay    bool   `yaml:"autoplay"`
	EventBuffer int    `yaml:"event_buffer" default:"64" validate:"gte=1"`
	TickMs      int    `yaml:"tick_ms" default:"250" validate:"gte=10,lte=5000"`
	SampleRate  int    `yaml:"sample_rate" default:"44100" validate:"gte=8000"`
	BufferMs    int    `yaml:"buffer_ms" default:"100" validate:"gte=10,lte=1000"`
	SkipRestore bool   `yaml:"skip_restore"`
}

// RuleConfig represents a credential rule's configuration.
type RuleConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

var defaultMessages = map[string]string{
	"default_error":            "An error occurred. Please try again.",
	"invalid_email":            "Please enter a valid email address",
	"domain_not_allowed":       "Only the following email domains are allowed: gmail.com, yahoo.com, outlook.com, hotmail.com, icloud.com, protonmail.com",
	"password_too_short":       "Password must be at least 8 characters long",
	"password_missing_digit":   "Password must contain at least one number",
	"password_missing_special": "Password must contain at least one special character (!@#$%^&*)",
	"email_taken":              "Email already registered",
	"user_not_found":           "User not found",
	"invalid_password":         "Invalid password",
	"invalid_index":            "Track index out of range",
	"no_session":               "Not logged in",
	"invalid_token":            "Invalid or expired token",
	"track_not_found":          "Track not found",
	"invalid_request":          "Invalid request",
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("TUNEBOX_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("TUNEBOX_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("TUNEBOX_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// GetMessage returns the user-facing message for the given code.
// Configured messages override the built-in ones.
func (c *Config) GetMessage(code string) string {
	if msg, ok := c.Messages[code]; ok && msg != "" {
		return msg
	}
	if msg, ok := defaultMessages[code]; ok {
		return msg
	}
	if msg, ok := c.Messages["default_error"]; ok && msg != "" {
		return msg
	}
	return defaultMessages["default_error"]
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" {
		return errors.New("storage.path is required for the sqlite driver")
	}

	return nil
}

// RuleEnabled reports whether a credential rule is enabled.
// Rules missing from the configuration are enabled.
func (c *Config) RuleEnabled(name string) bool {
	if r, ok := c.Rules[name]; ok {
		return r.Enabled
	}
	return true
}

// RuleSettings returns the settings for a rule, or nil.
func (c *Config) RuleSettings(name string) map[string]any {
	if r, ok := c.Rules[name]; ok {
		return r.Settings
	}
	return nil
}

// TokenTTL returns the API token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLHours) * time.Hour
}

// TickInterval returns the backend position update interval.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Playback.TickMs) * time.Millisecond
}

// ShutdownTimeout returns the graceful shutdown timeout.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSec) * time.Second
}
