// Package config loads TaskSync settings from file, environment and flags
// using Viper.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/felixgeelhaar/tasksync/internal/errors"
)

// EnvPrefix is prepended to every environment override, e.g.
// TASKSYNC_BACKEND_URL for backend.url.
const EnvPrefix = "TASKSYNC"

// Config holds the application configuration.
type Config struct {
	Backend   BackendConfig   `mapstructure:"backend" yaml:"backend"`
	News      NewsConfig      `mapstructure:"news" yaml:"news"`
	Assistant AssistantConfig `mapstructure:"assistant" yaml:"assistant"`
	HTTP      HTTPConfig      `mapstructure:"http" yaml:"http"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	OAuth     OAuthConfig     `mapstructure:"oauth" yaml:"oauth"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
}

// BackendConfig points at the Supabase project.
type BackendConfig struct {
	URL     string `mapstructure:"url" yaml:"url"`
	AnonKey string `mapstructure:"anon_key" yaml:"anon_key"`
	// AvatarBucket is the storage bucket for profile pictures.
	AvatarBucket string `mapstructure:"avatar_bucket" yaml:"avatar_bucket"`
	// AutoRefresh refreshes the access token shortly before it expires.
	AutoRefresh bool `mapstructure:"auto_refresh" yaml:"auto_refresh"`
}

// NewsConfig configures the news aggregator.
type NewsConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	Country string `mapstructure:"country" yaml:"country"`
}

// AssistantConfig configures the generative text endpoint.
type AssistantConfig struct {
	BaseURL         string  `mapstructure:"base_url" yaml:"base_url"`
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	Model           string  `mapstructure:"model" yaml:"model"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`
	TopK            int     `mapstructure:"top_k" yaml:"top_k"`
	TopP            float64 `mapstructure:"top_p" yaml:"top_p"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`
}

// HTTPConfig controls the shared transport.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// RetryMax is the number of transport-level retries. 0 keeps the
	// fail-fast behaviour: the next user action is the retry.
	RetryMax int `mapstructure:"retry_max" yaml:"retry_max"`
}

// CacheConfig controls the shared repository cache.
type CacheConfig struct {
	// TTL of 0 disables result caching; concurrent identical reads are
	// still shared.
	TTL  time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Size int           `mapstructure:"size" yaml:"size"`
}

// StoreConfig locates the encrypted credential file.
type StoreConfig struct {
	Path       string `mapstructure:"path" yaml:"path"`
	Passphrase string `mapstructure:"passphrase" yaml:"-"`
}

// LogConfig holds logging options.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// OAuthConfig holds the redirect used for third-party sign-in.
type OAuthConfig struct {
	Provider    string `mapstructure:"provider" yaml:"provider"`
	RedirectURL string `mapstructure:"redirect_url" yaml:"redirect_url"`
}

// OutputConfig holds CLI presentation defaults.
type OutputConfig struct {
	Format  string `mapstructure:"format" yaml:"format"`
	NoColor bool   `mapstructure:"no_color" yaml:"no_color"`
}

// Dir returns the TaskSync home directory (~/.tasksync).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tasksync"
	}
	return filepath.Join(home, ".tasksync")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// New returns a Viper instance with defaults and environment bindings.
// Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from file and environment.
// A missing config file is not an error.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if v == nil {
		v = New()
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(Dir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "failed to read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "failed to decode config", err)
	}

	cfg.Store.Path = expandHome(cfg.Store.Path)
	return &cfg, nil
}

// Default returns the configuration with only defaults applied.
func Default() *Config {
	var cfg Config
	v := viper.New()
	setDefaults(v)
	_ = v.Unmarshal(&cfg)
	cfg.Store.Path = expandHome(cfg.Store.Path)
	return &cfg
}

// RequireBackend checks the settings every backend call needs.
func (c *Config) RequireBackend() error {
	if c.Backend.URL == "" {
		return errors.NewConfigMissingError("backend.url", EnvPrefix+"_BACKEND_URL")
	}
	if c.Backend.AnonKey == "" {
		return errors.NewConfigMissingError("backend.anon_key", EnvPrefix+"_BACKEND_ANON_KEY")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.url", "")
	v.SetDefault("backend.anon_key", "")
	v.SetDefault("backend.avatar_bucket", "avatars")
	v.SetDefault("backend.auto_refresh", true)

	v.SetDefault("news.base_url", "https://newsapi.org/v2")
	v.SetDefault("news.api_key", "")
	v.SetDefault("news.country", "us")

	v.SetDefault("assistant.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("assistant.api_key", "")
	v.SetDefault("assistant.model", "gemini-1.5-flash")
	v.SetDefault("assistant.temperature", 0.9)
	v.SetDefault("assistant.top_k", 1)
	v.SetDefault("assistant.top_p", 1.0)
	v.SetDefault("assistant.max_output_tokens", 2048)

	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.retry_max", 0)

	v.SetDefault("cache.ttl", 30*time.Second)
	v.SetDefault("cache.size", 256)

	v.SetDefault("store.path", filepath.Join(Dir(), "credentials.json"))
	v.SetDefault("store.passphrase", "tasksync-local-store")

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")

	v.SetDefault("oauth.provider", "google")
	v.SetDefault("oauth.redirect_url", "http://localhost:8765/auth/callback")

	v.SetDefault("output.format", "text")
	v.SetDefault("output.no_color", false)
}

func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
