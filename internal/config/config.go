// Package config loads drafter settings from an optional YAML file, a .env
// file and DRAFTER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "DRAFTER"

const (
	DefaultServerAddr     = ":8080"
	DefaultReadTimeout    = 15 * time.Second
	DefaultWriteTimeout   = 60 * time.Second
	DefaultMaxBodyBytes   = 1 << 20
	DefaultStorePath      = "drafter.db"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultModelProvider  = "anthropic"
	DefaultModelName      = "claude-sonnet-4-20250514"
	DefaultModelAPIKeyEnv = "ANTHROPIC_API_KEY"
	DefaultMaxTokens      = 4096
	DefaultRenderTimeout  = 30 * time.Second
	DefaultPDFCacheSize   = 64
	DefaultServiceName    = "disclosure-drafter"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Log     LogConfig     `mapstructure:"log"`
	Model   ModelConfig   `mapstructure:"model"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Render  RenderConfig  `mapstructure:"render"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" | "console"
}

// ModelConfig selects the generative drafting collaborator. The API key is
// read from the environment variable named by APIKeyEnv and never stored in
// the config file.
type ModelConfig struct {
	Provider    string  `mapstructure:"provider"`
	Name        string  `mapstructure:"name"`
	APIKeyEnv   string  `mapstructure:"api_key_env"`
	BaseURL     string  `mapstructure:"base_url"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	Enabled     bool    `mapstructure:"enabled"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	Insecure    bool   `mapstructure:"insecure"`
	ServiceName string `mapstructure:"service_name"`
}

type RenderConfig struct {
	ChromePath   string        `mapstructure:"chrome_path"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PDFCacheSize int           `mapstructure:"pdf_cache_size"`
}

// newViper maps nested keys like "store.path" to DRAFTER_STORE_PATH. Every
// key gets a default so AutomaticEnv can see it during Unmarshal.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.read_timeout", DefaultReadTimeout)
	v.SetDefault("server.write_timeout", DefaultWriteTimeout)
	v.SetDefault("server.max_body_bytes", DefaultMaxBodyBytes)
	v.SetDefault("store.path", DefaultStorePath)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("model.provider", DefaultModelProvider)
	v.SetDefault("model.name", DefaultModelName)
	v.SetDefault("model.api_key_env", DefaultModelAPIKeyEnv)
	v.SetDefault("model.base_url", "")
	v.SetDefault("model.max_tokens", DefaultMaxTokens)
	v.SetDefault("model.temperature", 0.0)
	v.SetDefault("model.enabled", false)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.service_name", DefaultServiceName)
	v.SetDefault("render.chrome_path", "")
	v.SetDefault("render.timeout", DefaultRenderTimeout)
	v.SetDefault("render.pdf_cache_size", DefaultPDFCacheSize)
	return v
}

// Load reads configPath when it is non-empty, then applies .env and
// DRAFTER_* overrides. A missing .env file is not an error.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-value fields. Explicit values always win.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Model.Provider == "" {
		cfg.Model.Provider = DefaultModelProvider
	}
	if cfg.Model.Name == "" {
		cfg.Model.Name = DefaultModelName
	}
	if cfg.Model.APIKeyEnv == "" {
		cfg.Model.APIKeyEnv = DefaultModelAPIKeyEnv
	}
	if cfg.Model.MaxTokens == 0 {
		cfg.Model.MaxTokens = DefaultMaxTokens
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultServiceName
	}
	if cfg.Render.Timeout == 0 {
		cfg.Render.Timeout = DefaultRenderTimeout
	}
	if cfg.Render.PDFCacheSize == 0 {
		cfg.Render.PDFCacheSize = DefaultPDFCacheSize
	}
}

func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q must be one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be json or console", c.Log.Format))
	}
	if c.Model.Provider != "anthropic" {
		errs = append(errs, fmt.Errorf("model.provider %q is not supported", c.Model.Provider))
	}
	if c.Model.MaxTokens < 0 {
		errs = append(errs, errors.New("model.max_tokens must not be negative"))
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		errs = append(errs, errors.New("model.temperature must be between 0 and 1"))
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		errs = append(errs, errors.New("tracing.endpoint is required when tracing is enabled"))
	}
	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("server.max_body_bytes must not be negative"))
	}
	if c.Render.PDFCacheSize < 0 {
		errs = append(errs, errors.New("render.pdf_cache_size must not be negative"))
	}
	return errors.Join(errs...)
}
