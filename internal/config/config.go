// Package config provides configuration management for typster using Viper
// for loading from files, environment variables, and command-line flags.
//
// Keys are grouped by the component that consumes them: registry paging,
// crawl traversal, the line filter, the HTTP fetcher, the optional Redis
// response cache, logging and the feed server. Every key can be overridden
// with a TYPSTER_<SECTION>_<KEY> environment variable.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	terrors "github.com/conneroisu/typster/internal/errors"
)

type Config struct {
	Registry RegistryConfig `mapstructure:"registry" yaml:"registry" json:"registry"`
	Crawl    CrawlConfig    `mapstructure:"crawl" yaml:"crawl" json:"crawl"`
	Filter   FilterConfig   `mapstructure:"filter" yaml:"filter" json:"filter"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http" json:"http"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache" json:"cache"`
	Log      LogConfig      `mapstructure:"log" yaml:"log" json:"log"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
}

// RegistryConfig locates the package index and bounds how long it is polled.
type RegistryConfig struct {
	URL           string `mapstructure:"url" yaml:"url" json:"url"`
	Sort          string `mapstructure:"sort" yaml:"sort" json:"sort"`
	Host          string `mapstructure:"host" yaml:"host" json:"host"`
	StartPage     int    `mapstructure:"start_page" yaml:"start_page" json:"start_page"`
	MaxEmptyPages int    `mapstructure:"max_empty_pages" yaml:"max_empty_pages" json:"max_empty_pages"`
}

type CrawlConfig struct {
	HostURL            string `mapstructure:"host_url" yaml:"host_url" json:"host_url"`
	Extension          string `mapstructure:"extension" yaml:"extension" json:"extension"`
	BufferSize         int    `mapstructure:"buffer_size" yaml:"buffer_size" json:"buffer_size"`
	MaxResolveAttempts int    `mapstructure:"max_resolve_attempts" yaml:"max_resolve_attempts" json:"max_resolve_attempts"`
}

type FilterConfig struct {
	MinLength     int    `mapstructure:"min_length" yaml:"min_length" json:"min_length"`
	MaxLength     int    `mapstructure:"max_length" yaml:"max_length" json:"max_length"`
	CommentPrefix string `mapstructure:"comment_prefix" yaml:"comment_prefix" json:"comment_prefix"`
}

type HTTPConfig struct {
	UserAgent       string        `mapstructure:"user_agent" yaml:"user_agent" json:"user_agent"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries" json:"max_retries"`
	InitialBackoff  time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff" yaml:"max_backoff" json:"max_backoff"`
	RequestInterval time.Duration `mapstructure:"request_interval" yaml:"request_interval" json:"request_interval"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes" json:"max_body_bytes"`
}

// CacheConfig enables the Redis response cache when RedisURL is set.
type CacheConfig struct {
	RedisURL string        `mapstructure:"redis_url" yaml:"redis_url" json:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl" json:"ttl"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix" json:"prefix"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	Dir    string `mapstructure:"dir" yaml:"dir" json:"dir"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host" json:"host"`
	Port           int      `mapstructure:"port" yaml:"port" json:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
	MaxConnections int      `mapstructure:"max_connections" yaml:"max_connections" json:"max_connections"`
}

// Default values.
const (
	DefaultRegistryURL   = "https://crates.io/api/v1/crates"
	DefaultRegistrySort  = "recent-downloads"
	DefaultRegistryHost  = "github.com"
	DefaultHostURL       = "https://github.com"
	DefaultExtension     = ".rs"
	DefaultBufferSize    = 10
	DefaultMaxEmptyPages = 5
	DefaultMinLength     = 10
	DefaultMaxLength     = 80
	DefaultCommentPrefix = "//"

	DefaultMaxConnections = 16
)

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("registry.url", DefaultRegistryURL)
	v.SetDefault("registry.sort", DefaultRegistrySort)
	v.SetDefault("registry.host", DefaultRegistryHost)
	v.SetDefault("registry.start_page", 1)
	v.SetDefault("registry.max_empty_pages", DefaultMaxEmptyPages)

	v.SetDefault("crawl.host_url", DefaultHostURL)
	v.SetDefault("crawl.extension", DefaultExtension)
	v.SetDefault("crawl.buffer_size", DefaultBufferSize)
	v.SetDefault("crawl.max_resolve_attempts", 3)

	v.SetDefault("filter.min_length", DefaultMinLength)
	v.SetDefault("filter.max_length", DefaultMaxLength)
	v.SetDefault("filter.comment_prefix", DefaultCommentPrefix)

	v.SetDefault("http.user_agent", "")
	v.SetDefault("http.timeout", 15*time.Second)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.initial_backoff", 250*time.Millisecond)
	v.SetDefault("http.max_backoff", 5*time.Second)
	v.SetDefault("http.request_interval", 100*time.Millisecond)
	v.SetDefault("http.max_body_bytes", int64(10<<20))

	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("cache.prefix", "typster:")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.dir", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.max_connections", DefaultMaxConnections)
}

// Load reads the configuration held by the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, terrors.NewConfigError(terrors.ErrCodeConfigInvalid, "failed to decode configuration", err)
	}

	config.Crawl.HostURL = strings.TrimSuffix(config.Crawl.HostURL, "/")
	config.Registry.URL = strings.TrimSuffix(config.Registry.URL, "/")

	if err := validateConfig(&config); err != nil {
		return nil, terrors.NewConfigError(terrors.ErrCodeConfigInvalid, "invalid configuration", err)
	}

	return &config, nil
}

// validateConfig collects every invalid value rather than stopping at the first
func validateConfig(config *Config) error {
	var vec terrors.ValidationErrorCollection

	validateURL(&vec, "registry.url", config.Registry.URL)
	validateURL(&vec, "crawl.host_url", config.Crawl.HostURL)

	if config.Registry.Host == "" {
		vec.AddField("registry.host", config.Registry.Host, "must not be empty", "github.com")
	}
	if config.Registry.StartPage < 1 {
		vec.AddField("registry.start_page", config.Registry.StartPage, "must be at least 1")
	}
	if config.Registry.MaxEmptyPages < 1 {
		vec.AddField("registry.max_empty_pages", config.Registry.MaxEmptyPages,
			"must be at least 1; an uncapped paginator polls forever")
	}

	if !strings.HasPrefix(config.Crawl.Extension, ".") {
		vec.AddField("crawl.extension", config.Crawl.Extension, "must start with a dot", ".rs", ".go")
	}
	if config.Crawl.BufferSize < 1 {
		vec.AddField("crawl.buffer_size", config.Crawl.BufferSize, "must be at least 1")
	}
	if config.Crawl.MaxResolveAttempts < 1 {
		vec.AddField("crawl.max_resolve_attempts", config.Crawl.MaxResolveAttempts, "must be at least 1")
	}

	if config.Filter.MinLength < 1 {
		vec.AddField("filter.min_length", config.Filter.MinLength, "must be at least 1")
	}
	if config.Filter.MaxLength < config.Filter.MinLength {
		vec.AddField("filter.max_length", config.Filter.MaxLength, "must not be below filter.min_length")
	}

	if config.HTTP.Timeout <= 0 {
		vec.AddField("http.timeout", config.HTTP.Timeout, "must be positive", "15s")
	}
	if config.HTTP.MaxRetries < 0 {
		vec.AddField("http.max_retries", config.HTTP.MaxRetries, "must not be negative")
	}
	if config.HTTP.RequestInterval < 0 {
		vec.AddField("http.request_interval", config.HTTP.RequestInterval, "must not be negative")
	}
	if config.HTTP.MaxBodyBytes <= 0 {
		vec.AddField("http.max_body_bytes", config.HTTP.MaxBodyBytes, "must be positive")
	}

	if config.Cache.RedisURL != "" && config.Cache.TTL <= 0 {
		vec.AddField("cache.ttl", config.Cache.TTL, "must be positive when the cache is enabled", "1h")
	}

	switch strings.ToLower(config.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		vec.AddField("log.level", config.Log.Level, "unknown level", "debug", "info", "warn", "error")
	}

	switch strings.ToLower(config.Log.Format) {
	case "text", "json":
	default:
		vec.AddField("log.format", config.Log.Format, "unsupported format", "text", "json")
	}

	if config.Server.Port < 0 || config.Server.Port > 65535 {
		vec.AddField("server.port", config.Server.Port, "is not in valid range 0-65535")
	}
	if config.Server.MaxConnections < 1 {
		vec.AddField("server.max_connections", config.Server.MaxConnections, "must be at least 1")
	}

	return vec.ErrorOrNil()
}

func validateURL(vec *terrors.ValidationErrorCollection, field, raw string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		vec.AddField(field, raw, "must be an absolute http(s) URL")
	}
}
