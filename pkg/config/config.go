package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/CarrieW-BorderX/tiktok-scraper/internal/media"
)

// Config is the full config.yaml structure.
type Config struct {
	Resolver struct {
		Endpoint              string `mapstructure:"endpoint" yaml:"endpoint"`
		TimeoutSeconds        int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
		RateLimitDelaySeconds int    `mapstructure:"rate_limit_delay_seconds" yaml:"rate_limit_delay_seconds"`
		RateLimitMaxRetries   int    `mapstructure:"rate_limit_max_retries" yaml:"rate_limit_max_retries"`
	} `mapstructure:"resolver" yaml:"resolver"`

	Discovery struct {
		SearchKind        string `mapstructure:"search_kind" yaml:"search_kind"`
		MaxIdentifiers    int    `mapstructure:"max_identifiers" yaml:"max_identifiers"`
		BatchSize         int    `mapstructure:"batch_size" yaml:"batch_size"`
		RestSeconds       int    `mapstructure:"rest_seconds" yaml:"rest_seconds"`
		RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" yaml:"retry_delay_seconds"`
		MaxRetries        int    `mapstructure:"max_retries" yaml:"max_retries"`
		UserDataDir       string `mapstructure:"user_data_dir" yaml:"user_data_dir"`
		Headless          bool   `mapstructure:"headless" yaml:"headless"`
		MonitorAddress    string `mapstructure:"monitor_address" yaml:"monitor_address"`
	} `mapstructure:"discovery" yaml:"discovery"`

	Batch struct {
		Manifest        string `mapstructure:"manifest" yaml:"manifest"`
		DestinationRoot string `mapstructure:"destination_root" yaml:"destination_root"`
		ListsDir        string `mapstructure:"lists_dir" yaml:"lists_dir"`
		ErrorLog        string `mapstructure:"error_log" yaml:"error_log"`
		ReportPath      string `mapstructure:"report_path" yaml:"report_path"`
		SkipCompleted   bool   `mapstructure:"skip_completed" yaml:"skip_completed"`
	} `mapstructure:"batch" yaml:"batch"`

	Download struct {
		Progress       bool `mapstructure:"progress" yaml:"progress"`
		ChunkSize      int  `mapstructure:"chunk_size" yaml:"chunk_size"`
		TimeoutSeconds int  `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	} `mapstructure:"download" yaml:"download"`

	// Shared infrastructure. An empty address disables the component.
	Redis struct {
		Address  string `mapstructure:"address" yaml:"address"`
		Password string `mapstructure:"password" yaml:"password"`
		DB       int    `mapstructure:"db" yaml:"db"`
		TTLHours int    `mapstructure:"ttl_hours" yaml:"ttl_hours"`
	} `mapstructure:"redis" yaml:"redis"`

	Nats struct {
		URL string `mapstructure:"url" yaml:"url"`
	} `mapstructure:"nats" yaml:"nats"`

	Database struct {
		URL string `mapstructure:"url" yaml:"url"`
	} `mapstructure:"database" yaml:"database"`

	Meilisearch struct {
		Host  string `mapstructure:"host" yaml:"host"`
		Key   string `mapstructure:"key" yaml:"key"`
		Index string `mapstructure:"index" yaml:"index"`
	} `mapstructure:"meilisearch" yaml:"meilisearch"`

	Metrics struct {
		Address string `mapstructure:"address" yaml:"address"`
	} `mapstructure:"metrics" yaml:"metrics"`

	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`
}

var defaults = map[string]any{
	"resolver.endpoint":                 "http://localhost:9000/",
	"resolver.timeout_seconds":          60,
	"resolver.rate_limit_delay_seconds": 10,
	"resolver.rate_limit_max_retries":   30,

	"discovery.search_kind":         string(media.KindHashtag),
	"discovery.max_identifiers":     100,
	"discovery.batch_size":          50,
	"discovery.rest_seconds":        5,
	"discovery.retry_delay_seconds": 2,
	"discovery.max_retries":         10,
	"discovery.user_data_dir":       "",
	"discovery.headless":            true,
	"discovery.monitor_address":     "",

	"batch.manifest":         "accounts.csv",
	"batch.destination_root": ".",
	"batch.lists_dir":        "scraped_lists",
	"batch.error_log":        "error_log.txt",
	"batch.report_path":      "",
	"batch.skip_completed":   false,

	"download.progress":        false,
	"download.chunk_size":      32 * 1024,
	"download.timeout_seconds": 0,

	"redis.address":   "",
	"redis.password":  "",
	"redis.db":        0,
	"redis.ttl_hours": 0,

	"nats.url":          "",
	"database.url":      "",
	"meilisearch.host":  "",
	"meilisearch.key":   "",
	"meilisearch.index": "videos",
	"metrics.address":   "",

	"log.level":  "info",
	"log.format": "text",
}

// Load reads path, or searches ".", "config/" and "../../config" for config.yaml
// when path is empty. A missing file is not an error; defaults and environment
// variables (RESOLVER_ENDPOINT, BATCH_MANIFEST, ...) still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("config")
		v.AddConfigPath("../../config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Resolver.Endpoint) == "" {
		errs = append(errs, errors.New("resolver.endpoint is empty"))
	}
	if _, err := media.ParseKind(c.Discovery.SearchKind); err != nil {
		errs = append(errs, fmt.Errorf("discovery.search_kind: %w", err))
	}
	if c.Discovery.MaxIdentifiers <= 0 {
		errs = append(errs, fmt.Errorf("discovery.max_identifiers must be positive, got %d", c.Discovery.MaxIdentifiers))
	}
	if c.Resolver.RateLimitMaxRetries < 1 {
		errs = append(errs, fmt.Errorf("resolver.rate_limit_max_retries must be positive, got %d", c.Resolver.RateLimitMaxRetries))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// SearchKind is the parsed discovery.search_kind. Call Validate first.
func (c *Config) SearchKind() media.SearchKind {
	kind, _ := media.ParseKind(c.Discovery.SearchKind)
	return kind
}

func (c *Config) ResolverTimeout() time.Duration {
	return time.Duration(c.Resolver.TimeoutSeconds) * time.Second
}

func (c *Config) RateLimitDelay() time.Duration {
	return time.Duration(c.Resolver.RateLimitDelaySeconds) * time.Second
}

func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Download.TimeoutSeconds) * time.Second
}

// Dump writes the effective configuration as YAML.
func (c *Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
