// Package config loads evidence-cli configuration from file and environment.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	Answer   AnswerConfig   `yaml:"answer" mapstructure:"answer"`
	Download DownloadConfig `yaml:"download" mapstructure:"download"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`

	// Pricing keys are model ids. Viper splits keys on ".", so ids
	// containing a dot cannot be priced here.
	Pricing map[string]ModelPricing `yaml:"pricing" mapstructure:"pricing"`
}

// StoreConfig configures the evidence cache backend.
type StoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	MongoDatabase string `yaml:"mongo_database" mapstructure:"mongo_database"`
	MaxConns      int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns      int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SearchConfig configures candidate discovery.
type SearchConfig struct {
	Provider          string   `yaml:"provider" mapstructure:"provider"`
	GoogleKey         string   `yaml:"google_key" mapstructure:"google_key"`
	GoogleCX          string   `yaml:"google_cx" mapstructure:"google_cx"`
	JinaKey           string   `yaml:"jina_key" mapstructure:"jina_key"`
	JinaSearchBaseURL string   `yaml:"jina_search_base_url" mapstructure:"jina_search_base_url"`
	Topic             string   `yaml:"topic" mapstructure:"topic"`
	Filetypes         []string `yaml:"filetypes" mapstructure:"filetypes"`
	MaxResults        int      `yaml:"max_results" mapstructure:"max_results"`
	TimeoutSecs       int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnswerConfig configures the generative answering service.
type AnswerConfig struct {
	Provider         string `yaml:"provider" mapstructure:"provider"`
	AnthropicKey     string `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	AnthropicModel   string `yaml:"anthropic_model" mapstructure:"anthropic_model"`
	GeminiKey        string `yaml:"gemini_key" mapstructure:"gemini_key"`
	GeminiModel      string `yaml:"gemini_model" mapstructure:"gemini_model"`
	MaxTokens        int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	BreakerFailures  int    `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerResetSecs int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// DownloadConfig configures the budgeted downloader.
type DownloadConfig struct {
	PerDocumentBytes int64   `yaml:"per_document_bytes" mapstructure:"per_document_bytes"`
	SoftCapBytes     int64   `yaml:"soft_cap_bytes" mapstructure:"soft_cap_bytes"`
	HardCapBytes     int64   `yaml:"hard_cap_bytes" mapstructure:"hard_cap_bytes"`
	PenaltyBytes     int64   `yaml:"penalty_bytes" mapstructure:"penalty_bytes"`
	UnknownSizeBytes int64   `yaml:"unknown_size_bytes" mapstructure:"unknown_size_bytes"`
	Workers          int     `yaml:"workers" mapstructure:"workers"`
	TempDir          string  `yaml:"temp_dir" mapstructure:"temp_dir"`
	Question         string  `yaml:"question" mapstructure:"question"`
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerHost      float64 `yaml:"rate_per_host" mapstructure:"rate_per_host"`

	// ComputeTimeoutSecs bounds one shared cache-miss computation.
	ComputeTimeoutSecs int `yaml:"compute_timeout_secs" mapstructure:"compute_timeout_secs"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EVIDENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to "" so that env-only values unmarshal.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "evidence.db")
	v.SetDefault("store.mongo_database", "evidence")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("search.provider", "google")
	v.SetDefault("search.google_key", "")
	v.SetDefault("search.google_cx", "")
	v.SetDefault("search.jina_key", "")
	v.SetDefault("search.jina_search_base_url", "https://s.jina.ai")
	v.SetDefault("search.topic", "Environmental Report")
	v.SetDefault("search.filetypes", []string{"pdf"})
	v.SetDefault("search.max_results", 3)
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("answer.provider", "gemini")
	v.SetDefault("answer.anthropic_key", "")
	v.SetDefault("answer.anthropic_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("answer.gemini_key", "")
	v.SetDefault("answer.gemini_model", "gemini-1.5-flash-001")
	v.SetDefault("answer.max_tokens", 1024)
	v.SetDefault("answer.breaker_failures", 5)
	v.SetDefault("answer.breaker_reset_secs", 30)
	v.SetDefault("download.per_document_bytes", 7_000_000)
	v.SetDefault("download.soft_cap_bytes", 3_000_000)
	v.SetDefault("download.hard_cap_bytes", 10_000_000)
	v.SetDefault("download.penalty_bytes", 100_000)
	v.SetDefault("download.unknown_size_bytes", 100_000_000)
	v.SetDefault("download.workers", 1)
	v.SetDefault("download.temp_dir", "")
	v.SetDefault("download.question", "What are the key impacts of this company?")
	v.SetDefault("download.user_agent", "evidence-cli/1.0")
	v.SetDefault("download.timeout_secs", 60)
	v.SetDefault("download.rate_per_host", 5)
	v.SetDefault("download.compute_timeout_secs", 600)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.request_timeout_secs", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings needed by mode are present and
// consistent. Modes: "serve", "lookup", "cache".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres", "mongo":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of sqlite, postgres, mongo", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "cache":
	case "serve", "lookup":
		errs = append(errs, c.validatePipeline()...)
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validatePipeline() []string {
	var errs []string

	switch c.Search.Provider {
	case "google":
		errs = append(errs, c.requireGoogle()...)
	case "jina":
		if c.Search.JinaKey == "" {
			errs = append(errs, "search.jina_key is required")
		}
	case "chain":
		errs = append(errs, c.requireGoogle()...)
	default:
		errs = append(errs, fmt.Sprintf("search.provider %q is not one of google, jina, chain", c.Search.Provider))
	}
	if c.Search.MaxResults <= 0 {
		errs = append(errs, "search.max_results must be > 0")
	}

	switch c.Answer.Provider {
	case "gemini":
		if c.Answer.GeminiKey == "" {
			errs = append(errs, "answer.gemini_key is required")
		}
	case "anthropic":
		if c.Answer.AnthropicKey == "" {
			errs = append(errs, "answer.anthropic_key is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("answer.provider %q is not one of gemini, anthropic", c.Answer.Provider))
	}

	d := c.Download
	if d.PerDocumentBytes <= 0 || d.SoftCapBytes <= 0 || d.HardCapBytes <= 0 {
		errs = append(errs, "download caps must be > 0")
	}
	if d.SoftCapBytes > d.HardCapBytes {
		errs = append(errs, "download.soft_cap_bytes must be <= download.hard_cap_bytes")
	}
	if d.PenaltyBytes < 0 {
		errs = append(errs, "download.penalty_bytes must be >= 0")
	}
	if d.Workers < 1 || d.Workers > 16 {
		errs = append(errs, "download.workers must be between 1 and 16")
	}
	return errs
}

func (c *Config) requireGoogle() []string {
	var errs []string
	if c.Search.GoogleKey == "" {
		errs = append(errs, "search.google_key is required")
	}
	if c.Search.GoogleCX == "" {
		errs = append(errs, "search.google_cx is required")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
