// Package config loads restyle settings from restyle.yaml, RESTYLE_*
// environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	StorePath    string          `mapstructure:"store_path"`
	HistoryDB    string          `mapstructure:"history_db"`
	SimilarK     int             `mapstructure:"similar_k"`
	Parallel     bool            `mapstructure:"parallel"`
	NoHistory    bool            `mapstructure:"no_history"`
	LogLevel     string          `mapstructure:"log_level"`
	ExampleChars int             `mapstructure:"example_chars"`
	ChunkChars   int             `mapstructure:"chunk_chars"`
	LLM          LLMConfig       `mapstructure:"llm"`
	Embedding    EmbeddingConfig `mapstructure:"embedding"`
	Detector     DetectorConfig  `mapstructure:"detector"`
}

type LLMConfig struct {
	APIKey      string      `mapstructure:"api_key"`
	BaseURL     string      `mapstructure:"base_url"`
	Model       string      `mapstructure:"model"`
	Temperature float32     `mapstructure:"temperature"`
	MaxTokens   int         `mapstructure:"max_tokens"`
	Retry       RetryConfig `mapstructure:"retry"`
}

// EmbeddingConfig falls back to the LLM key and endpoint when empty.
type EmbeddingConfig struct {
	APIKey    string      `mapstructure:"api_key"`
	BaseURL   string      `mapstructure:"base_url"`
	Model     string      `mapstructure:"model"`
	CacheSize int         `mapstructure:"cache_size"`
	Retry     RetryConfig `mapstructure:"retry"`
}

// RetryConfig guards requests to a model endpoint. Zero RequestsPerSecond
// or BreakerFailures turns that guard off.
type RetryConfig struct {
	MaxRetries        int           `mapstructure:"max_retries"`
	InitialInterval   time.Duration `mapstructure:"initial_interval"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	BreakerFailures   uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout    time.Duration `mapstructure:"breaker_timeout"`
}

type DetectorConfig struct {
	// Backend is "lingua", "google" or "none".
	Backend     string `mapstructure:"backend"`
	Credentials string `mapstructure:"credentials"`
}

const (
	BackendLingua = "lingua"
	BackendGoogle = "google"
	BackendNone   = "none"
)

// New returns a viper instance with defaults, config search paths and
// environment binding in place.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("restyle")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "restyle"))
	}

	setDefaults(v)

	v.SetEnvPrefix("RESTYLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// OPENAI_API_KEY is honoured when no RESTYLE key is set.
	v.BindEnv("llm.api_key", "RESTYLE_LLM_API_KEY", "OPENAI_API_KEY")
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store_path", "transformation_examples.json")
	v.SetDefault("history_db", "./data/restyle.db")
	v.SetDefault("similar_k", 3)
	v.SetDefault("parallel", false)
	v.SetDefault("no_history", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("example_chars", 1500)
	v.SetDefault("chunk_chars", 8000)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 1000)
	setRetryDefaults(v, "llm.retry")

	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.cache_size", 512)
	setRetryDefaults(v, "embedding.retry")

	v.SetDefault("detector.backend", BackendLingua)
	v.SetDefault("detector.credentials", "")
}

func setRetryDefaults(v *viper.Viper, prefix string) {
	v.SetDefault(prefix+".max_retries", 3)
	v.SetDefault(prefix+".initial_interval", 500*time.Millisecond)
	v.SetDefault(prefix+".requests_per_second", 0)
	v.SetDefault(prefix+".breaker_failures", 5)
	v.SetDefault(prefix+".breaker_timeout", 30*time.Second)
}

// Load reads configFile (or searches the default paths when empty) and
// decodes the merged settings. A missing default config file is not an
// error; a missing explicit one is.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = cfg.LLM.APIKey
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = cfg.LLM.BaseURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.SimilarK <= 0 {
		return fmt.Errorf("similar_k must be positive, got %d", c.SimilarK)
	}
	if c.LLM.Temperature <= 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within (0, 2], got %v", c.LLM.Temperature)
	}
	if c.LLM.Retry.MaxRetries < 0 || c.Embedding.Retry.MaxRetries < 0 {
		return errors.New("retry.max_retries must not be negative")
	}
	switch c.Detector.Backend {
	case BackendLingua, BackendGoogle, BackendNone:
	default:
		return fmt.Errorf("unknown detector backend %q", c.Detector.Backend)
	}
	return nil
}
