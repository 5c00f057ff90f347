// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.dramatis/config.yaml or ./config.yaml)
//  3. Default values
//
// Main categories:
//   - AI: provider, generator model, embedder model
//   - Storage: PostgreSQL connection and pool sizing (see storage.go)
//   - Search: vector dimension, similarity threshold, result limits
//   - Observability: optional OTLP trace export
//
// The Config value is constructed once at process start and passed into
// each component's constructor; nothing reads it ambiently afterwards.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the generator model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidVectorDimension indicates the embedding dimension is out of range.
	ErrInvalidVectorDimension = errors.New("invalid vector dimension")

	// ErrInvalidSimilarityThreshold indicates the similarity threshold is out of range.
	ErrInvalidSimilarityThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidSearchLimit indicates a search limit is out of range.
	ErrInvalidSearchLimit = errors.New("invalid search limit")

	// ErrInvalidPoolSize indicates the connection pool size is out of range.
	ErrInvalidPoolSize = errors.New("invalid pool size")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

const (
	// DefaultVectorDimension matches text-embedding-3-small and the
	// truncated output of gemini-embedding-001.
	DefaultVectorDimension = 1536

	// DefaultSimilarityThreshold is the minimum cosine similarity a fact
	// must reach to appear in semantic search results.
	DefaultSimilarityThreshold = 0.7

	// DefaultSearchLimit is the result count used when a caller omits limit.
	DefaultSearchLimit = 10

	// MaxSearchLimit is the hard cap on any search result count.
	MaxSearchLimit = 100

	// DefaultPoolSize is the bounded connection pool size.
	DefaultPoolSize = 10

	// DefaultEmbedBatchTimeout bounds a single batch embedding call.
	// A timeout is a batch-level failure, never a partial hang.
	DefaultEmbedBatchTimeout = 30 * time.Second
)

// Config stores application configuration. It is immutable after Load.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider"`       // "gemini" (default), "ollama", "openai"
	ModelName     string `mapstructure:"model_name"`     // generator model (tags, analysis, summaries)
	EmbedderModel string `mapstructure:"embedder_model"` // text-to-vector model
	OllamaHost    string `mapstructure:"ollama_host"`    // only used when provider is "ollama"

	// Search configuration
	VectorDimension     int     `mapstructure:"vector_dimension"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	DefaultSearchLimit  int     `mapstructure:"default_search_limit"`

	// Embedding provider limits
	EmbedBatchTimeout time.Duration `mapstructure:"embed_batch_timeout"`
	EmbedRateLimit    float64       `mapstructure:"embed_rate_limit"` // provider calls per second, 0 = unlimited

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`
	PoolSize         int    `mapstructure:"pool_size"`

	// Observability configuration
	Tracing TracingConfig `mapstructure:"tracing"`
}

// TracingConfig holds the optional OTLP trace export settings.
// Traces go to a local collector over OTLP HTTP; the collector handles
// authentication and forwarding.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"` // host:port of the OTLP HTTP collector
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".dramatis")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides the individual postgres_* values.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", "gemini-embedding-001")
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Search defaults
	viper.SetDefault("vector_dimension", DefaultVectorDimension)
	viper.SetDefault("similarity_threshold", DefaultSimilarityThreshold)
	viper.SetDefault("default_search_limit", DefaultSearchLimit)

	// Embedding provider defaults
	viper.SetDefault("embed_batch_timeout", DefaultEmbedBatchTimeout)
	viper.SetDefault("embed_rate_limit", 0.0)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "dramatis")
	viper.SetDefault("postgres_password", "dramatis_dev_password")
	viper.SetDefault("postgres_db_name", "dramatis")
	viper.SetDefault("postgres_ssl_mode", "disable")
	viper.SetDefault("pool_size", DefaultPoolSize)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4318")
	viper.SetDefault("tracing.service_name", "dramatis")
	viper.SetDefault("tracing.environment", "dev")
}

// bindEnvVariables binds environment overrides explicitly.
// API keys (GEMINI_API_KEY, OPENAI_API_KEY) are read directly by the
// Genkit provider plugins, not through Viper; Validate checks their
// presence for the selected provider.
func bindEnvVariables() {
	// Hardcoded keys can't fail to bind; a panic here is a bug, not a
	// runtime condition.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "DRAMATIS_PROVIDER")
	mustBind("model_name", "DRAMATIS_MODEL_NAME")
	mustBind("embedder_model", "DRAMATIS_EMBEDDER_MODEL")
	mustBind("ollama_host", "DRAMATIS_OLLAMA_HOST")
	mustBind("vector_dimension", "DRAMATIS_VECTOR_DIMENSION")
	mustBind("postgres_password", "DRAMATIS_POSTGRES_PASSWORD")
	mustBind("tracing.enabled", "DRAMATIS_TRACING_ENABLED")
}
