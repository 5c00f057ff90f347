package config

import (
	"errors"
	"testing"
	"time"
)

// validBaseConfig returns a Config with all required fields set for the
// given provider.
func validBaseConfig(provider string) *Config {
	cfg := &Config{
		Provider:            provider,
		ModelName:           "gemini-2.5-flash",
		EmbedderModel:       "gemini-embedding-001",
		VectorDimension:     DefaultVectorDimension,
		SimilarityThreshold: DefaultSimilarityThreshold,
		DefaultSearchLimit:  DefaultSearchLimit,
		EmbedBatchTimeout:   DefaultEmbedBatchTimeout,
		PostgresHost:        "localhost",
		PostgresPort:        5432,
		PostgresUser:        "dramatis",
		PostgresPassword:    "test_password",
		PostgresDBName:      "dramatis",
		PostgresSSLMode:     "disable",
		PoolSize:            DefaultPoolSize,
	}
	switch provider {
	case ProviderOllama:
		cfg.ModelName = "llama3.3"
		cfg.OllamaHost = "http://localhost:11434"
	case ProviderOpenAI:
		cfg.ModelName = "gpt-4o-mini"
	}
	return cfg
}

// setEnvForProvider sets the required API key for the given provider.
func setEnvForProvider(t *testing.T, provider string) {
	t.Helper()
	switch provider {
	case ProviderGemini, "":
		t.Setenv("GEMINI_API_KEY", "test-api-key")
	case ProviderOpenAI:
		t.Setenv("OPENAI_API_KEY", "test-openai-key")
	}
}

func TestValidateSuccess(t *testing.T) {
	providers := []string{"", ProviderGemini, ProviderOllama, ProviderOpenAI}

	for _, provider := range providers {
		name := provider
		if name == "" {
			name = "default"
		}
		t.Run(name, func(t *testing.T) {
			setEnvForProvider(t, provider)

			cfg := validBaseConfig(provider)
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate() unexpected error with valid config (provider %q): %v", provider, err)
			}
		})
	}
}

func TestValidateNilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() on nil config = %v, want ErrConfigNil", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "unsupported provider",
			mutate:  func(c *Config) { c.Provider = "unsupported" },
			wantErr: ErrInvalidProvider,
		},
		{
			name:    "empty model name",
			mutate:  func(c *Config) { c.ModelName = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "empty embedder model",
			mutate:  func(c *Config) { c.EmbedderModel = "" },
			wantErr: ErrInvalidEmbedderModel,
		},
		{
			name:    "zero vector dimension",
			mutate:  func(c *Config) { c.VectorDimension = 0 },
			wantErr: ErrInvalidVectorDimension,
		},
		{
			name:    "vector dimension above ivfflat cap",
			mutate:  func(c *Config) { c.VectorDimension = 4096 },
			wantErr: ErrInvalidVectorDimension,
		},
		{
			name:    "similarity threshold above 1",
			mutate:  func(c *Config) { c.SimilarityThreshold = 1.5 },
			wantErr: ErrInvalidSimilarityThreshold,
		},
		{
			name:    "default search limit above cap",
			mutate:  func(c *Config) { c.DefaultSearchLimit = MaxSearchLimit + 1 },
			wantErr: ErrInvalidSearchLimit,
		},
		{
			name:    "zero pool size",
			mutate:  func(c *Config) { c.PoolSize = 0 },
			wantErr: ErrInvalidPoolSize,
		},
		{
			name:    "empty postgres host",
			mutate:  func(c *Config) { c.PostgresHost = "" },
			wantErr: ErrInvalidPostgresHost,
		},
		{
			name:    "postgres port out of range",
			mutate:  func(c *Config) { c.PostgresPort = 70000 },
			wantErr: ErrInvalidPostgresPort,
		},
		{
			name:    "empty database name",
			mutate:  func(c *Config) { c.PostgresDBName = "" },
			wantErr: ErrInvalidPostgresDBName,
		},
		{
			name:    "deprecated ssl mode",
			mutate:  func(c *Config) { c.PostgresSSLMode = "prefer" },
			wantErr: ErrInvalidPostgresSSLMode,
		},
		{
			name:    "ollama without host",
			mutate:  func(c *Config) { c.Provider = ProviderOllama; c.OllamaHost = "" },
			wantErr: ErrInvalidOllamaHost,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GEMINI_API_KEY", "test-api-key")

			cfg := validBaseConfig(ProviderGemini)
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateEmbedBatchTimeoutDefault(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-api-key")

	cfg := validBaseConfig(ProviderGemini)
	cfg.EmbedBatchTimeout = 5 * time.Second
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with custom embed timeout: %v", err)
	}
}
