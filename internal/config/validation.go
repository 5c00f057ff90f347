package config

import (
	"fmt"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// Provider and API key validation. Keys are read directly by the
	// Genkit plugins; we only check presence here so startup fails fast.
	switch c.Provider {
	case "", ProviderGemini: // empty falls back to the gemini default
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required for the gemini provider",
				ErrMissingAPIKey)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required for the openai provider",
				ErrMissingAPIKey)
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host cannot be empty", ErrInvalidOllamaHost)
		}
	default:
		return fmt.Errorf("%w: %q, must be one of: gemini, ollama, openai", ErrInvalidProvider, c.Provider)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// pgvector caps indexed vector columns at 2000 dimensions for ivfflat.
	if c.VectorDimension < 1 || c.VectorDimension > 2000 {
		return fmt.Errorf("%w: must be between 1 and 2000, got %d", ErrInvalidVectorDimension, c.VectorDimension)
	}

	if c.SimilarityThreshold < -1.0 || c.SimilarityThreshold > 1.0 {
		return fmt.Errorf("%w: must be between -1.0 and 1.0, got %.2f", ErrInvalidSimilarityThreshold, c.SimilarityThreshold)
	}

	if c.DefaultSearchLimit < 1 || c.DefaultSearchLimit > MaxSearchLimit {
		return fmt.Errorf("%w: must be between 1 and %d, got %d", ErrInvalidSearchLimit, MaxSearchLimit, c.DefaultSearchLimit)
	}

	if c.PoolSize < 1 || c.PoolSize > 100 {
		return fmt.Errorf("%w: must be between 1 and 100, got %d", ErrInvalidPoolSize, c.PoolSize)
	}

	// PostgreSQL configuration validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// Modern SSL modes only; allow/prefer are deprecated.
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
