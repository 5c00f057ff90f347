package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/narrativelab/dramatis/db"
	"github.com/narrativelab/dramatis/internal/config"
	"github.com/narrativelab/dramatis/internal/embedding"
	"github.com/narrativelab/dramatis/internal/knowledge"
	"github.com/narrativelab/dramatis/internal/search"
	"github.com/narrativelab/dramatis/internal/writer"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	store, err := knowledge.NewStore(pool, logger)
	if err != nil {
		return nil, fmt.Errorf("creating knowledge store: %w", err)
	}
	a.Store = store

	provider, err := embedding.NewProvider(embedder, embedding.Config{
		Dimension:     cfg.VectorDimension,
		Timeout:       cfg.EmbedBatchTimeout,
		RatePerSecond: cfg.EmbedRateLimit,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	searchSvc, err := search.NewService(store, provider, search.Config{
		Threshold:    cfg.SimilarityThreshold,
		DefaultLimit: cfg.DefaultSearchLimit,
		MaxLimit:     config.MaxSearchLimit,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating search service: %w", err)
	}
	a.Search = searchSvc

	generator, err := writer.NewGenkitGenerator(g, cfg.ModelName)
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	writerSvc, err := writer.NewService(store, searchSvc, provider, generator, logger)
	if err != nil {
		return nil, fmt.Errorf("creating writer service: %w", err)
	}
	a.Writer = writerSvc

	return a, nil
}

// provideOtelShutdown sets up OTLP trace export before Genkit
// initialization, so the TracerProvider is ready when Genkit starts
// creating spans. Disabled tracing returns a no-op cleanup.
//
// Spans go to a local OTLP HTTP collector; the collector handles
// authentication, buffering, and forwarding.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	tc := cfg.Tracing
	if !tc.Enabled {
		return func() {}
	}

	endpoint := tc.Endpoint
	if endpoint == "" {
		endpoint = "localhost:4318"
	}

	// Set OTEL env vars for Genkit's TracerProvider to pick up.
	// SAFETY: os.Setenv is not concurrent-safe, but this runs exactly
	// once during startup, before any goroutines are spawned.
	if tc.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", tc.ServiceName)
	}
	if tc.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+tc.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", tc.ServiceName,
		"environment", tc.Environment,
	)

	shutdown := tracing.TracerProvider().Shutdown

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.PoolSize)
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	cleanup := func() {
		pool.Close()
	}

	return pool, cleanup, nil
}

// provideGenkit initializes Genkit with the configured AI provider
// plugin. Supports gemini (default), ollama, and openai.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit registration (no auto-discovery).
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // gemini
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider
// plugin. Each provider registers embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
//   - openai: auto-registered in Init(), looked up by model name
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default: // gemini
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}
