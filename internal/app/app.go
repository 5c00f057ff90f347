// Package app provides application initialization and dependency wiring.
//
// Setup builds the full component graph in dependency order: tracing,
// migrations, the connection pool, Genkit with the configured provider
// plugin, then the store and the services on top. App holds the wired
// components; Close releases resources in reverse order.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/narrativelab/dramatis/internal/config"
	"github.com/narrativelab/dramatis/internal/knowledge"
	"github.com/narrativelab/dramatis/internal/search"
	"github.com/narrativelab/dramatis/internal/writer"
)

// App is the core application container.
type App struct {
	Config *config.Config

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Store  *knowledge.Store
	Search *search.Service
	Writer *writer.Service

	logger *slog.Logger

	// Cleanup functions, released in reverse acquisition order.
	dbCleanup   func()
	otelCleanup func()
}

// Close releases all resources. Safe to call on a partially
// initialized App; Setup relies on that for its error path.
func (a *App) Close() error {
	a.log().Info("shutting down")

	if a.dbCleanup != nil {
		a.dbCleanup()
		a.log().Info("database pool closed")
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}

func (a *App) log() *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return slog.Default()
}
