// Package mcp exposes the knowledge graph as MCP tools over stdio.
// Handlers translate between tool inputs and the writer façade; the
// store's error taxonomy becomes rejected-request text results so a
// misbehaving client can never crash the protocol loop.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/narrativelab/dramatis/internal/knowledge"
	"github.com/narrativelab/dramatis/internal/search"
	"github.com/narrativelab/dramatis/internal/writer"
)

// facade is the writer surface the tool handlers call.
type facade interface {
	CreateCharacter(ctx context.Context, name, description string, tags []string) (*knowledge.Character, error)
	AddFact(ctx context.Context, characterID int64, factType, content string) (*knowledge.Fact, error)
	AddRelation(ctx context.Context, characterAID, characterBID int64, relationType, description string, strength float64) (*knowledge.Relation, error)
	SearchCharacters(ctx context.Context, query string, limit int) ([]*knowledge.Character, error)
	SearchFacts(ctx context.Context, query string, characterID int64, factType string, limit int) ([]search.FactResult, error)
	GenerateTags(ctx context.Context, characterID int64) ([]string, error)
	AnalyzeRelationships(ctx context.Context, characterIDs []int64) ([]writer.RelationProposal, error)
	Summarize(ctx context.Context, characterID int64) (string, error)
}

// Server wraps the MCP SDK server and the writer façade.
type Server struct {
	mcpServer *mcp.Server
	writer    facade
	logger    *slog.Logger
	name      string
	version   string
}

// Config holds MCP server identity.
type Config struct {
	Name    string
	Version string
}

// NewServer creates the MCP server and registers every tool.
func NewServer(cfg Config, w facade, logger *slog.Logger) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if w == nil {
		return nil, fmt.Errorf("writer facade is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		writer:  w,
		logger:  logger,
		name:    cfg.Name,
		version: cfg.Version,
	}

	if err := s.registerCharacterTools(); err != nil {
		return nil, fmt.Errorf("registering character tools: %w", err)
	}
	if err := s.registerFactTools(); err != nil {
		return nil, fmt.Errorf("registering fact tools: %w", err)
	}
	if err := s.registerRelationTools(); err != nil {
		return nil, fmt.Errorf("registering relation tools: %w", err)
	}

	return s, nil
}

// Run serves the MCP protocol on the given transport. Blocking.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("mcp server starting", "name", s.name, "version", s.version)
	return s.mcpServer.Run(ctx, transport)
}
