// Package writer is the orchestration façade the tool boundary talks
// to. It composes the knowledge store, the search service, the
// embedding provider and a text generator into the operations a
// narrative-writing agent needs, and owns the prompts and JSON parsing
// for the generated parts.
package writer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/narrativelab/dramatis/internal/knowledge"
	"github.com/narrativelab/dramatis/internal/search"
)

// graph is the slice of the knowledge store the façade writes and reads.
type graph interface {
	CreateCharacter(ctx context.Context, name, description string, tags []string) (*knowledge.Character, error)
	GetCharacter(ctx context.Context, id int64) (*knowledge.Character, error)
	CreateFact(ctx context.Context, characterID int64, factType, content string, embedding *pgvector.Vector) (*knowledge.Fact, error)
	CreateRelation(ctx context.Context, characterAID, characterBID int64, relationType, description string, strength float64) (*knowledge.Relation, error)
	ListFactsForCharacter(ctx context.Context, characterID int64) ([]*knowledge.Fact, error)
	UpdateCharacterTags(ctx context.Context, id int64, tags []string) (*knowledge.Character, error)
	RelationsAmong(ctx context.Context, ids []int64) ([]*knowledge.Relation, error)
}

// searcher is the retrieval surface delegated to the search service.
type searcher interface {
	SearchFacts(ctx context.Context, query string, characterID int64, factType string, limit int) ([]search.FactResult, error)
	SearchCharacters(ctx context.Context, query string, limit int) ([]*knowledge.Character, error)
}

// embedOner embeds single texts for the best-effort path in AddFact.
type embedOner interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Generator produces text from a prompt. Satisfied by GenkitGenerator
// in production and by hand mocks in tests.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Service is the writing assistant façade. Safe for concurrent use.
type Service struct {
	graph     graph
	search    searcher
	embedder  embedOner
	generator Generator
	logger    *slog.Logger
}

// NewService creates the façade. Every collaborator is required.
func NewService(g graph, s searcher, e embedOner, gen Generator, logger *slog.Logger) (*Service, error) {
	if g == nil || s == nil || e == nil || gen == nil {
		return nil, &knowledge.ValidationError{Field: "service", Reason: "all collaborators are required"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{graph: g, search: s, embedder: e, generator: gen, logger: logger}, nil
}

// rule is one declarative argument check. Operations list their rules
// up front and evaluate them with checkRules before touching any
// collaborator.
type rule struct {
	field  string
	ok     bool
	reason string
}

func checkRules(rules []rule) error {
	for _, r := range rules {
		if !r.ok {
			return &knowledge.ValidationError{Field: r.field, Reason: r.reason}
		}
	}
	return nil
}

// opLogger tags every log line of one operation with a correlation id.
func (s *Service) opLogger(op string) *slog.Logger {
	return s.logger.With("op", op, "request_id", uuid.NewString())
}

// CreateCharacter registers a new character. Field constraints are
// enforced by the store; the rules here catch the cheap cases first.
func (s *Service) CreateCharacter(ctx context.Context, name, description string, tags []string) (*knowledge.Character, error) {
	if err := checkRules([]rule{
		{field: "name", ok: strings.TrimSpace(name) != "", reason: "must not be empty"},
		{field: "description", ok: strings.TrimSpace(description) != "", reason: "must not be empty"},
	}); err != nil {
		return nil, err
	}
	return s.graph.CreateCharacter(ctx, name, description, tags)
}

// AddFact records a fact, embedding its content best-effort: when the
// provider is down the fact is stored without a vector and a later
// backfill sweep picks it up. The write path never fails because of
// the embedding provider.
func (s *Service) AddFact(ctx context.Context, characterID int64, factType, content string) (*knowledge.Fact, error) {
	if err := checkRules([]rule{
		{field: "character_id", ok: characterID > 0, reason: "must be a positive identifier"},
		{field: "fact_type", ok: strings.TrimSpace(factType) != "", reason: "must not be empty"},
		{field: "content", ok: strings.TrimSpace(content) != "", reason: "must not be empty"},
	}); err != nil {
		return nil, err
	}

	logger := s.opLogger("add_fact")

	var embedding *pgvector.Vector
	if vec, err := s.embedder.EmbedOne(ctx, content); err != nil {
		logger.Warn("embedding unavailable, storing fact without vector",
			"character_id", characterID, "error", err)
	} else {
		v := pgvector.NewVector(vec)
		embedding = &v
	}

	return s.graph.CreateFact(ctx, characterID, factType, content, embedding)
}

// AddRelation records a directed typed edge between two characters.
func (s *Service) AddRelation(ctx context.Context, characterAID, characterBID int64, relationType, description string, strength float64) (*knowledge.Relation, error) {
	if err := checkRules([]rule{
		{field: "character_a_id", ok: characterAID > 0, reason: "must be a positive identifier"},
		{field: "character_b_id", ok: characterBID > 0, reason: "must be a positive identifier"},
		{field: "relation_type", ok: strings.TrimSpace(relationType) != "", reason: "must not be empty"},
	}); err != nil {
		return nil, err
	}
	return s.graph.CreateRelation(ctx, characterAID, characterBID, relationType, description, strength)
}

// SearchCharacters finds characters lexically by name, description or tag.
func (s *Service) SearchCharacters(ctx context.Context, query string, limit int) ([]*knowledge.Character, error) {
	if err := checkRules([]rule{
		{field: "query", ok: strings.TrimSpace(query) != "", reason: "must not be empty"},
	}); err != nil {
		return nil, err
	}
	return s.search.SearchCharacters(ctx, query, limit)
}

// SearchFacts finds facts semantically, with lexical fallback.
func (s *Service) SearchFacts(ctx context.Context, query string, characterID int64, factType string, limit int) ([]search.FactResult, error) {
	if err := checkRules([]rule{
		{field: "query", ok: strings.TrimSpace(query) != "", reason: "must not be empty"},
		{field: "character_id", ok: characterID >= 0, reason: "must not be negative"},
	}); err != nil {
		return nil, err
	}
	return s.search.SearchFacts(ctx, query, characterID, factType, limit)
}

// characterContext loads a character and its facts, returning a
// ReferentialError when the character does not exist.
func (s *Service) characterContext(ctx context.Context, characterID int64) (*knowledge.Character, []*knowledge.Fact, error) {
	character, err := s.graph.GetCharacter(ctx, characterID)
	if err != nil {
		return nil, nil, err
	}
	if character == nil {
		return nil, nil, &knowledge.ReferentialError{Entity: "character", ID: characterID}
	}
	facts, err := s.graph.ListFactsForCharacter(ctx, characterID)
	if err != nil {
		return nil, nil, err
	}
	return character, facts, nil
}
