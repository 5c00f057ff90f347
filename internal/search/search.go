// Package search ranks knowledge-graph content for retrieval. Semantic
// fact search embeds the query and scores stored vectors; when the
// embedding provider is unavailable the service degrades to lexical
// matching so retrieval never goes dark.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pgvector/pgvector-go"

	"github.com/narrativelab/dramatis/internal/knowledge"
	"github.com/narrativelab/dramatis/internal/similarity"
)

// LexicalScore is the nominal score assigned to lexical fallback hits.
// Lexical matches carry no meaningful distance, so every hit gets the
// same sentinel and ordering falls back to recency.
const LexicalScore = 1.0

// factSource is the slice of the knowledge store the service reads.
type factSource interface {
	ListFactEmbeddings(ctx context.Context, characterID int64, factType string) ([]knowledge.FactVector, error)
	GetFactsByIDs(ctx context.Context, ids []int64) ([]*knowledge.Fact, error)
	SearchFactsLexical(ctx context.Context, query string, characterID int64, factType string, limit int) ([]*knowledge.Fact, error)
	SearchCharacters(ctx context.Context, query string, limit int) ([]*knowledge.Character, error)
	ListFactsMissingEmbedding(ctx context.Context, limit int) ([]*knowledge.Fact, error)
	SetFactEmbedding(ctx context.Context, id int64, vec pgvector.Vector) error
}

// embedProvider is the slice of the embedding provider the service uses.
type embedProvider interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string) [][]float32
}

// Config bounds search behavior.
type Config struct {
	// Threshold is the minimum cosine similarity for a semantic hit.
	Threshold float64

	// DefaultLimit applies when the caller passes limit <= 0.
	DefaultLimit int

	// MaxLimit caps any requested limit.
	MaxLimit int
}

// FactResult is one scored fact. Lexical marks fallback hits, whose
// Score is the LexicalScore sentinel rather than a similarity.
type FactResult struct {
	Fact    *knowledge.Fact
	Score   float64
	Lexical bool
}

// Service ranks facts and characters against free-text queries.
type Service struct {
	source   factSource
	provider embedProvider
	cfg      Config
	logger   *slog.Logger
}

// NewService creates a search Service.
func NewService(source factSource, provider embedProvider, cfg Config, logger *slog.Logger) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Threshold < -1 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("threshold %v out of range [-1, 1]", cfg.Threshold)
	}
	if cfg.DefaultLimit <= 0 || cfg.MaxLimit <= 0 || cfg.DefaultLimit > cfg.MaxLimit {
		return nil, fmt.Errorf("invalid limits: default %d, max %d", cfg.DefaultLimit, cfg.MaxLimit)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, provider: provider, cfg: cfg, logger: logger}, nil
}

// SearchFacts performs semantic fact search, optionally scoped to one
// character and/or fact type (characterID <= 0 and factType == ""
// disable the filters). When the query cannot be embedded, or nothing
// has an embedding yet, it degrades to lexical matching.
func (s *Service) SearchFacts(ctx context.Context, query string, characterID int64, factType string, limit int) ([]FactResult, error) {
	limit = s.clampLimit(limit)

	queryVec, err := s.provider.EmbedOne(ctx, query)
	if err != nil {
		s.logger.Warn("query embedding failed, falling back to lexical search", "error", err)
		return s.searchFactsLexical(ctx, query, characterID, factType, limit)
	}

	vectors, err := s.source.ListFactEmbeddings(ctx, characterID, factType)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		// Nothing embedded yet (fresh graph or pending backfill).
		return s.searchFactsLexical(ctx, query, characterID, factType, limit)
	}

	candidates := make([]similarity.Candidate, len(vectors))
	for i, fv := range vectors {
		candidates[i] = similarity.Candidate{ID: fv.ID, Vector: fv.Vector}
	}
	matches := similarity.Rank(queryVec, candidates, s.cfg.Threshold, limit)
	if len(matches) == 0 {
		return []FactResult{}, nil
	}

	ids := make([]int64, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	facts, err := s.source.GetFactsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*knowledge.Fact, len(facts))
	for _, f := range facts {
		byID[f.ID] = f
	}

	// Assemble in rank order; ids deleted between scoring and lookup
	// simply drop out.
	results := make([]FactResult, 0, len(matches))
	for _, m := range matches {
		fact, ok := byID[m.ID]
		if !ok {
			continue
		}
		results = append(results, FactResult{Fact: fact, Score: m.Score})
	}
	return results, nil
}

func (s *Service) searchFactsLexical(ctx context.Context, query string, characterID int64, factType string, limit int) ([]FactResult, error) {
	facts, err := s.source.SearchFactsLexical(ctx, query, characterID, factType, limit)
	if err != nil {
		return nil, err
	}
	results := make([]FactResult, len(facts))
	for i, f := range facts {
		results[i] = FactResult{Fact: f, Score: LexicalScore, Lexical: true}
	}
	return results, nil
}

// SearchCharacters is a lexical lookup over names, descriptions and tags.
func (s *Service) SearchCharacters(ctx context.Context, query string, limit int) ([]*knowledge.Character, error) {
	return s.source.SearchCharacters(ctx, query, s.clampLimit(limit))
}

// Backfill embeds up to batchSize facts that still lack a vector.
// Returns how many were embedded and how many remain unembedded in the
// batch (provider failures leave facts for the next sweep).
func (s *Service) Backfill(ctx context.Context, batchSize int) (embedded, failed int, err error) {
	if batchSize <= 0 {
		batchSize = s.cfg.MaxLimit
	}

	facts, err := s.source.ListFactsMissingEmbedding(ctx, batchSize)
	if err != nil {
		return 0, 0, err
	}
	if len(facts) == 0 {
		return 0, 0, nil
	}

	texts := make([]string, len(facts))
	for i, f := range facts {
		texts[i] = f.Content
	}
	vectors := s.provider.EmbedMany(ctx, texts)

	for i, vec := range vectors {
		if vec == nil {
			failed++
			continue
		}
		if setErr := s.source.SetFactEmbedding(ctx, facts[i].ID, pgvector.NewVector(vec)); setErr != nil {
			s.logger.Warn("storing backfilled embedding", "fact_id", facts[i].ID, "error", setErr)
			failed++
			continue
		}
		embedded++
	}

	s.logger.Info("embedding backfill batch complete",
		"embedded", embedded, "failed", failed, "batch", len(facts))
	return embedded, failed, nil
}

func (s *Service) clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return s.cfg.DefaultLimit
	case limit > s.cfg.MaxLimit:
		return s.cfg.MaxLimit
	default:
		return limit
	}
}
