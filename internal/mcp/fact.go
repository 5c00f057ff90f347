package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// AddFactInput defines the add_character_fact tool input.
type AddFactInput struct {
	CharacterID int64  `json:"character_id" jsonschema:"Character the fact belongs to"`
	FactType    string `json:"fact_type" jsonschema:"Category of the fact, e.g. background, secret, goal (max 100 characters)"`
	Content     string `json:"content" jsonschema:"The fact itself (max 10000 characters)"`
}

// SearchFactsInput defines the search_facts tool input.
type SearchFactsInput struct {
	Query       string `json:"query" jsonschema:"Free-text query matched semantically against fact content"`
	CharacterID int64  `json:"character_id,omitempty" jsonschema:"Restrict to one character"`
	FactType    string `json:"fact_type,omitempty" jsonschema:"Restrict to one fact type"`
	Limit       int    `json:"limit,omitempty" jsonschema:"Maximum results (default 10, max 100)"`
}

// factPayload is the JSON shape facts take in tool results. Score is
// cosine similarity for semantic hits and a nominal constant for
// lexical fallback hits (lexical=true).
type factPayload struct {
	ID          int64   `json:"id"`
	CharacterID int64   `json:"character_id"`
	FactType    string  `json:"fact_type"`
	Content     string  `json:"content"`
	Embedded    bool    `json:"embedded"`
	CreatedAt   string  `json:"created_at"`
	Score       float64 `json:"score,omitempty"`
	Lexical     bool    `json:"lexical,omitempty"`
}

func (s *Server) registerFactTools() error {
	addSchema, err := jsonschema.For[AddFactInput](nil)
	if err != nil {
		return fmt.Errorf("schema for add_character_fact: %w", err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "add_character_fact",
		Description: "Record a typed fact about a character. The fact is " +
			"embedded for semantic search when the embedding provider is available.",
		InputSchema: addSchema,
	}, s.AddFact)

	searchSchema, err := jsonschema.For[SearchFactsInput](nil)
	if err != nil {
		return fmt.Errorf("schema for search_facts: %w", err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "search_facts",
		Description: "Search facts by meaning, optionally scoped to a " +
			"character or fact type. Falls back to text matching when " +
			"semantic search is unavailable.",
		InputSchema: searchSchema,
	}, s.SearchFacts)

	return nil
}

// AddFact handles the add_character_fact tool call.
func (s *Server) AddFact(ctx context.Context, _ *mcp.CallToolRequest, in AddFactInput) (*mcp.CallToolResult, any, error) {
	fact, err := s.writer.AddFact(ctx, in.CharacterID, in.FactType, in.Content)
	if err != nil {
		return errorToMCP(s.logger, err), nil, nil
	}
	return dataToMCP(factPayload{
		ID:          fact.ID,
		CharacterID: fact.CharacterID,
		FactType:    fact.FactType,
		Content:     fact.Content,
		Embedded:    fact.Embedding != nil,
		CreatedAt:   fact.CreatedAt.Format(time.RFC3339),
	}), nil, nil
}

// SearchFacts handles the search_facts tool call.
func (s *Server) SearchFacts(ctx context.Context, _ *mcp.CallToolRequest, in SearchFactsInput) (*mcp.CallToolResult, any, error) {
	results, err := s.writer.SearchFacts(ctx, in.Query, in.CharacterID, in.FactType, in.Limit)
	if err != nil {
		return errorToMCP(s.logger, err), nil, nil
	}
	payload := make([]factPayload, len(results))
	for i, r := range results {
		payload[i] = factPayload{
			ID:          r.Fact.ID,
			CharacterID: r.Fact.CharacterID,
			FactType:    r.Fact.FactType,
			Content:     r.Fact.Content,
			Embedded:    r.Fact.Embedding != nil,
			CreatedAt:   r.Fact.CreatedAt.Format(time.RFC3339),
			Score:       r.Score,
			Lexical:     r.Lexical,
		}
	}
	return dataToMCP(payload), nil, nil
}
