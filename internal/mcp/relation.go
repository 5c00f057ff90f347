package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// defaultRelationStrength applies when create_character_relation omits
// strength, matching the schema column default.
const defaultRelationStrength = 0.5

// CreateRelationInput defines the create_character_relation tool input.
type CreateRelationInput struct {
	CharacterAID int64    `json:"character_a_id" jsonschema:"Source character of the directed relation"`
	CharacterBID int64    `json:"character_b_id" jsonschema:"Target character of the directed relation"`
	RelationType string   `json:"relation_type" jsonschema:"Short relation label, e.g. trusts, rivals (max 100 characters)"`
	Description  string   `json:"description,omitempty" jsonschema:"Optional free-text context for the relation"`
	Strength     *float64 `json:"strength,omitempty" jsonschema:"Relation strength between 0.0 and 1.0 (default 0.5)"`
}

// AnalyzeRelationshipsInput defines the analyze_character_relationships
// tool input.
type AnalyzeRelationshipsInput struct {
	CharacterIDs []int64 `json:"character_ids" jsonschema:"At least two distinct character ids to analyze"`
}

// relationPayload is the JSON shape relations take in tool results.
type relationPayload struct {
	ID           int64   `json:"id"`
	CharacterAID int64   `json:"character_a_id"`
	CharacterBID int64   `json:"character_b_id"`
	RelationType string  `json:"relation_type"`
	Description  string  `json:"description"`
	Strength     float64 `json:"strength"`
}

func (s *Server) registerRelationTools() error {
	createSchema, err := jsonschema.For[CreateRelationInput](nil)
	if err != nil {
		return fmt.Errorf("schema for create_character_relation: %w", err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "create_character_relation",
		Description: "Record a directed typed relation between two " +
			"characters. The (source, target, type) triple is unique; " +
			"the reverse direction is a separate relation.",
		InputSchema: createSchema,
	}, s.CreateRelation)

	analyzeSchema, err := jsonschema.For[AnalyzeRelationshipsInput](nil)
	if err != nil {
		return fmt.Errorf("schema for analyze_character_relationships: %w", err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "analyze_character_relationships",
		Description: "Analyze a group of characters and propose typed " +
			"relations among them, based on their facts and the relations " +
			"already recorded. Proposals are suggestions, not writes.",
		InputSchema: analyzeSchema,
	}, s.AnalyzeRelationships)

	return nil
}

// CreateRelation handles the create_character_relation tool call.
func (s *Server) CreateRelation(ctx context.Context, _ *mcp.CallToolRequest, in CreateRelationInput) (*mcp.CallToolResult, any, error) {
	strength := defaultRelationStrength
	if in.Strength != nil {
		strength = *in.Strength
	}

	relation, err := s.writer.AddRelation(ctx, in.CharacterAID, in.CharacterBID, in.RelationType, in.Description, strength)
	if err != nil {
		return errorToMCP(s.logger, err), nil, nil
	}
	return dataToMCP(relationPayload{
		ID:           relation.ID,
		CharacterAID: relation.CharacterAID,
		CharacterBID: relation.CharacterBID,
		RelationType: relation.RelationType,
		Description:  relation.Description,
		Strength:     relation.Strength,
	}), nil, nil
}

// AnalyzeRelationships handles the analyze_character_relationships tool call.
func (s *Server) AnalyzeRelationships(ctx context.Context, _ *mcp.CallToolRequest, in AnalyzeRelationshipsInput) (*mcp.CallToolResult, any, error) {
	proposals, err := s.writer.AnalyzeRelationships(ctx, in.CharacterIDs)
	if err != nil {
		return errorToMCP(s.logger, err), nil, nil
	}
	return dataToMCP(map[string]any{
		"character_ids": in.CharacterIDs,
		"proposals":     proposals,
	}), nil, nil
}
