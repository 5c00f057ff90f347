package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/narrativelab/dramatis/internal/knowledge"
)

// CreateCharacterInput defines the create_character tool input.
type CreateCharacterInput struct {
	Name        string   `json:"name" jsonschema:"Unique character name (max 255 characters)"`
	Description string   `json:"description" jsonschema:"Free-text character description (max 10000 characters)"`
	Tags        []string `json:"tags,omitempty" jsonschema:"Optional tags, each 1-50 characters of letters, digits, underscore or hyphen"`
}

// SearchCharactersInput defines the search_characters tool input.
type SearchCharactersInput struct {
	Query string `json:"query" jsonschema:"Text matched against names, descriptions and tags"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum results (default 10, max 100)"`
}

// GenerateTagsInput defines the generate_character_tags tool input.
type GenerateTagsInput struct {
	CharacterID int64 `json:"character_id" jsonschema:"Character to tag"`
}

// SummarizeInput defines the summarize_character tool input.
type SummarizeInput struct {
	CharacterID int64 `json:"character_id" jsonschema:"Character to summarize"`
}

// characterPayload is the JSON shape characters take in tool results.
type characterPayload struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func toCharacterPayload(c *knowledge.Character) characterPayload {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return characterPayload{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Tags:        tags,
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   c.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *Server) registerCharacterTools() error {
	createSchema, err := jsonschema.For[CreateCharacterInput](nil)
	if err != nil {
		return fmt.Errorf("schema for create_character: %w", err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "create_character",
		Description: "Create a character in the story bible with a name, " +
			"a description and optional tags. Names are unique.",
		InputSchema: createSchema,
	}, s.CreateCharacter)

	searchSchema, err := jsonschema.For[SearchCharactersInput](nil)
	if err != nil {
		return fmt.Errorf("schema for search_characters: %w", err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "search_characters",
		Description: "Find characters by name, description or tag. " +
			"Name matches rank first.",
		InputSchema: searchSchema,
	}, s.SearchCharacters)

	tagsSchema, err := jsonschema.For[GenerateTagsInput](nil)
	if err != nil {
		return fmt.Errorf("schema for generate_character_tags: %w", err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "generate_character_tags",
		Description: "Generate and persist descriptive tags for a character " +
			"from its description and recorded facts.",
		InputSchema: tagsSchema,
	}, s.GenerateTags)

	summarizeSchema, err := jsonschema.For[SummarizeInput](nil)
	if err != nil {
		return fmt.Errorf("schema for summarize_character: %w", err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "summarize_character",
		Description: "Write a short prose summary of a character grounded " +
			"in its recorded facts.",
		InputSchema: summarizeSchema,
	}, s.Summarize)

	return nil
}

// CreateCharacter handles the create_character tool call.
func (s *Server) CreateCharacter(ctx context.Context, _ *mcp.CallToolRequest, in CreateCharacterInput) (*mcp.CallToolResult, any, error) {
	character, err := s.writer.CreateCharacter(ctx, in.Name, in.Description, in.Tags)
	if err != nil {
		return errorToMCP(s.logger, err), nil, nil
	}
	return dataToMCP(toCharacterPayload(character)), nil, nil
}

// SearchCharacters handles the search_characters tool call.
func (s *Server) SearchCharacters(ctx context.Context, _ *mcp.CallToolRequest, in SearchCharactersInput) (*mcp.CallToolResult, any, error) {
	characters, err := s.writer.SearchCharacters(ctx, in.Query, in.Limit)
	if err != nil {
		return errorToMCP(s.logger, err), nil, nil
	}
	payload := make([]characterPayload, len(characters))
	for i, c := range characters {
		payload[i] = toCharacterPayload(c)
	}
	return dataToMCP(payload), nil, nil
}

// GenerateTags handles the generate_character_tags tool call.
func (s *Server) GenerateTags(ctx context.Context, _ *mcp.CallToolRequest, in GenerateTagsInput) (*mcp.CallToolResult, any, error) {
	tags, err := s.writer.GenerateTags(ctx, in.CharacterID)
	if err != nil {
		return errorToMCP(s.logger, err), nil, nil
	}
	return dataToMCP(map[string]any{"character_id": in.CharacterID, "tags": tags}), nil, nil
}

// Summarize handles the summarize_character tool call.
func (s *Server) Summarize(ctx context.Context, _ *mcp.CallToolRequest, in SummarizeInput) (*mcp.CallToolResult, any, error) {
	summary, err := s.writer.Summarize(ctx, in.CharacterID)
	if err != nil {
		return errorToMCP(s.logger, err), nil, nil
	}
	return dataToMCP(map[string]any{"character_id": in.CharacterID, "summary": summary}), nil, nil
}
