package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/narrativelab/dramatis/internal/knowledge"
)

// maxGenerateResponseBytes bounds generator output before JSON parsing.
const maxGenerateResponseBytes = 10 * 1024

// maxGeneratedTags caps how many tags one generation may attach.
const maxGeneratedTags = 10

const tagsPrompt = `You are a story-bible curator. Suggest short tags for the character below.

Rules:
- Tags are single tokens: letters, digits, underscore or hyphen, max 50 characters
- Describe role, traits, affiliations or arcs, not plot events
- At most %d tags
- Output format: JSON array of strings, nothing else
Example: ["spy", "ex-musician", "court"]

Character: %s
Description: %s
Known facts:
%s

Tags as JSON array:`

const relationshipsPrompt = `You are a story-bible analyst. Propose relationships among the characters below based on their descriptions and facts.

Rules:
- Only propose edges between the listed characters, using their numeric ids
- relation_type is a short lowercase label (e.g. "trusts", "rivals", "protects")
- strength is a number between 0.0 and 1.0
- Do not repeat an existing relationship with the same type and direction
- Output format: JSON array, nothing else
Example: [{"character_a_id": 1, "character_b_id": 2, "relation_type": "trusts", "description": "Met during the siege.", "strength": 0.8}]

Characters:
%s

Existing relationships:
%s

Proposals as JSON array:`

const summaryPrompt = `You are a story-bible editor. Write a compact narrative summary of the character below in at most two paragraphs of plain prose. Ground every statement in the listed facts; do not invent events.

Character: %s
Description: %s
Known facts:
%s

Summary:`

// RelationProposal is one suggested edge from relationship analysis.
// Proposals are returned to the caller, never persisted automatically.
type RelationProposal struct {
	CharacterAID int64   `json:"character_a_id"`
	CharacterBID int64   `json:"character_b_id"`
	RelationType string  `json:"relation_type"`
	Description  string  `json:"description"`
	Strength     float64 `json:"strength"`
}

// GenerateTags asks the generator for tags describing a character and
// persists the ones that pass tag validation. Generator failures and
// malformed output degrade to an empty list rather than an error:
// tagging is assistive, not load-bearing.
func (s *Service) GenerateTags(ctx context.Context, characterID int64) ([]string, error) {
	if err := checkRules([]rule{
		{field: "character_id", ok: characterID > 0, reason: "must be a positive identifier"},
	}); err != nil {
		return nil, err
	}
	logger := s.opLogger("generate_tags")

	character, facts, err := s.characterContext(ctx, characterID)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(tagsPrompt, maxGeneratedTags,
		character.Name, character.Description, formatFacts(facts))
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		logger.Warn("tag generation failed", "character_id", characterID, "error", err)
		return []string{}, nil
	}

	var raw []string
	if !parseGeneratedJSON(logger, text, &raw) {
		return []string{}, nil
	}

	tags := make([]string, 0, len(raw))
	seen := make(map[string]bool)
	for _, tag := range raw {
		normalized, ok := knowledge.NormalizeTag(tag)
		if !ok || seen[normalized] {
			continue
		}
		seen[normalized] = true
		tags = append(tags, normalized)
		if len(tags) == maxGeneratedTags {
			break
		}
	}
	if len(tags) == 0 {
		return []string{}, nil
	}

	if _, err := s.graph.UpdateCharacterTags(ctx, characterID, tags); err != nil {
		return nil, err
	}
	logger.Info("generated tags persisted", "character_id", characterID, "tags", len(tags))
	return tags, nil
}

// AnalyzeRelationships proposes typed edges among at least two
// characters, informed by their facts and the edges already stored.
// Generator failures and malformed output degrade to an empty
// proposal list.
func (s *Service) AnalyzeRelationships(ctx context.Context, characterIDs []int64) ([]RelationProposal, error) {
	if err := checkRules([]rule{
		{field: "character_ids", ok: len(characterIDs) >= 2, reason: "at least two characters required"},
	}); err != nil {
		return nil, err
	}
	logger := s.opLogger("analyze_relationships")

	inSet := make(map[int64]bool, len(characterIDs))
	var contexts strings.Builder
	for _, id := range characterIDs {
		if inSet[id] {
			return nil, &knowledge.ValidationError{Field: "character_ids", Reason: fmt.Sprintf("duplicate id %d", id)}
		}
		inSet[id] = true

		character, facts, err := s.characterContext(ctx, id)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&contexts, "- id %d: %s — %s\n%s",
			character.ID, character.Name, character.Description, formatFacts(facts))
	}

	existing, err := s.graph.RelationsAmong(ctx, characterIDs)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(relationshipsPrompt, contexts.String(), formatRelations(existing))
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		logger.Warn("relationship analysis failed", "character_ids", characterIDs, "error", err)
		return []RelationProposal{}, nil
	}

	var raw []RelationProposal
	if !parseGeneratedJSON(logger, text, &raw) {
		return []RelationProposal{}, nil
	}

	// Keep only well-formed proposals between the requested characters.
	proposals := raw[:0]
	for _, p := range raw {
		if !inSet[p.CharacterAID] || !inSet[p.CharacterBID] || p.CharacterAID == p.CharacterBID {
			continue
		}
		if strings.TrimSpace(p.RelationType) == "" || p.Strength < 0 || p.Strength > 1 {
			continue
		}
		p.RelationType = strings.ToLower(strings.TrimSpace(p.RelationType))
		proposals = append(proposals, p)
	}
	return proposals, nil
}

// Summarize produces a prose summary of one character from its stored
// facts. Unlike tagging and analysis, the text itself is the result,
// so generator failures surface as errors.
func (s *Service) Summarize(ctx context.Context, characterID int64) (string, error) {
	if err := checkRules([]rule{
		{field: "character_id", ok: characterID > 0, reason: "must be a positive identifier"},
	}); err != nil {
		return "", err
	}

	character, facts, err := s.characterContext(ctx, characterID)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(summaryPrompt, character.Name, character.Description, formatFacts(facts))
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generating summary: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("generator returned an empty summary")
	}
	return text, nil
}

// parseGeneratedJSON strips code fences and unmarshals generator
// output into v, logging and reporting false on anything malformed.
func parseGeneratedJSON(logger *slog.Logger, text string, v any) bool {
	text = stripCodeFences(text)
	if text == "" {
		return false
	}
	if len(text) > maxGenerateResponseBytes {
		logger.Warn("generator response too large", "bytes", len(text))
		return false
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		logger.Warn("unparseable generator output", "error", err, "raw", truncate(text, 200))
		return false
	}
	return true
}

// stripCodeFences removes ```json ... ``` wrapping from model output.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}

// truncate shortens s to at most n bytes for logging.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func formatFacts(facts []*knowledge.Fact) string {
	if len(facts) == 0 {
		return "  (no recorded facts)\n"
	}
	var b strings.Builder
	for _, f := range facts {
		fmt.Fprintf(&b, "  [%s] %s\n", f.FactType, f.Content)
	}
	return b.String()
}

func formatRelations(relations []*knowledge.Relation) string {
	if len(relations) == 0 {
		return "  (none recorded)\n"
	}
	var b strings.Builder
	for _, r := range relations {
		fmt.Fprintf(&b, "  %d -[%s %.2f]-> %d: %s\n",
			r.CharacterAID, r.RelationType, r.Strength, r.CharacterBID, r.Description)
	}
	return b.String()
}
