package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Standard SELECT column lists for the scan helpers.
const (
	characterCols = `id, name, description, tags, created_at, updated_at`
	factCols      = `id, character_id, fact_type, content, embedding, created_at, updated_at`
	relationCols  = `id, character_a_id, character_b_id, relation_type, description, strength, created_at, updated_at`
)

// Store persists the narrative knowledge graph in PostgreSQL + pgvector.
//
// Store never calls an embedding provider: vectors arrive as arguments
// and leave as query results, so no connection is ever held across a
// network call to a model. Store is safe for concurrent use.
type Store struct {
	db     querier
	logger *slog.Logger
}

// NewStore creates a knowledge Store on top of a pool or transaction.
func NewStore(db querier, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

// CreateCharacter inserts a character and returns the stored row.
// Names are unique; inserting an existing name yields a DuplicateError.
func (s *Store) CreateCharacter(ctx context.Context, name, description string, tags []string) (*Character, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	description, err = validateDescription(description)
	if err != nil {
		return nil, err
	}
	tags, err = validateTags(tags)
	if err != nil {
		return nil, err
	}

	c := &Character{}
	err = s.db.QueryRow(ctx,
		`INSERT INTO characters (name, description, tags)
		 VALUES ($1, $2, $3)
		 RETURNING `+characterCols,
		name, description, tags,
	).Scan(&c.ID, &c.Name, &c.Description, &c.Tags, &c.CreatedAt, &c.UpdatedAt)
	switch {
	case isUniqueViolation(err):
		return nil, &DuplicateError{Detail: fmt.Sprintf("character %q already exists", name)}
	case err != nil:
		return nil, &StorageError{Op: "creating character", Err: err}
	}

	s.logger.Debug("character created", "id", c.ID, "name", c.Name)
	return c, nil
}

// GetCharacter fetches a character by id. A missing row is not an
// error: it returns (nil, nil) so callers decide how absence surfaces.
func (s *Store) GetCharacter(ctx context.Context, id int64) (*Character, error) {
	if err := validateID("character_id", id); err != nil {
		return nil, err
	}

	c := &Character{}
	err := s.db.QueryRow(ctx,
		`SELECT `+characterCols+` FROM characters WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.Tags, &c.CreatedAt, &c.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, &StorageError{Op: "getting character", Err: err}
	}
	return c, nil
}

// SearchCharacters performs a lexical lookup over names, descriptions
// and tags. Name matches sort ahead of description-only matches, then
// alphabetically, so the most recognizable hit comes first.
func (s *Store) SearchCharacters(ctx context.Context, query string, limit int) ([]*Character, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if limit <= 0 {
		return nil, &ValidationError{Field: "limit", Reason: "must be positive"}
	}

	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.Query(ctx,
		`SELECT `+characterCols+`
		 FROM characters
		 WHERE name ILIKE $1
		    OR description ILIKE $1
		    OR $2 = ANY(tags)
		 ORDER BY (name ILIKE $1) DESC, name ASC
		 LIMIT $3`,
		pattern, strings.ToLower(query), limit,
	)
	if err != nil {
		return nil, &StorageError{Op: "searching characters", Err: err}
	}
	defer rows.Close()

	return scanCharacters(rows)
}

// UpdateCharacterTags replaces the full tag list of a character.
func (s *Store) UpdateCharacterTags(ctx context.Context, id int64, tags []string) (*Character, error) {
	if err := validateID("character_id", id); err != nil {
		return nil, err
	}
	tags, err := validateTags(tags)
	if err != nil {
		return nil, err
	}

	c := &Character{}
	err = s.db.QueryRow(ctx,
		`UPDATE characters SET tags = $1, updated_at = now()
		 WHERE id = $2
		 RETURNING `+characterCols,
		tags, id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.Tags, &c.CreatedAt, &c.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, &ReferentialError{Entity: "character", ID: id}
	case err != nil:
		return nil, &StorageError{Op: "updating character tags", Err: err}
	}
	return c, nil
}

// DeleteCharacter removes a character. Facts and relations referencing
// it go with it via ON DELETE CASCADE, so the graph never holds
// dangling edges.
func (s *Store) DeleteCharacter(ctx context.Context, id int64) error {
	if err := validateID("character_id", id); err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM characters WHERE id = $1`, id)
	if err != nil {
		return &StorageError{Op: "deleting character", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &ReferentialError{Entity: "character", ID: id}
	}
	s.logger.Debug("character deleted", "id", id)
	return nil
}

// CreateFact inserts a fact for a character. The embedding may be nil;
// a fact without a vector still participates in lexical search and can
// be backfilled later.
func (s *Store) CreateFact(ctx context.Context, characterID int64, factType, content string, embedding *pgvector.Vector) (*Fact, error) {
	if err := validateID("character_id", characterID); err != nil {
		return nil, err
	}
	factType, err := validateFactType(factType)
	if err != nil {
		return nil, err
	}
	content, err = validateContent(content)
	if err != nil {
		return nil, err
	}

	f := &Fact{}
	err = s.db.QueryRow(ctx,
		`INSERT INTO character_facts (character_id, fact_type, content, embedding)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+factCols,
		characterID, factType, content, embedding,
	).Scan(&f.ID, &f.CharacterID, &f.FactType, &f.Content, &f.Embedding, &f.CreatedAt, &f.UpdatedAt)
	switch {
	case isForeignKeyViolation(err):
		return nil, &ReferentialError{Entity: "character", ID: characterID}
	case err != nil:
		return nil, &StorageError{Op: "creating fact", Err: err}
	}

	s.logger.Debug("fact created", "id", f.ID, "character_id", characterID,
		"fact_type", factType, "embedded", f.Embedding != nil)
	return f, nil
}

// SearchFactsLexical matches fact content with ILIKE, newest first.
// characterID <= 0 and factType == "" disable the respective filters.
func (s *Store) SearchFactsLexical(ctx context.Context, query string, characterID int64, factType string, limit int) ([]*Fact, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if limit <= 0 {
		return nil, &ValidationError{Field: "limit", Reason: "must be positive"}
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + factCols + ` FROM character_facts WHERE content ILIKE $1`)
	args := []any{"%" + escapeLike(query) + "%"}
	if characterID > 0 {
		args = append(args, characterID)
		fmt.Fprintf(&b, ` AND character_id = $%d`, len(args))
	}
	if factType != "" {
		args = append(args, factType)
		fmt.Fprintf(&b, ` AND fact_type = $%d`, len(args))
	}
	args = append(args, limit)
	fmt.Fprintf(&b, ` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := s.db.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, &StorageError{Op: "searching facts", Err: err}
	}
	defer rows.Close()

	return scanFacts(rows)
}

// ListFactEmbeddings streams the (id, vector) pairs of every embedded
// fact matching the optional filters. Rows without a vector are
// excluded: they cannot score against a query embedding.
func (s *Store) ListFactEmbeddings(ctx context.Context, characterID int64, factType string) ([]FactVector, error) {
	var b strings.Builder
	b.WriteString(`SELECT id, embedding FROM character_facts WHERE embedding IS NOT NULL`)
	var args []any
	if characterID > 0 {
		args = append(args, characterID)
		fmt.Fprintf(&b, ` AND character_id = $%d`, len(args))
	}
	if factType != "" {
		args = append(args, factType)
		fmt.Fprintf(&b, ` AND fact_type = $%d`, len(args))
	}
	b.WriteString(` ORDER BY id ASC`)

	rows, err := s.db.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, &StorageError{Op: "listing fact embeddings", Err: err}
	}
	defer rows.Close()

	var vectors []FactVector
	for rows.Next() {
		var fv FactVector
		var vec pgvector.Vector
		if err := rows.Scan(&fv.ID, &vec); err != nil {
			return nil, &StorageError{Op: "scanning fact embedding", Err: err}
		}
		fv.Vector = vec.Slice()
		vectors = append(vectors, fv)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterating fact embeddings", Err: err}
	}
	return vectors, nil
}

// GetFactsByIDs fetches facts by id in no particular order. IDs with
// no backing row are silently absent from the result, which lets
// rankers tolerate rows deleted between scoring and assembly.
func (s *Store) GetFactsByIDs(ctx context.Context, ids []int64) ([]*Fact, error) {
	if len(ids) == 0 {
		return []*Fact{}, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+factCols+` FROM character_facts WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, &StorageError{Op: "getting facts by ids", Err: err}
	}
	defer rows.Close()

	return scanFacts(rows)
}

// ListFactsForCharacter returns every fact of one character, newest first.
func (s *Store) ListFactsForCharacter(ctx context.Context, characterID int64) ([]*Fact, error) {
	if err := validateID("character_id", characterID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+factCols+`
		 FROM character_facts
		 WHERE character_id = $1
		 ORDER BY created_at DESC, id DESC`,
		characterID,
	)
	if err != nil {
		return nil, &StorageError{Op: "listing facts", Err: err}
	}
	defer rows.Close()

	return scanFacts(rows)
}

// ListFactsMissingEmbedding returns up to limit facts whose embedding
// column is NULL, oldest first, for backfill sweeps.
func (s *Store) ListFactsMissingEmbedding(ctx context.Context, limit int) ([]*Fact, error) {
	if limit <= 0 {
		return nil, &ValidationError{Field: "limit", Reason: "must be positive"}
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+factCols+`
		 FROM character_facts
		 WHERE embedding IS NULL
		 ORDER BY id ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, &StorageError{Op: "listing facts missing embedding", Err: err}
	}
	defer rows.Close()

	return scanFacts(rows)
}

// SetFactEmbedding attaches a vector to an existing fact.
func (s *Store) SetFactEmbedding(ctx context.Context, id int64, vec pgvector.Vector) error {
	if err := validateID("fact_id", id); err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE character_facts SET embedding = $1, updated_at = now() WHERE id = $2`,
		vec, id,
	)
	if err != nil {
		return &StorageError{Op: "setting fact embedding", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &ReferentialError{Entity: "fact", ID: id}
	}
	return nil
}

// CreateRelation inserts a directed edge between two characters.
// The (a, b, type) triple is unique; the reversed triple is a distinct
// edge and may coexist.
func (s *Store) CreateRelation(ctx context.Context, characterAID, characterBID int64, relationType, description string, strength float64) (*Relation, error) {
	if err := validateID("character_a_id", characterAID); err != nil {
		return nil, err
	}
	if err := validateID("character_b_id", characterBID); err != nil {
		return nil, err
	}
	if characterAID == characterBID {
		return nil, &ValidationError{Field: "character_b_id", Reason: "relation endpoints must differ"}
	}
	relationType, err := validateRelationType(relationType)
	if err != nil {
		return nil, err
	}
	description = strings.TrimSpace(description)
	if len(description) > maxDescriptionLength {
		return nil, &ValidationError{Field: "description", Reason: fmt.Sprintf("exceeds %d characters", maxDescriptionLength)}
	}
	if err := validateStrength(strength); err != nil {
		return nil, err
	}

	r := &Relation{}
	err = s.db.QueryRow(ctx,
		`INSERT INTO character_relations (character_a_id, character_b_id, relation_type, description, strength)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+relationCols,
		characterAID, characterBID, relationType, description, strength,
	).Scan(&r.ID, &r.CharacterAID, &r.CharacterBID, &r.RelationType,
		&r.Description, &r.Strength, &r.CreatedAt, &r.UpdatedAt)
	switch {
	case isUniqueViolation(err):
		return nil, &DuplicateError{
			Detail: fmt.Sprintf("relation %d-[%s]->%d already exists", characterAID, relationType, characterBID),
		}
	case isForeignKeyViolation(err):
		return nil, &ReferentialError{Entity: "character", ID: missingEndpoint(err, characterAID, characterBID)}
	case isCheckViolation(err):
		return nil, &ValidationError{Field: "strength", Reason: "must be between 0.0 and 1.0"}
	case err != nil:
		return nil, &StorageError{Op: "creating relation", Err: err}
	}

	s.logger.Debug("relation created", "id", r.ID,
		"a", characterAID, "b", characterBID, "type", relationType)
	return r, nil
}

// RelationsAmong returns every edge whose both endpoints are in ids,
// strongest first so the most significant ties lead the analysis.
func (s *Store) RelationsAmong(ctx context.Context, ids []int64) ([]*Relation, error) {
	if len(ids) < 2 {
		return nil, &ValidationError{Field: "character_ids", Reason: "at least two characters required"}
	}
	for _, id := range ids {
		if err := validateID("character_ids", id); err != nil {
			return nil, err
		}
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+relationCols+`
		 FROM character_relations
		 WHERE character_a_id = ANY($1) AND character_b_id = ANY($1)
		 ORDER BY strength DESC, created_at DESC, id DESC`,
		ids,
	)
	if err != nil {
		return nil, &StorageError{Op: "listing relations", Err: err}
	}
	defer rows.Close()

	var relations []*Relation
	for rows.Next() {
		r := &Relation{}
		if err := rows.Scan(&r.ID, &r.CharacterAID, &r.CharacterBID, &r.RelationType,
			&r.Description, &r.Strength, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, &StorageError{Op: "scanning relation", Err: err}
		}
		relations = append(relations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterating relations", Err: err}
	}
	return relations, nil
}

// missingEndpoint identifies which side of a relation broke the
// foreign key, falling back to endpoint A when the constraint name is
// not recognizable.
func missingEndpoint(err error, aID, bID int64) int64 {
	if strings.Contains(constraintName(err), "character_b") {
		return bID
	}
	return aID
}

// escapeLike neutralizes LIKE metacharacters in user-supplied queries
// so a literal "%" or "_" matches itself.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// scanCharacters reads Character structs from pgx.Rows (standard column set).
func scanCharacters(rows pgx.Rows) ([]*Character, error) {
	var characters []*Character
	for rows.Next() {
		c := &Character{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Tags, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, &StorageError{Op: "scanning character", Err: err}
		}
		characters = append(characters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterating characters", Err: err}
	}
	return characters, nil
}

// scanFacts reads Fact structs from pgx.Rows (standard column set).
func scanFacts(rows pgx.Rows) ([]*Fact, error) {
	var facts []*Fact
	for rows.Next() {
		f := &Fact{}
		if err := rows.Scan(&f.ID, &f.CharacterID, &f.FactType, &f.Content,
			&f.Embedding, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, &StorageError{Op: "scanning fact", Err: err}
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterating facts", Err: err}
	}
	return facts, nil
}
