package knowledge

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// Character is a narrative entity in the knowledge graph. Facts and
// Relations hang off Characters and are destroyed with them.
type Character struct {
	ID          int64
	Name        string
	Description string
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Fact is a single statement about exactly one Character. Embedding is
// nil until vector generation succeeds; a populated vector always has
// the configured dimension (mismatches are discarded before storage).
type Fact struct {
	ID          int64
	CharacterID int64
	FactType    string
	Content     string
	Embedding   *pgvector.Vector
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Relation is a directed edge between two Characters. The triple
// (CharacterAID, CharacterBID, RelationType) is unique; the symmetric
// triple is a distinct edge.
type Relation struct {
	ID           int64
	CharacterAID int64
	CharacterBID int64
	RelationType string
	Description  string
	Strength     float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FactVector pairs a fact id with its stored embedding. It is the
// candidate shape handed to the similarity engine.
type FactVector struct {
	ID     int64
	Vector []float32
}
