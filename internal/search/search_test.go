package search

import (
	"context"
	"errors"
	"testing"

	"github.com/pgvector/pgvector-go"

	"github.com/narrativelab/dramatis/internal/knowledge"
	"github.com/narrativelab/dramatis/internal/log"
)

// mockSource serves canned facts and records embedding writes.
type mockSource struct {
	vectors      []knowledge.FactVector
	facts        map[int64]*knowledge.Fact
	lexical      []*knowledge.Fact
	characters   []*knowledge.Character
	missing      []*knowledge.Fact
	lexicalCalls int
	setEmbedding map[int64]pgvector.Vector
	setErr       error
	listErr      error
}

func (m *mockSource) ListFactEmbeddings(_ context.Context, _ int64, _ string) ([]knowledge.FactVector, error) {
	return m.vectors, m.listErr
}

func (m *mockSource) GetFactsByIDs(_ context.Context, ids []int64) ([]*knowledge.Fact, error) {
	var out []*knowledge.Fact
	for _, id := range ids {
		if f, ok := m.facts[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *mockSource) SearchFactsLexical(_ context.Context, _ string, _ int64, _ string, _ int) ([]*knowledge.Fact, error) {
	m.lexicalCalls++
	return m.lexical, nil
}

func (m *mockSource) SearchCharacters(_ context.Context, _ string, _ int) ([]*knowledge.Character, error) {
	return m.characters, nil
}

func (m *mockSource) ListFactsMissingEmbedding(_ context.Context, limit int) ([]*knowledge.Fact, error) {
	if len(m.missing) > limit {
		return m.missing[:limit], nil
	}
	return m.missing, nil
}

func (m *mockSource) SetFactEmbedding(_ context.Context, id int64, vec pgvector.Vector) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.setEmbedding == nil {
		m.setEmbedding = map[int64]pgvector.Vector{}
	}
	m.setEmbedding[id] = vec
	return nil
}

// mockProvider returns a fixed query vector and per-text batch vectors.
type mockProvider struct {
	queryVec []float32
	queryErr error
	batch    [][]float32
}

func (m *mockProvider) EmbedOne(_ context.Context, _ string) ([]float32, error) {
	return m.queryVec, m.queryErr
}

func (m *mockProvider) EmbedMany(_ context.Context, texts []string) [][]float32 {
	if m.batch != nil {
		return m.batch
	}
	return make([][]float32, len(texts))
}

func fact(id int64, content string) *knowledge.Fact {
	return &knowledge.Fact{ID: id, CharacterID: 1, FactType: "background", Content: content}
}

func newTestService(t *testing.T, src *mockSource, prov *mockProvider) *Service {
	t.Helper()
	svc, err := NewService(src, prov, Config{Threshold: 0.7, DefaultLimit: 10, MaxLimit: 100}, log.NewNop())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestNewService_Validation(t *testing.T) {
	src, prov := &mockSource{}, &mockProvider{}
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "threshold above 1", cfg: Config{Threshold: 1.5, DefaultLimit: 10, MaxLimit: 100}},
		{name: "zero max limit", cfg: Config{Threshold: 0.7, DefaultLimit: 10}},
		{name: "default above max", cfg: Config{Threshold: 0.7, DefaultLimit: 200, MaxLimit: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewService(src, prov, tt.cfg, nil); err == nil {
				t.Errorf("NewService(%+v) expected error, got nil", tt.cfg)
			}
		})
	}
	if _, err := NewService(nil, prov, Config{Threshold: 0.7, DefaultLimit: 10, MaxLimit: 100}, nil); err == nil {
		t.Error("NewService(nil source) expected error, got nil")
	}
}

func TestSearchFacts_Semantic(t *testing.T) {
	src := &mockSource{
		vectors: []knowledge.FactVector{
			{ID: 1, Vector: []float32{1, 0}},   // similarity 1.0
			{ID: 2, Vector: []float32{0, 1}},   // similarity 0.0, below threshold
			{ID: 3, Vector: []float32{1, 0.2}}, // high similarity
			{ID: 4, Vector: []float32{-1, 0}},  // negative
		},
		facts: map[int64]*knowledge.Fact{
			1: fact(1, "exact"),
			2: fact(2, "orthogonal"),
			3: fact(3, "close"),
			4: fact(4, "opposite"),
		},
	}
	svc := newTestService(t, src, &mockProvider{queryVec: []float32{1, 0}})

	results, err := svc.SearchFacts(context.Background(), "query", 0, "", 10)
	if err != nil {
		t.Fatalf("SearchFacts() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("SearchFacts() returned %d results, want 2", len(results))
	}
	if results[0].Fact.ID != 1 || results[1].Fact.ID != 3 {
		t.Errorf("SearchFacts() order = [%d, %d], want [1, 3]", results[0].Fact.ID, results[1].Fact.ID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("SearchFacts() scores not descending: %v, %v", results[0].Score, results[1].Score)
	}
	for _, r := range results {
		if r.Lexical {
			t.Error("semantic result marked lexical")
		}
	}
	if src.lexicalCalls != 0 {
		t.Errorf("lexical search called %d times during semantic search", src.lexicalCalls)
	}
}

func TestSearchFacts_LexicalFallbackOnEmbedFailure(t *testing.T) {
	src := &mockSource{lexical: []*knowledge.Fact{fact(7, "knows the tunnels")}}
	svc := newTestService(t, src, &mockProvider{queryErr: errors.New("provider down")})

	results, err := svc.SearchFacts(context.Background(), "tunnels", 0, "", 10)
	if err != nil {
		t.Fatalf("SearchFacts() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("SearchFacts() returned %d results, want 1", len(results))
	}
	if !results[0].Lexical {
		t.Error("fallback result not marked lexical")
	}
	if results[0].Score != LexicalScore {
		t.Errorf("fallback score = %v, want %v", results[0].Score, LexicalScore)
	}
	if src.lexicalCalls != 1 {
		t.Errorf("lexical search called %d times, want 1", src.lexicalCalls)
	}
}

func TestSearchFacts_LexicalFallbackWhenNothingEmbedded(t *testing.T) {
	src := &mockSource{lexical: []*knowledge.Fact{fact(9, "fresh graph")}}
	svc := newTestService(t, src, &mockProvider{queryVec: []float32{1, 0}})

	results, err := svc.SearchFacts(context.Background(), "fresh", 0, "", 10)
	if err != nil {
		t.Fatalf("SearchFacts() error = %v", err)
	}
	if len(results) != 1 || !results[0].Lexical {
		t.Errorf("SearchFacts() on empty vector set should fall back to lexical, got %+v", results)
	}
}

func TestSearchFacts_DropsDeletedIDs(t *testing.T) {
	src := &mockSource{
		vectors: []knowledge.FactVector{
			{ID: 1, Vector: []float32{1, 0}},
			{ID: 2, Vector: []float32{1, 0.1}},
		},
		// Fact 2 was deleted between scoring and assembly.
		facts: map[int64]*knowledge.Fact{1: fact(1, "survivor")},
	}
	svc := newTestService(t, src, &mockProvider{queryVec: []float32{1, 0}})

	results, err := svc.SearchFacts(context.Background(), "query", 0, "", 10)
	if err != nil {
		t.Fatalf("SearchFacts() error = %v", err)
	}
	if len(results) != 1 || results[0].Fact.ID != 1 {
		t.Errorf("SearchFacts() = %+v, want only fact 1", results)
	}
}

func TestSearchFacts_NoMatchesAboveThreshold(t *testing.T) {
	src := &mockSource{
		vectors: []knowledge.FactVector{{ID: 2, Vector: []float32{0, 1}}},
		facts:   map[int64]*knowledge.Fact{2: fact(2, "orthogonal")},
	}
	svc := newTestService(t, src, &mockProvider{queryVec: []float32{1, 0}})

	results, err := svc.SearchFacts(context.Background(), "query", 0, "", 10)
	if err != nil {
		t.Fatalf("SearchFacts() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("SearchFacts() = %d results, want 0", len(results))
	}
	if src.lexicalCalls != 0 {
		t.Error("below-threshold semantic search should not fall back to lexical")
	}
}

func TestSearchFacts_PropagatesStoreError(t *testing.T) {
	src := &mockSource{listErr: errors.New("connection reset")}
	svc := newTestService(t, src, &mockProvider{queryVec: []float32{1, 0}})

	if _, err := svc.SearchFacts(context.Background(), "query", 0, "", 10); err == nil {
		t.Fatal("SearchFacts() expected store error, got nil")
	}
}

func TestBackfill(t *testing.T) {
	src := &mockSource{
		missing: []*knowledge.Fact{fact(1, "one"), fact(2, "two"), fact(3, "three")},
	}
	prov := &mockProvider{
		batch: [][]float32{{1, 0}, nil, {0, 1}}, // middle text failed to embed
	}
	svc := newTestService(t, src, prov)

	embedded, failed, err := svc.Backfill(context.Background(), 10)
	if err != nil {
		t.Fatalf("Backfill() error = %v", err)
	}
	if embedded != 2 || failed != 1 {
		t.Errorf("Backfill() = (%d, %d), want (2, 1)", embedded, failed)
	}
	if _, ok := src.setEmbedding[1]; !ok {
		t.Error("Backfill() did not store embedding for fact 1")
	}
	if _, ok := src.setEmbedding[2]; ok {
		t.Error("Backfill() stored embedding for failed fact 2")
	}
}

func TestBackfill_Empty(t *testing.T) {
	svc := newTestService(t, &mockSource{}, &mockProvider{})

	embedded, failed, err := svc.Backfill(context.Background(), 10)
	if err != nil {
		t.Fatalf("Backfill() error = %v", err)
	}
	if embedded != 0 || failed != 0 {
		t.Errorf("Backfill() on empty set = (%d, %d), want (0, 0)", embedded, failed)
	}
}

func TestBackfill_StoreWriteFailureCountsAsFailed(t *testing.T) {
	src := &mockSource{
		missing: []*knowledge.Fact{fact(1, "one")},
		setErr:  errors.New("disk full"),
	}
	svc := newTestService(t, src, &mockProvider{batch: [][]float32{{1, 0}}})

	embedded, failed, err := svc.Backfill(context.Background(), 10)
	if err != nil {
		t.Fatalf("Backfill() error = %v", err)
	}
	if embedded != 0 || failed != 1 {
		t.Errorf("Backfill() = (%d, %d), want (0, 1)", embedded, failed)
	}
}

func TestClampLimit(t *testing.T) {
	svc := newTestService(t, &mockSource{}, &mockProvider{})
	tests := []struct {
		in   int
		want int
	}{
		{in: 0, want: 10},
		{in: -5, want: 10},
		{in: 50, want: 50},
		{in: 1000, want: 100},
	}
	for _, tt := range tests {
		if got := svc.clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
