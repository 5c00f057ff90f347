package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"google.golang.org/genai"

	"github.com/narrativelab/dramatis/internal/log"
)

// mockEmbedder returns deterministic position-based vectors, or fails
// when failWith is set. badDimAt marks one index as wrong-sized.
type mockEmbedder struct {
	dimension   int
	failWith    error
	badDimAt    int
	calls       int
	lastOptions any
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(_ api.Registry) {}

func (m *mockEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.calls++
	m.lastOptions = req.Options
	if m.failWith != nil {
		return nil, m.failWith
	}
	embeddings := make([]*ai.Embedding, len(req.Input))
	for i := range req.Input {
		dim := m.dimension
		if m.badDimAt > 0 && i == m.badDimAt {
			dim = m.dimension - 1
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = float32(i + j)
		}
		embeddings[i] = &ai.Embedding{Embedding: vec}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

func newTestProvider(t *testing.T, m *mockEmbedder) *Provider {
	t.Helper()
	p, err := NewProvider(m, Config{Dimension: 4}, log.NewNop())
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	return p
}

func TestNewProvider_Validation(t *testing.T) {
	if _, err := NewProvider(nil, Config{Dimension: 4}, nil); err == nil {
		t.Error("NewProvider(nil embedder) expected error, got nil")
	}
	if _, err := NewProvider(&mockEmbedder{dimension: 4}, Config{Dimension: 0}, nil); err == nil {
		t.Error("NewProvider(zero dimension) expected error, got nil")
	}
}

func TestEmbedOne(t *testing.T) {
	p := newTestProvider(t, &mockEmbedder{dimension: 4})

	vec, err := p.EmbedOne(context.Background(), "a quiet conspiracy")
	if err != nil {
		t.Fatalf("EmbedOne() error = %v", err)
	}
	if len(vec) != 4 {
		t.Errorf("EmbedOne() dimension = %d, want 4", len(vec))
	}
}

func TestEmbedOne_RequestsOutputDimensionality(t *testing.T) {
	m := &mockEmbedder{dimension: 4}
	p := newTestProvider(t, m)

	if _, err := p.EmbedOne(context.Background(), "text"); err != nil {
		t.Fatalf("EmbedOne() error = %v", err)
	}

	cfg, ok := m.lastOptions.(*genai.EmbedContentConfig)
	if !ok {
		t.Fatalf("request options = %T, want *genai.EmbedContentConfig", m.lastOptions)
	}
	if cfg.OutputDimensionality == nil || *cfg.OutputDimensionality != 4 {
		t.Errorf("OutputDimensionality = %v, want 4", cfg.OutputDimensionality)
	}
}

func TestEmbedOne_DimensionMismatch(t *testing.T) {
	p := newTestProvider(t, &mockEmbedder{dimension: 7})

	_, err := p.EmbedOne(context.Background(), "text")
	if err == nil {
		t.Fatal("EmbedOne() with wrong provider dimension expected error, got nil")
	}
}

func TestEmbedOne_ProviderFailure(t *testing.T) {
	p := newTestProvider(t, &mockEmbedder{failWith: errors.New("quota exceeded")})

	_, err := p.EmbedOne(context.Background(), "text")
	if err == nil {
		t.Fatal("EmbedOne() with failing provider expected error, got nil")
	}
}

func TestEmbedMany(t *testing.T) {
	tests := []struct {
		name     string
		embedder *mockEmbedder
		texts    []string
		wantNil  []bool
	}{
		{
			name:     "all succeed",
			embedder: &mockEmbedder{dimension: 4},
			texts:    []string{"one", "two", "three"},
			wantNil:  []bool{false, false, false},
		},
		{
			name:     "total failure yields all nil",
			embedder: &mockEmbedder{failWith: errors.New("connection refused")},
			texts:    []string{"one", "two"},
			wantNil:  []bool{true, true},
		},
		{
			name:     "dimension mismatch drops only that vector",
			embedder: &mockEmbedder{dimension: 4, badDimAt: 1},
			texts:    []string{"one", "two", "three"},
			wantNil:  []bool{false, true, false},
		},
		{
			name:     "empty input",
			embedder: &mockEmbedder{dimension: 4},
			texts:    nil,
			wantNil:  []bool{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, tt.embedder)
			got := p.EmbedMany(context.Background(), tt.texts)
			if len(got) != len(tt.texts) {
				t.Fatalf("EmbedMany() returned %d results for %d texts", len(got), len(tt.texts))
			}
			for i, wantNil := range tt.wantNil {
				if (got[i] == nil) != wantNil {
					t.Errorf("EmbedMany()[%d] nil = %v, want %v", i, got[i] == nil, wantNil)
				}
			}
		})
	}
}

func TestEmbedMany_EmptyInputSkipsProvider(t *testing.T) {
	m := &mockEmbedder{dimension: 4}
	p := newTestProvider(t, m)

	p.EmbedMany(context.Background(), nil)
	if m.calls != 0 {
		t.Errorf("EmbedMany(nil) made %d provider calls, want 0", m.calls)
	}
}

func TestProvider_RateLimiterCancellation(t *testing.T) {
	m := &mockEmbedder{dimension: 4}
	p, err := NewProvider(m, Config{Dimension: 4, RatePerSecond: 0.001}, log.NewNop())
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	// Burn the single burst token, then cancel while waiting.
	if _, err := p.EmbedOne(context.Background(), "first"); err != nil {
		t.Fatalf("EmbedOne() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.EmbedOne(ctx, "second"); err == nil {
		t.Error("EmbedOne() with canceled context expected error, got nil")
	}
	if m.calls != 1 {
		t.Errorf("provider calls = %d, want 1 (second call should not reach provider)", m.calls)
	}
}
