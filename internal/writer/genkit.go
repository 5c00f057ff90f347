package writer

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// GenkitGenerator satisfies Generator with genkit.Generate against a
// configured model.
type GenkitGenerator struct {
	g     *genkit.Genkit
	model string
}

// NewGenkitGenerator creates a generator bound to one model name.
func NewGenkitGenerator(g *genkit.Genkit, model string) (*GenkitGenerator, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	return &GenkitGenerator{g: g, model: model}, nil
}

// Generate runs one prompt and returns the response text.
func (gg *GenkitGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, gg.g,
		ai.WithModelName(gg.model),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("generating with %s: %w", gg.model, err)
	}
	return resp.Text(), nil
}
