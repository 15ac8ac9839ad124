package encoder

import (
	"context"
	"fmt"
)

// ContentEmbedder is the subset of the Gemini client used for embeddings.
type ContentEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbeddingModel() string
}

// Gemini adapts a Gemini client to Encoder.
type Gemini struct {
	client ContentEmbedder
}

// NewGemini wraps client.
func NewGemini(client ContentEmbedder) *Gemini {
	return &Gemini{client: client}
}

func (g *Gemini) Model() string { return g.client.EmbeddingModel() }

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := g.client.Embed(ctx, text)
	if err != nil {
		return nil, unavailable(fmt.Errorf("gemini embed: %w", err))
	}
	return vec, nil
}
