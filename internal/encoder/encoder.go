// Package encoder maps text to dense vectors. Encoders are external black
// boxes; this package only adapts them and batches calls.
package encoder

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/vec/search"
	"golang.org/x/sync/errgroup"
)

// ErrUnavailable marks failures of the embedding backend itself, as opposed
// to bad input. Callers may retry or fall back to another strategy.
var ErrUnavailable = errors.New("encoder unavailable")

const defaultConcurrency = 4

// Encoder turns text into a vector. Implementations must be safe for
// concurrent use.
type Encoder interface {
	Model() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedAll embeds texts with at most concurrency calls in flight.
// The result preserves input order.
func EmbedAll(ctx context.Context, enc Encoder, texts []string, concurrency int) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, text := range texts {
		g.Go(func() error {
			vec, err := enc.Embed(gCtx, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Normalize scales v to unit length in place and returns it. A zero vector is
// left as is.
func Normalize(v []float32) []float32 {
	mag := search.Float32s(v).Magnitude()
	if mag == 0 {
		return v
	}
	for i := range v {
		v[i] /= mag
	}
	return v
}

// Dot returns the inner product of a and b over their common length.
func Dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func unavailable(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
