// Package index defines the relevance scoring strategies shared by the
// recommendation engine.
package index

import (
	"context"
	"sort"
)

// Match is a scored corpus position.
type Match struct {
	Index int
	// Score is the strategy-native score (BM25 or cosine).
	Score float64
	// Similarity is the score mapped into [0, 1] for display.
	Similarity float64
}

// Strategy turns a corpus of normalized documents into a searchable index.
// Build is called once before any query; prepared queries are read-only and
// safe for concurrent use.
type Strategy interface {
	Name() string
	Build(ctx context.Context, docs []string) error
	Len() int
	Prepare(ctx context.Context, text string) (Query, error)
}

// Query is a prepared query bound to a built strategy.
type Query interface {
	// Top returns at most k matches in descending score order.
	Top(k int) []Match
	// Similarity returns the relevance of corpus position i to the query.
	Similarity(i int) float64
}

// Score prepares text and returns its top k matches.
func Score(ctx context.Context, s Strategy, text string, k int) ([]Match, error) {
	q, err := s.Prepare(ctx, text)
	if err != nil {
		return nil, err
	}
	return q.Top(k), nil
}

// Clamp bounds k by the corpus size. Negative k yields zero.
func Clamp(k, n int) int {
	if k <= 0 {
		return 0
	}
	if k > n {
		return n
	}
	return k
}

// TopK returns the k best positions by score. Equal scores keep corpus order.
func TopK(scores []float64, k int) []int {
	k = Clamp(k, len(scores))
	if k == 0 {
		return nil
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	return order[:k]
}
