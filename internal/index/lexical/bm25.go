// Package lexical implements exact Okapi BM25 scoring over the corpus.
package lexical

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/spigell/hh-pathfinder/internal/index"
	"github.com/spigell/hh-pathfinder/internal/normalize"
)

const Name = "lexical"

// Params are the BM25 constants.
type Params struct {
	K1 float64 `mapstructure:"k1"`
	B  float64 `mapstructure:"b"`
}

// DefaultParams returns k1=1.5, b=0.75.
func DefaultParams() Params {
	return Params{K1: 1.5, B: 0.75}
}

// Index holds per-document term statistics.
type Index struct {
	params Params
	logger *zap.Logger

	tf     []map[string]int
	docLen []int
	avgLen float64
	idf    map[string]float64
}

var _ index.Strategy = (*Index)(nil)

// New creates an empty BM25 index. Zero params fall back to the defaults.
func New(params Params, logger *zap.Logger) *Index {
	def := DefaultParams()
	if params.K1 <= 0 {
		params.K1 = def.K1
	}
	if params.B < 0 || params.B > 1 {
		params.B = def.B
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{params: params, logger: logger}
}

func (x *Index) Name() string { return Name }

func (x *Index) Len() int { return len(x.tf) }

// Build tokenizes docs and computes document frequencies and IDF.
func (x *Index) Build(ctx context.Context, docs []string) error {
	x.tf = make([]map[string]int, len(docs))
	x.docLen = make([]int, len(docs))
	df := make(map[string]int)

	total := 0
	for i, doc := range docs {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		tokens := normalize.Tokens(doc)
		freq := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freq[tok]++
		}
		for tok := range freq {
			df[tok]++
		}

		x.tf[i] = freq
		x.docLen[i] = len(tokens)
		total += len(tokens)
	}

	x.avgLen = 0
	if len(docs) > 0 {
		x.avgLen = float64(total) / float64(len(docs))
	}

	n := float64(len(docs))
	x.idf = make(map[string]float64, len(df))
	for tok, f := range df {
		x.idf[tok] = math.Log(1 + (n-float64(f)+0.5)/(float64(f)+0.5))
	}

	x.logger.Debug("lexical index built",
		zap.Int("documents", len(docs)),
		zap.Int("vocabulary", len(x.idf)),
		zap.Float64("avg_doc_len", x.avgLen),
	)

	return nil
}

// Prepare scores every document against text. It never fails.
func (x *Index) Prepare(_ context.Context, text string) (index.Query, error) {
	scores := make([]float64, len(x.tf))
	avg := x.avgLen
	if avg == 0 {
		avg = 1
	}

	k1, b := x.params.K1, x.params.B
	for _, tok := range normalize.Tokens(text) {
		idf, ok := x.idf[tok]
		if !ok {
			continue
		}
		for i, freq := range x.tf {
			f := float64(freq[tok])
			if f == 0 {
				continue
			}
			norm := k1 * (1 - b + b*float64(x.docLen[i])/avg)
			scores[i] += idf * f * (k1 + 1) / (f + norm)
		}
	}

	best := 0.0
	for _, s := range scores {
		if s > best {
			best = s
		}
	}

	return &query{scores: scores, best: best}, nil
}

type query struct {
	scores []float64
	best   float64
}

func (q *query) Top(k int) []index.Match {
	top := index.TopK(q.scores, k)
	matches := make([]index.Match, len(top))
	for n, i := range top {
		matches[n] = index.Match{Index: i, Score: q.scores[i], Similarity: q.Similarity(i)}
	}
	return matches
}

// Similarity is the score relative to the best document, capped at 1.
func (q *query) Similarity(i int) float64 {
	if q.best <= 0 || i < 0 || i >= len(q.scores) {
		return 0
	}
	return math.Min(q.scores[i]/q.best, 1)
}
