// Package dense scores documents by cosine similarity of embeddings, using an
// approximate HNSW index or an exact flat scan.
package dense

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hh-pathfinder/internal/encoder"
	"github.com/spigell/hh-pathfinder/internal/index"
	"github.com/spigell/hh-pathfinder/internal/index/hnsw"
	"github.com/spigell/hh-pathfinder/internal/normalize"
)

const Name = "dense"

const (
	KindHNSW = "hnsw"
	KindFlat = "flat"
)

// Options configure the dense strategy.
type Options struct {
	Kind        string      `mapstructure:"kind"`
	HNSW        hnsw.Params `mapstructure:",squash"`
	Concurrency int         `mapstructure:"concurrency"`
}

type ann interface {
	Build(vectors [][]float32) error
	Search(q []float32, k int) ([]hnsw.Result, error)
	Len() int
	Dim() int
	Vector(id int) []float32
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

// Index is the dense strategy.
type Index struct {
	enc    encoder.Encoder
	opts   Options
	logger *zap.Logger
	ann    ann
}

var _ index.Strategy = (*Index)(nil)

// New creates an unbuilt dense index over enc.
func New(enc encoder.Encoder, opts Options, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Kind == "" {
		opts.Kind = KindHNSW
	}

	a, err := newANN(opts)
	if err != nil {
		return nil, err
	}
	return &Index{enc: enc, opts: opts, logger: logger, ann: a}, nil
}

func newANN(opts Options) (ann, error) {
	switch opts.Kind {
	case KindHNSW:
		return hnsw.New(opts.HNSW), nil
	case KindFlat:
		return &flat{}, nil
	default:
		return nil, fmt.Errorf("unknown dense index kind %q", opts.Kind)
	}
}

func (x *Index) Name() string { return Name }

func (x *Index) Len() int { return x.ann.Len() }

// Build embeds docs in batch, L2-normalizes them and builds the ANN index.
func (x *Index) Build(ctx context.Context, docs []string) error {
	start := time.Now()

	vecs, err := encoder.EmbedAll(ctx, x.enc, docs, x.opts.Concurrency)
	if err != nil {
		return fmt.Errorf("embedding corpus: %w", err)
	}
	for _, v := range vecs {
		encoder.Normalize(v)
	}

	if err := x.ann.Build(vecs); err != nil {
		return fmt.Errorf("building %s index: %w", x.opts.Kind, err)
	}

	fields := []zap.Field{
		zap.String("kind", x.opts.Kind),
		zap.String("model", x.enc.Model()),
		zap.Int("documents", len(vecs)),
		zap.Int("dimension", x.ann.Dim()),
		zap.Duration("took", time.Since(start)),
	}
	if h, ok := x.ann.(*hnsw.Index); ok {
		p := h.Params()
		fields = append(fields, zap.Int("m", p.M), zap.Int("ef_construction", p.EfConstruction), zap.Int("ef_search", p.EfSearch))
	}
	x.logger.Info("dense index built", fields...)

	return nil
}

// Prepare embeds the normalized query. Encoder failures are returned as is,
// so encoder.ErrUnavailable stays detectable. A query with no words is not
// sent to the encoder and scores zero against every document.
func (x *Index) Prepare(ctx context.Context, text string) (index.Query, error) {
	text = normalize.Text(text)
	if text == "" {
		return &query{x: x, vec: make([]float32, x.dim())}, nil
	}

	v, err := x.enc.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	encoder.Normalize(v)

	if dim := x.dim(); x.ann.Len() > 0 && len(v) != dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(v), dim)
	}

	return &query{x: x, vec: v}, nil
}

func (x *Index) dim() int { return x.ann.Dim() }

type query struct {
	x   *Index
	vec []float32
}

func (q *query) Top(k int) []index.Match {
	k = index.Clamp(k, q.x.ann.Len())
	if k == 0 {
		return nil
	}

	res, err := q.x.ann.Search(q.vec, k)
	if err != nil {
		q.x.logger.Warn("dense search failed", zap.Error(err))
		return nil
	}

	matches := make([]index.Match, len(res))
	for i, r := range res {
		s := float64(r.Score)
		matches[i] = index.Match{Index: r.ID, Score: s, Similarity: s}
	}
	return matches
}

// Similarity is the inner product of unit vectors, i.e. cosine.
func (q *query) Similarity(i int) float64 {
	if i < 0 || i >= q.x.ann.Len() {
		return 0
	}
	return encoder.Dot(q.vec, q.x.ann.Vector(i))
}
