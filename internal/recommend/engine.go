// Package recommend combines relevance scoring with relation graph expansion
// to produce vacancy recommendations, adjacent career paths and skills worth
// learning.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/hh-pathfinder/internal/encoder"
	"github.com/spigell/hh-pathfinder/internal/graph"
	"github.com/spigell/hh-pathfinder/internal/index"
	"github.com/spigell/hh-pathfinder/internal/logger"
	"github.com/spigell/hh-pathfinder/internal/vacancy"
)

// ErrInconsistentSnapshot is returned when the index, graph and corpus of an
// engine disagree on the number of positions.
var ErrInconsistentSnapshot = errors.New("inconsistent snapshot")

// Engine is an immutable snapshot: a corpus, a built strategy over it and the
// relation graph. It is safe for concurrent queries.
type Engine struct {
	id       string
	builtAt  time.Time
	corpus   *vacancy.Corpus
	strategy index.Strategy
	graph    *graph.Graph
	fallback index.Strategy
	logger   *zap.Logger
}

// New assembles an engine from already built parts and asserts that they
// describe the same corpus.
func New(corpus *vacancy.Corpus, strategy index.Strategy, g *graph.Graph, log *zap.Logger) (*Engine, error) {
	if corpus == nil || strategy == nil || g == nil {
		return nil, fmt.Errorf("%w: corpus, strategy and graph are required", ErrInconsistentSnapshot)
	}
	if strategy.Len() != corpus.Len() || g.Positions() != corpus.Len() {
		return nil, fmt.Errorf("%w: corpus has %d records, %s index %d, graph %d",
			ErrInconsistentSnapshot, corpus.Len(), strategy.Name(), strategy.Len(), g.Positions())
	}

	id := uuid.NewString()
	return &Engine{
		id:       id,
		builtAt:  time.Now(),
		corpus:   corpus,
		strategy: strategy,
		graph:    g,
		logger:   logger.WithFields(log, logger.EngineFields(strategy.Name(), id)...),
	}, nil
}

// Build builds strategy and graph from the corpus and assembles the engine.
func Build(ctx context.Context, corpus *vacancy.Corpus, strategy index.Strategy, opts graph.Options, log *zap.Logger) (*Engine, error) {
	if err := strategy.Build(ctx, corpus.Texts()); err != nil {
		return nil, fmt.Errorf("building %s index: %w", strategy.Name(), err)
	}

	g, err := graph.Build(corpus, opts)
	if err != nil {
		return nil, fmt.Errorf("building relation graph: %w", err)
	}

	return New(corpus, strategy, g, log)
}

// WithFallback sets a built strategy over the same corpus that serves queries
// when the primary strategy's encoder is unavailable.
func (e *Engine) WithFallback(s index.Strategy) error {
	if s.Len() != e.corpus.Len() {
		return fmt.Errorf("%w: fallback %s index has %d positions, corpus %d",
			ErrInconsistentSnapshot, s.Name(), s.Len(), e.corpus.Len())
	}
	e.fallback = s
	return nil
}

// ID identifies the snapshot.
func (e *Engine) ID() string { return e.id }

// BuiltAt is the assembly time of the snapshot.
func (e *Engine) BuiltAt() time.Time { return e.builtAt }

// Strategy returns the primary strategy name.
func (e *Engine) Strategy() string { return e.strategy.Name() }

// Corpus returns the snapshot corpus.
func (e *Engine) Corpus() *vacancy.Corpus { return e.corpus }

// Graph returns the relation graph.
func (e *Engine) Graph() *graph.Graph { return e.graph }

func (e *Engine) prepare(ctx context.Context, text string) (index.Query, string, error) {
	q, err := e.strategy.Prepare(ctx, text)
	if err == nil {
		return q, e.strategy.Name(), nil
	}
	if e.fallback == nil || !errors.Is(err, encoder.ErrUnavailable) {
		return nil, "", err
	}

	e.logger.Warn("primary strategy unavailable, serving with fallback",
		zap.String("fallback", e.fallback.Name()),
		zap.Error(err),
	)
	q, err = e.fallback.Prepare(ctx, text)
	if err != nil {
		return nil, "", err
	}
	return q, e.fallback.Name(), nil
}
