package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hh-pathfinder/internal/ai/gemini"
	"github.com/spigell/hh-pathfinder/internal/embedcache"
	"github.com/spigell/hh-pathfinder/internal/encoder"
	"github.com/spigell/hh-pathfinder/internal/graph"
	"github.com/spigell/hh-pathfinder/internal/index/dense"
	"github.com/spigell/hh-pathfinder/internal/index/lexical"
	"github.com/spigell/hh-pathfinder/internal/logger"
	"github.com/spigell/hh-pathfinder/internal/profile"
	"github.com/spigell/hh-pathfinder/internal/recommend"
	"github.com/spigell/hh-pathfinder/internal/secrets"
	"github.com/spigell/hh-pathfinder/internal/vacancy"
)

// deps holds what a command needs to build engine snapshots. Close
// releases the embedding cache.
type deps struct {
	config    *Config
	logger    *zap.Logger
	generator *gemini.Generator
	encoder   encoder.Encoder
	cache     *embedcache.Store
}

func newDeps(ctx context.Context, config *Config, log *zap.Logger) (*deps, error) {
	rt := &deps{config: config, logger: log}

	if config.AI != nil && config.AI.Enabled {
		g, err := newGenerator(ctx, config.AI, log)
		if err != nil {
			return nil, fmt.Errorf("building ai generator: %w", err)
		}
		rt.generator = g
	}

	if strings.EqualFold(config.Index.Strategy, dense.Name) {
		if err := rt.setupEncoder(); err != nil {
			rt.Close()
			return nil, err
		}
	}

	return rt, nil
}

func (rt *deps) Close() {
	if rt.cache == nil {
		return
	}
	if err := rt.cache.Close(); err != nil {
		rt.logger.Warn("closing embedding cache", zap.Error(err))
	}
}

func newGenerator(ctx context.Context, cfg *AIConfig, log *zap.Logger) (*gemini.Generator, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
	if cfg.Gemini == nil {
		cfg.Gemini = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.WithCommonFields(log, "gemini", cfg.Gemini.Model)
	return gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Options, genLogger)
}

func (rt *deps) setupEncoder() error {
	cfg := rt.config.Encoder

	var enc encoder.Encoder
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "hash":
		enc = encoder.NewHash(cfg.Dimension)
	case "ollama":
		enc = encoder.NewOllama(cfg.Ollama.URL, cfg.Ollama.Model)
	case "gemini":
		if rt.generator == nil {
			return errors.New("gemini encoder requires ai.enabled with gemini settings")
		}
		enc = encoder.NewGemini(rt.generator)
	default:
		return fmt.Errorf("unknown encoder provider %q", cfg.Provider)
	}

	if cfg.CachePath != "" {
		store, err := embedcache.Open(cfg.CachePath)
		if err != nil {
			return fmt.Errorf("opening embedding cache: %w", err)
		}
		rt.cache = store
		enc = encoder.NewCached(enc, store, logger.Component(rt.logger, "embedcache"))
	}

	rt.encoder = enc
	rt.logger.Debug("encoder ready", zap.String(logger.FieldEncoder, enc.Model()))
	return nil
}

// extractor returns the language model profile builder, or nil when AI is off.
func (rt *deps) extractor() *profile.Extractor {
	if rt.generator == nil {
		return nil
	}
	return profile.NewExtractor(rt.generator, rt.config.AI.Gemini.MaxLogLength, rt.logger)
}

func (rt *deps) loadCorpus() (*vacancy.Corpus, error) {
	records, err := vacancy.Load(rt.config.Corpus.Path)
	if err != nil {
		return nil, err
	}
	return vacancy.NewCorpus(records)
}

// build loads the snapshot and produces a published-ready engine.
func (rt *deps) build(ctx context.Context) (*recommend.Engine, error) {
	corpus, err := rt.loadCorpus()
	if err != nil {
		return nil, err
	}

	var e *recommend.Engine
	switch strings.ToLower(rt.config.Index.Strategy) {
	case "", lexical.Name:
		e, err = recommend.Build(ctx, corpus, lexical.New(rt.config.Index.Lexical, logger.Component(rt.logger, lexical.Name)), rt.config.Graph, rt.logger)
	case dense.Name:
		e, err = rt.buildDense(ctx, corpus)
	default:
		return nil, fmt.Errorf("unknown strategy %q", rt.config.Index.Strategy)
	}
	if err != nil {
		return nil, err
	}

	if e.Strategy() == dense.Name && rt.config.Index.Fallback {
		fb := lexical.New(rt.config.Index.Lexical, logger.Component(rt.logger, "fallback"))
		if err := fb.Build(ctx, corpus.Texts()); err != nil {
			return nil, fmt.Errorf("building fallback index: %w", err)
		}
		if err := e.WithFallback(fb); err != nil {
			return nil, err
		}
	}

	rt.logger.Info("engine snapshot built",
		append(logger.EngineFields(e.Strategy(), e.ID()),
			zap.Int("positions", corpus.Len()),
			zap.Int("graph_nodes", e.Graph().Len()),
			zap.Int("graph_edges", e.Graph().EdgeCount()),
		)...,
	)
	return e, nil
}

// buildDense reuses a stored index when it matches the corpus checksum and
// stores a freshly built one otherwise.
func (rt *deps) buildDense(ctx context.Context, corpus *vacancy.Corpus) (*recommend.Engine, error) {
	if rt.encoder == nil {
		return nil, errors.New("dense strategy requires an encoder")
	}

	x, err := dense.New(rt.encoder, rt.config.Index.Dense, logger.Component(rt.logger, dense.Name))
	if err != nil {
		return nil, err
	}

	path := rt.config.Index.Path
	if path != "" {
		err := x.LoadFile(path, corpus.Checksum())
		switch {
		case err == nil:
			rt.logger.Info("dense index loaded", zap.String("path", path), zap.Int("vectors", x.Len()))
			g, err := graph.Build(corpus, rt.config.Graph)
			if err != nil {
				return nil, fmt.Errorf("building relation graph: %w", err)
			}
			return recommend.New(corpus, x, g, rt.logger)
		case errors.Is(err, fs.ErrNotExist):
		default:
			rt.logger.Warn("stored dense index unusable, rebuilding", zap.String("path", path), zap.Error(err))
		}
	}

	e, err := recommend.Build(ctx, corpus, x, rt.config.Graph, rt.logger)
	if err != nil {
		return nil, err
	}

	if path != "" {
		if err := x.SaveFile(path, corpus.Checksum()); err != nil {
			rt.logger.Warn("saving dense index", zap.String("path", path), zap.Error(err))
		}
	}
	return e, nil
}

func (rt *deps) holder() *recommend.Holder {
	return recommend.NewHolder(rt.build, rt.logger)
}
