// Package server exposes the recommendation engine over HTTP and MCP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/spigell/hh-pathfinder/internal/profile"
	"github.com/spigell/hh-pathfinder/internal/recommend"
)

const (
	maxRequestBodySize = 1 << 20
	shutdownTimeout    = 5 * time.Second
)

// Options configure the listener and per-request behavior.
type Options struct {
	Addr    string        `mapstructure:"addr"`
	Timeout time.Duration `mapstructure:"timeout"`
	// ReloadToken protects /v1/reload. Empty disables the endpoint.
	ReloadToken string `mapstructure:"-"`
	Defaults    recommend.Options
	Version     string
}

// ProfileExtractor builds a profile from chat history, usually with a
// language model.
type ProfileExtractor interface {
	Extract(ctx context.Context, history []profile.Message) (profile.Profile, error)
}

type Server struct {
	holder    *recommend.Holder
	extractor ProfileExtractor
	opts      Options
	logger    *zap.Logger
	mcp       *sdkmcp.Server
}

// New builds the server. extractor may be nil, in which case profiles are
// built from history with patterns only.
func New(holder *recommend.Holder, extractor ProfileExtractor, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Defaults.TopK <= 0 {
		opts.Defaults = recommend.DefaultOptions()
	}

	s := &Server{holder: holder, extractor: extractor, opts: opts, logger: logger}
	s.mcp = s.newMCPServer()
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/recommend", s.handleRecommend)
	r.Post("/v1/search", s.handleSearch)
	if s.opts.ReloadToken != "" {
		r.With(bearerAuth(s.opts.ReloadToken)).Post("/v1/reload", s.handleReload)
	}

	mcpHandler := sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return s.mcp
	}, nil)
	r.Handle("/mcp", mcpHandler)

	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown requested for http server")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http server shutdown with error", zap.Error(err))
		return err
	}

	s.logger.Info("http server shutdown complete")
	return nil
}

func (s *Server) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.Timeout)
}

// queryText resolves what to score: an explicit profile, a profile built from
// chat history, or the raw query.
func (s *Server) queryText(ctx context.Context, query string, history []profile.Message, p *profile.Profile) (string, *profile.Profile) {
	if p != nil {
		return p.Text(), p
	}
	if len(history) == 0 {
		return query, nil
	}

	if s.extractor != nil {
		built, err := s.extractor.Extract(ctx, history)
		if err == nil {
			return built.Text(), &built
		}
		s.logger.Warn("profile extraction failed, falling back to patterns", zap.Error(err))
	}

	built := profile.FromHistory(history)
	return built.Text(), &built
}
