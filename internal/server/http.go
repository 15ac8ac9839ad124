package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hh-pathfinder/internal/encoder"
	"github.com/spigell/hh-pathfinder/internal/profile"
	"github.com/spigell/hh-pathfinder/internal/recommend"
)

type recommendRequest struct {
	Query   string            `json:"query"`
	History []profile.Message `json:"history,omitempty"`
	Profile *profile.Profile  `json:"profile,omitempty"`
	recommend.Options
}

type recommendResponse struct {
	*recommend.Result
	Profile *profile.Profile `json:"profile,omitempty"`
}

type searchRequest struct {
	Keywords []string `json:"keywords"`
	TopK     int      `json:"top_k"`
}

type searchResponse struct {
	Hits []recommend.Hit `json:"hits"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	e, err := s.holder.Load()
	if err != nil {
		httpError(w, http.StatusServiceUnavailable, "not_ready", "%v", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   s.opts.Version,
		"snapshot":  e.ID(),
		"strategy":  e.Strategy(),
		"positions": e.Corpus().Len(),
		"built_at":  e.BuiltAt().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	req := recommendRequest{Options: s.opts.Defaults}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}

	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()

	text, built := s.queryText(ctx, req.Query, req.History, req.Profile)
	res, err := s.holder.Recommend(ctx, text, req.Options)
	if err != nil {
		s.fail(w, "recommend", err)
		return
	}

	writeJSON(w, http.StatusOK, recommendResponse{Result: res, Profile: built})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	req := searchRequest{TopK: s.opts.Defaults.TopK}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}

	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()

	hits, err := s.holder.SearchKeywords(ctx, req.Keywords, req.TopK)
	if err != nil {
		s.fail(w, "search", err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Hits: hits})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	e, err := s.holder.Reload(r.Context())
	if err != nil {
		s.fail(w, "reload", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot":  e.ID(),
		"positions": e.Corpus().Len(),
	})
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	code, kind := classify(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("op", op), zap.Error(err))
	}
	httpError(w, code, kind, "%s: %v", op, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, recommend.ErrNotReady):
		return http.StatusServiceUnavailable, "not_ready"
	case errors.Is(err, encoder.ErrUnavailable):
		return http.StatusServiceUnavailable, "encoder_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "api_error"
	}
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) || subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
