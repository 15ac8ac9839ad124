package encoder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"go.uber.org/zap"
)

// Cache stores vectors by content key.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Put(ctx context.Context, key string, vec []float32) error
}

// Cached memoizes an Encoder. Cache failures are logged and never fail Embed.
type Cached struct {
	next   Encoder
	cache  Cache
	logger *zap.Logger
}

// NewCached wraps next with cache.
func NewCached(next Encoder, cache Cache, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{next: next, cache: cache, logger: logger}
}

func (c *Cached) Model() string { return c.next.Model() }

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Key(c.next.Model(), text)

	vec, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("embedding cache lookup failed", zap.Error(err))
	}
	if ok {
		return vec, nil
	}

	vec, err = c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Put(ctx, key, vec); err != nil {
		c.logger.Warn("embedding cache store failed", zap.Error(err))
	}
	return vec, nil
}

// Key identifies text embedded by model.
func Key(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
