package recommend

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrNotReady is returned by Holder when no snapshot has been published.
var ErrNotReady = errors.New("no engine snapshot published")

// BuildFunc produces a fresh engine snapshot.
type BuildFunc func(ctx context.Context) (*Engine, error)

// Holder publishes engine snapshots. Readers always see a complete snapshot;
// a reload builds the next one aside and swaps the pointer.
type Holder struct {
	current atomic.Pointer[Engine]
	build   BuildFunc
	logger  *zap.Logger

	reloadMu sync.Mutex
}

// NewHolder returns a holder that uses build on Reload.
func NewHolder(build BuildFunc, logger *zap.Logger) *Holder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Holder{build: build, logger: logger}
}

// Load returns the published engine or ErrNotReady.
func (h *Holder) Load() (*Engine, error) {
	e := h.current.Load()
	if e == nil {
		return nil, ErrNotReady
	}
	return e, nil
}

// Swap publishes e and returns the previous snapshot.
func (h *Holder) Swap(e *Engine) *Engine {
	return h.current.Swap(e)
}

// Reload builds a new snapshot and publishes it. On failure the current
// snapshot stays in place. Concurrent reloads are serialized.
func (h *Holder) Reload(ctx context.Context) (*Engine, error) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	next, err := h.build(ctx)
	if err != nil {
		h.logger.Error("snapshot reload failed, keeping current", zap.Error(err))
		return nil, err
	}

	prev := h.Swap(next)
	fields := []zap.Field{zap.String("snapshot", next.ID()), zap.Int("positions", next.Corpus().Len())}
	if prev != nil {
		fields = append(fields, zap.String("previous", prev.ID()))
	}
	h.logger.Info("snapshot published", fields...)

	return next, nil
}

// Recommend runs Engine.Recommend on the current snapshot.
func (h *Holder) Recommend(ctx context.Context, text string, opts Options) (*Result, error) {
	e, err := h.Load()
	if err != nil {
		return nil, err
	}
	return e.Recommend(ctx, text, opts)
}

// SearchKeywords runs Engine.SearchKeywords on the current snapshot.
func (h *Holder) SearchKeywords(ctx context.Context, keywords []string, k int) ([]Hit, error) {
	e, err := h.Load()
	if err != nil {
		return nil, err
	}
	return e.SearchKeywords(ctx, keywords, k)
}
