package catalog

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Holder publishes the current Index. Reload builds a replacement off to the
// side and swaps it in with a single atomic store, so readers always see one
// complete Index.
type Holder struct {
	src    Source
	logger *slog.Logger
	cur    atomic.Pointer[Index]
	mu     sync.Mutex // serializes reloads
}

// NewHolder loads src once and returns a Holder serving it.
func NewHolder(ctx context.Context, src Source, logger *slog.Logger) (*Holder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Holder{src: src, logger: logger}
	if _, err := h.Reload(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

// Current returns the live Index.
func (h *Holder) Current() *Index { return h.cur.Load() }

// Reload rebuilds from the source. On failure the previous Index stays live.
func (h *Holder) Reload(ctx context.Context) (*Index, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := time.Now()
	ix, err := Load(ctx, h.src)
	if err != nil {
		h.logger.Error("catalog load failed", "source", h.src.Name(), "err", err)
		return nil, err
	}
	h.cur.Store(ix)
	h.logger.Info("catalog loaded",
		"source", h.src.Name(),
		"items", ix.Len(),
		"terms", len(ix.model.vocab),
		"duration", time.Since(start),
	)
	return ix, nil
}

// Swap installs ix directly and returns the previous Index.
func (h *Holder) Swap(ix *Index) *Index {
	return h.cur.Swap(ix)
}
