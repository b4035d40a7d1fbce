package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/openscioly/results-api/cache"
)

// asyncCacheWriter runs best-effort cache population in the background. A
// read that triggers repopulation never blocks on it and never fails because
// of it; failures are logged and the cache entry simply stays absent.
type asyncCacheWriter struct {
	store  cache.Store
	logger *slog.Logger
	wg     sync.WaitGroup
}

func (w *asyncCacheWriter) populate(ctx context.Context, key string, fn func(context.Context) error) {
	if w.store == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := fn(ctx); err != nil {
			w.logger.Warn("cache population failed",
				slog.String("key", key),
				slog.Any("error", err))
		}
	}()
}

// flush waits for in-flight cache writes to settle.
func (w *asyncCacheWriter) flush() {
	w.wg.Wait()
}
