package batch

import (
	"context"
	"log/slog"
)

// WithBatch runs fn with a Queue that has auto-commit disabled and the given page size.
//
// If fn returns nil, a non-empty page is flushed. If fn returns an error or
// panics, the buffered operations are discarded and the error (or panic) is
// passed through unchanged. Operation and page failures are not returned;
// inspect the queue's Stats after WithBatch returns.
//
// On every path, session-scoped caches held by provider are released when it
// implements CacheReleaser.
func WithBatch(ctx context.Context, provider SessionProvider, pageSize int, fn func(q *Queue) error, opts ...Option) error {
	opts = append(opts, WithPageSize(pageSize), WithAutoCommit(false))
	q := New(provider, opts...)

	defer releaseCache(provider, q.logger)

	completed := false
	defer func() {
		if !completed {
			discarded := q.RollbackCurrentPage()
			q.logger.Error("batch aborted before completion", "discarded", discarded)
		}
	}()

	err := fn(q)
	completed = true

	if err != nil {
		discarded := q.RollbackCurrentPage()
		q.logger.Info("batch aborted", "discarded", discarded, "error", err)
		return err
	}

	if q.Len() > 0 {
		q.FlushPage(ctx)
	}
	return nil
}

func releaseCache(provider SessionProvider, logger *slog.Logger) {
	cr, ok := provider.(CacheReleaser)
	if !ok {
		return
	}
	if err := cr.ReleaseCache(); err != nil {
		logger.Error("release session cache failed", "error", err)
		return
	}
	logger.Debug("session cache released")
}
