package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// DefaultPageSize is the page bound used when no WithPageSize option is given.
const DefaultPageSize = 100

// Queue buffers operations into a bounded page and flushes each page inside
// one transactional session.
//
// Thread-safety: none. See the package documentation.
type Queue struct {
	provider   SessionProvider
	registry   *Registry
	logger     *slog.Logger
	now        func() time.Time
	pageSize   int
	autoCommit bool

	page   []Operation
	errors []FailedOperation
	stats  Stats
	seq    int64
}

// Option configures a Queue.
type Option func(*Queue)

// WithPageSize sets the page bound. Values below 1 are ignored.
func WithPageSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.pageSize = n
		}
	}
}

// WithAutoCommit controls whether reaching the page bound flushes automatically.
// Default: true.
func WithAutoCommit(enabled bool) Option {
	return func(q *Queue) {
		q.autoCommit = enabled
	}
}

// WithRegistry sets the registry used to resolve custom handlers.
func WithRegistry(r *Registry) Option {
	return func(q *Queue) {
		q.registry = r
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithNow overrides the time source used for processing-time statistics.
func WithNow(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// New creates a Queue that opens sessions from provider.
func New(provider SessionProvider, opts ...Option) *Queue {
	q := &Queue{
		provider:   provider,
		logger:     slog.Default(),
		now:        time.Now,
		pageSize:   DefaultPageSize,
		autoCommit: true,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.page = make([]Operation, 0, q.pageSize)
	return q
}

// PageSize returns the page bound.
func (q *Queue) PageSize() int { return q.pageSize }

// AutoCommit reports whether the queue flushes when the page fills.
func (q *Queue) AutoCommit() bool { return q.autoCommit }

// Len returns the number of buffered, unflushed operations.
func (q *Queue) Len() int { return len(q.page) }

// Enqueue appends an operation whose priority is derived from kind.
//
// Only malformed operations are rejected, with a *UsageError. Missing rows,
// constraint violations and unknown handlers surface at flush time through
// Stats and Errors.
//
// With auto-commit enabled, the call that fills the page flushes it before returning.
func (q *Queue) Enqueue(ctx context.Context, kind Kind, entity Repository, fields Fields, key any, handler string) error {
	if err := validate(kind, entity, key, handler); err != nil {
		return err
	}

	q.seq++
	op := Operation{
		Seq:      q.seq,
		Kind:     kind,
		Entity:   entity,
		Key:      key,
		Fields:   fields.Clone(),
		Handler:  handler,
		Priority: kind.Priority(),
	}
	q.page = append(q.page, op)

	q.logger.Debug("operation queued",
		"op", op.String(),
		"page_len", len(q.page),
		"page_size", q.pageSize,
	)

	if q.autoCommit && len(q.page) >= q.pageSize {
		q.FlushPage(ctx)
	}
	return nil
}

func validate(kind Kind, entity Repository, key any, handler string) error {
	if !kind.valid() {
		return &UsageError{Kind: kind, Reason: "unknown kind"}
	}
	if kind == KindCustom {
		if handler == "" {
			return &UsageError{Kind: kind, Reason: "handler name required"}
		}
		return nil
	}
	if entity == nil {
		return &UsageError{Kind: kind, Reason: "entity required"}
	}
	if (kind == KindUpdate || kind == KindDelete) && key == nil {
		return &UsageError{Kind: kind, Reason: "primary key required"}
	}
	return nil
}

// Create queues an insert of fields into entity.
func (q *Queue) Create(ctx context.Context, entity Repository, fields Fields) error {
	return q.Enqueue(ctx, KindCreate, entity, fields, nil, "")
}

// Update queues applying fields to the entity row identified by key.
func (q *Queue) Update(ctx context.Context, entity Repository, key any, fields Fields) error {
	return q.Enqueue(ctx, KindUpdate, entity, fields, key, "")
}

// Delete queues removal of the entity row identified by key.
func (q *Queue) Delete(ctx context.Context, entity Repository, key any) error {
	return q.Enqueue(ctx, KindDelete, entity, nil, key, "")
}

// Custom queues a call to the registered handler with data.
func (q *Queue) Custom(ctx context.Context, handler string, data Fields) error {
	return q.Enqueue(ctx, KindCustom, nil, data, nil, handler)
}

// Commit flushes the current page. Intended for callers running with auto-commit disabled.
func (q *Queue) Commit(ctx context.Context) {
	q.FlushPage(ctx)
}

// FlushPage executes the buffered page in priority order inside one session and
// clears it. It is a no-op on an empty page. Failures are recorded in Stats and
// Errors, never returned.
func (q *Queue) FlushPage(ctx context.Context) {
	if len(q.page) == 0 {
		return
	}

	// Take ownership of the page; anything queued by a handler mid-flush lands in the next one.
	page := q.page
	q.page = make([]Operation, 0, q.pageSize)

	sort.SliceStable(page, func(i, j int) bool {
		return page[i].Priority < page[j].Priority
	})

	start := q.now()
	pageNum := q.stats.PagesProcessed + 1
	q.logger.Info("flushing page", "page", pageNum, "operations", len(page))

	failed, succeeded, err := q.runPage(ctx, page)
	if err != nil {
		msg := fmt.Sprintf("page failed: %v", err)
		for _, op := range page {
			q.errors = append(q.errors, FailedOperation{
				Operation: op,
				Message:   msg,
				Err:       newPageError(op, err),
			})
		}
		q.stats.OperationsFailed += int64(len(page))
		q.logger.Error("page failed", "page", pageNum, "operations", len(page), "error", err)
	} else {
		q.stats.OperationsSuccessful += int64(succeeded)
		q.stats.ItemsProcessed += int64(succeeded)
		q.stats.OperationsFailed += int64(len(failed))
		q.errors = append(q.errors, failed...)
	}

	elapsed := q.now().Sub(start)
	q.stats.PagesProcessed++
	q.stats.TotalProcessingTime += elapsed

	q.logger.Info("page flushed",
		"page", pageNum,
		"succeeded", succeeded,
		"failed", len(page)-succeeded,
		"duration", elapsed,
		"errors_pending", len(q.errors),
	)
}

// runPage executes page inside one session. A non-nil error means the session
// itself failed and no outcome in the page can be trusted.
func (q *Queue) runPage(ctx context.Context, page []Operation) (failed []FailedOperation, succeeded int, err error) {
	s, err := q.provider.OpenSession(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("open session: %w", err)
	}

	closed := false
	defer func() {
		if closed {
			return
		}
		if rbErr := s.Rollback(); rbErr != nil {
			q.logger.Error("session rollback failed", "error", rbErr)
		}
	}()

	sp, _ := s.(Savepointer)
	for _, op := range page {
		opErr, spErr := q.execute(ctx, s, sp, op)
		if spErr != nil {
			return nil, 0, spErr
		}
		if opErr != nil {
			q.logger.Error("operation failed", "op", op.String(), "error", opErr)
			failed = append(failed, FailedOperation{
				Operation: op,
				Message:   opErr.Error(),
				Err:       opErr,
			})
			continue
		}
		succeeded++
	}

	closed = true
	if err := s.Commit(); err != nil {
		return nil, 0, fmt.Errorf("commit: %w", err)
	}
	return failed, succeeded, nil
}

// execute runs one operation, under a savepoint when the session supports it.
// opErr is an operation-level failure; spErr is a savepoint failure that
// poisons the whole session.
func (q *Queue) execute(ctx context.Context, s Session, sp Savepointer, op Operation) (opErr, spErr error) {
	if sp == nil {
		return q.dispatch(ctx, s, op), nil
	}

	name := fmt.Sprintf("op_%d", op.Seq)
	if err := sp.Savepoint(ctx, name); err != nil {
		return nil, fmt.Errorf("savepoint %s: %w", name, err)
	}

	if opErr = q.dispatch(ctx, s, op); opErr != nil {
		if err := sp.RollbackTo(ctx, name); err != nil {
			return nil, fmt.Errorf("rollback to savepoint %s: %w", name, err)
		}
	}
	if err := sp.Release(ctx, name); err != nil {
		return nil, fmt.Errorf("release savepoint %s: %w", name, err)
	}
	return opErr, nil
}

// dispatch routes op to its repository or handler. Panics are recovered and
// reported as operation errors.
func (q *Queue) dispatch(ctx context.Context, s Session, op Operation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &OpError{
				Code:    ErrCodePanic,
				Op:      op,
				Message: fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	switch op.Kind {
	case KindCreate:
		if _, err := op.Entity.Create(ctx, s, op.Fields); err != nil {
			return newDispatchError(op, err)
		}
		return nil

	case KindUpdate:
		record, err := q.lookup(ctx, s, op)
		if err != nil {
			return err
		}
		if err := op.Entity.Update(ctx, s, record, op.Fields); err != nil {
			return newDispatchError(op, err)
		}
		return nil

	case KindDelete:
		record, err := q.lookup(ctx, s, op)
		if err != nil {
			return err
		}
		if err := op.Entity.Delete(ctx, s, record); err != nil {
			return newDispatchError(op, err)
		}
		return nil

	case KindCustom:
		h, ok := q.registry.Handler(op.Handler)
		if !ok {
			return &OpError{
				Code:    ErrCodeUnknownHandler,
				Op:      op,
				Message: fmt.Sprintf("handler %q not registered", op.Handler),
			}
		}
		if err := h(ctx, s, op.Fields); err != nil {
			return newDispatchError(op, err)
		}
		return nil

	default:
		return newDispatchError(op, fmt.Errorf("unknown kind %d", int(op.Kind)))
	}
}

func (q *Queue) lookup(ctx context.Context, s Session, op Operation) (any, error) {
	record, found, err := op.Entity.GetByKey(ctx, s, op.Key)
	if err != nil {
		return nil, newDispatchError(op, fmt.Errorf("get by key: %w", err))
	}
	if !found {
		return nil, newNotFoundError(op)
	}
	return record, nil
}

// RollbackCurrentPage discards the buffered operations without executing them
// and returns how many were discarded. The error queue is untouched.
func (q *Queue) RollbackCurrentPage() int {
	n := len(q.page)
	q.page = make([]Operation, 0, q.pageSize)
	if n > 0 {
		q.logger.Info("page discarded", "operations", n)
	}
	return n
}

// RetryErrors moves every failed operation back into the current page and
// flushes it. Operations that fail again return to the error queue.
func (q *Queue) RetryErrors(ctx context.Context) {
	if len(q.errors) == 0 {
		return
	}

	retry := q.errors
	q.errors = nil
	for _, f := range retry {
		q.page = append(q.page, f.Operation)
	}

	q.logger.Info("retrying failed operations", "operations", len(retry))
	q.FlushPage(ctx)
}

// Errors returns a copy of the error queue. Fields are copied too, so callers
// cannot change what RetryErrors replays.
func (q *Queue) Errors() []FailedOperation {
	out := make([]FailedOperation, len(q.errors))
	copy(out, q.errors)
	for i := range out {
		out[i].Operation.Fields = q.errors[i].Operation.Fields.Clone()
	}
	return out
}

// Stats returns the counters plus derived fields.
func (q *Queue) Stats() Snapshot {
	return q.stats.snapshot(len(q.page), len(q.errors))
}

// ResetStats zeroes the counters. Buffered operations and the error queue are kept.
func (q *Queue) ResetStats() {
	q.stats = Stats{}
}
