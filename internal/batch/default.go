package batch

import (
	"context"
	"sync"
)

// Default is an injectable handle to a lazily-built Queue, owned by the
// application's composition root. It replaces a package-level global: the root
// creates one with NewDefault, passes it to whoever needs convenience access,
// and calls Close at shutdown.
//
// Only construction and Close are synchronized. The Queue it hands out has the
// usual single-goroutine contract.
type Default struct {
	mu      sync.Mutex
	factory func() *Queue
	q       *Queue
}

// NewDefault creates a handle whose queue is built by factory on first use.
func NewDefault(factory func() *Queue) *Default {
	return &Default{factory: factory}
}

// Queue returns the queue, building it on first use.
func (d *Default) Queue() *Queue {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.q == nil {
		d.q = d.factory()
	}
	return d.q
}

// Create queues an insert on the default queue.
func (d *Default) Create(ctx context.Context, entity Repository, fields Fields) error {
	return d.Queue().Create(ctx, entity, fields)
}

// Update queues an update on the default queue.
func (d *Default) Update(ctx context.Context, entity Repository, key any, fields Fields) error {
	return d.Queue().Update(ctx, entity, key, fields)
}

// Delete queues a delete on the default queue.
func (d *Default) Delete(ctx context.Context, entity Repository, key any) error {
	return d.Queue().Delete(ctx, entity, key)
}

// Custom queues a custom handler call on the default queue.
func (d *Default) Custom(ctx context.Context, handler string, data Fields) error {
	return d.Queue().Custom(ctx, handler, data)
}

// Commit flushes the default queue's page.
func (d *Default) Commit(ctx context.Context) {
	d.Queue().Commit(ctx)
}

// Stats returns the default queue's statistics.
func (d *Default) Stats() Snapshot {
	return d.Queue().Stats()
}

// Close flushes pending work and drops the queue, returning its final stats.
// A later call builds a fresh queue. Close on an unused handle returns zero stats.
func (d *Default) Close(ctx context.Context) Snapshot {
	d.mu.Lock()
	q := d.q
	d.q = nil
	d.mu.Unlock()

	if q == nil {
		return Snapshot{}
	}
	q.FlushPage(ctx)
	return q.Stats()
}
