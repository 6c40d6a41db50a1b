package batch

import "context"

// Session is one transactional unit of work.
// Exactly one of Commit or Rollback is called per session.
type Session interface {
	Commit() error
	Rollback() error
}

// SessionProvider opens sessions. One session is opened per flushed page.
type SessionProvider interface {
	OpenSession(ctx context.Context) (Session, error)
}

// Savepointer is implemented by sessions that support nested rollback points.
// When available, each operation runs under its own savepoint so a failed
// operation leaves no partial writes behind and the session stays usable.
type Savepointer interface {
	Savepoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
	Release(ctx context.Context, name string) error
}

// CacheReleaser is implemented by providers holding session-scoped caches
// (prepared statements, identity maps) that a batch scope drops on exit.
type CacheReleaser interface {
	ReleaseCache() error
}

// Repository is the per-entity dispatch boundary.
//
// GetByKey returns found=false with a nil error when no row has the key.
// The record returned by Create and GetByKey is opaque to the queue and is
// handed back unchanged to Update and Delete.
type Repository interface {
	Entity() string
	Create(ctx context.Context, s Session, fields Fields) (any, error)
	GetByKey(ctx context.Context, s Session, key any) (record any, found bool, err error)
	Update(ctx context.Context, s Session, record any, fields Fields) error
	Delete(ctx context.Context, s Session, record any) error
}

// Handler executes a custom operation inside the page's session.
// A returned error (or panic) is recorded as an operation failure.
type Handler func(ctx context.Context, s Session, data Fields) error
