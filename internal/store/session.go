package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/tourneyq/internal/batch"
)

// Session is one SQLite transaction. Implements batch.Session and batch.Savepointer.
//
// SQLite aborts only the failing statement on a constraint violation and keeps
// the transaction open, but a multi-statement operation can still leave partial
// writes behind. Savepoints let the queue undo exactly one operation.
type Session struct {
	tx    *sql.Tx
	store *Store
}

// Commit commits the transaction.
func (s *Session) Commit() error {
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Rollback rolls back the transaction.
func (s *Session) Rollback() error {
	if err := s.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback tx: %w", err)
	}
	return nil
}

// Savepoint opens a named savepoint.
func (s *Session) Savepoint(ctx context.Context, name string) error {
	_, err := s.tx.ExecContext(ctx, "SAVEPOINT "+quoteIdent(name))
	return err
}

// RollbackTo undoes everything since the named savepoint. The savepoint stays open.
func (s *Session) RollbackTo(ctx context.Context, name string) error {
	_, err := s.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+quoteIdent(name))
	return err
}

// Release closes the named savepoint, keeping its writes in the transaction.
func (s *Session) Release(ctx context.Context, name string) error {
	_, err := s.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+quoteIdent(name))
	return err
}

// Tx returns the underlying transaction for custom handlers that need raw SQL.
func (s *Session) Tx() *sql.Tx {
	return s.tx
}

// exec runs query through the store's prepared statement cache, bound to this transaction.
func (s *Session) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	stmt, err := s.stmt(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	return stmt.ExecContext(ctx, args...)
}

// query runs query through the statement cache, bound to this transaction.
// The returned rows keep the statement alive until they are closed.
func (s *Session) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	stmt, err := s.stmt(ctx, query)
	if err != nil {
		return nil, err
	}
	return stmt.QueryContext(ctx, args...)
}

func (s *Session) stmt(ctx context.Context, query string) (*sql.Stmt, error) {
	cached, err := s.store.prepare(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	return s.tx.StmtContext(ctx, cached), nil
}

// sessionFrom unwraps a batch.Session opened by a Store.
func sessionFrom(s batch.Session) (*Session, error) {
	ss, ok := s.(*Session)
	if !ok {
		return nil, fmt.Errorf("store: session %T was not opened by store.Store", s)
	}
	return ss, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
