package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/tourneyq/internal/batch"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added players.wins/losses counters
// 2 - Added index on matches(tournament_id, round)
const currentSchemaVersion = 2

// Store provides the tournament tables and opens transactional sessions over them.
// Uses SQLite with WAL mode. Writes go through one transaction at a time.
type Store struct {
	db *sql.DB

	mu    sync.Mutex
	stmts map[string]*sql.Stmt // prepared statement cache, dropped by ReleaseCache
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// Pragmas that are per connection are also passed in the DSN so every pooled
// connection gets them, not only the one applyPragmas ran on.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection for the active transaction, one for preparing cached
	// statements and reads. A single connection would deadlock a Prepare
	// issued while a session's transaction holds it.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, stmts: make(map[string]*sql.Stmt)}, nil
}

// ErrSchemaVersion is returned by OpenReadOnly when the database is not at the
// current schema version.
var ErrSchemaVersion = errors.New("unexpected schema version")

// OpenReadOnly opens an existing database for reads only. Nothing is created,
// migrated or written; a database that needs migrating is rejected with
// ErrSchemaVersion.
func OpenReadOnly(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		db.Close()
		return nil, fmt.Errorf("get user_version: %w", err)
	}
	if version != currentSchemaVersion {
		db.Close()
		return nil, fmt.Errorf("%w: %d, want %d", ErrSchemaVersion, version, currentSchemaVersion)
	}

	return &Store{db: db, stmts: make(map[string]*sql.Stmt)}, nil
}

// Close releases cached statements and closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.ReleaseCache(); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// OpenSession begins a transaction. Implements batch.SessionProvider.
func (s *Store) OpenSession(ctx context.Context) (batch.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Session{tx: tx, store: s}, nil
}

// ReleaseCache closes every cached prepared statement. Implements batch.CacheReleaser.
func (s *Store) ReleaseCache() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for query, stmt := range s.stmts {
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close statement: %w", err)
		}
		delete(s.stmts, query)
	}
	return firstErr
}

// cachedStatements returns the number of cached prepared statements. Used for testing.
func (s *Store) cachedStatements() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stmts)
}

// prepare returns the cached statement for query, preparing it on first use.
func (s *Store) prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stmt, ok := s.stmts[query]; ok {
		return stmt, nil
	}
	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	s.stmts[query] = stmt
	return stmt, nil
}

// dsn appends per-connection pragma parameters understood by go-sqlite3.
func dsn(path string) string {
	params := "_foreign_keys=on&_busy_timeout=5000&_synchronous=NORMAL"
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}
	if version < 2 {
		if err := migrateToV2(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the win/loss counters to player tables created before v1.
// New databases get the columns from schema.sql.
func migrateToV1(db *sql.DB) error {
	for _, col := range []string{"wins", "losses"} {
		exists, err := columnExists(db, "players", col)
		if err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
		if exists {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE players ADD COLUMN %s INTEGER NOT NULL DEFAULT 0", col)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	return nil
}

// migrateToV2 adds the bracket lookup index for existing databases.
func migrateToV2(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_matches_tournament_round
		ON matches(tournament_id, round)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	return nil
}

func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
