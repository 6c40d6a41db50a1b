// Package store provides SQLite-backed storage for tournament data and the
// transactional sessions the batch write queue flushes pages into.
//
// The store holds three tables:
//   - players: tag (unique, NFC-normalized), rating, win/loss counters
//   - tournaments: name, game, start time, status
//   - matches: bracket slots referencing a tournament and two players
//
// # Sessions
//
// Store implements batch.SessionProvider: each flushed page runs in one
// *sql.Tx. Session implements batch.Savepointer, so every queued operation
// runs under its own SAVEPOINT. A failed operation is rolled back to its
// savepoint, released, and the transaction continues with the next
// operation; the page commits with every successful operation applied.
//
// Store also implements batch.CacheReleaser. Statements are prepared once on
// the database and rebound to each session's transaction; ReleaseCache closes
// them when a batch scope ends.
//
// # Repositories
//
// Table implements batch.Repository generically over a declared column list.
// Field names are checked against the declaration before any SQL is built.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
