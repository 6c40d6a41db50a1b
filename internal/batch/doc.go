// Package batch implements the paged write queue used to apply create, update,
// delete and custom operations against the tournament store.
//
// Operations are buffered into a bounded page. A flush stable-sorts the page by
// priority and executes it inside a single transactional session:
//
//  1. Delete operations run first so they vacate keys before anything else.
//  2. Update and Custom operations run next, in submission order.
//  3. Create operations run last so they never collide with sibling deletes.
//
// # Failure Model
//
// Failures are recorded, never returned from a flush:
//   - Operation errors (not found, constraint violation, handler error, panic)
//     are captured per operation. When the session implements Savepointer the
//     failed operation's partial writes are rolled back to its savepoint and the
//     rest of the page continues.
//   - Page errors (session open, savepoint bookkeeping, commit) fail every
//     operation in the page. No partial commit is assumed.
//
// Both kinds land in the error queue and in Stats. Callers poll Stats or Errors
// after a commit and decide whether to RetryErrors.
//
// # Concurrency
//
// A Queue is not safe for concurrent use. Use one Queue per goroutine, or guard
// a shared Queue with a mutex. The session provider is the consistency boundary:
// one session per flush, always committed or rolled back before FlushPage returns.
package batch
