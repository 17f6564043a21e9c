// Package store provides SQLite-backed durable storage for session journals.
//
// The journal is append-only:
//   - Sessions: one row per client session
//   - Events: inbound replication events and outbound calls, in seq order
//   - Reconciliations: the outcome of every server correction for a
//     predicted object
//
// All ordering uses the session's logical seq, never timestamps, so a
// journal replays identically regardless of wall time. Queries order by
// seq ASC, id COLLATE BINARY ASC.
//
// Event and reconciliation ids are content-addressed through
// value.ContentID, so writing the same record twice is a no-op.
//
// # Database Configuration
//
// The journal always runs in WAL mode with foreign keys on. The
// synchronous level (default NORMAL) and the lock wait (default 5s) are
// set per store with WithSynchronous and WithBusyTimeout, which the
// client exposes as journal.synchronous and journal.busy_timeout.
package store
