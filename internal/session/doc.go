// Package session runs the client-side replication control thread.
//
// A Session owns the object registry, the marshaller, the authority model,
// the predictors of locally controlled objects and the journal. Every one
// of those is mutated only on the control goroutine:
//
//   - Enqueue(): safe from any goroutine (transport readers use it)
//   - Run(): must be called from exactly one goroutine
//   - Drain(): processes what is queued on the caller's goroutine; used by
//     tests and the scenario harness instead of Run
//   - Outbound methods (Spawn, SetProperty, SetOwner, Invoke, Destroy,
//     Control): call them from a Task event or while no Run loop is active
//
// Inbound events are journaled before they are applied, so a journal
// replays into the same registry state. Processing failures are logged and
// processing continues; a retry would make replay non-deterministic.
package session
