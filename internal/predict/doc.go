// Package predict runs client-side prediction and server reconciliation for
// locally controlled objects.
//
// Each tick the Predictor captures a Snapshot of the controlled body under
// the next sequence number. When the server acknowledges a sequence, the
// live state is compared with the server's. Small disagreements are
// ignored, larger ones are corrected with threshold-gated smoothing, and
// an acknowledgment with no matching snapshot falls back to applying the
// server state directly.
//
// A Predictor is owned by the session's control goroutine. It never blocks
// and is not safe for concurrent use.
package predict
