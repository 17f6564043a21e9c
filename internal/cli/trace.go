package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/netsync/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	SessionID string
	ObjectID  uint64 // optional - one object only
	Kind      string // optional - one event kind only
}

// TraceEntry is one line of the session timeline: a journaled event or
// a reconciliation.
type TraceEntry struct {
	Seq      int64  `json:"seq"`
	Kind     string `json:"kind"`
	ObjectID uint64 `json:"object_id,omitempty"`
	AuxID    uint64 `json:"aux_id,omitempty"`
	Name     string `json:"name,omitempty"`
	Payload  string `json:"payload,omitempty"`

	Outcome       string  `json:"outcome,omitempty"`
	AckedSequence uint64  `json:"acked_sequence,omitempty"`
	PositionError float64 `json:"position_error,omitempty"`
	Discarded     int     `json:"discarded,omitempty"`
}

// TraceStats holds summary statistics for a session.
type TraceStats struct {
	TotalEvents     int            `json:"total_events"`
	Calls           int            `json:"calls"`
	Reconciliations map[string]int `json:"reconciliations"`
	PendingSpawns   int            `json:"pending_spawns"`
	IsSettled       bool           `json:"is_settled"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	SessionID string       `json:"session_id"`
	ClientID  int64        `json:"client_id"`
	Label     string       `json:"label,omitempty"`
	Timeline  []TraceEntry `json:"timeline"`
	Stats     TraceStats   `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journal of a session",
		Long: `Show the journaled timeline of a session.

Inbound events, accepted outbound calls and reconciliations are merged
in sequence order. Stats summarize calls, reconciliation outcomes and
spawns still waiting for a server id.

Examples:
  netsync trace --db ./journal.db --session 0194...
  netsync trace --db ./journal.db --session 0194... --object 500
  netsync trace --db ./journal.db --session 0194... --kind call --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session id to trace (required)")
	_ = cmd.MarkFlagRequired("session")
	cmd.Flags().Uint64Var(&opts.ObjectID, "object", 0, "filter to one object id")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one event kind (property, create, destroy, remap, movement, call, reconciliation)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := buildTrace(ctx, st, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	if opts.Format == "json" {
		return writeResponse(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result, SessionID: result.SessionID})
	}
	outputTraceText(cmd, result, opts.Verbose)
	return nil
}

func buildTrace(ctx context.Context, st *store.Store, opts *TraceOptions) (TraceResult, error) {
	sess, err := st.GetSession(ctx, opts.SessionID)
	if err != nil {
		return TraceResult{}, err
	}
	events, err := st.ReadEvents(ctx, sess.ID)
	if err != nil {
		return TraceResult{}, err
	}
	recs, err := st.ReadReconciliations(ctx, sess.ID)
	if err != nil {
		return TraceResult{}, err
	}
	state, err := st.GetSessionState(ctx, sess.ID)
	if err != nil {
		return TraceResult{}, err
	}

	result := TraceResult{
		SessionID: sess.ID,
		ClientID:  sess.ClientID,
		Label:     sess.Label,
		Timeline:  []TraceEntry{},
		Stats: TraceStats{
			TotalEvents:     state.Events,
			Reconciliations: state.Outcomes,
			PendingSpawns:   len(state.PendingSpawns),
			IsSettled:       state.IsSettled,
		},
	}

	keep := func(kind string, object uint64) bool {
		if opts.Kind != "" && opts.Kind != kind {
			return false
		}
		return opts.ObjectID == 0 || opts.ObjectID == object
	}

	for _, ev := range events {
		if ev.Kind == store.KindCall {
			result.Stats.Calls++
		}
		if !keep(ev.Kind, ev.ObjectID) && !keep(ev.Kind, ev.AuxID) {
			continue
		}
		result.Timeline = append(result.Timeline, TraceEntry{
			Seq:      ev.Seq,
			Kind:     ev.Kind,
			ObjectID: ev.ObjectID,
			AuxID:    ev.AuxID,
			Name:     ev.Name,
			Payload:  ev.Payload,
		})
	}
	for _, r := range recs {
		if !keep("reconciliation", r.ObjectID) {
			continue
		}
		result.Timeline = append(result.Timeline, TraceEntry{
			Seq:           r.Seq,
			Kind:          "reconciliation",
			ObjectID:      r.ObjectID,
			Outcome:       r.Outcome,
			AckedSequence: r.AckedSequence,
			PositionError: r.PositionError,
			Discarded:     r.Discarded,
		})
	}
	slices.SortStableFunc(result.Timeline, func(a, b TraceEntry) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	return result, nil
}

func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Session: %s (client %d)\n", result.SessionID, result.ClientID)
	if result.Label != "" {
		fmt.Fprintf(w, "Label: %s\n", result.Label)
	}
	fmt.Fprintln(w)

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No events.")
	}
	for _, e := range result.Timeline {
		switch e.Kind {
		case "reconciliation":
			fmt.Fprintf(w, "[%d] reconciliation %d: %s (acked %d, discarded %d)\n",
				e.Seq, e.ObjectID, e.Outcome, e.AckedSequence, e.Discarded)
		case store.KindRemap:
			fmt.Fprintf(w, "[%d] remap %d -> %d\n", e.Seq, e.AuxID, e.ObjectID)
		default:
			fmt.Fprintf(w, "[%d] %s %d %s\n", e.Seq, e.Kind, e.ObjectID, e.Name)
		}
		if verbose && e.Payload != "" {
			fmt.Fprintf(w, "      %s\n", e.Payload)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Events: %d, calls: %d, pending spawns: %d\n",
		result.Stats.TotalEvents, result.Stats.Calls, result.Stats.PendingSpawns)
	for _, outcome := range []string{"within_threshold", "corrected", "fallback"} {
		if n := result.Stats.Reconciliations[outcome]; n > 0 {
			fmt.Fprintf(w, "  %s: %d\n", outcome, n)
		}
	}
	if result.Stats.IsSettled {
		fmt.Fprintln(w, "✓ All spawns confirmed")
	} else {
		fmt.Fprintln(w, "… Spawns awaiting confirmation")
	}
}
