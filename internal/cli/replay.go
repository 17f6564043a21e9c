package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/netsync/internal/authority"
	"github.com/roach88/netsync/internal/session"
	"github.com/roach88/netsync/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database   string
	SchemasDir string
	OwnerField string
	SessionID  string // optional - one session only
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	SessionID     string `json:"session_id"`
	Events        int    `json:"events"`
	Failed        int    `json:"failed"`
	Objects       int    `json:"objects"`
	PendingSpawns int    `json:"pending_spawns"`
	Digest        string `json:"digest"`
	Deterministic bool   `json:"deterministic"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions         []ReplaySessionResult `json:"sessions"`
	TotalSessions    int                   `json:"total_sessions"`
	AllDeterministic bool                  `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a journal and verify determinism",
		Long: `Rebuild each journaled session twice and compare the resulting state.

Every session is replayed from its journal into a fresh registry using
the class schemas, and the state digests of the two runs must match.

Exit codes:
  0 - All sessions replay deterministically
  1 - Replay produced different states
  2 - Command error (journal not found, bad schemas, etc.)

Examples:
  netsync replay --db ./journal.db --schemas ./schemas
  netsync replay --db ./journal.db --schemas ./schemas --session 0194...
  netsync replay --db ./journal.db --schemas ./schemas --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SchemasDir, "schemas", "schemas", "directory of CUE class schemas")
	cmd.Flags().StringVar(&opts.OwnerField, "owner-field", authority.DefaultOwnerField, "property holding the owner client id")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "replay one session only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	factory, err := loadFactory(opts.SchemasDir, opts.OwnerField)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load schemas", err)
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var sessions []store.Session
	if opts.SessionID != "" {
		sess, err := st.GetSession(ctx, opts.SessionID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read session", err)
		}
		sessions = []store.Session{sess}
	} else {
		sessions, err = st.ListSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
	}

	result := ReplayResult{
		Sessions:         make([]ReplaySessionResult, 0, len(sessions)),
		TotalSessions:    len(sessions),
		AllDeterministic: true,
	}

	for _, sess := range sessions {
		res, err := replayAndVerify(ctx, st, sess, factory, opts.OwnerField)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", sess.ID), err)
		}
		result.Sessions = append(result.Sessions, res)
		if !res.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// replayAndVerify replays one session twice and compares state digests.
func replayAndVerify(ctx context.Context, st *store.Store, sess store.Session, factory *session.Factory, ownerField string) (ReplaySessionResult, error) {
	records, err := st.ReadEvents(ctx, sess.ID)
	if err != nil {
		return ReplaySessionResult{}, err
	}
	state, err := st.GetSessionState(ctx, sess.ID)
	if err != nil {
		return ReplaySessionResult{}, err
	}

	digests := make([]string, 2)
	var first session.ReplayResult
	for i := range digests {
		res, err := session.Replay(ctx, authority.ClientID(sess.ClientID), records, factory,
			session.WithOwnerField(ownerField), session.WithID(sess.ID))
		if err != nil {
			return ReplaySessionResult{}, fmt.Errorf("replay %d: %w", i+1, err)
		}
		digests[i], err = res.Session.StateDigest()
		if err != nil {
			return ReplaySessionResult{}, err
		}
		if i == 0 {
			first = res
		}
	}

	return ReplaySessionResult{
		SessionID:     sess.ID,
		Events:        first.Events,
		Failed:        first.Failed,
		Objects:       first.Session.Registry().Len(),
		PendingSpawns: len(state.PendingSpawns),
		Digest:        digests[0],
		Deterministic: digests[0] == digests[1],
	}, nil
}

func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	if err := writeResponse(cmd.OutOrStdout(), response); err != nil {
		return err
	}
	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if result.TotalSessions == 0 {
		fmt.Fprintln(w, "No sessions found in journal.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d session(s)\n", result.TotalSessions)
	fmt.Fprintln(w)

	for _, s := range result.Sessions {
		status := "✓"
		if !s.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Session: %s\n", status, s.SessionID)
		fmt.Fprintf(w, "  Events: %d (%d failed), objects: %d\n", s.Events, s.Failed, s.Objects)
		if verbose {
			fmt.Fprintf(w, "  Pending spawns: %d\n", s.PendingSpawns)
			fmt.Fprintf(w, "  Digest: %s\n", s.Digest)
		}
		if !s.Deterministic {
			fmt.Fprintln(w, "  Warning: Non-deterministic replay detected!")
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All sessions verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}
