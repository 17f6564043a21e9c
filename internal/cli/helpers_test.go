package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/netsync/internal/authority"
	"github.com/roach88/netsync/internal/session"
	"github.com/roach88/netsync/internal/store"
	"github.com/roach88/netsync/internal/testutil"
)

const crateSchema = `package classes

class: Crate: {
	replicate: true
	fields: {
		OwnerClientId: "int64"
		Weight: {kind: "float", notify: true}
		Transform: "transform"
	}
}
`

const journalSession = "cli-session"

// executeCommand runs the root command with args and returns its stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// writeSchemaDir writes the Crate class into a fresh directory.
func writeSchemaDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crate.cue"), []byte(crateSchema), 0o644))
	return dir
}

// buildJournal records a short session: a spawn confirmed as 500 and one
// inbound property update.
func buildJournal(t *testing.T, schemas string) string {
	t.Helper()
	factory, err := loadFactory(schemas, authority.DefaultOwnerField)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "journal.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	sess, err := session.New(7, factory, testutil.NewRecordingCaller(),
		session.WithJournal(st),
		session.WithID(journalSession),
		session.WithLabel("cli test"),
	)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sess.Start(ctx))
	temp, _, err := sess.Spawn("Crate")
	require.NoError(t, err)
	sess.Enqueue(session.RemapEvent(uint64(temp), 500))
	sess.Enqueue(session.PropertyEvent(500, "Weight", []byte(`{"type":"Float","value":4}`)))
	require.Equal(t, 2, sess.Drain(ctx))
	return path
}
