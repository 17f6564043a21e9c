package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/netsync/internal/wire"
)

func TestSchema_Embedded(t *testing.T) {
	out, err := executeCommand(t, "schema")
	require.NoError(t, err)
	assert.Equal(t, strings.TrimRight(wire.FrameSchema(), "\n")+"\n", out)
}

func TestSchema_Reflect(t *testing.T) {
	out, err := executeCommand(t, "schema", "--reflect")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "acked_sequence")
}

func TestSchema_JSONWrapsDocument(t *testing.T) {
	out, err := executeCommand(t, "schema", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "netsync frame", resp.Data["title"])
}

func TestSchema_Check(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.jsonl")
	frames := strings.Join([]string{
		`{"type":"destroy","object_id":5}`,
		``,
		`{"type":"bogus"}`,
		`{"type":"remap","object_id":500}`,
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(frames), 0o644))

	out, err := executeCommand(t, "schema", "--check", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ line 3:")
	assert.Contains(t, out, "✗ line 4:")
	assert.NotContains(t, out, "line 1:")
	assert.Contains(t, out, "3 frame(s), 2 invalid")
}

func TestSchema_CheckValidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"destroy","object_id":5}`+"\n"), 0o644))

	out, err := executeCommand(t, "schema", "--check", path, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string             `json:"status"`
		Data   []FrameCheckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []FrameCheckResult{{Line: 1, Type: "destroy"}}, resp.Data)
}
