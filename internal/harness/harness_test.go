package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		s, err := LoadScenario(path)
		require.NoError(t, err)

		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Equal(t, result.Digest, result.ReplayDigest)
			assert.Len(t, result.Trace, len(s.Steps))
		})
	}
}

func runInline(t *testing.T, doc string) *Result {
	t.Helper()
	s, err := ParseScenario([]byte(doc), "")
	require.NoError(t, err)
	result, err := Run(s)
	require.NoError(t, err)
	return result
}

func TestRun_UnexpectedStepError(t *testing.T) {
	result := runInline(t, `
name: unexpected
description: "a step fails without expect_error"
`+inlineCrate+`
steps:
  - op: set_owner
    id: 5
    owner: 2
assertions:
  - type: failures
    count: 0
`)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `expected error "", got "UNKNOWN_ID"`)
	assert.Equal(t, "UNKNOWN_ID", result.Trace[0].Code)
}

func TestRun_MissingExpectedError(t *testing.T) {
	result := runInline(t, `
name: missing_error
description: "a step succeeds but was expected to fail"
`+inlineCrate+`
steps:
  - op: create
    id: 5
    class: Crate
    expect_error: UNKNOWN_CLASS
assertions:
  - type: registered
    id: 5
`)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `expected error "UNKNOWN_CLASS", got ""`)
}

func TestRun_FailedAssertionsCarryTrace(t *testing.T) {
	result := runInline(t, `
name: failing
description: "assertions that do not hold"
client_id: 4
`+inlineCrate+`
steps:
  - op: create
    id: 5
    class: Crate
    data:
      OwnerClientId: {type: Int64, value: 4}
      Weight: {type: Float, value: 0.5}
  - op: set_owner
    id: 5
    owner: 9
assertions:
  - type: registered
    id: 5
    state: pending
  - type: property
    id: 5
    property: Weight
    value: {type: Float, value: 0.25}
  - type: property
    id: 5
    property: OwnerClientId
    value: {type: Int64, value: 4}
  - type: absent
    id: 5
  - type: calls
    reducers: [set_owner]
  - type: history_len
    id: 5
    count: 1
`)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "assertions[0] registered")
	assert.Contains(t, result.Errors[0], "Expected: state pending")
	assert.Contains(t, result.Errors[0], "Actual: created")
	assert.Contains(t, result.Errors[0], "[2] set_owner 5")
	assert.Contains(t, result.Errors[1], "assertions[1] property")
	assert.Contains(t, result.Errors[2], "assertions[3] absent")
	assert.Contains(t, result.Errors[3], "not controlled")

	assert.Equal(t, []string{"set_owner"}, result.Trace[1].Calls)
	assert.Equal(t, "Crate/created", result.State[5])
}

func TestRun_SpawnRejected(t *testing.T) {
	result := runInline(t, `
name: spawn_rejected
description: "a rejected spawn leaves nothing registered"
reject: [spawn_object]
`+inlineCrate+`
steps:
  - op: spawn
    class: Crate
    as: crate
    expect_error: REJECTED
  - op: spawn
    class: Barrel
    expect_error: UNKNOWN_CLASS
assertions:
  - type: calls
    count: 0
  - type: replay_matches
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.State)
}

func TestRun_InvalidClasses(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: bad_classes
description: "replicated class without an owner field"
schema: |
  package classes
  class: Crate: {
      replicate: true
      fields: {Weight: "float"}
  }
steps:
  - op: tick
assertions:
  - type: failures
    count: 0
`), "")
	require.NoError(t, err)

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid classes")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertCalls,
		Expected: "2 calls",
		Actual:   "1",
		Trace: []TraceEvent{
			{Step: 1, Op: OpSpawn, ObjectID: 9},
			{Step: 2, Op: OpInvoke, ObjectID: 9, Code: "REJECTED"},
		},
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: calls")
	assert.Contains(t, msg, "Expected: 2 calls")
	assert.Contains(t, msg, "Actual: 1")
	assert.Contains(t, msg, "[1] spawn 9\n")
	assert.Contains(t, msg, "[2] invoke 9 -> REJECTED\n")
}
