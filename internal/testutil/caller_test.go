package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingCaller(t *testing.T) {
	c := NewRecordingCaller()

	assert.True(t, c.Call("set_owner", `{"object_id":1}`))
	c.Reject("invoke")
	assert.False(t, c.Call("invoke", `{}`))
	assert.True(t, c.Call("spawn_object", `{}`))

	calls := c.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "set_owner", calls[0].Reducer)

	last, ok := c.Last()
	require.True(t, ok)
	assert.Equal(t, "spawn_object", last.Reducer)

	c.Reject()
	assert.False(t, c.Call("set_owner", `{}`))

	c.Accept()
	assert.True(t, c.Call("invoke", `{}`))

	c.Reset()
	_, ok = c.Last()
	assert.False(t, ok)
}
