package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/netsync/internal/marshal"
	"github.com/roach88/netsync/internal/predict"
	"github.com/roach88/netsync/internal/value"
)

func TestRunProcessesUntilStop(t *testing.T) {
	f := newFixture(t)
	done := make(chan error, 1)
	go func() { done <- f.s.Run(t.Context()) }()

	f.s.Enqueue(CreateEvent(10, "Pawn", nil))
	f.s.Enqueue(PropertyEvent(10, "Health", value.MustMarshal(value.Float(3))))
	f.s.Enqueue(PropertyEvent(99, "Health", value.MustMarshal(value.Float(3))))

	seen := make(chan float32, 1)
	f.s.Enqueue(TaskEvent(func(s *Session) {
		obj, _ := s.Registry().FindByID(10)
		seen <- obj.(*marshal.DynamicObject).Get("Health").(float32)
	}))
	f.s.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.Equal(t, float32(3), <-seen, "a failed event does not stop the loop")
}

func TestRunReturnsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- f.s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStartWritesSessionOnce(t *testing.T) {
	journal := openJournal(t)
	f := newFixture(t, WithJournal(journal), WithLabel("lobby"))

	require.NoError(t, f.s.Start(t.Context()))
	require.NoError(t, f.s.Start(t.Context()))

	sessions, err := journal.ListSessions(t.Context())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "lobby", sessions[0].Label)
}

func TestNewRejectsInvalidPrediction(t *testing.T) {
	cfg := predict.DefaultConfig()
	cfg.Smoothing = 2
	_, err := New(localClient, NewFactory(), nil, WithPredictionConfig(cfg))
	assert.Error(t, err)
}
