package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/netsync/internal/authority"
	"github.com/roach88/netsync/internal/marshal"
	"github.com/roach88/netsync/internal/registry"
)

func TestFactory(t *testing.T) {
	f := NewFactory()
	require.NoError(t, f.RegisterClass(pawnClass))
	require.NoError(t, f.RegisterConstructor("Crate", func() marshal.Object {
		return marshal.NewDynamicObject(signClass)
	}, true))

	assert.Error(t, f.RegisterClass(pawnClass), "duplicate class")
	assert.Error(t, f.RegisterClass(&marshal.ClassDesc{}), "missing name")
	assert.Error(t, f.RegisterConstructor("Crate", nil, false))

	assert.Equal(t, []string{"Crate", "Pawn"}, f.Classes())
	assert.True(t, f.Replicates("Pawn"))
	assert.True(t, f.Replicates("Crate"))
	assert.False(t, f.Replicates("Nope"))

	obj, err := f.New("Pawn")
	require.NoError(t, err)
	assert.Equal(t, "Pawn", obj.ClassName())

	_, err = f.New("Nope")
	assert.ErrorIs(t, err, ErrUnknownClass)
}

func TestFactoryNilConstructorResult(t *testing.T) {
	f := NewFactory()
	require.NoError(t, f.RegisterConstructor("Ghost", func() marshal.Object { return nil }, false))
	_, err := f.New("Ghost")
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		code ErrorCode
	}{
		{marshal.ErrTypeMismatch, ErrCodeTypeMismatch},
		{marshal.ErrUnresolvedReference, ErrCodeUnresolvedReference},
		{marshal.ErrUnknownProperty, ErrCodeUnknownProperty},
		{authority.ErrAuthorityDenied, ErrCodeAuthorityDenied},
		{authority.ErrRejected, ErrCodeRejected},
		{authority.ErrUnregistered, ErrCodeUnknownID},
		{registry.ErrNotFound, ErrCodeUnknownID},
		{ErrUnknownClass, ErrCodeUnknownClass},
		{registry.ErrAlreadyRegistered, ErrCodeAlreadyRegistered},
		{registry.ErrAlreadyRemapped, ErrCodeRemapConflict},
		{registry.ErrInvalidID, ErrCodeMalformedEvent},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			wrapped := fmt.Errorf("context: %w", tt.err)
			err := classify(9, wrapped)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, uint64(9), err.ObjectID)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSyncErrorThroughWrapping(t *testing.T) {
	base := unknownID(12)
	wrapped := fmt.Errorf("outer: %w", base)

	assert.True(t, IsCode(wrapped, ErrCodeUnknownID))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.Same(t, base, classify(0, wrapped), "an existing sync error keeps its code")
	assert.Contains(t, base.Error(), "object=12")
}
