package session

import (
	"errors"
	"fmt"

	"github.com/roach88/netsync/internal/authority"
	"github.com/roach88/netsync/internal/marshal"
	"github.com/roach88/netsync/internal/registry"
)

// ErrorCode categorizes synchronization errors.
type ErrorCode string

const (
	// ErrCodeTypeMismatch: a value's case or shape does not fit the field.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeUnresolvedReference: an object or class reference did not resolve.
	ErrCodeUnresolvedReference ErrorCode = "UNRESOLVED_REFERENCE"

	// ErrCodeUnknownID: the event names an id that is not registered.
	ErrCodeUnknownID ErrorCode = "UNKNOWN_ID"

	// ErrCodeUnknownProperty: the object has no such property.
	ErrCodeUnknownProperty ErrorCode = "UNKNOWN_PROPERTY"

	// ErrCodeAuthorityDenied: this client does not own the object.
	ErrCodeAuthorityDenied ErrorCode = "AUTHORITY_DENIED"

	// ErrCodeRejected: the transport refused an outbound call.
	ErrCodeRejected ErrorCode = "REJECTED"

	// ErrCodeStaleAck: a movement acknowledged a sequence below the
	// previous acknowledgment.
	ErrCodeStaleAck ErrorCode = "STALE_ACK"

	// ErrCodeUnknownClass: no constructor or schema exists for a class.
	ErrCodeUnknownClass ErrorCode = "UNKNOWN_CLASS"

	// ErrCodeMalformedEvent: an event payload could not be decoded.
	ErrCodeMalformedEvent ErrorCode = "MALFORMED_EVENT"

	// ErrCodeAlreadyRegistered: a create named an id that is taken or destroyed.
	ErrCodeAlreadyRegistered ErrorCode = "ALREADY_REGISTERED"

	// ErrCodeRemapConflict: a remap could not be applied.
	ErrCodeRemapConflict ErrorCode = "REMAP_CONFLICT"
)

// SyncError is an error detected while applying or issuing replication
// events. It wraps the underlying package error when there is one.
type SyncError struct {
	Code     ErrorCode
	Message  string
	ObjectID uint64
	Err      error
}

func (e *SyncError) Error() string {
	if e.ObjectID != 0 {
		return fmt.Sprintf("%s: %s (object=%d)", e.Code, e.Message, e.ObjectID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SyncError) Unwrap() error { return e.Err }

// CodeOf returns the code of the SyncError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

func newError(code ErrorCode, id uint64, err error) *SyncError {
	return &SyncError{Code: code, Message: err.Error(), ObjectID: id, Err: err}
}

func unknownID(id uint64) *SyncError {
	return &SyncError{Code: ErrCodeUnknownID, Message: "object not registered", ObjectID: id, Err: registry.ErrNotFound}
}

// classify maps errors from the marshal, registry and authority packages
// onto sync error codes.
func classify(id uint64, err error) *SyncError {
	var se *SyncError
	if errors.As(err, &se) {
		return se
	}

	code := ErrCodeTypeMismatch
	switch {
	case errors.Is(err, marshal.ErrUnresolvedReference):
		code = ErrCodeUnresolvedReference
	case errors.Is(err, marshal.ErrUnknownProperty):
		code = ErrCodeUnknownProperty
	case errors.Is(err, authority.ErrAuthorityDenied):
		code = ErrCodeAuthorityDenied
	case errors.Is(err, authority.ErrRejected):
		code = ErrCodeRejected
	case errors.Is(err, authority.ErrUnregistered), errors.Is(err, registry.ErrNotFound):
		code = ErrCodeUnknownID
	case errors.Is(err, ErrUnknownClass):
		code = ErrCodeUnknownClass
	case errors.Is(err, registry.ErrAlreadyRegistered), errors.Is(err, registry.ErrDestroyed):
		code = ErrCodeAlreadyRegistered
	case errors.Is(err, registry.ErrAlreadyRemapped), errors.Is(err, registry.ErrNotPending):
		code = ErrCodeRemapConflict
	case errors.Is(err, authority.ErrInvalidArgs), errors.Is(err, registry.ErrInvalidID):
		code = ErrCodeMalformedEvent
	}
	return newError(code, id, err)
}
