package marshal

import "errors"

var (
	// ErrTypeMismatch: the Typed Value case does not match the field kind.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrInvalidValue: the case matches but the payload is structurally invalid.
	ErrInvalidValue = errors.New("invalid value")
	// ErrUnresolvedReference: an object or class reference did not resolve.
	ErrUnresolvedReference = errors.New("unresolved reference")
	// ErrUnsupportedKind: the field type cannot be synchronized.
	ErrUnsupportedKind = errors.New("unsupported field kind")
	// ErrUnknownProperty: the object has no property with that name.
	ErrUnknownProperty = errors.New("unknown property")
	// ErrNativeType: an accessor was given a value of the wrong Go type.
	ErrNativeType = errors.New("wrong native type")
)
