package marshal

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/netsync/internal/value"
)

// Resolver maps object references and class references to and from their
// wire identities. The object registry provides the production
// implementation.
type Resolver interface {
	ObjectID(obj Object) (uint64, bool)
	ResolveObject(id uint64) (Object, bool)
	ResolveClass(name string) bool
}

// Option configures a Marshaller.
type Option func(*Marshaller)

// WithResolver sets the resolver used for ObjectRef and ClassRef fields.
// Without one, every non-null reference is unresolved.
func WithResolver(r Resolver) Option {
	return func(m *Marshaller) {
		m.resolver = r
	}
}

// Marshaller converts between accessors and Typed Values.
// It holds no per-call state and is safe for concurrent use as long as the
// resolver is.
type Marshaller struct {
	resolver Resolver
}

// New creates a Marshaller.
func New(opts ...Option) *Marshaller {
	m := &Marshaller{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Serialize reads acc and returns its Typed Value. None means the field
// cannot be synchronized (unsupported type or unencodable native value).
func (m *Marshaller) Serialize(acc Accessor) value.Value {
	v, err := m.Encode(acc.Type(), acc.Get())
	if err != nil {
		slog.Warn("field not serializable",
			"type", acc.Type().String(),
			"error", err,
		)
		return value.None{}
	}
	return v
}

// Deserialize writes v into acc and reports success. On failure the field
// keeps its prior value.
func (m *Marshaller) Deserialize(acc Accessor, v value.Value) bool {
	return m.Apply(acc, v) == nil
}

// Apply is Deserialize with the failure reason. Errors wrap one of
// ErrTypeMismatch, ErrInvalidValue, ErrUnresolvedReference,
// ErrUnsupportedKind or ErrNativeType.
func (m *Marshaller) Apply(acc Accessor, v value.Value) error {
	native, err := m.Decode(acc.Type(), v)
	if err != nil {
		return err
	}
	return assign(acc, native)
}

// Encode converts a native value of type t into a Typed Value.
func (m *Marshaller) Encode(t *Type, native any) (value.Value, error) {
	if !t.Supported() {
		return value.None{}, fmt.Errorf("%w: %s", ErrUnsupportedKind, t)
	}

	switch t.Kind {
	case KindObjectRef:
		return m.encodeObjectRef(native)
	case KindEnum:
		n, ok := native.(int64)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a native %s", ErrNativeType, native, t)
		}
		sym, ok := t.Enum.Symbol(n)
		if !ok {
			return nil, fmt.Errorf("%w: %d is not a symbol of %s", ErrInvalidValue, n, t)
		}
		return value.Name(sym), nil
	case KindArray:
		return m.encodeSequence(t, native, false)
	case KindSet:
		return m.encodeSequence(t, native, true)
	case KindMap:
		return m.encodeMap(t, native)
	case KindStruct:
		if t.Shape == ShapeGeneric {
			return m.encodeRecord(t, native)
		}
	}

	if err := checkNative(t, native); err != nil {
		return nil, err
	}

	switch t.Kind {
	case KindBool:
		return value.Bool(native.(bool)), nil
	case KindByte:
		return value.Byte(native.(uint8)), nil
	case KindInt32:
		return value.Int32(native.(int32)), nil
	case KindInt64:
		return value.Int64(native.(int64)), nil
	case KindUInt32:
		return value.UInt32(native.(uint32)), nil
	case KindUInt64:
		return value.UInt64(native.(uint64)), nil
	case KindFloat:
		return value.Float(native.(float32)), nil
	case KindDouble:
		return value.Double(native.(float64)), nil
	case KindString:
		return value.String(native.(string)), nil
	case KindName, KindClassRef:
		return value.Name(native.(string)), nil
	case KindText:
		return value.Text(native.(string)), nil
	case KindStruct:
		// Well-known shapes are already Values.
		return native.(value.Value), nil
	}
	return value.None{}, fmt.Errorf("%w: %s", ErrUnsupportedKind, t)
}

// Decode converts v into a native value of type t without touching any
// field. A case that does not match t is ErrTypeMismatch.
func (m *Marshaller) Decode(t *Type, v value.Value) (any, error) {
	want, ok := t.Case()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, t)
	}
	if v == nil || v.Kind() != want {
		got := value.KindNone
		if v != nil {
			got = v.Kind()
		}
		return nil, fmt.Errorf("%w: %s field cannot take %s", ErrTypeMismatch, t, got)
	}

	switch val := v.(type) {
	case value.Bool:
		return bool(val), nil
	case value.Byte:
		return uint8(val), nil
	case value.Int32:
		return int32(val), nil
	case value.Int64:
		return int64(val), nil
	case value.UInt32:
		return uint32(val), nil
	case value.UInt64:
		return uint64(val), nil
	case value.Float:
		return float32(val), nil
	case value.Double:
		return float64(val), nil
	case value.String:
		return string(val), nil
	case value.Text:
		return string(val), nil
	case value.Name:
		return m.decodeName(t, string(val))
	case value.Vector3, value.Rotator, value.Quat, value.Transform, value.Color:
		return val, nil
	case value.ObjectRef:
		return m.decodeObjectRef(uint64(val))
	case value.Array:
		return m.decodeSequence(t, string(val), false)
	case value.Set:
		return m.decodeSequence(t, string(val), true)
	case value.Map:
		return m.decodeMap(t, string(val))
	case value.Custom:
		return m.decodeRecord(t, string(val))
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, t)
}

func (m *Marshaller) decodeName(t *Type, name string) (any, error) {
	switch t.Kind {
	case KindEnum:
		n, ok := t.Enum.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a symbol of %s", ErrInvalidValue, name, t)
		}
		return n, nil
	case KindClassRef:
		if name == "" {
			return "", nil
		}
		if m.resolver == nil || !m.resolver.ResolveClass(name) {
			return nil, fmt.Errorf("%w: class %q", ErrUnresolvedReference, name)
		}
		return name, nil
	default:
		return name, nil
	}
}

func (m *Marshaller) encodeObjectRef(native any) (value.Value, error) {
	if native == nil {
		return value.ObjectRef(0), nil
	}
	obj, ok := native.(Object)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not an Object", ErrNativeType, native)
	}
	if m.resolver != nil {
		if id, ok := m.resolver.ObjectID(obj); ok {
			return value.ObjectRef(id), nil
		}
	}
	// An unregistered object has no network identity; peers see null.
	slog.Debug("object reference not registered, sending null",
		"class", obj.ClassName(),
	)
	return value.ObjectRef(0), nil
}

func (m *Marshaller) decodeObjectRef(id uint64) (any, error) {
	if id == 0 {
		return nil, nil
	}
	if m.resolver != nil {
		if obj, ok := m.resolver.ResolveObject(id); ok {
			return obj, nil
		}
	}
	return nil, fmt.Errorf("%w: object %d", ErrUnresolvedReference, id)
}

// assign commits a decoded native value. A staged generic record is copied
// field by field into an existing concrete record so the host keeps its
// own Go type.
func assign(acc Accessor, native any) error {
	if staged, ok := native.(*DynamicRecord); ok {
		if cur, ok := acc.Get().(Record); ok && cur != nil {
			if _, dynamic := cur.(*DynamicRecord); !dynamic {
				return assignRecord(cur, staged)
			}
		}
	}
	return acc.Set(native)
}

func assignRecord(dst Record, src *DynamicRecord) error {
	var errs []error
	for _, f := range src.desc.Fields {
		acc, ok := dst.Field(f.Name)
		if !ok {
			continue
		}
		if err := assign(acc, src.slots[f.Name]); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}
