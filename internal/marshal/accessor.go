package marshal

import (
	"fmt"

	"github.com/roach88/netsync/internal/value"
)

// Accessor gets and sets one field on an object instance.
type Accessor interface {
	Type() *Type
	Get() any
	// Set replaces the field's native value. It fails only when v is not a
	// native value of the accessor's type.
	Set(v any) error
}

// Record is the capability a generic struct value exposes so the
// marshaller can walk its fields without reflection.
type Record interface {
	Fields() []FieldDesc
	Field(name string) (Accessor, bool)
}

// Object is a host instance with named, typed properties.
type Object interface {
	ClassName() string
	Properties() []FieldDesc
	Property(name string) (Accessor, bool)
}

// Notifier is implemented by objects that want a post-change hook for
// fields declared with Notify.
type Notifier interface {
	OnPropertyChanged(name string)
}

// Bind returns an Accessor over a Go variable. T must be the native
// representation of t (see package doc).
func Bind[T any](t *Type, p *T) Accessor {
	return &boundAccessor[T]{typ: t, p: p}
}

type boundAccessor[T any] struct {
	typ *Type
	p   *T
}

func (a *boundAccessor[T]) Type() *Type { return a.typ }

func (a *boundAccessor[T]) Get() any { return *a.p }

func (a *boundAccessor[T]) Set(v any) error {
	if v == nil {
		var zero T
		*a.p = zero
		return nil
	}
	tv, ok := v.(T)
	if !ok {
		return fmt.Errorf("%w: %T is not assignable to %T", ErrNativeType, v, *a.p)
	}
	*a.p = tv
	return nil
}

// slotAccessor stores a field in a map slot, checking native types on Set.
type slotAccessor struct {
	typ   *Type
	slots map[string]any
	name  string
}

func (a *slotAccessor) Type() *Type { return a.typ }

func (a *slotAccessor) Get() any { return a.slots[a.name] }

func (a *slotAccessor) Set(v any) error {
	if err := checkNative(a.typ, v); err != nil {
		return err
	}
	a.slots[a.name] = v
	return nil
}

// checkNative reports whether v is a native value of t, shallowly.
// Container elements are checked by the marshaller when it builds them.
func checkNative(t *Type, v any) error {
	ok := false
	switch t.Kind {
	case KindBool:
		_, ok = v.(bool)
	case KindByte:
		_, ok = v.(uint8)
	case KindInt32:
		_, ok = v.(int32)
	case KindInt64, KindEnum:
		_, ok = v.(int64)
	case KindUInt32:
		_, ok = v.(uint32)
	case KindUInt64:
		_, ok = v.(uint64)
	case KindFloat:
		_, ok = v.(float32)
	case KindDouble:
		_, ok = v.(float64)
	case KindString, KindName, KindText, KindClassRef:
		_, ok = v.(string)
	case KindArray, KindSet:
		_, ok = v.([]any)
	case KindMap:
		_, ok = v.(map[any]any)
	case KindObjectRef:
		if v == nil {
			return nil
		}
		_, ok = v.(Object)
	case KindStruct:
		switch t.Shape {
		case ShapeVector:
			_, ok = v.(value.Vector3)
		case ShapeRotator:
			_, ok = v.(value.Rotator)
		case ShapeQuat:
			_, ok = v.(value.Quat)
		case ShapeTransform:
			_, ok = v.(value.Transform)
		case ShapeColor:
			_, ok = v.(value.Color)
		default:
			if v == nil {
				return nil
			}
			_, ok = v.(Record)
		}
	}
	if !ok {
		return fmt.Errorf("%w: %T is not a native %s", ErrNativeType, v, t)
	}
	return nil
}
