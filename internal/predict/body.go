package predict

import (
	"fmt"
	"log/slog"

	"github.com/roach88/netsync/internal/marshal"
	"github.com/roach88/netsync/internal/value"
)

// Body is the movement state of a predicted object.
type Body interface {
	Transform() value.Transform
	SetTransform(t value.Transform)
	Velocity() value.Vector3
	SetVelocity(v value.Vector3)
}

// ApplyAuthoritative writes server state straight onto body. Objects the
// local client does not control take this path instead of reconciliation.
func ApplyAuthoritative(body Body, t value.Transform, v value.Vector3) {
	body.SetTransform(t)
	body.SetVelocity(v)
}

// FieldBody exposes an object's transform and velocity properties as a
// Body. Reads and writes go through the marshaller, so notify hooks fire.
type FieldBody struct {
	m              *marshal.Marshaller
	obj            marshal.Object
	transformField string
	velocityField  string

	err error
}

// NewFieldBody checks that obj declares transformField as a transform and
// velocityField as a vector.
func NewFieldBody(m *marshal.Marshaller, obj marshal.Object, transformField, velocityField string) (*FieldBody, error) {
	if err := checkField(obj, transformField, marshal.ShapeTransform); err != nil {
		return nil, err
	}
	if err := checkField(obj, velocityField, marshal.ShapeVector); err != nil {
		return nil, err
	}
	return &FieldBody{m: m, obj: obj, transformField: transformField, velocityField: velocityField}, nil
}

func checkField(obj marshal.Object, name string, shape marshal.Shape) error {
	acc, ok := obj.Property(name)
	if !ok {
		return fmt.Errorf("%w: %s.%s", marshal.ErrUnknownProperty, obj.ClassName(), name)
	}
	t := acc.Type()
	if t.Kind != marshal.KindStruct || t.Shape != shape {
		return fmt.Errorf("%w: %s.%s is %s, want %s", marshal.ErrTypeMismatch, obj.ClassName(), name, t, shape)
	}
	return nil
}

// Object returns the wrapped object.
func (b *FieldBody) Object() marshal.Object { return b.obj }

func (b *FieldBody) Transform() value.Transform {
	v, err := b.m.SerializeProperty(b.obj, b.transformField)
	if t, ok := v.(value.Transform); ok && err == nil {
		return t
	}
	return value.IdentityTransform()
}

func (b *FieldBody) SetTransform(t value.Transform) {
	b.write(b.transformField, t)
}

func (b *FieldBody) Velocity() value.Vector3 {
	v, err := b.m.SerializeProperty(b.obj, b.velocityField)
	if vec, ok := v.(value.Vector3); ok && err == nil {
		return vec
	}
	return value.Vector3{}
}

func (b *FieldBody) SetVelocity(v value.Vector3) {
	b.write(b.velocityField, v)
}

// Err returns the most recent failed write, if any.
func (b *FieldBody) Err() error { return b.err }

func (b *FieldBody) write(field string, v value.Value) {
	if err := b.m.ApplyProperty(b.obj, field, v); err != nil {
		b.err = err
		slog.Warn("movement write failed",
			"class", b.obj.ClassName(),
			"property", field,
			"error", err,
		)
	}
}
