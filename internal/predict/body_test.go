package predict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/netsync/internal/marshal"
	"github.com/roach88/netsync/internal/value"
)

var droneClass = &marshal.ClassDesc{
	Name: "Drone",
	Fields: []marshal.FieldDesc{
		{Name: "Transform", Type: marshal.TransformType, Notify: true},
		{Name: "Velocity", Type: marshal.VectorType},
		{Name: "Label", Type: marshal.StringType},
	},
}

func TestFieldBody(t *testing.T) {
	obj := marshal.NewDynamicObject(droneClass)
	var changed []string
	obj.OnChange(func(name string) { changed = append(changed, name) })

	body, err := NewFieldBody(marshal.New(), obj, "Transform", "Velocity")
	require.NoError(t, err)
	assert.Equal(t, value.IdentityTransform(), body.Transform())

	tr := at(1, 2, 3)
	body.SetTransform(tr)
	body.SetVelocity(value.Vector3{X: 4})

	assert.Equal(t, tr, obj.Get("Transform"))
	assert.Equal(t, value.Vector3{X: 4}, body.Velocity())
	assert.Equal(t, []string{"Transform"}, changed)
}

// stringBacked declares movement fields but stores them in strings, so
// every write fails the native type check.
type stringBacked struct{ transform, velocity string }

func (o *stringBacked) ClassName() string               { return "Broken" }
func (o *stringBacked) Properties() []marshal.FieldDesc { return nil }
func (o *stringBacked) Property(name string) (marshal.Accessor, bool) {
	switch name {
	case "Transform":
		return marshal.Bind(marshal.TransformType, &o.transform), true
	case "Velocity":
		return marshal.Bind(marshal.VectorType, &o.velocity), true
	}
	return nil, false
}

func TestFieldBodyKeepsWriteFailure(t *testing.T) {
	obj := &stringBacked{}
	body, err := NewFieldBody(marshal.New(), obj, "Transform", "Velocity")
	require.NoError(t, err)
	assert.NoError(t, body.Err())

	body.SetTransform(at(1, 0, 0))
	assert.ErrorIs(t, body.Err(), marshal.ErrNativeType)
	assert.Empty(t, obj.transform)

	body.SetVelocity(value.Vector3{X: 1})
	assert.ErrorIs(t, body.Err(), marshal.ErrNativeType)
}

func TestFieldBodyRejectsWrongFields(t *testing.T) {
	obj := marshal.NewDynamicObject(droneClass)
	m := marshal.New()

	_, err := NewFieldBody(m, obj, "Label", "Velocity")
	assert.ErrorIs(t, err, marshal.ErrTypeMismatch)

	_, err = NewFieldBody(m, obj, "Transform", "Speed")
	assert.ErrorIs(t, err, marshal.ErrUnknownProperty)
}

func TestPredictorOverFieldBody(t *testing.T) {
	obj := marshal.NewDynamicObject(droneClass)
	m := marshal.New()
	body, err := NewFieldBody(m, obj, "Transform", "Velocity")
	require.NoError(t, err)

	p, err := New(body, DefaultConfig())
	require.NoError(t, err)
	p.TakeSnapshot()

	p.ProcessServerUpdate(at(0, 0, 0), value.Vector3{}, 7)
	assert.Equal(t, value.IdentityTransform(), obj.Get("Transform"))

	ApplyAuthoritative(body, at(9, 9, 9), value.Vector3{Z: 1})
	assert.Equal(t, at(9, 9, 9), obj.Get("Transform"))
	assert.Equal(t, value.Vector3{Z: 1}, obj.Get("Velocity"))
}
