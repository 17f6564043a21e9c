package value

import (
	"math"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindNames(t *testing.T) {
	for k := KindNone; k <= KindCustom; k++ {
		name := k.String()
		assert.NotEqual(t, "Unknown", name)

		parsed, ok := ParseKind(name)
		require.True(t, ok, name)
		assert.Equal(t, k, parsed)
	}

	assert.Equal(t, "Unknown", Kind(99).String())
	_, ok := ParseKind("Vector")
	assert.False(t, ok)
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value Value
	}{
		{"bool true", Bool(true)},
		{"bool false", Bool(false)},
		{"byte zero", Byte(0)},
		{"byte max", Byte(math.MaxUint8)},
		{"int32 min", Int32(math.MinInt32)},
		{"int32 max", Int32(math.MaxInt32)},
		{"int64 min", Int64(math.MinInt64)},
		{"int64 max", Int64(math.MaxInt64)},
		{"uint32 max", UInt32(math.MaxUint32)},
		{"uint64 max", UInt64(math.MaxUint64)},
		{"float", Float(0.1)},
		{"float max", Float(math.MaxFloat32)},
		{"double", Double(-2.5e-300)},
		{"double max", Double(math.MaxFloat64)},
		{"empty string", String("")},
		{"unicode string", String("héllo \"w\" \n")},
		{"name", Name("Crouch")},
		{"text", Text("Press any key")},
		{"zero vector", Vector3{}},
		{"vector", Vector3{X: 1, Y: 2, Z: 3}},
		{"rotator", Rotator{Pitch: -90, Yaw: 180, Roll: 0.25}},
		{"quat", Quat{X: 0.5, Y: -0.5, Z: 0.5, W: 0.5}},
		{"identity transform", IdentityTransform()},
		{"transform", Transform{
			Location: Vector3{X: 10, Y: -4, Z: 0.5},
			Rotation: Quat{Z: 1},
			Scale:    Vector3{X: 2, Y: 2, Z: 2},
		}},
		{"color", Color{R: 1, G: 0.5, B: 0, A: 1}},
		{"null object ref", ObjectRef(0)},
		{"object ref", ObjectRef(42)},
		{"array", Array(`[1,2,3]`)},
		{"map", Map(`{"a":1}`)},
		{"set", Set(`[]`)},
		{"custom", Custom(`{"Ammo":12}`)},
		{"none", None{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(tt.value)
			require.NoError(t, err)

			got, err := Unmarshal(data)
			require.NoError(t, err)
			assert.True(t, Equal(tt.value, got), "got %#v from %s", got, data)
		})
	}
}

func TestMarshalVectorShape(t *testing.T) {
	data, err := Marshal(Vector3{X: 1, Y: 2, Z: 3})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"Vector3","value":{"X":1,"Y":2,"Z":3}}`, string(data))

	payload, err := EncodePayload(Vector3{X: 1, Y: 2, Z: 3})
	require.NoError(t, err)
	assert.Equal(t, `{"X":1,"Y":2,"Z":3}`, string(payload))

	back, err := DecodePayload(KindVector3, payload)
	require.NoError(t, err)
	assert.Equal(t, Vector3{X: 1, Y: 2, Z: 3}, back)
}

func TestDecodePayloadRejectsTrailingData(t *testing.T) {
	for _, tt := range []struct {
		kind Kind
		raw  string
	}{
		{KindBool, `true false`},
		{KindVector3, `{"X":1,"Y":2,"Z":3} {}`},
		{KindString, `"a" "b"`},
	} {
		_, err := DecodePayload(tt.kind, []byte(tt.raw))
		assert.ErrorIs(t, err, ErrMalformed, tt.raw)
	}
}

func TestMarshalNoneOmitsValue(t *testing.T) {
	data, err := Marshal(None{})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"None"}`, string(data))

	data, err = Marshal(nil)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"None"}`, string(data))

	v, err := Unmarshal([]byte(`{"type":"None","value":null}`))
	require.NoError(t, err)
	assert.True(t, IsNone(v))
}

func TestMarshalRejectsNaN(t *testing.T) {
	_, err := Marshal(Double(math.NaN()))
	assert.Error(t, err)
	_, err = Marshal(Vector3{X: math.Inf(1)})
	assert.Error(t, err)
}

func TestUnmarshalMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", `{`},
		{"unknown case", `{"type":"Vector","value":{}}`},
		{"missing value", `{"type":"Int32"}`},
		{"null value", `{"type":"Bool","value":null}`},
		{"none with value", `{"type":"None","value":1}`},
		{"bool as string", `{"type":"Bool","value":"true"}`},
		{"quoted number", `{"type":"Int64","value":"5"}`},
		{"byte overflow", `{"type":"Byte","value":256}`},
		{"int32 overflow", `{"type":"Int32","value":2147483648}`},
		{"negative uint", `{"type":"UInt32","value":-1}`},
		{"fractional int", `{"type":"Int64","value":1.5}`},
		{"float32 overflow", `{"type":"Float","value":1e39}`},
		{"string as number", `{"type":"String","value":5}`},
		{"vector missing axis", `{"type":"Vector3","value":{"X":1,"Y":2}}`},
		{"vector as array", `{"type":"Vector3","value":[1,2,3]}`},
		{"quat string axis", `{"type":"Quaternion","value":{"X":0,"Y":0,"Z":0,"W":"1"}}`},
		{"transform missing scale", `{"type":"Transform","value":{"Location":{"X":0,"Y":0,"Z":0},"Rotation":{"X":0,"Y":0,"Z":0,"W":1}}}`},
		{"array as list", `{"type":"Array","value":[1,2]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestVectorIgnoresExtraKeys(t *testing.T) {
	v, err := Unmarshal([]byte(`{"type":"Vector3","value":{"X":1,"Y":2,"Z":3,"W":9}}`))
	require.NoError(t, err)
	assert.Equal(t, Vector3{X: 1, Y: 2, Z: 3}, v)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, None{}))
	assert.True(t, Equal(Int32(1), Int32(1)))
	assert.False(t, Equal(Int32(1), Int64(1)), "different cases never compare equal")
	assert.False(t, Equal(String("a"), Name("a")))
	assert.True(t, Equal(IdentityTransform(), IdentityTransform()))
}

func TestEnvelopeGolden(t *testing.T) {
	values := []Value{
		Bool(true),
		Int64(math.MinInt64),
		UInt64(math.MaxUint64),
		Vector3{X: 1, Y: 2, Z: 3},
		IdentityTransform(),
		Color{R: 1, G: 0.5, B: 0, A: 1},
		Array(`[1,2]`),
		None{},
	}

	lines := make([]string, len(values))
	for i, v := range values {
		lines[i] = string(MustMarshal(v))
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "envelopes", []byte(strings.Join(lines, "\n")+"\n"))
}
