package value

// Kind names the active case of a Value.
type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindByte
	KindInt32
	KindInt64
	KindUInt32
	KindUInt64
	KindFloat
	KindDouble
	KindString
	KindName
	KindText
	KindVector3
	KindRotator
	KindQuaternion
	KindTransform
	KindColor
	KindObjectReference
	KindArray
	KindMap
	KindSet
	KindCustom
)

var kindNames = [...]string{
	KindNone:            "None",
	KindBool:            "Bool",
	KindByte:            "Byte",
	KindInt32:           "Int32",
	KindInt64:           "Int64",
	KindUInt32:          "UInt32",
	KindUInt64:          "UInt64",
	KindFloat:           "Float",
	KindDouble:          "Double",
	KindString:          "String",
	KindName:            "Name",
	KindText:            "Text",
	KindVector3:         "Vector3",
	KindRotator:         "Rotator",
	KindQuaternion:      "Quaternion",
	KindTransform:       "Transform",
	KindColor:           "Color",
	KindObjectReference: "ObjectReference",
	KindArray:           "Array",
	KindMap:             "Map",
	KindSet:             "Set",
	KindCustom:          "Custom",
}

// String returns the case name used in the wire envelope.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Unknown"
	}
	return kindNames[k]
}

// ParseKind maps an envelope case name back to its Kind.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return KindNone, false
}

// Value is a sealed interface over the Typed Value cases.
// Only the types declared in this file implement it.
type Value interface {
	Kind() Kind
	typedValue()
}

// None marks a value that cannot be synchronized.
type None struct{}

// Bool is a boolean field value.
type Bool bool

// Byte is an unsigned 8-bit field value.
type Byte uint8

// Int32 is a signed 32-bit field value.
type Int32 int32

// Int64 is a signed 64-bit field value.
type Int64 int64

// UInt32 is an unsigned 32-bit field value.
type UInt32 uint32

// UInt64 is an unsigned 64-bit field value.
type UInt64 uint64

// Float is a single-precision field value.
type Float float32

// Double is a double-precision field value.
type Double float64

// String is a free-form string field value.
type String string

// Name is an identifier-like string (enum symbols, class names).
type Name string

// Text is a user-facing, localizable string.
type Text string

// Vector3 is a 3-component vector.
type Vector3 struct {
	X float64 `json:"X"`
	Y float64 `json:"Y"`
	Z float64 `json:"Z"`
}

// Rotator is a pitch/yaw/roll rotation in degrees.
type Rotator struct {
	Pitch float64 `json:"Pitch"`
	Yaw   float64 `json:"Yaw"`
	Roll  float64 `json:"Roll"`
}

// Quat is a rotation quaternion.
type Quat struct {
	X float64 `json:"X"`
	Y float64 `json:"Y"`
	Z float64 `json:"Z"`
	W float64 `json:"W"`
}

// Transform is location + rotation + scale.
type Transform struct {
	Location Vector3 `json:"Location"`
	Rotation Quat    `json:"Rotation"`
	Scale    Vector3 `json:"Scale"`
}

// Color is a linear RGBA color.
type Color struct {
	R float32 `json:"R"`
	G float32 `json:"G"`
	B float32 `json:"B"`
	A float32 `json:"A"`
}

// ObjectRef references a registered object by its network id. Zero is null.
type ObjectRef uint64

// Array holds a text-encoded JSON array of element payloads.
type Array string

// Map holds a text-encoded JSON object of key text to value payload.
type Map string

// Set holds a text-encoded JSON array of unique element payloads.
type Set string

// Custom holds a text-encoded JSON object of record field payloads.
type Custom string

func (None) Kind() Kind      { return KindNone }
func (Bool) Kind() Kind      { return KindBool }
func (Byte) Kind() Kind      { return KindByte }
func (Int32) Kind() Kind     { return KindInt32 }
func (Int64) Kind() Kind     { return KindInt64 }
func (UInt32) Kind() Kind    { return KindUInt32 }
func (UInt64) Kind() Kind    { return KindUInt64 }
func (Float) Kind() Kind     { return KindFloat }
func (Double) Kind() Kind    { return KindDouble }
func (String) Kind() Kind    { return KindString }
func (Name) Kind() Kind      { return KindName }
func (Text) Kind() Kind      { return KindText }
func (Vector3) Kind() Kind   { return KindVector3 }
func (Rotator) Kind() Kind   { return KindRotator }
func (Quat) Kind() Kind      { return KindQuaternion }
func (Transform) Kind() Kind { return KindTransform }
func (Color) Kind() Kind     { return KindColor }
func (ObjectRef) Kind() Kind { return KindObjectReference }
func (Array) Kind() Kind     { return KindArray }
func (Map) Kind() Kind       { return KindMap }
func (Set) Kind() Kind       { return KindSet }
func (Custom) Kind() Kind    { return KindCustom }

func (None) typedValue()      {}
func (Bool) typedValue()      {}
func (Byte) typedValue()      {}
func (Int32) typedValue()     {}
func (Int64) typedValue()     {}
func (UInt32) typedValue()    {}
func (UInt64) typedValue()    {}
func (Float) typedValue()     {}
func (Double) typedValue()    {}
func (String) typedValue()    {}
func (Name) typedValue()      {}
func (Text) typedValue()      {}
func (Vector3) typedValue()   {}
func (Rotator) typedValue()   {}
func (Quat) typedValue()      {}
func (Transform) typedValue() {}
func (Color) typedValue()     {}
func (ObjectRef) typedValue() {}
func (Array) typedValue()     {}
func (Map) typedValue()       {}
func (Set) typedValue()       {}
func (Custom) typedValue()    {}

// Equal reports whether a and b hold the same case and payload.
// A nil Value equals only another nil Value.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a == b
}

// IsNone reports whether v is nil or the None case.
func IsNone(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(None)
	return ok
}
