// Package marshal converts object fields to and from Typed Values.
//
// A field is reached through an Accessor, which pairs a declared Type with
// get/set access to a native Go value. The Marshaller dispatches on the
// declared FieldKind, one arm per kind, and recurses into records, arrays,
// sets and maps using the same dispatch.
//
// Native representations:
//
//	Bool                 bool
//	Byte                 uint8
//	Int32 / Int64        int32 / int64
//	UInt32 / UInt64      uint32 / uint64
//	Float / Double       float32 / float64
//	String / Name / Text string
//	Enum                 int64 (index into the enum's symbols)
//	Struct (well-known)  value.Vector3, Rotator, Quat, Transform, Color
//	Struct (generic)     Record
//	Array / Set          []any
//	Map                  map[any]any
//	ObjectRef            Object, or nil
//	ClassRef             string (class name, "" is null)
//
// Deserialization is all-or-nothing per field: the incoming value is fully
// decoded into a native value before the accessor is touched, so a failed
// field keeps its prior value.
package marshal
