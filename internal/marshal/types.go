package marshal

import (
	"fmt"
	"strings"

	"github.com/roach88/netsync/internal/value"
)

// FieldKind is the closed set of field kinds the Marshaller understands.
type FieldKind int

const (
	KindInvalid FieldKind = iota
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
	KindEnum
	KindStruct
	KindArray
	KindSet
	KindMap
	KindObjectRef
	KindClassRef
)

var fieldKindNames = [...]string{
	KindInvalid:   "invalid",
	KindBool:      "bool",
	KindByte:      "byte",
	KindInt32:     "int32",
	KindInt64:     "int64",
	KindUInt32:    "uint32",
	KindUInt64:    "uint64",
	KindFloat:     "float",
	KindDouble:    "double",
	KindString:    "string",
	KindName:      "name",
	KindText:      "text",
	KindEnum:      "enum",
	KindStruct:    "struct",
	KindArray:     "array",
	KindSet:       "set",
	KindMap:       "map",
	KindObjectRef: "object",
	KindClassRef:  "class",
}

func (k FieldKind) String() string {
	if k < 0 || int(k) >= len(fieldKindNames) {
		return "invalid"
	}
	return fieldKindNames[k]
}

// Shape distinguishes well-known record layouts from generic records.
type Shape int

const (
	ShapeGeneric Shape = iota
	ShapeVector
	ShapeRotator
	ShapeQuat
	ShapeTransform
	ShapeColor
)

var shapeNames = [...]string{
	ShapeGeneric:   "struct",
	ShapeVector:    "vector",
	ShapeRotator:   "rotator",
	ShapeQuat:      "quat",
	ShapeTransform: "transform",
	ShapeColor:     "color",
}

func (s Shape) String() string {
	if s < 0 || int(s) >= len(shapeNames) {
		return "invalid"
	}
	return shapeNames[s]
}

// EnumDesc lists an enum's symbols. A symbol's native value is its index.
type EnumDesc struct {
	Name    string
	Symbols []string
}

// Symbol returns the name for a native enum value.
func (e *EnumDesc) Symbol(n int64) (string, bool) {
	if n < 0 || n >= int64(len(e.Symbols)) {
		return "", false
	}
	return e.Symbols[n], true
}

// Lookup returns the native value for a symbol name.
func (e *EnumDesc) Lookup(name string) (int64, bool) {
	for i, s := range e.Symbols {
		if s == name {
			return int64(i), true
		}
	}
	return 0, false
}

// FieldDesc names one field of a record or object.
type FieldDesc struct {
	Name string
	Type *Type
	// Notify requests OnPropertyChanged after a successful apply.
	Notify bool
}

// RecordDesc describes a generic record's fields in declaration order.
type RecordDesc struct {
	Name   string
	Fields []FieldDesc
}

// Field returns the named field descriptor.
func (r *RecordDesc) Field(name string) (FieldDesc, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDesc{}, false
}

// Type is the declared type of a field.
type Type struct {
	Kind  FieldKind
	Shape Shape // KindStruct only

	Elem   *Type       // Array, Set, Map (value type)
	Key    *Type       // Map only
	Enum   *EnumDesc   // Enum only
	Record *RecordDesc // generic Struct only
}

// Primitive type singletons. They are shared and must not be mutated.
var (
	BoolType      = &Type{Kind: KindBool}
	ByteType      = &Type{Kind: KindByte}
	Int32Type     = &Type{Kind: KindInt32}
	Int64Type     = &Type{Kind: KindInt64}
	UInt32Type    = &Type{Kind: KindUInt32}
	UInt64Type    = &Type{Kind: KindUInt64}
	FloatType     = &Type{Kind: KindFloat}
	DoubleType    = &Type{Kind: KindDouble}
	StringType    = &Type{Kind: KindString}
	NameType      = &Type{Kind: KindName}
	TextType      = &Type{Kind: KindText}
	ObjectRefType = &Type{Kind: KindObjectRef}
	ClassRefType  = &Type{Kind: KindClassRef}

	VectorType    = &Type{Kind: KindStruct, Shape: ShapeVector}
	RotatorType   = &Type{Kind: KindStruct, Shape: ShapeRotator}
	QuatType      = &Type{Kind: KindStruct, Shape: ShapeQuat}
	TransformType = &Type{Kind: KindStruct, Shape: ShapeTransform}
	ColorType     = &Type{Kind: KindStruct, Shape: ShapeColor}
)

// ArrayOf returns an ordered sequence type.
func ArrayOf(elem *Type) *Type { return &Type{Kind: KindArray, Elem: elem} }

// SetOf returns an unordered unique sequence type.
func SetOf(elem *Type) *Type { return &Type{Kind: KindSet, Elem: elem} }

// MapOf returns a map type. The key must satisfy ValidMapKey.
func MapOf(key, elem *Type) *Type { return &Type{Kind: KindMap, Key: key, Elem: elem} }

// EnumOf returns an enum type over desc.
func EnumOf(desc *EnumDesc) *Type { return &Type{Kind: KindEnum, Enum: desc} }

// RecordOf returns a generic struct type over desc.
func RecordOf(desc *RecordDesc) *Type {
	return &Type{Kind: KindStruct, Shape: ShapeGeneric, Record: desc}
}

// ValidMapKey reports whether t can be rendered as map key text.
func ValidMapKey(t *Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case KindString, KindName, KindByte, KindInt32, KindInt64, KindUInt32, KindUInt64:
		return true
	}
	return false
}

// Supported reports whether the marshaller can synchronize a field of type t.
// Unsupported types serialize to None.
func (t *Type) Supported() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case KindBool, KindByte, KindInt32, KindInt64, KindUInt32, KindUInt64,
		KindFloat, KindDouble, KindString, KindName, KindText,
		KindObjectRef, KindClassRef:
		return true
	case KindEnum:
		return t.Enum != nil
	case KindStruct:
		if t.Shape == ShapeGeneric {
			return t.Record != nil
		}
		return t.Shape >= ShapeVector && t.Shape <= ShapeColor
	case KindArray, KindSet:
		return t.Elem.Supported()
	case KindMap:
		return ValidMapKey(t.Key) && t.Elem.Supported()
	}
	return false
}

// Case returns the Typed Value case that carries a field of type t.
func (t *Type) Case() (value.Kind, bool) {
	if !t.Supported() {
		return value.KindNone, false
	}
	switch t.Kind {
	case KindBool:
		return value.KindBool, true
	case KindByte:
		return value.KindByte, true
	case KindInt32:
		return value.KindInt32, true
	case KindInt64:
		return value.KindInt64, true
	case KindUInt32:
		return value.KindUInt32, true
	case KindUInt64:
		return value.KindUInt64, true
	case KindFloat:
		return value.KindFloat, true
	case KindDouble:
		return value.KindDouble, true
	case KindString:
		return value.KindString, true
	case KindName, KindEnum, KindClassRef:
		return value.KindName, true
	case KindText:
		return value.KindText, true
	case KindObjectRef:
		return value.KindObjectReference, true
	case KindArray:
		return value.KindArray, true
	case KindSet:
		return value.KindSet, true
	case KindMap:
		return value.KindMap, true
	case KindStruct:
		switch t.Shape {
		case ShapeVector:
			return value.KindVector3, true
		case ShapeRotator:
			return value.KindRotator, true
		case ShapeQuat:
			return value.KindQuaternion, true
		case ShapeTransform:
			return value.KindTransform, true
		case ShapeColor:
			return value.KindColor, true
		default:
			return value.KindCustom, true
		}
	}
	return value.KindNone, false
}

// Zero returns the native zero value for t. Quaternions and transforms
// start at identity rather than all-zero.
func (t *Type) Zero() any {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case KindBool:
		return false
	case KindByte:
		return uint8(0)
	case KindInt32:
		return int32(0)
	case KindInt64, KindEnum:
		return int64(0)
	case KindUInt32:
		return uint32(0)
	case KindUInt64:
		return uint64(0)
	case KindFloat:
		return float32(0)
	case KindDouble:
		return float64(0)
	case KindString, KindName, KindText, KindClassRef:
		return ""
	case KindArray, KindSet:
		return []any{}
	case KindMap:
		return map[any]any{}
	case KindStruct:
		switch t.Shape {
		case ShapeVector:
			return value.Vector3{}
		case ShapeRotator:
			return value.Rotator{}
		case ShapeQuat:
			return value.IdentityQuat
		case ShapeTransform:
			return value.IdentityTransform()
		case ShapeColor:
			return value.Color{}
		default:
			if t.Record == nil {
				return nil
			}
			return NewDynamicRecord(t.Record)
		}
	}
	return nil
}

// String renders t in the same notation the class schemas use,
// e.g. "map<name,array<int32>>".
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindStruct:
		if t.Shape == ShapeGeneric && t.Record != nil && t.Record.Name != "" {
			return "struct " + t.Record.Name
		}
		return t.Shape.String()
	case KindEnum:
		if t.Enum != nil && t.Enum.Name != "" {
			return "enum " + t.Enum.Name
		}
		return "enum"
	case KindArray, KindSet:
		return fmt.Sprintf("%s<%s>", t.Kind, t.Elem)
	case KindMap:
		return fmt.Sprintf("map<%s,%s>", t.Key, t.Elem)
	}
	return t.Kind.String()
}

// ParseKind maps a schema kind name to a FieldKind and Shape.
// Well-known struct shapes have their own names ("vector", "transform", ...).
func ParseKind(name string) (FieldKind, Shape, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range shapeNames {
		if n == name {
			return KindStruct, Shape(i), true
		}
	}
	for i, n := range fieldKindNames {
		if i != int(KindInvalid) && n == name {
			return FieldKind(i), ShapeGeneric, true
		}
	}
	return KindInvalid, ShapeGeneric, false
}
