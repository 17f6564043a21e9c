// Package schema compiles CUE class definitions into marshal class
// descriptors.
//
// A schema file declares classes under the top-level "class" struct:
//
//	class: Pawn: {
//		replicate: true
//		fields: {
//			OwnerClientId: "int64"
//			Health: {kind: "float", notify: true}
//			Stance: {kind: "enum", values: ["Idle", "Crouch"]}
//			Tags: {kind: "set", elem: "name"}
//			Stats: {kind: "map", key: "name", elem: "int32"}
//			Loadout: {kind: "struct", name: "Loadout", fields: {Slot: "int32"}}
//		}
//	}
//
// A field type is either a kind name or a struct with a "kind" and the
// parameters that kind takes. Fields keep their declaration order.
package schema

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/netsync/internal/marshal"
)

// CompileError is a compile failure with its CUE source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileString compiles every class in src. The filename is used only
// for error positions.
func CompileString(filename, src string) ([]*marshal.ClassDesc, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return compileClasses(v)
}

// compileClasses compiles the members of v's "class" struct.
func compileClasses(v cue.Value) ([]*marshal.ClassDesc, error) {
	classesVal := v.LookupPath(cue.ParsePath("class"))
	if !classesVal.Exists() {
		return nil, &CompileError{Field: "class", Message: "no classes declared", Pos: v.Pos()}
	}
	iter, err := classesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var classes []*marshal.ClassDesc
	for iter.Next() {
		desc, err := CompileClass(iter.Value())
		if err != nil {
			return nil, err
		}
		classes = append(classes, desc)
	}
	return classes, nil
}

// CompileClass parses one class struct. The class name is the last
// label of v's path.
func CompileClass(v cue.Value) (*marshal.ClassDesc, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	desc := &marshal.ClassDesc{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		desc.Name = labels[len(labels)-1].String()
	}

	if rv := v.LookupPath(cue.ParsePath("replicate")); rv.Exists() {
		b, err := rv.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		desc.Replicate = b
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{Field: desc.Name + ".fields", Message: "fields is required", Pos: v.Pos()}
	}
	fields, err := parseFields(fieldsVal, desc.Name)
	if err != nil {
		return nil, err
	}
	desc.Fields = fields
	return desc, nil
}

func parseFields(v cue.Value, owner string) ([]marshal.FieldDesc, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var fields []marshal.FieldDesc
	for iter.Next() {
		name := iter.Label()
		fv := iter.Value()
		path := owner + "." + name

		t, err := parseType(fv, path)
		if err != nil {
			return nil, err
		}
		fd := marshal.FieldDesc{Name: name, Type: t}

		if nv := fv.LookupPath(cue.ParsePath("notify")); nv.Exists() {
			b, err := nv.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			fd.Notify = b
		}
		fields = append(fields, fd)
	}
	return fields, nil
}

// parseType reads a type given as a kind name or as {kind: ..., ...}.
func parseType(v cue.Value, path string) (*marshal.Type, error) {
	if s, err := v.String(); err == nil {
		return kindType(s, v, path)
	}

	kv := v.LookupPath(cue.ParsePath("kind"))
	if !kv.Exists() {
		return nil, &CompileError{Field: path, Message: "type must be a kind name or a struct with kind", Pos: v.Pos()}
	}
	kind, err := kv.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	k, shape, ok := marshal.ParseKind(kind)
	if !ok {
		return nil, &CompileError{Field: path, Message: fmt.Sprintf("unknown kind %q", kind), Pos: kv.Pos()}
	}

	switch {
	case k == marshal.KindArray || k == marshal.KindSet:
		elem, err := subType(v, "elem", path)
		if err != nil {
			return nil, err
		}
		if k == marshal.KindSet {
			return marshal.SetOf(elem), nil
		}
		return marshal.ArrayOf(elem), nil

	case k == marshal.KindMap:
		key, err := subType(v, "key", path)
		if err != nil {
			return nil, err
		}
		elem, err := subType(v, "elem", path)
		if err != nil {
			return nil, err
		}
		return marshal.MapOf(key, elem), nil

	case k == marshal.KindEnum:
		return parseEnum(v, path)

	case k == marshal.KindStruct && shape == marshal.ShapeGeneric:
		rec := &marshal.RecordDesc{Name: optionalString(v, "name")}
		fieldsVal := v.LookupPath(cue.ParsePath("fields"))
		if !fieldsVal.Exists() {
			return nil, &CompileError{Field: path, Message: "struct requires fields", Pos: v.Pos()}
		}
		fields, err := parseFields(fieldsVal, path)
		if err != nil {
			return nil, err
		}
		rec.Fields = fields
		return marshal.RecordOf(rec), nil
	}
	return kindType(kind, kv, path)
}

func subType(v cue.Value, name, path string) (*marshal.Type, error) {
	sv := v.LookupPath(cue.ParsePath(name))
	if !sv.Exists() {
		return nil, &CompileError{Field: path, Message: name + " is required", Pos: v.Pos()}
	}
	return parseType(sv, path+"."+name)
}

// kindType resolves a kind that takes no parameters.
func kindType(kind string, v cue.Value, path string) (*marshal.Type, error) {
	k, shape, ok := marshal.ParseKind(kind)
	if !ok {
		return nil, &CompileError{Field: path, Message: fmt.Sprintf("unknown kind %q", kind), Pos: v.Pos()}
	}
	if k == marshal.KindStruct && shape != marshal.ShapeGeneric {
		return &marshal.Type{Kind: k, Shape: shape}, nil
	}
	if t, ok := primitives[k]; ok {
		return t, nil
	}
	return nil, &CompileError{Field: path, Message: fmt.Sprintf("kind %q needs parameters", kind), Pos: v.Pos()}
}

var primitives = map[marshal.FieldKind]*marshal.Type{
	marshal.KindBool:      marshal.BoolType,
	marshal.KindByte:      marshal.ByteType,
	marshal.KindInt32:     marshal.Int32Type,
	marshal.KindInt64:     marshal.Int64Type,
	marshal.KindUInt32:    marshal.UInt32Type,
	marshal.KindUInt64:    marshal.UInt64Type,
	marshal.KindFloat:     marshal.FloatType,
	marshal.KindDouble:    marshal.DoubleType,
	marshal.KindString:    marshal.StringType,
	marshal.KindName:      marshal.NameType,
	marshal.KindText:      marshal.TextType,
	marshal.KindObjectRef: marshal.ObjectRefType,
	marshal.KindClassRef:  marshal.ClassRefType,
}

func parseEnum(v cue.Value, path string) (*marshal.Type, error) {
	vals := v.LookupPath(cue.ParsePath("values"))
	if !vals.Exists() {
		return nil, &CompileError{Field: path, Message: "enum requires values", Pos: v.Pos()}
	}
	iter, err := vals.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	desc := &marshal.EnumDesc{Name: optionalString(v, "name")}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		desc.Symbols = append(desc.Symbols, s)
	}
	return marshal.EnumOf(desc), nil
}

func optionalString(v cue.Value, name string) string {
	sv := v.LookupPath(cue.ParsePath(name))
	if !sv.Exists() {
		return ""
	}
	s, _ := sv.String()
	return s
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
