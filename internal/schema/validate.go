package schema

import (
	"fmt"
	"strings"

	"github.com/roach88/netsync/internal/authority"
	"github.com/roach88/netsync/internal/marshal"
)

// Validation error codes (E100-E199)
const (
	ErrClassNameEmpty     = "E101" // class name is required
	ErrClassNoFields      = "E102" // at least one field required
	ErrDuplicateName      = "E103" // duplicate field or enum symbol
	ErrUnsupportedType    = "E104" // marshaller cannot carry the type
	ErrInvalidMapKey      = "E105" // map key is not textual or integral
	ErrEnumEmpty          = "E106" // enum without symbols
	ErrOwnerFieldType     = "E107" // owner field is not an integer
	ErrReplicatedNoOwner  = "E108" // replicated class without owner field
	ErrInvalidFieldName   = "E109" // field name empty or contains a dot
	ErrDuplicateClassName = "E110" // two classes share a name
)

// ValidationError is one problem found in a class descriptor.
type ValidationError struct {
	Class   string `json:"class"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.Class, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Class, e.Message)
}

// Validate checks classes against the rules the session relies on and
// returns every problem found.
func Validate(classes []*marshal.ClassDesc, ownerField string) []ValidationError {
	if ownerField == "" {
		ownerField = authority.DefaultOwnerField
	}
	var errs []ValidationError
	seen := make(map[string]bool)
	for _, c := range classes {
		if seen[c.Name] {
			errs = append(errs, ValidationError{
				Class:   c.Name,
				Message: "duplicate class name",
				Code:    ErrDuplicateClassName,
			})
		}
		seen[c.Name] = true
		errs = append(errs, ValidateClass(c, ownerField)...)
	}
	return errs
}

// ValidateClass checks one class descriptor.
func ValidateClass(c *marshal.ClassDesc, ownerField string) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Class:   c.Name,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		})
	}

	if strings.TrimSpace(c.Name) == "" {
		add("", ErrClassNameEmpty, "class name is required")
	}
	if len(c.Fields) == 0 {
		add("", ErrClassNoFields, "at least one field is required")
	}

	validateFields(c.Fields, "", add)

	owner, hasOwner := c.Field(ownerField)
	switch {
	case hasOwner && !isInteger(owner.Type):
		add(ownerField, ErrOwnerFieldType, "owner field must be an integer kind, got %s", owner.Type)
	case !hasOwner && c.Replicate:
		add("", ErrReplicatedNoOwner, "replicated class has no %s field and is server owned", ownerField)
	}
	return errs
}

func validateFields(fields []marshal.FieldDesc, prefix string, add func(field, code, format string, args ...any)) {
	names := make(map[string]bool)
	for _, f := range fields {
		path := prefix + f.Name
		if f.Name == "" || strings.Contains(f.Name, ".") {
			add(path, ErrInvalidFieldName, "field name must be non-empty and contain no dots")
		}
		if names[f.Name] {
			add(path, ErrDuplicateName, "duplicate field name %q", f.Name)
		}
		names[f.Name] = true
		validateType(f.Type, path, add)
	}
}

func validateType(t *marshal.Type, path string, add func(field, code, format string, args ...any)) {
	if t == nil {
		add(path, ErrUnsupportedType, "missing type")
		return
	}
	switch t.Kind {
	case marshal.KindEnum:
		if t.Enum == nil || len(t.Enum.Symbols) == 0 {
			add(path, ErrEnumEmpty, "enum has no values")
			return
		}
		symbols := make(map[string]bool)
		for _, s := range t.Enum.Symbols {
			if symbols[s] {
				add(path, ErrDuplicateName, "duplicate enum value %q", s)
			}
			symbols[s] = true
		}
	case marshal.KindMap:
		if !marshal.ValidMapKey(t.Key) {
			add(path, ErrInvalidMapKey, "map key %s must be a string, name or integer", t.Key)
		}
		validateType(t.Elem, path+"<value>", add)
		return
	case marshal.KindArray, marshal.KindSet:
		validateType(t.Elem, path+"<elem>", add)
		return
	case marshal.KindStruct:
		if t.Shape == marshal.ShapeGeneric && t.Record != nil {
			validateFields(t.Record.Fields, path+".", add)
			return
		}
	}
	if !t.Supported() {
		add(path, ErrUnsupportedType, "type %s cannot be synchronized", t)
	}
}

func isInteger(t *marshal.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case marshal.KindInt32, marshal.KindInt64, marshal.KindUInt32, marshal.KindUInt64:
		return true
	}
	return false
}
