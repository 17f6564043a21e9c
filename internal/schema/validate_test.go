package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/netsync/internal/marshal"
)

func codes(errs []ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestValidateClass(t *testing.T) {
	tests := []struct {
		name  string
		class *marshal.ClassDesc
		want  []string
	}{
		{
			name: "valid server owned",
			class: &marshal.ClassDesc{Name: "Door", Fields: []marshal.FieldDesc{
				{Name: "Open", Type: marshal.BoolType},
			}},
			want: []string{},
		},
		{
			name:  "empty",
			class: &marshal.ClassDesc{},
			want:  []string{ErrClassNameEmpty, ErrClassNoFields},
		},
		{
			name: "duplicate field",
			class: &marshal.ClassDesc{Name: "A", Fields: []marshal.FieldDesc{
				{Name: "X", Type: marshal.BoolType},
				{Name: "X", Type: marshal.Int32Type},
			}},
			want: []string{ErrDuplicateName},
		},
		{
			name: "float map key",
			class: &marshal.ClassDesc{Name: "A", Fields: []marshal.FieldDesc{
				{Name: "M", Type: marshal.MapOf(marshal.FloatType, marshal.BoolType)},
			}},
			want: []string{ErrInvalidMapKey},
		},
		{
			name: "empty enum and duplicate symbol",
			class: &marshal.ClassDesc{Name: "A", Fields: []marshal.FieldDesc{
				{Name: "E", Type: marshal.EnumOf(&marshal.EnumDesc{})},
				{Name: "F", Type: marshal.EnumOf(&marshal.EnumDesc{Symbols: []string{"a", "a"}})},
			}},
			want: []string{ErrEnumEmpty, ErrDuplicateName},
		},
		{
			name: "struct without record",
			class: &marshal.ClassDesc{Name: "A", Fields: []marshal.FieldDesc{
				{Name: "S", Type: &marshal.Type{Kind: marshal.KindStruct}},
			}},
			want: []string{ErrUnsupportedType},
		},
		{
			name: "nested record field",
			class: &marshal.ClassDesc{Name: "A", Fields: []marshal.FieldDesc{
				{Name: "R", Type: marshal.RecordOf(&marshal.RecordDesc{Fields: []marshal.FieldDesc{
					{Name: "a.b", Type: marshal.BoolType},
				}})},
			}},
			want: []string{ErrInvalidFieldName},
		},
		{
			name: "float owner",
			class: &marshal.ClassDesc{Name: "A", Replicate: true, Fields: []marshal.FieldDesc{
				{Name: "OwnerClientId", Type: marshal.FloatType},
			}},
			want: []string{ErrOwnerFieldType},
		},
		{
			name: "replicated without owner",
			class: &marshal.ClassDesc{Name: "A", Replicate: true, Fields: []marshal.FieldDesc{
				{Name: "X", Type: marshal.BoolType},
			}},
			want: []string{ErrReplicatedNoOwner},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codes(ValidateClass(tt.class, "OwnerClientId")))
		})
	}
}

func TestValidateDuplicateClasses(t *testing.T) {
	a := &marshal.ClassDesc{Name: "A", Fields: []marshal.FieldDesc{{Name: "X", Type: marshal.BoolType}}}
	errs := Validate([]*marshal.ClassDesc{a, a}, "")
	assert.Equal(t, []string{ErrDuplicateClassName}, codes(errs))
	assert.Contains(t, errs[0].Error(), "[E110] A")
}
