package marshal

// ClassDesc describes a replicated class: its name, whether instances
// replicate, and its property fields in declaration order.
type ClassDesc struct {
	Name      string
	Replicate bool
	Fields    []FieldDesc
}

// Field returns the named property descriptor.
func (c *ClassDesc) Field(name string) (FieldDesc, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDesc{}, false
}

// DynamicRecord is a Record whose fields are defined by a RecordDesc at
// runtime. The marshaller produces one when decoding a generic struct.
type DynamicRecord struct {
	desc  *RecordDesc
	slots map[string]any
}

// NewDynamicRecord returns a record with every field at its zero value.
func NewDynamicRecord(desc *RecordDesc) *DynamicRecord {
	r := &DynamicRecord{desc: desc, slots: make(map[string]any, len(desc.Fields))}
	for _, f := range desc.Fields {
		r.slots[f.Name] = f.Type.Zero()
	}
	return r
}

// Desc returns the record's descriptor.
func (r *DynamicRecord) Desc() *RecordDesc { return r.desc }

func (r *DynamicRecord) Fields() []FieldDesc { return r.desc.Fields }

func (r *DynamicRecord) Field(name string) (Accessor, bool) {
	f, ok := r.desc.Field(name)
	if !ok {
		return nil, false
	}
	return &slotAccessor{typ: f.Type, slots: r.slots, name: name}, true
}

// Get returns a field's native value, or nil for an unknown field.
func (r *DynamicRecord) Get(name string) any { return r.slots[name] }

// DynamicObject is an Object built from a ClassDesc. It stands in for
// server-created classes that have no Go type of their own.
type DynamicObject struct {
	class    *ClassDesc
	slots    map[string]any
	onChange func(name string)
}

// NewDynamicObject returns an instance with every property at its zero value.
func NewDynamicObject(class *ClassDesc) *DynamicObject {
	o := &DynamicObject{class: class, slots: make(map[string]any, len(class.Fields))}
	for _, f := range class.Fields {
		o.slots[f.Name] = f.Type.Zero()
	}
	return o
}

// Class returns the instance's class descriptor.
func (o *DynamicObject) Class() *ClassDesc { return o.class }

func (o *DynamicObject) ClassName() string { return o.class.Name }

func (o *DynamicObject) Properties() []FieldDesc { return o.class.Fields }

func (o *DynamicObject) Property(name string) (Accessor, bool) {
	f, ok := o.class.Field(name)
	if !ok {
		return nil, false
	}
	return &slotAccessor{typ: f.Type, slots: o.slots, name: name}, true
}

// Get returns a property's native value, or nil for an unknown property.
func (o *DynamicObject) Get(name string) any { return o.slots[name] }

// OnChange installs the hook run by OnPropertyChanged.
func (o *DynamicObject) OnChange(fn func(name string)) { o.onChange = fn }

func (o *DynamicObject) OnPropertyChanged(name string) {
	if o.onChange != nil {
		o.onChange(name)
	}
}
