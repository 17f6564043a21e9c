package marshal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/netsync/internal/value"
)

// propertyDesc returns the descriptor for a named property of obj.
func propertyDesc(obj Object, name string) (FieldDesc, bool) {
	for _, f := range obj.Properties() {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDesc{}, false
}

// SerializeProperty reads one named property.
func (m *Marshaller) SerializeProperty(obj Object, name string) (value.Value, error) {
	acc, ok := obj.Property(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownProperty, obj.ClassName(), name)
	}
	return m.Encode(acc.Type(), acc.Get())
}

// ApplyProperty deserializes v into the named property. When the property
// is declared Notify and obj implements Notifier, OnPropertyChanged runs
// exactly once, synchronously, after the value is committed.
func (m *Marshaller) ApplyProperty(obj Object, name string, v value.Value) error {
	acc, ok := obj.Property(name)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownProperty, obj.ClassName(), name)
	}

	if err := m.Apply(acc, v); err != nil {
		slog.Debug("property not applied",
			"class", obj.ClassName(),
			"property", name,
			"error", err,
		)
		return fmt.Errorf("%s.%s: %w", obj.ClassName(), name, err)
	}

	if desc, ok := propertyDesc(obj, name); ok && desc.Notify {
		if n, ok := obj.(Notifier); ok {
			n.OnPropertyChanged(name)
		}
	}
	return nil
}

// SerializeObject captures every synchronizable property of obj. Fields
// that serialize to None are left out.
func (m *Marshaller) SerializeObject(obj Object) map[string]value.Value {
	out := make(map[string]value.Value)
	for _, f := range obj.Properties() {
		if !f.Type.Supported() {
			continue
		}
		acc, ok := obj.Property(f.Name)
		if !ok {
			continue
		}
		v := m.Serialize(acc)
		if value.IsNone(v) {
			continue
		}
		out[f.Name] = v
	}
	return out
}

// ApplyObject applies a full snapshot property by property. A failing
// property does not stop the others. Both result lists are sorted.
func (m *Marshaller) ApplyObject(obj Object, values map[string]value.Value) (applied, failed []string) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	slices.Sort(names)

	applied = []string{}
	failed = []string{}
	for _, name := range names {
		if err := m.ApplyProperty(obj, name, values[name]); err != nil {
			failed = append(failed, name)
			continue
		}
		applied = append(applied, name)
	}
	return applied, failed
}

// TrackableFields lists the properties of obj the marshaller can
// synchronize, in declaration order.
func (m *Marshaller) TrackableFields(obj Object) []string {
	var names []string
	for _, f := range obj.Properties() {
		if f.Type.Supported() {
			names = append(names, f.Name)
		}
	}
	return names
}

// EncodeSnapshot renders a property snapshot as {"Prop":<envelope>,...}
// with sorted keys. This is the data_json carried by creation events.
func EncodeSnapshot(values map[string]value.Value) ([]byte, error) {
	obj := make(map[string]json.RawMessage, len(values))
	for name, v := range values {
		env, err := value.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		obj[name] = env
	}
	return json.Marshal(obj)
}

// DecodeSnapshot parses the output of EncodeSnapshot. Empty input is an
// empty snapshot.
func DecodeSnapshot(data []byte) (map[string]value.Value, error) {
	out := make(map[string]value.Value)
	if len(data) == 0 {
		return out, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("%w: snapshot: %v", ErrInvalidValue, err)
	}

	var errs []error
	for name, raw := range obj {
		v, err := value.Unmarshal(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		out[name] = v
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
