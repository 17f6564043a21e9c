package session

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/netsync/internal/marshal"
)

// ErrUnknownClass is returned when no constructor or schema exists for a class.
var ErrUnknownClass = errors.New("unknown class")

// Constructor creates a zero instance of a host class.
type Constructor func() marshal.Object

type classEntry struct {
	desc      *marshal.ClassDesc
	ctor      Constructor
	replicate bool
}

// Factory creates object instances by class name. Classes come either
// from Go constructors or from schema descriptors, in which case the
// instance is a marshal.DynamicObject.
type Factory struct {
	classes map[string]*classEntry
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{classes: make(map[string]*classEntry)}
}

// RegisterClass adds a schema-described class.
func (f *Factory) RegisterClass(desc *marshal.ClassDesc) error {
	if desc == nil || desc.Name == "" {
		return errors.New("register class: missing name")
	}
	if _, ok := f.classes[desc.Name]; ok {
		return fmt.Errorf("register class: %s already registered", desc.Name)
	}
	f.classes[desc.Name] = &classEntry{desc: desc, replicate: desc.Replicate}
	return nil
}

// RegisterConstructor adds a class backed by a Go type.
func (f *Factory) RegisterConstructor(name string, ctor Constructor, replicate bool) error {
	if name == "" || ctor == nil {
		return errors.New("register constructor: missing name or constructor")
	}
	if _, ok := f.classes[name]; ok {
		return fmt.Errorf("register constructor: %s already registered", name)
	}
	f.classes[name] = &classEntry{ctor: ctor, replicate: replicate}
	return nil
}

// New creates a zero instance of class.
func (f *Factory) New(class string) (marshal.Object, error) {
	e, ok := f.classes[class]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, class)
	}
	if e.ctor != nil {
		obj := e.ctor()
		if obj == nil {
			return nil, fmt.Errorf("constructor for %s returned nil", class)
		}
		return obj, nil
	}
	return marshal.NewDynamicObject(e.desc), nil
}

// Has reports whether class is known.
func (f *Factory) Has(class string) bool {
	_, ok := f.classes[class]
	return ok
}

// ResolveClass implements the class half of marshal.Resolver.
func (f *Factory) ResolveClass(class string) bool { return f.Has(class) }

// Replicates reports whether instances of class take part in replication.
func (f *Factory) Replicates(class string) bool {
	e, ok := f.classes[class]
	return ok && e.replicate
}

// Classes returns the registered class names, sorted.
func (f *Factory) Classes() []string {
	names := make([]string, 0, len(f.classes))
	for name := range f.classes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// resolver joins the registry (object references) and the factory
// (class references) into a marshal.Resolver.
type resolver struct {
	objects interface {
		ObjectID(obj marshal.Object) (uint64, bool)
		ResolveObject(id uint64) (marshal.Object, bool)
	}
	classes *Factory
}

func (r resolver) ObjectID(obj marshal.Object) (uint64, bool) { return r.objects.ObjectID(obj) }

func (r resolver) ResolveObject(id uint64) (marshal.Object, bool) { return r.objects.ResolveObject(id) }

func (r resolver) ResolveClass(name string) bool { return r.classes.ResolveClass(name) }
