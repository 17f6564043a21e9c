// Package registry maps network object ids to local object instances.
//
// A Registry is owned by one session and mutated only on its control
// goroutine. It is not safe for concurrent use.
package registry

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/netsync/internal/marshal"
)

// ID is a network object identifier. Zero is never a valid id.
type ID uint64

// DefaultTempIDBase is where client-issued temporary ids start. Server ids
// are expected to stay below it.
const DefaultTempIDBase ID = 1 << 62

var (
	ErrAlreadyRegistered = errors.New("id already registered")
	ErrDestroyed         = errors.New("id destroyed")
	ErrAlreadyRemapped   = errors.New("temporary id already remapped")
	ErrNotFound          = errors.New("id not registered")
	ErrNotPending        = errors.New("id is not a pending temporary id")
	ErrInvalidID         = errors.New("invalid id")
)

// State is the lifecycle position of a registered id.
type State int

const (
	// StatePending: spawned locally under a temporary id, awaiting the server.
	StatePending State = iota
	// StateConfirmed: a pending object that was remapped to its server id.
	StateConfirmed
	// StateCreated: created directly from a server notification.
	StateCreated
	// StateDestroyed is terminal.
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	case StateCreated:
		return "created"
	case StateDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// Entry is a registered object.
type Entry struct {
	ID        ID
	Class     string
	Object    marshal.Object
	State     State
	Replicate bool
	// TempID is the temporary id a confirmed entry was spawned under.
	TempID ID
}

// EntryOption adjusts an entry at registration.
type EntryOption func(*Entry)

// WithReplicate sets the entry's replicate flag (default true).
func WithReplicate(replicate bool) EntryOption {
	return func(e *Entry) {
		e.Replicate = replicate
	}
}

// Option configures a Registry.
type Option func(*Registry)

// WithTempIDBase sets the first temporary id AllocateTempID returns.
func WithTempIDBase(base ID) Option {
	return func(r *Registry) {
		r.nextTemp = base
	}
}

// Registry is a bidirectional id <-> instance map with lifecycle tracking.
//
// INVARIANTS:
//   - byID and byObject always describe the same set of live entries
//   - a destroyed id never resolves again and cannot be re-registered
//   - a temporary id resolves until it is remapped, then never again
//
// Objects are map keys, so their dynamic types must be comparable
// (pointer types in practice).
type Registry struct {
	byID      map[ID]*Entry
	byObject  map[marshal.Object]ID
	destroyed map[ID]struct{}
	remapped  map[ID]ID
	nextTemp  ID
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		byID:      make(map[ID]*Entry),
		byObject:  make(map[marshal.Object]ID),
		destroyed: make(map[ID]struct{}),
		remapped:  make(map[ID]ID),
		nextTemp:  DefaultTempIDBase,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a server-created object under its server id.
// An existing registration is reported, never overwritten.
func (r *Registry) Register(id ID, obj marshal.Object, opts ...EntryOption) error {
	return r.add(id, obj, StateCreated, opts)
}

// RegisterPending adds a locally spawned object under a temporary id.
func (r *Registry) RegisterPending(tempID ID, obj marshal.Object, opts ...EntryOption) error {
	return r.add(tempID, obj, StatePending, opts)
}

func (r *Registry) add(id ID, obj marshal.Object, state State, opts []EntryOption) error {
	if id == 0 || obj == nil {
		return fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	if err := r.checkFree(id); err != nil {
		return err
	}
	if existing, ok := r.byObject[obj]; ok {
		return fmt.Errorf("%w: instance already registered as %d", ErrAlreadyRegistered, existing)
	}

	e := &Entry{ID: id, Class: obj.ClassName(), Object: obj, State: state, Replicate: true}
	for _, opt := range opts {
		opt(e)
	}
	r.byID[id] = e
	r.byObject[obj] = id
	return nil
}

func (r *Registry) checkFree(id ID) error {
	if _, ok := r.byID[id]; ok {
		return fmt.Errorf("%w: %d", ErrAlreadyRegistered, id)
	}
	if _, ok := r.destroyed[id]; ok {
		return fmt.Errorf("%w: %d", ErrDestroyed, id)
	}
	if server, ok := r.remapped[id]; ok {
		return fmt.Errorf("%w: %d is now %d", ErrAlreadyRemapped, id, server)
	}
	return nil
}

// AllocateTempID returns a fresh temporary id that is not in use.
func (r *Registry) AllocateTempID() ID {
	for {
		id := r.nextTemp
		r.nextTemp++
		if r.checkFree(id) == nil {
			return id
		}
	}
}

// FindByID returns the instance registered under id.
func (r *Registry) FindByID(id ID) (marshal.Object, bool) {
	e, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return e.Object, true
}

// FindID returns the id an instance is registered under.
func (r *Registry) FindID(obj marshal.Object) (ID, bool) {
	if obj == nil {
		return 0, false
	}
	id, ok := r.byObject[obj]
	return id, ok
}

// Entry returns a copy of the live entry for id.
func (r *Registry) Entry(id ID) (Entry, bool) {
	e, ok := r.byID[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Remap moves a pending object from its temporary id to the server id.
// It succeeds at most once per temporary id; a failed call has no effect.
func (r *Registry) Remap(tempID, serverID ID) error {
	if server, ok := r.remapped[tempID]; ok {
		return fmt.Errorf("%w: %d is now %d", ErrAlreadyRemapped, tempID, server)
	}
	e, ok := r.byID[tempID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, tempID)
	}
	if e.State != StatePending {
		return fmt.Errorf("%w: %d is %s", ErrNotPending, tempID, e.State)
	}
	if serverID == 0 {
		return fmt.Errorf("%w: %d", ErrInvalidID, serverID)
	}
	if err := r.checkFree(serverID); err != nil {
		return err
	}

	delete(r.byID, tempID)
	e.ID = serverID
	e.TempID = tempID
	e.State = StateConfirmed
	r.byID[serverID] = e
	r.byObject[e.Object] = serverID
	r.remapped[tempID] = serverID
	return nil
}

// Unregister removes id in both directions and marks it destroyed.
// It reports whether an entry was removed.
func (r *Registry) Unregister(id ID) bool {
	e, ok := r.byID[id]
	if !ok {
		return false
	}
	delete(r.byID, id)
	delete(r.byObject, e.Object)
	r.destroyed[id] = struct{}{}
	e.State = StateDestroyed
	return true
}

// Purge removes the entry for an instance that was destroyed locally.
func (r *Registry) Purge(obj marshal.Object) bool {
	id, ok := r.FindID(obj)
	if !ok {
		return false
	}
	return r.Unregister(id)
}

// IsDestroyed reports whether id reached the terminal state.
func (r *Registry) IsDestroyed(id ID) bool {
	_, ok := r.destroyed[id]
	return ok
}

// RemappedTo returns the server id a temporary id was remapped to.
func (r *Registry) RemappedTo(tempID ID) (ID, bool) {
	id, ok := r.remapped[tempID]
	return id, ok
}

// Len returns the number of live entries.
func (r *Registry) Len() int { return len(r.byID) }

// Entries returns copies of all live entries sorted by id.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b Entry) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// ObjectID implements marshal.Resolver.
func (r *Registry) ObjectID(obj marshal.Object) (uint64, bool) {
	id, ok := r.FindID(obj)
	return uint64(id), ok
}

// ResolveObject implements the object half of marshal.Resolver.
func (r *Registry) ResolveObject(id uint64) (marshal.Object, bool) {
	return r.FindByID(ID(id))
}
