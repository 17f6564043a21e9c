// Package authority derives which client may mutate which object.
//
// Authority is not stored. It is computed from the object's owner field,
// read through the marshaller: a client has authority over an object iff
// the owner field equals its client id. Owner changes are requests sent to
// the server and only take effect when the server replicates the new owner
// back.
package authority

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/roach88/netsync/internal/marshal"
	"github.com/roach88/netsync/internal/value"
)

// ClientID identifies a connected client. Server (zero) means no owner.
type ClientID int64

// Server is the owner id of server-owned objects.
const Server ClientID = 0

// DefaultOwnerField is the property holding an object's owner client id.
const DefaultOwnerField = "OwnerClientId"

// Reducer names used for outbound requests.
const (
	ReducerSetOwner    = "set_owner"
	ReducerSetProperty = "set_property"
	ReducerInvoke      = "invoke"
	ReducerSpawn       = "spawn_object"
	ReducerDestroy     = "destroy_object"
)

var (
	// ErrAuthorityDenied: the requester does not own the object. The
	// transport was not contacted.
	ErrAuthorityDenied = errors.New("authority denied")
	// ErrRejected: the transport refused the call.
	ErrRejected = errors.New("request rejected by transport")
	// ErrUnregistered: the object has no network id.
	ErrUnregistered = errors.New("object not registered")
	// ErrInvalidArgs: RPC arguments are not valid JSON.
	ErrInvalidArgs = errors.New("invalid rpc arguments")
)

// Caller is the outbound half of the transport contract.
type Caller interface {
	Call(reducer, argsJSON string) bool
}

// CallerFunc adapts a function to Caller.
type CallerFunc func(reducer, argsJSON string) bool

func (f CallerFunc) Call(reducer, argsJSON string) bool { return f(reducer, argsJSON) }

// IDLookup finds an object's network id.
type IDLookup interface {
	ObjectID(obj marshal.Object) (uint64, bool)
}

// Action is what a client is asking permission to do.
type Action struct {
	Kind ActionKind
	// Name is the property or function name.
	Name string
}

// ActionKind distinguishes property writes from remote calls.
type ActionKind int

const (
	ActionModifyProperty ActionKind = iota
	ActionInvokeRPC
)

// Policy decides whether client may perform action on an object whose
// current owner is owner.
type Policy func(owner, client ClientID, obj marshal.Object, action Action) bool

// OwnerOnly is the default policy: only the owner may act.
func OwnerOnly(owner, client ClientID, _ marshal.Object, _ Action) bool {
	return owner == client
}

// Option configures a Model.
type Option func(*Model)

// WithOwnerField sets the property read as the owner client id.
func WithOwnerField(name string) Option {
	return func(m *Model) {
		m.ownerField = name
	}
}

// WithPolicy replaces the property/RPC permission policy.
func WithPolicy(p Policy) Option {
	return func(m *Model) {
		m.policy = p
	}
}

// Model evaluates authority and gates outbound mutation requests.
type Model struct {
	marshaller *marshal.Marshaller
	ids        IDLookup
	caller     Caller
	ownerField string
	policy     Policy
}

// New creates a Model.
func New(m *marshal.Marshaller, ids IDLookup, caller Caller, opts ...Option) *Model {
	model := &Model{
		marshaller: m,
		ids:        ids,
		caller:     caller,
		ownerField: DefaultOwnerField,
		policy:     OwnerOnly,
	}
	for _, opt := range opts {
		opt(model)
	}
	return model
}

// OwnerField returns the configured owner property name.
func (m *Model) OwnerField() string { return m.ownerField }

// Owner reads the object's owner client id. Objects without a readable
// integer owner field, or with an owner outside the ClientID range, are
// server-owned; ok reports whether a valid owner was read.
func (m *Model) Owner(obj marshal.Object) (owner ClientID, ok bool) {
	v, err := m.marshaller.SerializeProperty(obj, m.ownerField)
	if err != nil {
		return Server, false
	}
	switch id := v.(type) {
	case value.Int64:
		return ClientID(id), true
	case value.Int32:
		return ClientID(id), true
	case value.UInt64:
		if uint64(id) > math.MaxInt64 {
			slog.Warn("owner id out of range", "class", obj.ClassName(), "owner", uint64(id))
			return Server, false
		}
		return ClientID(id), true
	case value.UInt32:
		return ClientID(id), true
	}
	return Server, false
}

// HasAuthority reports whether client owns obj.
func (m *Model) HasAuthority(obj marshal.Object, client ClientID) bool {
	owner, _ := m.Owner(obj)
	return owner == client
}

// CanModifyProperty asks the policy whether client may write prop.
func (m *Model) CanModifyProperty(obj marshal.Object, client ClientID, prop string) bool {
	owner, _ := m.Owner(obj)
	return m.policy(owner, client, obj, Action{Kind: ActionModifyProperty, Name: prop})
}

// CanInvokeRPC asks the policy whether client may call fn.
func (m *Model) CanInvokeRPC(obj marshal.Object, client ClientID, fn string) bool {
	owner, _ := m.Owner(obj)
	return m.policy(owner, client, obj, Action{Kind: ActionInvokeRPC, Name: fn})
}

type setOwnerArgs struct {
	ObjectID uint64   `json:"object_id"`
	NewOwner ClientID `json:"new_owner"`
}

// RequestSetOwner asks the server to transfer obj to newOwner. It is
// denied locally, without contacting the transport, unless requester owns
// obj right now. Server-owned objects are never client-writable.
func (m *Model) RequestSetOwner(obj marshal.Object, newOwner, requester ClientID) error {
	owner, _ := m.Owner(obj)
	if owner == Server || owner != requester {
		return m.deny(obj, requester, owner, "set_owner")
	}

	id, err := m.objectID(obj)
	if err != nil {
		return err
	}
	return m.call(ReducerSetOwner, setOwnerArgs{ObjectID: id, NewOwner: newOwner})
}

type setPropertyArgs struct {
	ObjectID uint64          `json:"object_id"`
	Property string          `json:"property"`
	Value    json.RawMessage `json:"value"`
}

// RequestSetProperty sends a property write for an owned object. The value
// must decode into the property's type before anything is sent. Once the
// transport accepts it the value is also applied locally.
func (m *Model) RequestSetProperty(obj marshal.Object, prop string, v value.Value, requester ClientID) error {
	owner, _ := m.Owner(obj)
	if owner == Server || !m.CanModifyProperty(obj, requester, prop) {
		return m.deny(obj, requester, owner, prop)
	}

	acc, ok := obj.Property(prop)
	if !ok {
		return fmt.Errorf("%w: %s.%s", marshal.ErrUnknownProperty, obj.ClassName(), prop)
	}
	if _, err := m.marshaller.Decode(acc.Type(), v); err != nil {
		return fmt.Errorf("%s.%s: %w", obj.ClassName(), prop, err)
	}

	id, err := m.objectID(obj)
	if err != nil {
		return err
	}
	env, err := value.Marshal(v)
	if err != nil {
		return fmt.Errorf("set_property %s: %w", prop, err)
	}
	if err := m.call(ReducerSetProperty, setPropertyArgs{ObjectID: id, Property: prop, Value: env}); err != nil {
		return err
	}
	return m.marshaller.ApplyProperty(obj, prop, v)
}

type invokeArgs struct {
	ObjectID uint64          `json:"object_id"`
	Function string          `json:"function"`
	Args     json.RawMessage `json:"args"`
}

// RequestInvoke sends a remote function call on an owned object.
// Empty argsJSON means no arguments.
func (m *Model) RequestInvoke(obj marshal.Object, fn, argsJSON string, requester ClientID) error {
	owner, _ := m.Owner(obj)
	if owner == Server || !m.CanInvokeRPC(obj, requester, fn) {
		return m.deny(obj, requester, owner, fn)
	}

	if argsJSON == "" {
		argsJSON = "{}"
	}
	if !json.Valid([]byte(argsJSON)) {
		return fmt.Errorf("%w: %s", ErrInvalidArgs, fn)
	}

	id, err := m.objectID(obj)
	if err != nil {
		return err
	}
	return m.call(ReducerInvoke, invokeArgs{ObjectID: id, Function: fn, Args: json.RawMessage(argsJSON)})
}

func (m *Model) objectID(obj marshal.Object) (uint64, error) {
	id, ok := m.ids.ObjectID(obj)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnregistered, obj.ClassName())
	}
	return id, nil
}

func (m *Model) call(reducer string, args any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%s: %w", reducer, err)
	}
	if !m.caller.Call(reducer, string(data)) {
		return fmt.Errorf("%w: %s", ErrRejected, reducer)
	}
	return nil
}

func (m *Model) deny(obj marshal.Object, requester, owner ClientID, action string) error {
	slog.Debug("authority denied",
		"class", obj.ClassName(),
		"action", action,
		"requester", requester,
		"owner", owner,
	)
	return fmt.Errorf("%w: client %d cannot %s on %s owned by %d",
		ErrAuthorityDenied, requester, action, obj.ClassName(), owner)
}
