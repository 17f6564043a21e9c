package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/netsync/internal/authority"
	"github.com/roach88/netsync/internal/marshal"
	"github.com/roach88/netsync/internal/predict"
	"github.com/roach88/netsync/internal/registry"
	"github.com/roach88/netsync/internal/value"
)

type spawnArgs struct {
	TempID uint64          `json:"temp_id"`
	Class  string          `json:"class"`
	Data   json.RawMessage `json:"data"`
}

type destroyArgs struct {
	ObjectID uint64 `json:"object_id"`
}

// Spawn creates a locally owned object of class under a temporary id and
// asks the server to create it. The object stays Pending until a remap
// event confirms its server id. A rejected call leaves no registration.
func (s *Session) Spawn(class string) (registry.ID, marshal.Object, error) {
	obj, err := s.factory.New(class)
	if err != nil {
		return 0, nil, classify(0, err)
	}
	if err := s.setOwner(obj, s.clientID); err != nil {
		return 0, nil, classify(0, err)
	}

	temp := s.registry.AllocateTempID()
	if err := s.registry.RegisterPending(temp, obj, registry.WithReplicate(s.factory.Replicates(class))); err != nil {
		return 0, nil, classify(uint64(temp), err)
	}

	data, err := marshal.EncodeSnapshot(s.marshaller.SerializeObject(obj))
	if err != nil {
		s.registry.Purge(obj)
		return 0, nil, newError(ErrCodeTypeMismatch, uint64(temp), err)
	}
	args, err := json.Marshal(spawnArgs{TempID: uint64(temp), Class: class, Data: data})
	if err != nil {
		s.registry.Purge(obj)
		return 0, nil, newError(ErrCodeMalformedEvent, uint64(temp), err)
	}

	if !s.call(context.Background(), authority.ReducerSpawn, string(args), uint64(temp)) {
		s.registry.Purge(obj)
		return 0, nil, newError(ErrCodeRejected, uint64(temp), fmt.Errorf("%w: %s", authority.ErrRejected, authority.ReducerSpawn))
	}

	slog.Info("object spawned", "temp_id", uint64(temp), "class", class, "session", s.id)
	return temp, obj, nil
}

// setOwner writes client into obj's owner property, if it has one.
func (s *Session) setOwner(obj marshal.Object, client authority.ClientID) error {
	acc, ok := obj.Property(s.ownerField)
	if !ok {
		return nil
	}
	var native any
	switch acc.Type().Kind {
	case marshal.KindInt64:
		native = int64(client)
	case marshal.KindInt32:
		native = int32(client)
	case marshal.KindUInt64:
		native = uint64(client)
	case marshal.KindUInt32:
		native = uint32(client)
	default:
		return fmt.Errorf("%w: owner field %s.%s is %s", marshal.ErrTypeMismatch, obj.ClassName(), s.ownerField, acc.Type())
	}
	return acc.Set(native)
}

func (s *Session) lookup(id registry.ID) (marshal.Object, error) {
	obj, ok := s.registry.FindByID(id)
	if !ok {
		return nil, unknownID(uint64(id))
	}
	return obj, nil
}

func (s *Session) outboundError(id registry.ID, action string, err error) error {
	if errors.Is(err, authority.ErrAuthorityDenied) {
		s.metrics.AuthorityDenied(action)
	}
	return classify(uint64(id), err)
}

// SetProperty asks the server to write a property of an owned object and
// applies it locally once the transport accepts.
func (s *Session) SetProperty(id registry.ID, prop string, v value.Value) error {
	obj, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := s.authority.RequestSetProperty(obj, prop, v, s.clientID); err != nil {
		return s.outboundError(id, authority.ReducerSetProperty, err)
	}
	return nil
}

// SetOwner asks the server to transfer an owned object. The local owner
// field changes only when the server replicates it back.
func (s *Session) SetOwner(id registry.ID, newOwner authority.ClientID) error {
	obj, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := s.authority.RequestSetOwner(obj, newOwner, s.clientID); err != nil {
		return s.outboundError(id, authority.ReducerSetOwner, err)
	}
	return nil
}

// Invoke sends a remote function call on an owned object.
func (s *Session) Invoke(id registry.ID, fn, argsJSON string) error {
	obj, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := s.authority.RequestInvoke(obj, fn, argsJSON, s.clientID); err != nil {
		return s.outboundError(id, authority.ReducerInvoke, err)
	}
	return nil
}

// Destroy asks the server to destroy an owned object and purges it
// locally once the transport accepts.
func (s *Session) Destroy(id registry.ID) error {
	obj, err := s.lookup(id)
	if err != nil {
		return err
	}
	if !s.authority.HasAuthority(obj, s.clientID) {
		s.metrics.AuthorityDenied(authority.ReducerDestroy)
		return newError(ErrCodeAuthorityDenied, uint64(id),
			fmt.Errorf("%w: client %d cannot destroy %s", authority.ErrAuthorityDenied, s.clientID, obj.ClassName()))
	}

	args, err := json.Marshal(destroyArgs{ObjectID: uint64(id)})
	if err != nil {
		return newError(ErrCodeMalformedEvent, uint64(id), err)
	}
	if !s.call(context.Background(), authority.ReducerDestroy, string(args), 0) {
		return newError(ErrCodeRejected, uint64(id), fmt.Errorf("%w: %s", authority.ErrRejected, authority.ReducerDestroy))
	}

	s.registry.Unregister(id)
	delete(s.controlled, id)
	slog.Info("object destroyed locally", "object_id", uint64(id), "session", s.id)
	return nil
}

// Control starts client-side prediction for an object this client owns.
// The predictor reads and writes the object's movement properties and
// stops taking snapshots if ownership moves away. Extra options are
// applied after the session's own, so WithInputs can be supplied here.
// Controlling an already controlled object returns its predictor.
func (s *Session) Control(id registry.ID, opts ...predict.Option) (*predict.Predictor, error) {
	obj, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if p, ok := s.controlled[id]; ok {
		return p, nil
	}
	if !s.authority.HasAuthority(obj, s.clientID) {
		s.metrics.AuthorityDenied("control")
		return nil, newError(ErrCodeAuthorityDenied, uint64(id),
			fmt.Errorf("%w: client %d does not own %s", authority.ErrAuthorityDenied, s.clientID, obj.ClassName()))
	}

	body, err := predict.NewFieldBody(s.marshaller, obj, s.transformField, s.velocityField)
	if err != nil {
		return nil, classify(uint64(id), err)
	}

	all := []predict.Option{
		predict.WithClock(s.now),
		predict.WithAuthority(func() bool { return s.authority.HasAuthority(obj, s.clientID) }),
		predict.WithTracked(s.marshaller, obj, s.tracked...),
	}
	all = append(all, opts...)
	p, err := predict.New(body, s.predCfg, all...)
	if err != nil {
		return nil, fmt.Errorf("control %d: %w", id, err)
	}
	s.controlled[id] = p
	slog.Debug("object controlled", "object_id", uint64(id), "class", obj.ClassName())
	return p, nil
}

// Release stops prediction for id.
func (s *Session) Release(id registry.ID) bool {
	if _, ok := s.controlled[id]; !ok {
		return false
	}
	delete(s.controlled, id)
	return true
}

// Predictor returns the predictor of a controlled object.
func (s *Session) Predictor(id registry.ID) (*predict.Predictor, bool) {
	p, ok := s.controlled[id]
	return p, ok
}
