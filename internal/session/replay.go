package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/roach88/netsync/internal/authority"
	"github.com/roach88/netsync/internal/marshal"
	"github.com/roach88/netsync/internal/registry"
	"github.com/roach88/netsync/internal/store"
	"github.com/roach88/netsync/internal/value"
)

// Replay and determinism
//
// Inbound events are journaled before they are applied and outbound calls
// are journaled once the transport accepts them. Replaying a journal runs
// the same handlers as live processing:
//
//	create / property / destroy / remap / movement → processEvent
//	call spawn_object   → re-register the pending object from its args
//	call set_property   → re-apply the value locally
//	call destroy_object → unregister
//
// Other calls have no local effect; their consequences arrive as inbound
// events. Movement replays as authoritative state because ticks and wall
// time are not journaled, so predicted objects end at the last server
// state rather than their last predicted one.

// ReplayResult describes one replay run.
type ReplayResult struct {
	Session *Session
	Events  int
	Failed  int
}

// Replay rebuilds a session from journal records in order. The replayed
// session never contacts a transport and writes no journal.
func Replay(ctx context.Context, clientID authority.ClientID, records []store.EventRecord, factory *Factory, opts ...Option) (ReplayResult, error) {
	s, err := New(clientID, factory, nil, opts...)
	if err != nil {
		return ReplayResult{}, err
	}
	s.journal = nil

	res := ReplayResult{Session: s}
	for _, rec := range records {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Events++

		if rec.Kind == store.KindCall {
			if err := s.replayCall(rec); err != nil {
				res.Failed++
				slog.Warn("replayed call failed", "seq", rec.Seq, "reducer", rec.Name, "error", err)
			}
			continue
		}

		ev, err := EventFromRecord(rec)
		if err != nil {
			return res, fmt.Errorf("replay seq %d: %w", rec.Seq, err)
		}
		if err := s.processEvent(ctx, ev); err != nil {
			res.Failed++
			logEventError(ev, err)
		}
	}
	return res, nil
}

// EventFromRecord converts a journaled inbound record back into an Event.
func EventFromRecord(rec store.EventRecord) (Event, error) {
	switch rec.Kind {
	case store.KindProperty:
		return PropertyEvent(rec.ObjectID, rec.Name, []byte(rec.Payload)), nil
	case store.KindCreate:
		var data []byte
		if rec.Payload != "" {
			data = []byte(rec.Payload)
		}
		return CreateEvent(rec.ObjectID, rec.Name, data), nil
	case store.KindDestroy:
		return DestroyEvent(rec.ObjectID), nil
	case store.KindRemap:
		return RemapEvent(rec.AuxID, rec.ObjectID), nil
	case store.KindMovement:
		m, err := decodeMovement(rec.Payload)
		if err != nil {
			return Event{}, &SyncError{Code: ErrCodeMalformedEvent, Message: err.Error(), ObjectID: rec.ObjectID, Err: err}
		}
		return MovementEvent(rec.ObjectID, m), nil
	default:
		return Event{}, &SyncError{Code: ErrCodeMalformedEvent, Message: fmt.Sprintf("unknown record kind %q", rec.Kind), ObjectID: rec.ObjectID}
	}
}

type replayedSetProperty struct {
	ObjectID uint64          `json:"object_id"`
	Property string          `json:"property"`
	Value    json.RawMessage `json:"value"`
}

func (s *Session) replayCall(rec store.EventRecord) error {
	switch rec.Name {
	case authority.ReducerSpawn:
		var args spawnArgs
		if err := json.Unmarshal([]byte(rec.Payload), &args); err != nil {
			return newError(ErrCodeMalformedEvent, rec.AuxID, err)
		}
		obj, err := s.factory.New(args.Class)
		if err != nil {
			return classify(args.TempID, err)
		}
		if len(args.Data) > 0 {
			values, err := marshal.DecodeSnapshot(args.Data)
			if err != nil {
				return newError(ErrCodeMalformedEvent, args.TempID, err)
			}
			s.marshaller.ApplyObject(obj, values)
		}
		err = s.registry.RegisterPending(registry.ID(args.TempID), obj,
			registry.WithReplicate(s.factory.Replicates(args.Class)))
		if err != nil {
			return classify(args.TempID, err)
		}
		return nil

	case authority.ReducerSetProperty:
		var args replayedSetProperty
		if err := json.Unmarshal([]byte(rec.Payload), &args); err != nil {
			return newError(ErrCodeMalformedEvent, rec.ObjectID, err)
		}
		obj, ok := s.registry.FindByID(registry.ID(args.ObjectID))
		if !ok {
			return unknownID(args.ObjectID)
		}
		v, err := value.Unmarshal(args.Value)
		if err != nil {
			return newError(ErrCodeMalformedEvent, args.ObjectID, err)
		}
		if err := s.marshaller.ApplyProperty(obj, args.Property, v); err != nil {
			return classify(args.ObjectID, err)
		}
		return nil

	case authority.ReducerDestroy:
		if !s.registry.Unregister(registry.ID(rec.ObjectID)) {
			return unknownID(rec.ObjectID)
		}
		return nil
	}
	return nil
}

// StateDigest hashes the registry: every entry's id, class, lifecycle
// state and serialized properties. Two sessions with equal digests hold
// the same replicated state.
func (s *Session) StateDigest() (string, error) {
	entries := s.registry.Entries()
	list := make([]any, 0, len(entries))
	for _, e := range entries {
		props := make(map[string]any)
		for name, v := range s.marshaller.SerializeObject(e.Object) {
			props[name] = v
		}
		list = append(list, map[string]any{
			"id":         uint64(e.ID),
			"class":      e.Class,
			"state":      e.State.String(),
			"properties": props,
		})
	}
	return value.ContentID(value.DomainState, list)
}
