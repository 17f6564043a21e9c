package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/roach88/netsync/internal/marshal"
	"github.com/roach88/netsync/internal/predict"
	"github.com/roach88/netsync/internal/registry"
	"github.com/roach88/netsync/internal/store"
	"github.com/roach88/netsync/internal/value"
)

func (s *Session) applyProperty(ctx context.Context, ev Event) error {
	s.record(ctx, store.EventRecord{
		Kind:     store.KindProperty,
		ObjectID: ev.ObjectID,
		Name:     ev.Name,
		Payload:  string(ev.Payload),
	})

	obj, ok := s.registry.FindByID(registry.ID(ev.ObjectID))
	if !ok {
		return unknownID(ev.ObjectID)
	}
	v, err := value.Unmarshal(ev.Payload)
	if err != nil {
		return newError(ErrCodeMalformedEvent, ev.ObjectID, err)
	}
	if err := s.marshaller.ApplyProperty(obj, ev.Name, v); err != nil {
		return classify(ev.ObjectID, err)
	}
	if ev.Name == s.authority.OwnerField() {
		s.releaseIfRemote(registry.ID(ev.ObjectID), obj)
	}
	return nil
}

// releaseIfRemote drops the predictor of an object this client no longer
// owns. Later movement for it is applied directly.
func (s *Session) releaseIfRemote(id registry.ID, obj marshal.Object) bool {
	if _, ok := s.controlled[id]; !ok {
		return false
	}
	if s.authority.HasAuthority(obj, s.clientID) {
		return false
	}
	delete(s.controlled, id)
	slog.Info("ownership lost, prediction stopped", "object_id", uint64(id), "client", s.clientID)
	return true
}

func (s *Session) applyCreate(ctx context.Context, ev Event) error {
	s.record(ctx, store.EventRecord{
		Kind:     store.KindCreate,
		ObjectID: ev.ObjectID,
		Name:     ev.Name,
		Payload:  string(ev.Payload),
	})

	var values map[string]value.Value
	if len(ev.Payload) > 0 {
		var err error
		values, err = marshal.DecodeSnapshot(ev.Payload)
		if err != nil {
			return newError(ErrCodeMalformedEvent, ev.ObjectID, err)
		}
	}

	obj, err := s.factory.New(ev.Name)
	if err != nil {
		return classify(ev.ObjectID, err)
	}
	id := registry.ID(ev.ObjectID)
	if err := s.registry.Register(id, obj, registry.WithReplicate(s.factory.Replicates(ev.Name))); err != nil {
		return classify(ev.ObjectID, err)
	}

	// Applied after registration so references to the object itself resolve.
	if len(values) > 0 {
		_, failed := s.marshaller.ApplyObject(obj, values)
		if len(failed) > 0 {
			slog.Warn("create applied partially",
				"object_id", ev.ObjectID,
				"class", ev.Name,
				"failed", failed,
			)
		}
	}

	slog.Debug("object created", "object_id", ev.ObjectID, "class", ev.Name)
	return nil
}

func (s *Session) applyDestroy(ctx context.Context, ev Event) error {
	s.record(ctx, store.EventRecord{Kind: store.KindDestroy, ObjectID: ev.ObjectID})

	id := registry.ID(ev.ObjectID)
	if !s.registry.Unregister(id) {
		return unknownID(ev.ObjectID)
	}
	delete(s.controlled, id)
	slog.Debug("object destroyed", "object_id", ev.ObjectID)
	return nil
}

func (s *Session) applyRemap(ctx context.Context, ev Event) error {
	s.record(ctx, store.EventRecord{Kind: store.KindRemap, ObjectID: ev.ObjectID, AuxID: ev.AuxID})

	temp, server := registry.ID(ev.AuxID), registry.ID(ev.ObjectID)
	if err := s.registry.Remap(temp, server); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return unknownID(ev.AuxID)
		}
		if errors.Is(err, registry.ErrAlreadyRegistered) || errors.Is(err, registry.ErrDestroyed) {
			return newError(ErrCodeRemapConflict, ev.ObjectID, err)
		}
		return classify(ev.AuxID, err)
	}

	if p, ok := s.controlled[temp]; ok {
		delete(s.controlled, temp)
		s.controlled[server] = p
	}
	slog.Debug("object remapped", "temp_id", ev.AuxID, "server_id", ev.ObjectID)
	return nil
}

func (s *Session) applyMovement(ctx context.Context, ev Event) error {
	if ev.Movement == nil {
		return &SyncError{Code: ErrCodeMalformedEvent, Message: "movement event without movement", ObjectID: ev.ObjectID}
	}
	m := *ev.Movement

	payload, err := encodeMovement(m)
	if err != nil {
		return newError(ErrCodeMalformedEvent, ev.ObjectID, err)
	}
	s.record(ctx, store.EventRecord{Kind: store.KindMovement, ObjectID: ev.ObjectID, Payload: payload})

	id := registry.ID(ev.ObjectID)
	obj, ok := s.registry.FindByID(id)
	if !ok {
		return unknownID(ev.ObjectID)
	}

	s.releaseIfRemote(id, obj)
	if p, ok := s.controlled[id]; ok {
		if last, had := p.LastAcked(); had && m.AckedSequence < last {
			slog.Warn("acknowledgment moved backwards",
				"code", ErrCodeStaleAck,
				"object_id", ev.ObjectID,
				"acked", m.AckedSequence,
				"previous", last,
			)
		}
		r := p.ProcessServerUpdate(m.Transform, m.Velocity, m.AckedSequence)
		s.recordReconciliation(ctx, ev.ObjectID, r)
		return nil
	}

	body, err := predict.NewFieldBody(s.marshaller, obj, s.transformField, s.velocityField)
	if err != nil {
		return classify(ev.ObjectID, err)
	}
	predict.ApplyAuthoritative(body, m.Transform, m.Velocity)
	return nil
}

func (s *Session) recordReconciliation(ctx context.Context, objectID uint64, r predict.Reconciliation) {
	s.metrics.Reconciled(r.Outcome.String())
	seq := s.clock.Next()

	slog.Debug("reconciled",
		"object_id", objectID,
		"outcome", r.Outcome.String(),
		"acked", r.Acked,
		"position_error", r.PositionError,
		"discarded", r.Discarded,
	)

	if s.journal == nil {
		return
	}
	_, err := s.journal.WriteReconciliation(ctx, store.ReconciliationRecord{
		SessionID:     s.id,
		ObjectID:      objectID,
		Seq:           seq,
		AckedSequence: r.Acked,
		Outcome:       r.Outcome.String(),
		PositionError: r.PositionError,
		RotationError: r.RotationError,
		VelocityError: r.VelocityError,
		Discarded:     r.Discarded,
	})
	if err != nil {
		slog.Error("journal reconciliation failed", "session", s.id, "object_id", objectID, "error", err)
	}
}

// tick advances every predictor in id order.
func (s *Session) tick() {
	for _, id := range s.ControlledIDs() {
		s.controlled[id].Tick()
	}
}

// ControlledIDs returns the ids of locally predicted objects, sorted.
func (s *Session) ControlledIDs() []registry.ID {
	ids := make([]registry.ID, 0, len(s.controlled))
	for id := range s.controlled {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
