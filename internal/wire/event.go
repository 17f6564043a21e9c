package wire

import (
	"fmt"

	"github.com/roach88/netsync/internal/session"
	"github.com/roach88/netsync/internal/value"
)

// ToEvent converts a server replication frame into a session event.
// Call and call_result frames are not events and report ok=false.
func ToEvent(f Frame) (ev session.Event, ok bool, err error) {
	switch f.Type {
	case TypeProperty:
		return session.PropertyEvent(f.ObjectID, f.Property, f.Value), true, nil
	case TypeCreate:
		return session.CreateEvent(f.ObjectID, f.Class, f.Data), true, nil
	case TypeDestroy:
		return session.DestroyEvent(f.ObjectID), true, nil
	case TypeRemap:
		return session.RemapEvent(f.TempID, f.ObjectID), true, nil
	case TypeMovement:
		m, err := movementOf(f)
		if err != nil {
			return session.Event{}, false, err
		}
		return session.MovementEvent(f.ObjectID, m), true, nil
	case TypeCall, TypeCallResult:
		return session.Event{}, false, nil
	}
	return session.Event{}, false, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, f.Type)
}

func movementOf(f Frame) (session.Movement, error) {
	m := session.Movement{AckedSequence: f.AckedSequence}

	tv, err := value.Unmarshal(f.Transform)
	if err != nil {
		return m, fmt.Errorf("%w: transform: %v", ErrMalformedFrame, err)
	}
	tr, ok := tv.(value.Transform)
	if !ok {
		return m, fmt.Errorf("%w: transform is %s", ErrMalformedFrame, tv.Kind())
	}
	m.Transform = tr

	if len(f.Velocity) > 0 {
		vv, err := value.Unmarshal(f.Velocity)
		if err != nil {
			return m, fmt.Errorf("%w: velocity: %v", ErrMalformedFrame, err)
		}
		vel, ok := vv.(value.Vector3)
		if !ok {
			return m, fmt.Errorf("%w: velocity is %s", ErrMalformedFrame, vv.Kind())
		}
		m.Velocity = vel
	}
	return m, nil
}

// MovementFrame builds a movement frame from server state.
func MovementFrame(id uint64, m session.Movement) (Frame, error) {
	tr, err := value.Marshal(m.Transform)
	if err != nil {
		return Frame{}, err
	}
	vel, err := value.Marshal(m.Velocity)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: TypeMovement, ObjectID: id, Transform: tr, Velocity: vel, AckedSequence: m.AckedSequence}, nil
}
