package session

import (
	"encoding/json"

	"github.com/roach88/netsync/internal/value"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventProperty: the server changed one property of an object.
	EventProperty EventType = iota + 1
	// EventCreate: the server created an object.
	EventCreate
	// EventDestroy: the server destroyed an object.
	EventDestroy
	// EventRemap: the server confirmed a local spawn under its server id.
	EventRemap
	// EventMovement: authoritative transform and velocity for an object.
	EventMovement
	// EventTick: advance prediction for every controlled object.
	EventTick
	// EventTask: run a function on the control thread.
	EventTask
)

var eventTypeNames = map[EventType]string{
	EventProperty: "property",
	EventCreate:   "create",
	EventDestroy:  "destroy",
	EventRemap:    "remap",
	EventMovement: "movement",
	EventTick:     "tick",
	EventTask:     "task",
}

func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Event is one unit of work for the control thread.
//
// ObjectID is the subject (the server id for remaps). AuxID is the
// temporary id of a remap. Name is the property of a property update or
// the class of a create. Payload is a Typed Value envelope for property
// updates and a property snapshot for creates.
type Event struct {
	Type     EventType
	ObjectID uint64
	AuxID    uint64
	Name     string
	Payload  json.RawMessage
	Movement *Movement
	Task     func(*Session)
}

// Movement is an authoritative movement update.
type Movement struct {
	Transform     value.Transform
	Velocity      value.Vector3
	AckedSequence uint64
}

// PropertyEvent builds a property update from a Typed Value envelope.
func PropertyEvent(id uint64, property string, envelope []byte) Event {
	return Event{Type: EventProperty, ObjectID: id, Name: property, Payload: envelope}
}

// CreateEvent builds a create notification. data may be empty or a
// snapshot as produced by marshal.EncodeSnapshot.
func CreateEvent(id uint64, class string, data []byte) Event {
	return Event{Type: EventCreate, ObjectID: id, Name: class, Payload: data}
}

// DestroyEvent builds a destroy notification.
func DestroyEvent(id uint64) Event {
	return Event{Type: EventDestroy, ObjectID: id}
}

// RemapEvent builds a temp-to-server id confirmation.
func RemapEvent(tempID, serverID uint64) Event {
	return Event{Type: EventRemap, ObjectID: serverID, AuxID: tempID}
}

// MovementEvent builds an authoritative movement update.
func MovementEvent(id uint64, m Movement) Event {
	return Event{Type: EventMovement, ObjectID: id, Movement: &m}
}

// TickEvent asks the control thread to advance prediction.
func TickEvent() Event {
	return Event{Type: EventTick}
}

// TaskEvent runs fn on the control thread.
func TaskEvent(fn func(*Session)) Event {
	return Event{Type: EventTask, Task: fn}
}

// movementPayload is the journal form of a Movement.
type movementPayload struct {
	Transform json.RawMessage `json:"transform"`
	Velocity  json.RawMessage `json:"velocity"`
	Acked     uint64          `json:"acked"`
}

func encodeMovement(m Movement) (string, error) {
	t, err := value.Marshal(m.Transform)
	if err != nil {
		return "", err
	}
	v, err := value.Marshal(m.Velocity)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(movementPayload{Transform: t, Velocity: v, Acked: m.AckedSequence})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMovement(payload string) (Movement, error) {
	var p movementPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return Movement{}, err
	}
	t, err := value.Unmarshal(p.Transform)
	if err != nil {
		return Movement{}, err
	}
	v, err := value.Unmarshal(p.Velocity)
	if err != nil {
		return Movement{}, err
	}
	tr, ok := t.(value.Transform)
	if !ok {
		return Movement{}, value.ErrMalformed
	}
	vel, ok := v.(value.Vector3)
	if !ok {
		return Movement{}, value.ErrMalformed
	}
	return Movement{Transform: tr, Velocity: vel, AckedSequence: p.Acked}, nil
}
