package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrMalformed is returned (wrapped) for any envelope or payload that does
// not decode into the declared case.
var ErrMalformed = errors.New("malformed typed value")

// envelope is the decoding shape of the wire envelope.
type envelope struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Marshal encodes v as a self-describing envelope.
// The None case omits "value" entirely.
func Marshal(v Value) ([]byte, error) {
	if v == nil {
		v = None{}
	}

	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.WriteString(strconv.Quote(v.Kind().String()))

	if v.Kind() != KindNone {
		payload, err := EncodePayload(v)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`,"value":`)
		buf.Write(payload)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MustMarshal is Marshal for values known to be encodable (no NaN/Inf).
func MustMarshal(v Value) []byte {
	data, err := Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// Unmarshal decodes an envelope produced by Marshal.
func Unmarshal(data []byte) (Value, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	kind, ok := ParseKind(env.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, env.Type)
	}

	if kind == KindNone {
		if len(env.Value) != 0 && !bytes.Equal(bytes.TrimSpace(env.Value), []byte("null")) {
			return nil, fmt.Errorf("%w: None must not carry a value", ErrMalformed)
		}
		return None{}, nil
	}

	if len(env.Value) == 0 {
		return nil, fmt.Errorf("%w: %s requires a value", ErrMalformed, kind)
	}

	return DecodePayload(kind, env.Value)
}

// EncodePayload returns the bare "value" part of the envelope.
func EncodePayload(v Value) (json.RawMessage, error) {
	switch val := v.(type) {
	case None:
		return json.RawMessage("null"), nil
	case Bool:
		return json.Marshal(bool(val))
	case Byte:
		return json.RawMessage(strconv.FormatUint(uint64(val), 10)), nil
	case Int32:
		return json.RawMessage(strconv.FormatInt(int64(val), 10)), nil
	case Int64:
		return json.RawMessage(strconv.FormatInt(int64(val), 10)), nil
	case UInt32:
		return json.RawMessage(strconv.FormatUint(uint64(val), 10)), nil
	case UInt64:
		return json.RawMessage(strconv.FormatUint(uint64(val), 10)), nil
	case ObjectRef:
		return json.RawMessage(strconv.FormatUint(uint64(val), 10)), nil
	case Float:
		return json.Marshal(float32(val))
	case Double:
		return json.Marshal(float64(val))
	case String:
		return json.Marshal(string(val))
	case Name:
		return json.Marshal(string(val))
	case Text:
		return json.Marshal(string(val))
	case Array:
		return json.Marshal(string(val))
	case Map:
		return json.Marshal(string(val))
	case Set:
		return json.Marshal(string(val))
	case Custom:
		return json.Marshal(string(val))
	case Vector3, Rotator, Quat, Transform, Color:
		return json.Marshal(val)
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// DecodePayload decodes a bare payload as the given case.
func DecodePayload(kind Kind, raw json.RawMessage) (Value, error) {
	if kind != KindNone && isNull(raw) {
		return nil, malformed(kind, errors.New("null payload"))
	}

	switch kind {
	case KindNone:
		return None{}, nil
	case KindBool:
		var b bool
		if err := strictUnmarshal(raw, &b); err != nil {
			return nil, malformed(kind, err)
		}
		return Bool(b), nil
	case KindByte:
		n, err := parseUint(raw, 8)
		if err != nil {
			return nil, malformed(kind, err)
		}
		return Byte(n), nil
	case KindInt32:
		n, err := parseInt(raw, 32)
		if err != nil {
			return nil, malformed(kind, err)
		}
		return Int32(n), nil
	case KindInt64:
		n, err := parseInt(raw, 64)
		if err != nil {
			return nil, malformed(kind, err)
		}
		return Int64(n), nil
	case KindUInt32:
		n, err := parseUint(raw, 32)
		if err != nil {
			return nil, malformed(kind, err)
		}
		return UInt32(n), nil
	case KindUInt64:
		n, err := parseUint(raw, 64)
		if err != nil {
			return nil, malformed(kind, err)
		}
		return UInt64(n), nil
	case KindObjectReference:
		n, err := parseUint(raw, 64)
		if err != nil {
			return nil, malformed(kind, err)
		}
		return ObjectRef(n), nil
	case KindFloat:
		f, err := parseFloat(raw, 32)
		if err != nil {
			return nil, malformed(kind, err)
		}
		return Float(f), nil
	case KindDouble:
		f, err := parseFloat(raw, 64)
		if err != nil {
			return nil, malformed(kind, err)
		}
		return Double(f), nil
	case KindString, KindName, KindText, KindArray, KindMap, KindSet, KindCustom:
		var s string
		if err := strictUnmarshal(raw, &s); err != nil {
			return nil, malformed(kind, err)
		}
		return stringCase(kind, s), nil
	case KindVector3:
		f, err := floatFields(raw, "X", "Y", "Z")
		if err != nil {
			return nil, malformed(kind, err)
		}
		return Vector3{X: f[0], Y: f[1], Z: f[2]}, nil
	case KindRotator:
		f, err := floatFields(raw, "Pitch", "Yaw", "Roll")
		if err != nil {
			return nil, malformed(kind, err)
		}
		return Rotator{Pitch: f[0], Yaw: f[1], Roll: f[2]}, nil
	case KindQuaternion:
		f, err := floatFields(raw, "X", "Y", "Z", "W")
		if err != nil {
			return nil, malformed(kind, err)
		}
		return Quat{X: f[0], Y: f[1], Z: f[2], W: f[3]}, nil
	case KindColor:
		f, err := floatFields(raw, "R", "G", "B", "A")
		if err != nil {
			return nil, malformed(kind, err)
		}
		return Color{R: float32(f[0]), G: float32(f[1]), B: float32(f[2]), A: float32(f[3])}, nil
	case KindTransform:
		return decodeTransform(raw)
	default:
		return nil, fmt.Errorf("%w: unsupported kind %d", ErrMalformed, kind)
	}
}

func stringCase(kind Kind, s string) Value {
	switch kind {
	case KindName:
		return Name(s)
	case KindText:
		return Text(s)
	case KindArray:
		return Array(s)
	case KindMap:
		return Map(s)
	case KindSet:
		return Set(s)
	case KindCustom:
		return Custom(s)
	default:
		return String(s)
	}
}

func decodeTransform(raw json.RawMessage) (Value, error) {
	var parts map[string]json.RawMessage
	if err := strictUnmarshal(raw, &parts); err != nil {
		return nil, malformed(KindTransform, err)
	}

	loc, err := floatFields(parts["Location"], "X", "Y", "Z")
	if err != nil {
		return nil, malformed(KindTransform, fmt.Errorf("Location: %w", err))
	}
	rot, err := floatFields(parts["Rotation"], "X", "Y", "Z", "W")
	if err != nil {
		return nil, malformed(KindTransform, fmt.Errorf("Rotation: %w", err))
	}
	scale, err := floatFields(parts["Scale"], "X", "Y", "Z")
	if err != nil {
		return nil, malformed(KindTransform, fmt.Errorf("Scale: %w", err))
	}

	return Transform{
		Location: Vector3{X: loc[0], Y: loc[1], Z: loc[2]},
		Rotation: Quat{X: rot[0], Y: rot[1], Z: rot[2], W: rot[3]},
		Scale:    Vector3{X: scale[0], Y: scale[1], Z: scale[2]},
	}, nil
}

// floatFields decodes a JSON object and returns the named numeric fields in
// order. Every name must be present; extra keys are ignored.
func floatFields(raw json.RawMessage, names ...string) ([]float64, error) {
	if len(raw) == 0 {
		return nil, errors.New("missing object")
	}
	var obj map[string]json.RawMessage
	if err := strictUnmarshal(raw, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("expected object, got null")
	}

	out := make([]float64, len(names))
	for i, name := range names {
		field, ok := obj[name]
		if !ok {
			return nil, fmt.Errorf("missing field %q", name)
		}
		f, err := parseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[i] = f
	}
	return out, nil
}

func strictUnmarshal(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after value")
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func number(raw json.RawMessage) (json.Number, error) {
	// json.Number accepts quoted numbers; the wire format does not.
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] == '"' {
		return "", errors.New("expected number")
	}
	var n json.Number
	if err := strictUnmarshal(raw, &n); err != nil {
		return "", err
	}
	if n == "" {
		return "", errors.New("expected number")
	}
	return n, nil
}

func parseInt(raw json.RawMessage, bits int) (int64, error) {
	n, err := number(raw)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(n), 10, bits)
}

func parseUint(raw json.RawMessage, bits int) (uint64, error) {
	n, err := number(raw)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(n), 10, bits)
}

func parseFloat(raw json.RawMessage, bits int) (float64, error) {
	n, err := number(raw)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(string(n), bits)
}

func malformed(kind Kind, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrMalformed, kind, err)
}
