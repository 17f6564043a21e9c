package marshal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"

	"github.com/roach88/netsync/internal/value"
)

// Container blobs hold bare payloads (value.EncodePayload), never nested
// envelopes. The element case comes from the declared element type.
//
//	Array  [p0,p1,...]            in order
//	Set    [p0,p1,...]            sorted by encoded payload, unique
//	Map    {"key":p,...}          key text sorted
//	Custom {"Field":p,...}        record fields

func (m *Marshaller) encodeSequence(t *Type, native any, set bool) (value.Value, error) {
	items, ok := native.([]any)
	if !ok && native != nil {
		return nil, fmt.Errorf("%w: %T is not a native %s", ErrNativeType, native, t)
	}

	payloads := make([]json.RawMessage, 0, len(items))
	for i, item := range items {
		p, err := m.encodePayload(t.Elem, item)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		payloads = append(payloads, p)
	}

	if set {
		slices.SortFunc(payloads, func(a, b json.RawMessage) int { return bytes.Compare(a, b) })
		payloads = slices.CompactFunc(payloads, func(a, b json.RawMessage) bool { return bytes.Equal(a, b) })
	}

	data, err := json.Marshal(payloads)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if set {
		return value.Set(data), nil
	}
	return value.Array(data), nil
}

func (m *Marshaller) decodeSequence(t *Type, blob string, set bool) (any, error) {
	var raws []json.RawMessage
	if err := decodeBlob(blob, &raws); err != nil {
		return nil, err
	}

	elemCase, _ := t.Elem.Case()
	out := make([]any, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for i, raw := range raws {
		if set {
			key := compact(raw)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}

		ev, err := value.DecodePayload(elemCase, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: [%d]: %w", ErrInvalidValue, i, err)
		}
		native, err := m.Decode(t.Elem, ev)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, native)
	}
	return out, nil
}

func (m *Marshaller) encodeMap(t *Type, native any) (value.Value, error) {
	entries, ok := native.(map[any]any)
	if !ok && native != nil {
		return nil, fmt.Errorf("%w: %T is not a native %s", ErrNativeType, native, t)
	}

	obj := make(map[string]json.RawMessage, len(entries))
	for k, v := range entries {
		key, err := keyText(t.Key, k)
		if err != nil {
			return nil, err
		}
		p, err := m.encodePayload(t.Elem, v)
		if err != nil {
			return nil, fmt.Errorf("[%s]: %w", key, err)
		}
		obj[key] = p
	}

	// encoding/json sorts map keys.
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return value.Map(data), nil
}

// decodeMap drops entries whose key text does not convert to the declared
// key kind and applies the rest.
func (m *Marshaller) decodeMap(t *Type, blob string) (any, error) {
	var obj map[string]json.RawMessage
	if err := decodeBlob(blob, &obj); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	elemCase, _ := t.Elem.Case()
	out := make(map[any]any, len(obj))
	for _, key := range keys {
		k, err := parseKey(t.Key, key)
		if err != nil {
			slog.Warn("dropping map entry with unconvertible key",
				"key", key,
				"key_type", t.Key.String(),
				"error", err,
			)
			continue
		}

		ev, err := value.DecodePayload(elemCase, obj[key])
		if err != nil {
			return nil, fmt.Errorf("%w: [%s]: %w", ErrInvalidValue, key, err)
		}
		native, err := m.Decode(t.Elem, ev)
		if err != nil {
			return nil, fmt.Errorf("[%s]: %w", key, err)
		}
		out[k] = native
	}
	return out, nil
}

func (m *Marshaller) encodeRecord(t *Type, native any) (value.Value, error) {
	obj := map[string]json.RawMessage{}
	if native != nil {
		rec, ok := native.(Record)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a Record", ErrNativeType, native)
		}
		for _, f := range rec.Fields() {
			acc, ok := rec.Field(f.Name)
			if !ok {
				continue
			}
			p, err := m.encodePayload(f.Type, acc.Get())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Name, err)
			}
			obj[f.Name] = p
		}
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return value.Custom(data), nil
}

// decodeRecord stages fields into a DynamicRecord built from the declared
// descriptor. Fields absent from the blob stay at their zero value; fields
// the descriptor does not know are ignored.
func (m *Marshaller) decodeRecord(t *Type, blob string) (any, error) {
	var obj map[string]json.RawMessage
	if err := decodeBlob(blob, &obj); err != nil {
		return nil, err
	}

	rec := NewDynamicRecord(t.Record)
	for name, raw := range obj {
		f, ok := t.Record.Field(name)
		if !ok {
			slog.Debug("ignoring unknown record field", "record", t.String(), "field", name)
			continue
		}
		fieldCase, ok := f.Type.Case()
		if !ok {
			continue
		}
		ev, err := value.DecodePayload(fieldCase, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidValue, name, err)
		}
		native, err := m.Decode(f.Type, ev)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		rec.slots[name] = native
	}
	return rec, nil
}

func (m *Marshaller) encodePayload(t *Type, native any) (json.RawMessage, error) {
	v, err := m.Encode(t, native)
	if err != nil {
		return nil, err
	}
	p, err := value.EncodePayload(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return p, nil
}

// decodeBlob parses a container blob. A null blob is invalid.
func decodeBlob(blob string, out any) error {
	trimmed := bytes.TrimSpace([]byte(blob))
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("%w: empty container blob", ErrInvalidValue)
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after container blob", ErrInvalidValue)
	}
	return nil
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func keyText(t *Type, k any) (string, error) {
	if err := checkNative(t, k); err != nil {
		return "", fmt.Errorf("map key: %w", err)
	}
	switch key := k.(type) {
	case string:
		return key, nil
	case uint8:
		return strconv.FormatUint(uint64(key), 10), nil
	case int32:
		return strconv.FormatInt(int64(key), 10), nil
	case int64:
		return strconv.FormatInt(key, 10), nil
	case uint32:
		return strconv.FormatUint(uint64(key), 10), nil
	case uint64:
		return strconv.FormatUint(key, 10), nil
	}
	return "", fmt.Errorf("%w: map key %s", ErrUnsupportedKind, t)
}

func parseKey(t *Type, text string) (any, error) {
	switch t.Kind {
	case KindString, KindName:
		return text, nil
	case KindByte:
		n, err := strconv.ParseUint(text, 10, 8)
		return uint8(n), err
	case KindInt32:
		n, err := strconv.ParseInt(text, 10, 32)
		return int32(n), err
	case KindInt64:
		return strconv.ParseInt(text, 10, 64)
	case KindUInt32:
		n, err := strconv.ParseUint(text, 10, 32)
		return uint32(n), err
	case KindUInt64:
		return strconv.ParseUint(text, 10, 64)
	}
	return nil, fmt.Errorf("%w: map key %s", ErrUnsupportedKind, t)
}
