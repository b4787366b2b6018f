// Package payload provides the domain payload used by file-defined networks.
//
// A payload is a JSON-like tree restricted to strings, integers, booleans,
// lists and objects. Floats are rejected at every boundary so that equality,
// hashing and canonical encoding are exact.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the payload value types.
// Only Null, String, Int, Bool, List and Object implement it.
type Value interface {
	payloadValue()
}

// Null is an explicit JSON null.
type Null struct{}

func (Null) payloadValue() {}

// MarshalJSON implements json.Marshaler.
func (Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// String is a string value.
type String string

func (String) payloadValue() {}

// Int is an integer value. Always int64, never float.
type Int int64

func (Int) payloadValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) payloadValue() {}

// List is an ordered list of values.
type List []Value

func (List) payloadValue() {}

// Object maps string keys to values. Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) payloadValue() {}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's string comparison uses UTF-8 bytes, which orders some keys differently.
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sortUTF16(keys)
	return keys
}

func sortUTF16(keys []string) {
	slices.SortFunc(keys, compareUTF16)
}

func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// Lookup resolves a dot-separated path of object keys, e.g. "labels.tier".
// The empty path resolves to o itself.
func (o Object) Lookup(path string) (Value, bool) {
	if path == "" {
		return o, true
	}
	var cur Value = o
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(Object)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Clone returns a deep copy of o.
func (o Object) Clone() Object {
	if o == nil {
		return nil
	}
	return cloneValue(o).(Object)
}

func cloneValue(v Value) Value {
	switch val := v.(type) {
	case List:
		out := make(List, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	case Object:
		out := make(Object, len(val))
		for k, elem := range val {
			out[k] = cloneValue(elem)
		}
		return out
	default:
		return v
	}
}

// Equal reports deep equality of two values. Nil equals only nil.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Null:
		_, ok := b.(Null)
		return ok
	case String, Int, Bool:
		return a == b
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, elem := range av {
			other, ok := bv[k]
			if !ok || !Equal(elem, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// FromAny converts a decoded Go value (from YAML, JSON or CUE) into a Value.
//
// Integral floats are accepted as Int because some decoders produce float64
// for every number; fractional floats are rejected.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("number out of int64 range: %d", val)
		}
		return Int(val), nil
	case float64:
		if val != math.Trunc(val) || math.Abs(val) > math.MaxInt64 {
			return nil, fmt.Errorf("floats are not allowed in payloads: %v", val)
		}
		return Int(val), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("floats are not allowed in payloads: %s", val)
		}
		return Int(n), nil
	case []any:
		out := make(List, len(val))
		for i, elem := range val {
			pv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = pv
		}
		return out, nil
	case map[string]any:
		out := make(Object, len(val))
		for k, elem := range val {
			pv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			out[k] = pv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported payload type: %T", v)
	}
}

// ObjectFromMap converts a decoded map into an Object.
func ObjectFromMap(m map[string]any) (Object, error) {
	if m == nil {
		return Object{}, nil
	}
	v, err := FromAny(m)
	if err != nil {
		return nil, err
	}
	return v.(Object), nil
}

// MarshalJSON implements json.Marshaler with sorted keys.
// This is NOT canonical encoding; use MarshalCanonical for hashing.
func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := marshalValue(o[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler.
func (l List) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := marshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("list[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Null:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Bool:
		return json.Marshal(bool(val))
	case List:
		return val.MarshalJSON()
	case Object:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown payload type: %T", v)
	}
}

// UnmarshalJSON implements json.Unmarshaler. Fractional numbers are rejected.
func (o *Object) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	obj, err := ObjectFromMap(raw)
	if err != nil {
		return err
	}
	*o = obj
	return nil
}
