package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Value is a sealed interface representing constrained attribute value types.
// Only Null, String, Num, Bool, List, and Map implement it. Entity attributes,
// condition values, and effect values are all built from this tree, which
// keeps snapshots diffable and serialization canonical.
type Value interface {
	value() // sealed
}

// Null represents an explicit null value.
type Null struct{}

func (Null) value() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String represents a string value.
type String string

func (String) value() {}

// Num represents a numeric value. Attributes like energy and relationship
// strengths are fractional, so this is float64 rather than int64.
type Num float64

func (Num) value() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) value() {}

// List represents an ordered list of values.
type List []Value

func (List) value() {}

// Map represents a string-keyed map of values.
// Use SortedKeys for deterministic iteration.
type Map map[string]Value

func (Map) value() {}

// absent is the sentinel reported by snapshot diffs when an attribute exists
// on only one side. It is not constructible outside this package.
type absent struct{}

func (absent) value() {}

// MarshalJSON implements json.Marshaler for the absent sentinel.
func (absent) MarshalJSON() ([]byte, error) {
	return []byte(`"<absent>"`), nil
}

// Absent is the sentinel Value used by ExecutionTracker diffs for an
// attribute missing on one side of the comparison (see AttributeChange).
var Absent Value = absent{}

// SortedKeys returns the map's keys in sorted order.
func (m Map) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON implements json.Marshaler for Map with sorted keys so equal
// maps always marshal to equal bytes. Required for content hashing and for
// golden-file comparison of execution logs.
func (m Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := MarshalValue(m[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalValue marshals a Value to JSON bytes using type-switch dispatch.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case Null:
		return []byte("null"), nil
	case absent:
		return val.MarshalJSON()
	case String:
		return json.Marshal(string(val))
	case Num:
		return json.Marshal(float64(val))
	case Bool:
		return json.Marshal(bool(val))
	case List:
		return marshalList(val)
	case Map:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

func marshalList(list List) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range list {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("list[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler for Map.
func (m *Map) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = make(Map, len(raw))
	for k, v := range raw {
		val, err := UnmarshalValue(v)
		if err != nil {
			return fmt.Errorf("map key %q: %w", k, err)
		}
		(*m)[k] = val
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for List.
func (list *List) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*list = make(List, len(raw))
	for i, v := range raw {
		val, err := UnmarshalValue(v)
		if err != nil {
			return fmt.Errorf("list index %d: %w", i, err)
		}
		(*list)[i] = val
	}
	return nil
}

// UnmarshalValue decodes a JSON value into the appropriate Value type.
func UnmarshalValue(data []byte) (Value, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return String(s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil
	case 'n':
		return Null{}, nil
	case '[':
		var list List
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, err
		}
		return list, nil
	case '{':
		var m Map
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		return Num(f), nil
	}
}

// FromAny converts a decoded Go value (from encoding/json or yaml.v3) into a
// Value. Used at ingest boundaries: ensemble JSON rules, YAML scenarios, and
// CUE seed exports all arrive as any-typed trees.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Num(float64(val)), nil
	case int64:
		return Num(float64(val)), nil
	case float64:
		return Num(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %q: %w", val, err)
		}
		return Num(f), nil
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			list[i] = conv
		}
		return list, nil
	case map[string]any:
		m := make(Map, len(val))
		for k, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("map[%q]: %w", k, err)
			}
			m[k] = conv
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// Equal reports whether two Values are structurally equal.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Null:
		_, ok := b.(Null)
		return ok
	case absent:
		_, ok := b.(absent)
		return ok
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Num:
		bv, ok := b.(Num)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
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
	case Map:
		bv, ok := b.(Map)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, exists := bv[k]
			if !exists || !Equal(v, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Clone returns a deep copy of a Value. Scalars are immutable and returned
// as-is; lists and maps are copied recursively.
func Clone(v Value) Value {
	switch val := v.(type) {
	case List:
		out := make(List, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case Map:
		out := make(Map, len(val))
		for k, elem := range val {
			out[k] = Clone(elem)
		}
		return out
	default:
		return v
	}
}

// AsString extracts the string from a Value, or "" if it is not a String.
func AsString(v Value) (string, bool) {
	s, ok := v.(String)
	return string(s), ok
}

// AsNum extracts the float64 from a Value, or 0 if it is not a Num.
func AsNum(v Value) (float64, bool) {
	n, ok := v.(Num)
	return float64(n), ok
}
