package scene

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind identifies the concrete type held by a Value.
type ValueKind uint8

const (
	// KindNone is the zero Value; it holds nothing.
	KindNone ValueKind = iota
	// KindBool holds a boolean.
	KindBool
	// KindInt holds a 64-bit integer.
	KindInt
	// KindFloat holds a 64-bit float.
	KindFloat
	// KindText holds a string.
	KindText
)

// Value is a tagged union for node and relationship properties.
//
// Property bags hold Values instead of `any` so consumers can switch on
// Kind() exhaustively rather than type-asserting at runtime. A Value is
// immutable once constructed; the zero Value has KindNone and compares
// equal only to another zero Value.
//
// Example:
//
//	node.Properties["team"] = scene.Text("red")
//	node.Properties["hp"] = scene.Int(150)
//
//	if v, ok := node.Properties["hp"]; ok {
//		if hp, ok := v.Int(); ok {
//			fmt.Printf("hp=%d\n", hp)
//		}
//	}
type Value struct {
	kind ValueKind
	b    bool
	i    int64
	f    float64
	s    string
}

// Bool constructs a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int constructs an integer Value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float constructs a float Value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Text constructs a string Value.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Kind returns the kind tag of the value.
func (v Value) Kind() ValueKind { return v.kind }

// Bool returns the boolean payload. The second return is false when the
// value does not hold a bool.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Int returns the integer payload.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Float returns the float payload.
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }

// Text returns the string payload.
func (v Value) Text() (string, bool) { return v.s, v.kind == KindText }

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindText:
		return v.s == o.s
	default:
		return true // both KindNone
	}
}

// String renders the payload for logs and summaries.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return v.s
	default:
		return "<none>"
	}
}

// MarshalJSON encodes the value as a {kind, value} object so snapshots can
// round-trip without losing the tag.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return []byte(fmt.Sprintf(`{"kind":"bool","value":%t}`, v.b)), nil
	case KindInt:
		return []byte(fmt.Sprintf(`{"kind":"int","value":%d}`, v.i)), nil
	case KindFloat:
		return []byte(fmt.Sprintf(`{"kind":"float","value":%s}`, strconv.FormatFloat(v.f, 'g', -1, 64))), nil
	case KindText:
		return []byte(fmt.Sprintf(`{"kind":"text","value":%s}`, strconv.Quote(v.s))), nil
	default:
		return []byte(`{"kind":"none"}`), nil
	}
}

// UnmarshalJSON decodes the {kind, value} form produced by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind  string `json:"kind"`
		Value any    `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case "bool":
		b, ok := raw.Value.(bool)
		if !ok {
			return fmt.Errorf("value: bool payload expected, got %T", raw.Value)
		}
		*v = Bool(b)
	case "int":
		f, ok := raw.Value.(float64)
		if !ok {
			return fmt.Errorf("value: int payload expected, got %T", raw.Value)
		}
		*v = Int(int64(f))
	case "float":
		f, ok := raw.Value.(float64)
		if !ok {
			return fmt.Errorf("value: float payload expected, got %T", raw.Value)
		}
		*v = Float(f)
	case "text":
		s, ok := raw.Value.(string)
		if !ok {
			return fmt.Errorf("value: text payload expected, got %T", raw.Value)
		}
		*v = Text(s)
	case "none", "":
		*v = Value{}
	default:
		return fmt.Errorf("value: unknown kind %q", raw.Kind)
	}
	return nil
}
