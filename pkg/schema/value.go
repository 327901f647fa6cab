package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Value is a dynamically typed scalar. The zero Value has KindNone.
//
// Value is a value type: assignment copies it, and nothing inside is shared
// except an Opaque payload, which the engine never mutates.
type Value struct {
	spec   TypeSpec
	num    float64
	flag   bool
	text   string
	index  int
	opaque any
}

// NewNumber creates a Number value.
func NewNumber(f float64) Value {
	return Value{spec: Number(), num: f}
}

// NewBoolean creates a Boolean value.
func NewBoolean(b bool) Value {
	return Value{spec: Boolean(), flag: b}
}

// NewText creates a Text value.
func NewText(s string) Value {
	return Value{spec: Text(), text: s}
}

// NewOption creates an Option value over n choices; index is clamped into [0, n-1].
func NewOption(index, n int) Value {
	spec := Option(n)
	return Value{spec: spec, index: clampIndex(index, spec.Choices)}
}

// NewOpaque wraps an arbitrary payload that is passed through uncast.
func NewOpaque(v any) Value {
	return Value{spec: Opaque(), opaque: v}
}

// Zero returns the default value for a type.
func Zero(t TypeSpec) Value {
	switch t.Kind {
	case KindNumber:
		return NewNumber(0)
	case KindBoolean:
		return NewBoolean(false)
	case KindText:
		return NewText("")
	case KindOption:
		return NewOption(0, t.Choices)
	case KindOpaque:
		return NewOpaque(nil)
	default:
		return Value{}
	}
}

// FromGo infers a Value from a plain Go value, as decoded from YAML or JSON.
func FromGo(x any) Value {
	switch v := x.(type) {
	case nil:
		return Value{}
	case Value:
		return v
	case bool:
		return NewBoolean(v)
	case string:
		return NewText(v)
	case json.Number:
		return NewNumber(parseNumber(v.String()))
	}
	if f, ok := goNumber(x); ok {
		return NewNumber(f)
	}
	return NewOpaque(x)
}

// Type returns the declared type of the value.
func (v Value) Type() TypeSpec { return v.spec }

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.spec.Kind }

// IsNone reports whether the value carries nothing.
func (v Value) IsNone() bool { return v.spec.Kind == KindNone }

// Float returns the value coerced to a number.
func (v Value) Float() float64 { return v.toNumber() }

// Bool returns the value coerced by truthiness.
func (v Value) Bool() bool { return v.toBool() }

// Index returns the value coerced to an integer index (unclamped for non-options).
func (v Value) Index() int { return v.toIndex() }

// String returns the value stringified.
func (v Value) String() string { return v.toText() }

// Interface returns the raw Go payload of the value.
func (v Value) Interface() any {
	switch v.spec.Kind {
	case KindNumber:
		return v.num
	case KindBoolean:
		return v.flag
	case KindText:
		return v.text
	case KindOption:
		return v.index
	case KindOpaque:
		return v.opaque
	default:
		return nil
	}
}

// Equal reports whether both values have the same type and payload.
func (v Value) Equal(o Value) bool {
	if !v.spec.Equal(o.spec) {
		return false
	}
	switch v.spec.Kind {
	case KindNumber:
		return v.num == o.num
	case KindBoolean:
		return v.flag == o.flag
	case KindText:
		return v.text == o.text
	case KindOption:
		return v.index == o.index
	case KindOpaque:
		return reflect.DeepEqual(v.opaque, o.opaque)
	default:
		return true
	}
}

// GoString makes test failures readable.
func (v Value) GoString() string {
	return fmt.Sprintf("%s(%v)", v.spec.Name(), v.Interface())
}

type wireValue struct {
	Type  TypeSpec `json:"type"`
	Value any      `json:"value,omitempty"`
}

// MarshalJSON encodes the value together with its type.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireValue{Type: v.spec, Value: v.Interface()})
}

// UnmarshalJSON decodes a value encoded with MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("failed to decode value: %w", err)
	}
	if w.Type.Kind == KindOpaque {
		*v = NewOpaque(w.Value)
		return nil
	}
	*v = FromGo(w.Value).Cast(w.Type)
	return nil
}

// Values maps port or setting names to values.
type Values map[string]Value

// Get returns the named value, or the zero Value when absent.
func (vs Values) Get(name string) Value {
	return vs[name]
}

// Clone returns an independent copy of the map.
func (vs Values) Clone() Values {
	out := make(Values, len(vs))
	for k, v := range vs {
		out[k] = v
	}
	return out
}
