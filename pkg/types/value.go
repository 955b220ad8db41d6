// Package types provides the core data types for Waypoint. Items are
// schema-less flat records of tagged scalar values, so index projection
// stays type-safe without runtime reflection.
package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies the scalar type held by a Value.
type Kind int

const (
	// KindNull is the zero Kind; a zero Value is null.
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
)

// Value is a tagged scalar: string, number, bool, or null. It marshals to
// and from the corresponding bare JSON scalar, preserving the persisted
// item layout.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

// NullValue returns the null Value.
func NullValue() Value {
	return Value{}
}

// StringValue returns a Value holding the given string.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// NumberValue returns a Value holding the given number.
func NumberValue(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// BoolValue returns a Value holding the given bool.
func BoolValue(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Kind returns the scalar type of the value.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Num returns the numeric value for number values, and 0 for everything
// else. This is the coercion rule numerical indexes rely on: non-numeric
// projections sort as 0.
func (v Value) Num() float64 {
	if v.kind == KindNumber {
		return v.num
	}
	return 0
}

// Bool returns the boolean value, or false for non-bool values.
func (v Value) Bool() bool {
	if v.kind == KindBool {
		return v.b
	}
	return false
}

// Text returns the canonical textual form of the value: strings verbatim,
// numbers in minimal decimal notation, bools as "true"/"false", null as "".
// Item keys and index comparisons for string indexes use this form.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	}
	return ""
}

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	}
	return true
}

// MarshalJSON encodes the value as a bare JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return []byte(strconv.FormatFloat(v.num, 'f', -1, 64)), nil
	case KindBool:
		if v.b {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes a bare JSON scalar. Nested objects and arrays are
// rejected; items are flat records.
func (v *Value) UnmarshalJSON(data []byte) error {
	s := string(data)
	switch {
	case s == "null":
		*v = NullValue()
	case s == "true":
		*v = BoolValue(true)
	case s == "false":
		*v = BoolValue(false)
	case len(data) > 0 && data[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*v = StringValue(str)
	default:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("types: unsupported JSON value %q", s)
		}
		*v = NumberValue(f)
	}
	return nil
}
