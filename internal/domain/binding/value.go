// Package binding defines typed parameter bindings for templates.
package binding

import (
	"strconv"
	"time"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	// KindString holds free text.
	KindString Kind = iota
	// KindInt holds a 64-bit integer.
	KindInt
	// KindFloat holds a 64-bit float.
	KindFloat
	// KindDate holds a calendar timestamp.
	KindDate
	// KindEnum holds one of a closed value set.
	KindEnum
	// KindBool holds a boolean.
	KindBool
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDate:
		return "date"
	case KindEnum:
		return "enum"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is a tagged variant for one extracted parameter. The kind is fixed at
// validation time; accessors on a mismatched kind return the zero value.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	t    time.Time
	b    bool
}

// StringValue creates a string-kind value.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// IntValue creates an int-kind value.
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

// FloatValue creates a float-kind value.
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

// DateValue creates a date-kind value.
func DateValue(t time.Time) Value { return Value{kind: KindDate, t: t} }

// EnumValue creates an enum-kind value.
func EnumValue(s string) Value { return Value{kind: KindEnum, s: s} }

// BoolValue creates a bool-kind value.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string payload (string and enum kinds).
func (v Value) Str() string { return v.s }

// Int returns the integer payload.
func (v Value) Int() int64 { return v.i }

// Float returns the float payload.
func (v Value) Float() float64 { return v.f }

// Date returns the timestamp payload.
func (v Value) Date() time.Time { return v.t }

// Bool returns the boolean payload.
func (v Value) Bool() bool { return v.b }

// Native returns the payload as the driver-facing Go type. Dates use
// ISO-8601 date formatting, matching how patterns compare them.
func (v Value) Native() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindDate:
		return v.t.Format("2006-01-02")
	case KindBool:
		return v.b
	default:
		return v.s
	}
}

// Text renders the payload for template interpolation contexts (ES DSL, HTTP
// query strings).
func (v Value) Text() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindDate:
		return v.t.Format("2006-01-02")
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}
