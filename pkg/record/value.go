package record

import "strconv"

type valueKind int

const (
	kindUnavailable valueKind = iota
	kindNumber
	kindText
	kindBool
)

// Value is a computed derived-field result. A Value is either a number, a
// text label, a boolean, or explicitly unavailable; the zero value is
// unavailable. Division by zero and missing inputs yield Unavailable, never
// Inf or NaN.
type Value struct {
	kind valueKind
	num  float64
	text string
	flag bool
}

// Unavailable marks a derived output whose inputs are missing or invalid.
func Unavailable() Value { return Value{} }

// NumberValue wraps a computed number.
func NumberValue(v float64) Value { return Value{kind: kindNumber, num: v} }

// TextValue wraps a computed label.
func TextValue(v string) Value { return Value{kind: kindText, text: v} }

// BoolValue wraps a computed flag.
func BoolValue(v bool) Value { return Value{kind: kindBool, flag: v} }

// Available reports whether the value was computed.
func (v Value) Available() bool { return v.kind != kindUnavailable }

// Number returns the numeric payload when present.
func (v Value) Number() (float64, bool) {
	return v.num, v.kind == kindNumber
}

// Text returns the text payload when present.
func (v Value) Text() (string, bool) {
	return v.text, v.kind == kindText
}

// Bool returns the boolean payload when present.
func (v Value) Bool() (bool, bool) {
	return v.flag, v.kind == kindBool
}

// Interface returns the payload as a plain Go value, or nil when unavailable.
func (v Value) Interface() any {
	switch v.kind {
	case kindNumber:
		return v.num
	case kindText:
		return v.text
	case kindBool:
		return v.flag
	default:
		return nil
	}
}

// String formats the value for display. Unavailable values render as a
// placeholder the UI can show directly.
func (v Value) String() string {
	switch v.kind {
	case kindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case kindText:
		return v.text
	case kindBool:
		return strconv.FormatBool(v.flag)
	default:
		return "n/a"
	}
}
