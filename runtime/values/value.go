package values

import (
	"fmt"
	"math"
	"strconv"
)

// Kind enumerates the primitive types a binding slot can carry.
type Kind uint8

const (
	// KindUnset marks a slot that has never been written.
	KindUnset Kind = iota
	// KindBool is a boolean value.
	KindBool
	// KindInt is a signed integer value.
	KindInt
	// KindFloat is a floating point value.
	KindFloat
	// KindText is a short UTF-8 string.
	KindText
	// KindEnum is an index into a fixed label list.
	KindEnum
)

// MaxTextLen bounds the length of text values so a single binding stays
// cheap on constrained targets.
const MaxTextLen = 64

// Value is a tagged union over the supported binding types. Consumers must
// switch on Kind; there is no untyped escape hatch.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

// Bool wraps a boolean.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Int wraps a signed integer.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float wraps a floating point number.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Text wraps a short string, truncated to MaxTextLen bytes.
func Text(v string) Value {
	if len(v) > MaxTextLen {
		v = v[:MaxTextLen]
	}
	return Value{kind: KindText, s: v}
}

// Enum wraps an enum index.
func Enum(idx int) Value { return Value{kind: KindEnum, i: int64(idx)} }

// Kind reports the union tag.
func (v Value) Kind() Kind { return v.kind }

// IsUnset reports whether the value has never been written.
func (v Value) IsUnset() bool { return v.kind == KindUnset }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer payload; enum indices are integers too.
func (v Value) AsInt() (int64, bool) {
	return v.i, v.kind == KindInt || v.kind == KindEnum
}

// AsFloat returns the float payload.
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsText returns the string payload.
func (v Value) AsText() (string, bool) { return v.s, v.kind == KindText }

// Number coerces numeric kinds to float64 for geometry calculations. Bools
// map to 0/1. Text and unset values report false.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindInt, KindEnum:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Equal reports whether two values share tag and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindInt, KindEnum:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case KindText:
		return v.s == o.s
	default:
		return true
	}
}

// String renders the payload for logs and readouts without units.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt, KindEnum:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return v.s
	default:
		return "unset"
	}
}

// KindName returns a stable name for diagnostics.
func KindName(k Kind) string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "integer"
	case KindFloat:
		return "number"
	case KindText:
		return "text"
	case KindEnum:
		return "enum"
	default:
		return "unset"
	}
}

// CheckFinite rejects NaN and infinite floats before they reach the store.
func CheckFinite(v Value) error {
	if f, ok := v.AsFloat(); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("invalid float value %v", f)
		}
	}
	return nil
}
