package attr

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the type of value held by an attribute.
type Kind int

// Supported kinds.
const (
	Invalid Kind = iota
	Int
	Float
	String
	Numbers
	Handle
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	case Numbers:
		return "numbers"
	case Handle:
		return "handle"
	}
	return "invalid"
}

// Value is a tagged union of the kinds an attribute can hold.
// The zero Value is invalid.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	n    []float64
	h    interface{}
}

// IntValue returns an integer value.
func IntValue(v int) Value {
	return Value{kind: Int, i: int64(v)}
}

// FloatValue returns a floating point value.
func FloatValue(v float64) Value {
	return Value{kind: Float, f: v}
}

// StringValue returns a string value.
func StringValue(v string) Value {
	return Value{kind: String, s: v}
}

// NumbersValue returns a list of numbers. The slice is copied.
func NumbersValue(v ...float64) Value {
	n := make([]float64, len(v))
	copy(n, v)
	return Value{kind: Numbers, n: n}
}

// HandleValue returns an opaque handle value.
func HandleValue(v interface{}) Value {
	return Value{kind: Handle, h: v}
}

// Kind returns the kind of value.
func (v Value) Kind() Kind {
	return v.kind
}

// Valid reports whether v holds a value.
func (v Value) Valid() bool {
	return v.kind != Invalid
}

// Int returns the integer held by v.
func (v Value) Int() (int, error) {
	if v.kind != Int {
		return 0, mismatch(Int, v.kind)
	}
	return int(v.i), nil
}

// Float returns the number held by v. Integers are widened.
func (v Value) Float() (float64, error) {
	switch v.kind {
	case Float:
		return v.f, nil
	case Int:
		return float64(v.i), nil
	}
	return 0, mismatch(Float, v.kind)
}

// Str returns the string held by v.
func (v Value) Str() (string, error) {
	if v.kind != String {
		return "", mismatch(String, v.kind)
	}
	return v.s, nil
}

// Numbers returns a copy of the list held by v.
func (v Value) Numbers() ([]float64, error) {
	if v.kind != Numbers {
		return nil, mismatch(Numbers, v.kind)
	}
	n := make([]float64, len(v.n))
	copy(n, v.n)
	return n, nil
}

// Handle returns the opaque handle held by v.
func (v Value) Handle() (interface{}, error) {
	if v.kind != Handle {
		return nil, mismatch(Handle, v.kind)
	}
	return v.h, nil
}

// Equal reports whether two values hold the same kind and content.
// Handles are compared by identity.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case Int:
		return v.i == o.i
	case Float:
		return v.f == o.f
	case String:
		return v.s == o.s
	case Numbers:
		if len(v.n) != len(o.n) {
			return false
		}
		for i := range v.n {
			if v.n[i] != o.n[i] {
				return false
			}
		}
		return true
	case Handle:
		return v.h == o.h
	}
	return true
}

// String formats the value for serialization.
func (v Value) String() string {
	switch v.kind {
	case Int:
		return strconv.FormatInt(v.i, 10)
	case Float:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case String:
		return v.s
	case Numbers:
		s := make([]string, len(v.n))
		for i, n := range v.n {
			s[i] = strconv.FormatFloat(n, 'g', -1, 64)
		}
		return strings.Join(s, ",")
	case Handle:
		return fmt.Sprintf("<%T>", v.h)
	}
	return ""
}

// compatible reports whether a value of kind k may be written over kind o.
func compatible(o, k Kind) bool {
	if o == k {
		return true
	}
	// float attributes accept integer writes
	return o == Float && k == Int
}

func mismatch(want, got Kind) error {
	return &TypeMismatchError{Want: want, Got: got}
}
