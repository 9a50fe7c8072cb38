package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a dynamically typed cell. Exactly one payload field is meaningful,
// selected by the value's column type.
type Value struct {
	typ  ColumnType
	i    int64
	u    uint64
	f    float64
	s    string
	list []Value
}

// IntValue returns a signed integer value of type vt.
func IntValue(vt ValueType, v int64) Value {
	return Value{typ: Single(vt), i: v}
}

// UintValue returns an unsigned integer value of type vt.
func UintValue(vt ValueType, v uint64) Value {
	return Value{typ: Single(vt), u: v}
}

// FloatValue returns a float or double value.
func FloatValue(vt ValueType, v float64) Value {
	return Value{typ: Single(vt), f: v}
}

// StringValue returns a string value.
func StringValue(s string) Value {
	return Value{typ: Single(String), s: s}
}

// BoolValue encodes a truth value as int8 0 or 1.
func BoolValue(b bool) Value {
	if b {
		return IntValue(Int8, 1)
	}
	return IntValue(Int8, 0)
}

// MultiValue returns a multi-valued cell holding elems of type vt.
func MultiValue(vt ValueType, elems []Value) Value {
	return Value{typ: MultiOf(vt), list: elems}
}

// ZeroValue returns the default for ct: zero for numerics, empty string,
// empty list for multi-valued types.
func ZeroValue(ct ColumnType) Value {
	return Value{typ: ct}
}

// Type returns the value's column type.
func (v Value) Type() ColumnType { return v.typ }

// Elems returns the elements of a multi-valued cell.
func (v Value) Elems() []Value { return v.list }

// Int64 converts v to int64. Floats truncate, strings are parsed.
func (v Value) Int64() (int64, error) {
	if v.typ.Multi {
		return 0, fmt.Errorf("cannot convert %s to int64", v.typ)
	}
	switch {
	case v.typ.Value.IsSigned():
		return v.i, nil
	case v.typ.Value.IsUnsigned():
		return int64(v.u), nil
	case v.typ.Value.IsFloat():
		return int64(v.f), nil
	case v.typ.Value == String:
		i, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
			if ferr != nil {
				return 0, fmt.Errorf("cannot convert %q to int64", v.s)
			}
			return int64(f), nil
		}
		return i, nil
	}
	return 0, fmt.Errorf("unknown value type %s", v.typ)
}

// Uint64 converts v to uint64.
func (v Value) Uint64() (uint64, error) {
	if v.typ.Multi {
		return 0, fmt.Errorf("cannot convert %s to uint64", v.typ)
	}
	switch {
	case v.typ.Value.IsSigned():
		return uint64(v.i), nil
	case v.typ.Value.IsUnsigned():
		return v.u, nil
	case v.typ.Value.IsFloat():
		return uint64(v.f), nil
	case v.typ.Value == String:
		u, err := strconv.ParseUint(strings.TrimSpace(v.s), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to uint64", v.s)
		}
		return u, nil
	}
	return 0, fmt.Errorf("unknown value type %s", v.typ)
}

// Float64 converts v to float64.
func (v Value) Float64() (float64, error) {
	if v.typ.Multi {
		return 0, fmt.Errorf("cannot convert %s to float64", v.typ)
	}
	switch {
	case v.typ.Value.IsSigned():
		return float64(v.i), nil
	case v.typ.Value.IsUnsigned():
		return float64(v.u), nil
	case v.typ.Value.IsFloat():
		return v.f, nil
	case v.typ.Value == String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to float64", v.s)
		}
		return f, nil
	}
	return 0, fmt.Errorf("unknown value type %s", v.typ)
}

// Truthy reports the boolean interpretation of v: non-zero numerics,
// non-empty strings and non-empty lists are true.
func (v Value) Truthy() bool {
	if v.typ.Multi {
		return len(v.list) > 0
	}
	switch {
	case v.typ.Value.IsSigned():
		return v.i != 0
	case v.typ.Value.IsUnsigned():
		return v.u != 0
	case v.typ.Value.IsFloat():
		return v.f != 0 && !math.IsNaN(v.f)
	default:
		return v.s != ""
	}
}

// String formats v the way it would appear as a literal key.
func (v Value) String() string {
	if v.typ.Multi {
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	switch {
	case v.typ.Value.IsSigned():
		return strconv.FormatInt(v.i, 10)
	case v.typ.Value.IsUnsigned():
		return strconv.FormatUint(v.u, 10)
	case v.typ.Value == Float:
		return strconv.FormatFloat(v.f, 'g', -1, 32)
	case v.typ.Value == Double:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	default:
		return v.s
	}
}

// Convert returns v as a value of type ct.
func (v Value) Convert(ct ColumnType) (Value, error) {
	if !ct.Valid() {
		return Value{}, fmt.Errorf("invalid target type %s", ct)
	}
	if v.typ == ct {
		return v, nil
	}

	if ct.Multi {
		if !v.typ.Multi {
			e, err := v.Convert(Single(ct.Value))
			if err != nil {
				return Value{}, err
			}
			return MultiValue(ct.Value, []Value{e}), nil
		}
		out := make([]Value, len(v.list))
		for i, e := range v.list {
			c, err := e.Convert(Single(ct.Value))
			if err != nil {
				return Value{}, err
			}
			out[i] = c
		}
		return MultiValue(ct.Value, out), nil
	}
	if v.typ.Multi {
		return Value{}, fmt.Errorf("cannot convert %s to %s", v.typ, ct)
	}

	switch {
	case ct.Value.IsSigned():
		i, err := v.Int64()
		if err != nil {
			return Value{}, err
		}
		return IntValue(ct.Value, truncSigned(ct.Value, i)), nil
	case ct.Value.IsUnsigned():
		u, err := v.Uint64()
		if err != nil {
			return Value{}, err
		}
		return UintValue(ct.Value, truncUnsigned(ct.Value, u)), nil
	case ct.Value.IsFloat():
		f, err := v.Float64()
		if err != nil {
			return Value{}, err
		}
		if ct.Value == Float {
			f = float64(float32(f))
		}
		return FloatValue(ct.Value, f), nil
	default:
		return StringValue(v.String()), nil
	}
}

func truncSigned(vt ValueType, i int64) int64 {
	switch vt {
	case Int8:
		return int64(int8(i))
	case Int16:
		return int64(int16(i))
	case Int32:
		return int64(int32(i))
	}
	return i
}

func truncUnsigned(vt ValueType, u uint64) uint64 {
	switch vt {
	case Uint8:
		return uint64(uint8(u))
	case Uint16:
		return uint64(uint16(u))
	case Uint32:
		return uint64(uint32(u))
	}
	return u
}

// Compare orders two single values. Strings compare with strings and
// numerics with numerics; anything else is an error.
func Compare(a, b Value) (int, error) {
	if a.typ.Multi || b.typ.Multi {
		return 0, fmt.Errorf("cannot compare %s with %s", a.typ, b.typ)
	}
	as, bs := a.typ.Value == String, b.typ.Value == String
	if as || bs {
		if as && bs {
			return strings.Compare(a.s, b.s), nil
		}
		return 0, fmt.Errorf("cannot compare %s with %s", a.typ, b.typ)
	}

	av, bv := a.typ.Value, b.typ.Value
	switch {
	case av.IsFloat() || bv.IsFloat():
		x, _ := a.Float64()
		y, _ := b.Float64()
		return cmpOrdered(x, y), nil
	case av.IsSigned() && bv.IsSigned():
		return cmpOrdered(a.i, b.i), nil
	case av.IsUnsigned() && bv.IsUnsigned():
		return cmpOrdered(a.u, b.u), nil
	case av.IsSigned():
		if a.i < 0 {
			return -1, nil
		}
		return cmpOrdered(uint64(a.i), b.u), nil
	default:
		if b.i < 0 {
			return 1, nil
		}
		return cmpOrdered(a.u, uint64(b.i)), nil
	}
}

// Equal reports whether a and b compare equal. Multi-valued cells are equal
// when all elements are pairwise equal.
func Equal(a, b Value) (bool, error) {
	if a.typ.Multi && b.typ.Multi {
		if len(a.list) != len(b.list) {
			return false, nil
		}
		for i := range a.list {
			eq, err := Equal(a.list[i], b.list[i])
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	}
	c, err := Compare(a, b)
	if err != nil {
		return false, err
	}
	return c == 0, nil
}

func cmpOrdered[T int64 | uint64 | float64](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}
