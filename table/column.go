package table

import "fmt"

// Row is a physical row index into column storage.
type Row int32

// Scalar is the set of Go element types backing the closed value domain.
type Scalar interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64 | string
}

// Column is a named, typed column. Cells are addressed by physical row.
type Column interface {
	Name() string
	Type() ColumnType
	// Len returns the number of physical rows backed by the column.
	Len() int
	Value(r Row) Value
	SetValue(r Row, v Value) error

	resize(n int)
}

// codec converts between a Go element type and Value.
type codec[T Scalar] struct {
	vt   ValueType
	to   func(T) Value
	from func(Value) (T, error)
}

func signedCodec[T int8 | int16 | int32 | int64](vt ValueType) *codec[T] {
	return &codec[T]{
		vt: vt,
		to: func(x T) Value { return IntValue(vt, int64(x)) },
		from: func(v Value) (T, error) {
			i, err := v.Int64()
			return T(i), err
		},
	}
}

func unsignedCodec[T uint8 | uint16 | uint32 | uint64](vt ValueType) *codec[T] {
	return &codec[T]{
		vt: vt,
		to: func(x T) Value { return UintValue(vt, uint64(x)) },
		from: func(v Value) (T, error) {
			u, err := v.Uint64()
			return T(u), err
		},
	}
}

func floatCodec[T float32 | float64](vt ValueType) *codec[T] {
	return &codec[T]{
		vt: vt,
		to: func(x T) Value { return FloatValue(vt, float64(x)) },
		from: func(v Value) (T, error) {
			f, err := v.Float64()
			return T(f), err
		},
	}
}

func stringCodec() *codec[string] {
	return &codec[string]{
		vt: String,
		to: StringValue,
		from: func(v Value) (string, error) {
			if v.typ.Multi {
				return "", fmt.Errorf("cannot convert %s to string", v.typ)
			}
			return v.String(), nil
		},
	}
}

// ScalarColumn is a single-valued column of T.
type ScalarColumn[T Scalar] struct {
	name  string
	codec *codec[T]
	data  []T
}

func (c *ScalarColumn[T]) Name() string     { return c.name }
func (c *ScalarColumn[T]) Type() ColumnType { return Single(c.codec.vt) }
func (c *ScalarColumn[T]) Len() int         { return len(c.data) }

// Get returns the cell at r.
func (c *ScalarColumn[T]) Get(r Row) T { return c.data[r] }

// Set stores x at r.
func (c *ScalarColumn[T]) Set(r Row, x T) { c.data[r] = x }

func (c *ScalarColumn[T]) Value(r Row) Value { return c.codec.to(c.data[r]) }

func (c *ScalarColumn[T]) SetValue(r Row, v Value) error {
	x, err := c.codec.from(v)
	if err != nil {
		return fmt.Errorf("column %s: %w", c.name, err)
	}
	c.data[r] = x
	return nil
}

func (c *ScalarColumn[T]) resize(n int) {
	if n > len(c.data) {
		c.data = append(c.data, make([]T, n-len(c.data))...)
	}
}

// MultiColumn is a multi-valued column of T.
type MultiColumn[T Scalar] struct {
	name  string
	codec *codec[T]
	data  [][]T
}

func (c *MultiColumn[T]) Name() string     { return c.name }
func (c *MultiColumn[T]) Type() ColumnType { return MultiOf(c.codec.vt) }
func (c *MultiColumn[T]) Len() int         { return len(c.data) }

// Get returns the elements at r. The slice is shared with the column.
func (c *MultiColumn[T]) Get(r Row) []T { return c.data[r] }

// Set stores xs at r.
func (c *MultiColumn[T]) Set(r Row, xs []T) { c.data[r] = xs }

func (c *MultiColumn[T]) Value(r Row) Value {
	elems := make([]Value, len(c.data[r]))
	for i, x := range c.data[r] {
		elems[i] = c.codec.to(x)
	}
	return MultiValue(c.codec.vt, elems)
}

func (c *MultiColumn[T]) SetValue(r Row, v Value) error {
	if !v.typ.Multi {
		x, err := c.codec.from(v)
		if err != nil {
			return fmt.Errorf("column %s: %w", c.name, err)
		}
		c.data[r] = []T{x}
		return nil
	}
	xs := make([]T, len(v.list))
	for i, e := range v.list {
		x, err := c.codec.from(e)
		if err != nil {
			return fmt.Errorf("column %s: %w", c.name, err)
		}
		xs[i] = x
	}
	c.data[r] = xs
	return nil
}

func (c *MultiColumn[T]) resize(n int) {
	if n > len(c.data) {
		c.data = append(c.data, make([][]T, n-len(c.data))...)
	}
}

// valueTypeOf maps a Go element type onto the value domain.
func valueTypeOf[T Scalar]() ValueType {
	var zero T
	switch any(zero).(type) {
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case float32:
		return Float
	case float64:
		return Double
	default:
		return String
	}
}
