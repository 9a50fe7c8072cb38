package table

import (
	"fmt"
	"slices"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/hugr-lab/sqlcalc/calcerr"
)

// kind is one entry of the dispatch table. Every per-type operation on
// column storage goes through it, keyed by ValueType.
type kind struct {
	vt        ValueType
	arrowType arrow.DataType

	newColumn func(name string, multi bool, n int) Column
	clone     func(src Column, name string, rows []Row) (Column, bool)
	fromArrow func(name string, arr arrow.Array) (Column, error)
	toArrow   func(col Column, b array.Builder, rows []Row) error
}

// kinds must hold an entry for every ValueType; TestDispatchExhaustive
// guards it.
var kinds = [numValueTypes]kind{
	Int8:   kindOf(signedCodec[int8](Int8), arrow.PrimitiveTypes.Int8),
	Int16:  kindOf(signedCodec[int16](Int16), arrow.PrimitiveTypes.Int16),
	Int32:  kindOf(signedCodec[int32](Int32), arrow.PrimitiveTypes.Int32),
	Int64:  kindOf(signedCodec[int64](Int64), arrow.PrimitiveTypes.Int64),
	Uint8:  kindOf(unsignedCodec[uint8](Uint8), arrow.PrimitiveTypes.Uint8),
	Uint16: kindOf(unsignedCodec[uint16](Uint16), arrow.PrimitiveTypes.Uint16),
	Uint32: kindOf(unsignedCodec[uint32](Uint32), arrow.PrimitiveTypes.Uint32),
	Uint64: kindOf(unsignedCodec[uint64](Uint64), arrow.PrimitiveTypes.Uint64),
	Float:  kindOf(floatCodec[float32](Float), arrow.PrimitiveTypes.Float32),
	Double: kindOf(floatCodec[float64](Double), arrow.PrimitiveTypes.Float64),
	String: kindOf(stringCodec(), arrow.BinaryTypes.String),
}

func kindOf[T Scalar](c *codec[T], dt arrow.DataType) kind {
	return kind{
		vt:        c.vt,
		arrowType: dt,
		newColumn: func(name string, multi bool, n int) Column {
			if multi {
				return &MultiColumn[T]{name: name, codec: c, data: make([][]T, n)}
			}
			return &ScalarColumn[T]{name: name, codec: c, data: make([]T, n)}
		},
		clone: func(src Column, name string, rows []Row) (Column, bool) {
			return cloneColumn[T](src, name, rows)
		},
		fromArrow: func(name string, arr arrow.Array) (Column, error) {
			return columnFromArrow(c, name, arr)
		},
		toArrow: appendColumn[T],
	}
}

func lookup(op string, vt ValueType) (*kind, error) {
	if !vt.Valid() || kinds[vt].newColumn == nil {
		return nil, calcerr.TypeDispatch(op, "value type %s outside the builtin domain", vt)
	}
	return &kinds[vt], nil
}

// cloneColumn copies the cells at rows, in order, into a new column. This is
// the only element-wise copy of row data.
func cloneColumn[T Scalar](src Column, name string, rows []Row) (Column, bool) {
	switch s := src.(type) {
	case *ScalarColumn[T]:
		data := make([]T, len(rows))
		for i, r := range rows {
			data[i] = s.data[r]
		}
		return &ScalarColumn[T]{name: name, codec: s.codec, data: data}, true
	case *MultiColumn[T]:
		data := make([][]T, len(rows))
		for i, r := range rows {
			data[i] = slices.Clone(s.data[r])
		}
		return &MultiColumn[T]{name: name, codec: s.codec, data: data}, true
	}
	return nil, false
}

func columnFromArrow[T Scalar](c *codec[T], name string, arr arrow.Array) (Column, error) {
	if list, ok := arr.(*array.List); ok {
		vals, ok := list.ListValues().(interface{ Value(int) T })
		if !ok {
			return nil, fmt.Errorf("column %s: unexpected list values %T", name, list.ListValues())
		}
		data := make([][]T, list.Len())
		for i := range data {
			if list.IsNull(i) {
				continue
			}
			start, end := list.ValueOffsets(i)
			elems := make([]T, 0, end-start)
			for j := start; j < end; j++ {
				elems = append(elems, own(vals.Value(int(j))))
			}
			data[i] = elems
		}
		return &MultiColumn[T]{name: name, codec: c, data: data}, nil
	}

	vals, ok := arr.(interface{ Value(int) T })
	if !ok {
		return nil, fmt.Errorf("column %s: unexpected array %T", name, arr)
	}
	data := make([]T, arr.Len())
	for i := range data {
		if arr.IsNull(i) {
			continue
		}
		data[i] = own(vals.Value(i))
	}
	return &ScalarColumn[T]{name: name, codec: c, data: data}, nil
}

// own detaches strings from the record buffers they alias so the table
// outlives the record.
func own[T Scalar](x T) T {
	if s, ok := any(x).(string); ok {
		return any(strings.Clone(s)).(T)
	}
	return x
}

func appendColumn[T Scalar](col Column, b array.Builder, rows []Row) error {
	switch s := col.(type) {
	case *ScalarColumn[T]:
		vb, ok := b.(interface{ Append(T) })
		if !ok {
			return fmt.Errorf("column %s: unexpected builder %T", s.name, b)
		}
		for _, r := range rows {
			vb.Append(s.data[r])
		}
		return nil
	case *MultiColumn[T]:
		lb, ok := b.(*array.ListBuilder)
		if !ok {
			return fmt.Errorf("column %s: unexpected builder %T", s.name, b)
		}
		vb, ok := lb.ValueBuilder().(interface{ Append(T) })
		if !ok {
			return fmt.Errorf("column %s: unexpected value builder %T", s.name, lb.ValueBuilder())
		}
		for _, r := range rows {
			lb.Append(true)
			for _, x := range s.data[r] {
				vb.Append(x)
			}
		}
		return nil
	}
	return calcerr.TypeDispatch("export", "column %s has unexpected storage %T", col.Name(), col)
}
