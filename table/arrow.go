package table

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ArrowType returns the Arrow data type for ct. Multi-valued types map to
// Arrow lists.
func (c ColumnType) ArrowType() (arrow.DataType, error) {
	k, err := lookup("arrow type", c.Value)
	if err != nil {
		return nil, err
	}
	if c.Multi {
		return arrow.ListOf(k.arrowType), nil
	}
	return k.arrowType, nil
}

// ColumnTypeOf maps an Arrow data type onto the value domain.
func ColumnTypeOf(dt arrow.DataType) (ColumnType, error) {
	if lt, ok := dt.(*arrow.ListType); ok {
		elem, err := ColumnTypeOf(lt.Elem())
		if err != nil {
			return ColumnType{}, err
		}
		if elem.Multi {
			return ColumnType{}, fmt.Errorf("nested list %s is not supported", dt)
		}
		return MultiOf(elem.Value), nil
	}
	for i := range kinds {
		if arrow.TypeEqual(kinds[i].arrowType, dt) {
			return Single(ValueType(i)), nil
		}
	}
	return ColumnType{}, fmt.Errorf("arrow type %s is not supported", dt)
}

// ArrowSchema returns the Arrow schema of the table.
func (t *Table) ArrowSchema() (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(t.columns))
	for i, c := range t.columns {
		dt, err := c.Type().ArrowType()
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name(), err)
		}
		fields[i] = arrow.Field{Name: c.Name(), Type: dt, Nullable: false}
	}
	return arrow.NewSchema(fields, nil), nil
}

// ToRecordBatch exports the live rows of the table. The caller must release
// the returned record.
func (t *Table) ToRecordBatch(mem memory.Allocator) (arrow.RecordBatch, error) {
	schema, err := t.ArrowSchema()
	if err != nil {
		return nil, err
	}

	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	rows := t.LiveRows()
	for i, c := range t.columns {
		k, err := lookup("export", c.Type().Value)
		if err != nil {
			return nil, err
		}
		if err := k.toArrow(c, builder.Field(i), rows); err != nil {
			return nil, err
		}
	}

	return builder.NewRecordBatch(), nil
}

// FromRecordBatch builds a dense table holding a copy of rec.
func FromRecordBatch(rec arrow.RecordBatch) (*Table, error) {
	t := New()
	t.AllocateRows(int(rec.NumRows()))

	for i, field := range rec.Schema().Fields() {
		ct, err := ColumnTypeOf(field.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", field.Name, err)
		}
		k, err := lookup("import", ct.Value)
		if err != nil {
			return nil, err
		}
		col, err := k.fromArrow(field.Name, rec.Column(i))
		if err != nil {
			return nil, err
		}
		if err := t.AddColumn(col); err != nil {
			return nil, err
		}
	}
	return t, nil
}
