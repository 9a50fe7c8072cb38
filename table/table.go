// Package table implements the columnar execution batch: an ordered list of
// rows, a fixed ordered set of typed columns from a closed value domain and
// two-phase row deletion.
//
// Rows are created by batch allocation. Positions (0..RowCount-1) address
// the logical row order; each position maps to a physical Row used to index
// column storage. Deletion marks positions in a pending bitmap and Compact
// drops them, so several filter passes can run over different ranges before
// paying for compaction:
//
//	t := table.New()
//	id, _ := table.DeclareScalar[int64](t, "id")
//	for i, r := range t.AllocateRows(3) {
//	    id.Set(r, int64(i))
//	}
//	t.MarkDeleted(1)
//	t.Compact() // RowCount() == 2
package table

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/bitutil"

	"github.com/hugr-lab/sqlcalc/calcerr"
)

// Table is a columnar batch. It is owned by one invocation and is not safe
// for concurrent use.
type Table struct {
	columns []Column
	index   map[string]int

	rows     []Row
	deleted  []byte
	pending  int
	capacity int
}

// New returns an empty table.
func New() *Table {
	return &Table{index: make(map[string]int)}
}

// AllocateRows appends n rows and returns their physical indices. Existing
// columns grow to cover them with zero values.
func (t *Table) AllocateRows(n int) []Row {
	if n <= 0 {
		return nil
	}
	start := t.capacity
	t.capacity += n
	for i := 0; i < n; i++ {
		t.rows = append(t.rows, Row(start+i))
	}
	t.growBitmap()
	for _, c := range t.columns {
		c.resize(t.capacity)
	}
	return t.rows[len(t.rows)-n:]
}

func (t *Table) growBitmap() {
	need := int(bitutil.BytesForBits(int64(len(t.rows))))
	if len(t.deleted) < need {
		t.deleted = append(t.deleted, make([]byte, need-len(t.deleted))...)
	}
}

// RowCount returns the number of rows, including rows marked for deletion
// but not yet compacted.
func (t *Table) RowCount() int { return len(t.rows) }

// RowAt returns the physical row at position pos.
func (t *Table) RowAt(pos int) Row { return t.rows[pos] }

// Rows returns the physical rows in logical order. The slice must not be
// modified.
func (t *Table) Rows() []Row { return t.rows }

// LiveRows returns the physical rows that are not marked for deletion.
func (t *Table) LiveRows() []Row {
	if t.pending == 0 {
		return t.rows
	}
	live := make([]Row, 0, len(t.rows)-t.pending)
	for pos, r := range t.rows {
		if !bitutil.BitIsSet(t.deleted, pos) {
			live = append(live, r)
		}
	}
	return live
}

// MarkDeleted marks the row at position pos for deletion.
func (t *Table) MarkDeleted(pos int) {
	if bitutil.BitIsSet(t.deleted, pos) {
		return
	}
	bitutil.SetBit(t.deleted, pos)
	t.pending++
}

// DeleteRange marks positions [start, end) for deletion.
func (t *Table) DeleteRange(start, end int) {
	for pos := start; pos < end; pos++ {
		t.MarkDeleted(pos)
	}
}

// IsDeleted reports whether position pos is marked for deletion.
func (t *Table) IsDeleted(pos int) bool {
	return bitutil.BitIsSet(t.deleted, pos)
}

// PendingDeletes returns the number of rows marked but not yet compacted.
func (t *Table) PendingDeletes() int { return t.pending }

// Compact drops every row marked for deletion. Column storage is untouched;
// only the logical row order shrinks.
func (t *Table) Compact() {
	if t.pending == 0 {
		return
	}
	t.rows = t.LiveRows()
	t.pending = 0
	t.deleted = make([]byte, bitutil.BytesForBits(int64(len(t.rows))))
}

// IsDense reports whether position i maps to physical row i for every row
// and nothing is pending deletion. Column storage of a dense table can be
// shared with another dense table of the same row count.
func (t *Table) IsDense() bool {
	if t.pending != 0 || len(t.rows) != t.capacity {
		return false
	}
	for i, r := range t.rows {
		if int(r) != i {
			return false
		}
	}
	return true
}

// DeclareColumn adds an empty column of type ct sized to the current rows.
func (t *Table) DeclareColumn(name string, ct ColumnType) (Column, error) {
	if _, ok := t.index[name]; ok {
		return nil, fmt.Errorf("column %q already declared", name)
	}
	k, err := lookup("declare", ct.Value)
	if err != nil {
		return nil, err
	}
	col := k.newColumn(name, ct.Multi, t.capacity)
	t.add(col)
	return col, nil
}

// AddColumn attaches an existing column. It must cover every physical row.
func (t *Table) AddColumn(col Column) error {
	if _, ok := t.index[col.Name()]; ok {
		return fmt.Errorf("column %q already declared", col.Name())
	}
	if col.Len() < t.capacity {
		return fmt.Errorf("column %q has %d rows, table has %d", col.Name(), col.Len(), t.capacity)
	}
	t.add(col)
	return nil
}

func (t *Table) add(col Column) {
	t.index[col.Name()] = len(t.columns)
	t.columns = append(t.columns, col)
}

// CloneColumn copies the live rows of src's column name into a new column
// as of t. t must be dense and hold exactly as many rows as src has live.
func (t *Table) CloneColumn(src *Table, name, as string) error {
	col := src.Column(name)
	if col == nil {
		return fmt.Errorf("column %q not found", name)
	}
	live := src.LiveRows()
	if !t.IsDense() || len(live) != t.RowCount() {
		return fmt.Errorf("clone %q: destination has %d rows, source has %d", name, t.RowCount(), len(live))
	}
	if _, ok := t.index[as]; ok {
		return fmt.Errorf("column %q already declared", as)
	}

	k, err := lookup("clone", col.Type().Value)
	if err != nil {
		return err
	}
	cloned, ok := k.clone(col, as, live)
	if !ok {
		return calcerr.TypeDispatch("clone", "column %s tagged %s has storage %T", name, col.Type(), col)
	}
	t.add(cloned)
	return nil
}

// Column returns the named column or nil.
func (t *Table) Column(name string) Column {
	i, ok := t.index[name]
	if !ok {
		return nil
	}
	return t.columns[i]
}

// ColumnAt returns the i-th column.
func (t *Table) ColumnAt(i int) Column { return t.columns[i] }

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int { return len(t.columns) }

// Columns returns the columns in order. The slice must not be modified.
func (t *Table) Columns() []Column { return t.columns }

// Schema returns the ordered column names and types.
func (t *Table) Schema() Schema {
	s := make(Schema, len(t.columns))
	for i, c := range t.columns {
		s[i] = Field{Name: c.Name(), Type: c.Type()}
	}
	return s
}

// DeclareScalar declares a single-valued column backed by T.
func DeclareScalar[T Scalar](t *Table, name string) (*ScalarColumn[T], error) {
	col, err := t.DeclareColumn(name, Single(valueTypeOf[T]()))
	if err != nil {
		return nil, err
	}
	return col.(*ScalarColumn[T]), nil
}

// DeclareMulti declares a multi-valued column backed by T.
func DeclareMulti[T Scalar](t *Table, name string) (*MultiColumn[T], error) {
	col, err := t.DeclareColumn(name, MultiOf(valueTypeOf[T]()))
	if err != nil {
		return nil, err
	}
	return col.(*MultiColumn[T]), nil
}

// ScalarOf returns the named column if it is single-valued and backed by T.
func ScalarOf[T Scalar](t *Table, name string) (*ScalarColumn[T], bool) {
	c, ok := t.Column(name).(*ScalarColumn[T])
	return c, ok
}

// MultiOfColumn returns the named column if it is multi-valued and backed by T.
func MultiOfColumn[T Scalar](t *Table, name string) (*MultiColumn[T], bool) {
	c, ok := t.Column(name).(*MultiColumn[T])
	return c, ok
}
