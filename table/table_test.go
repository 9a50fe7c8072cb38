package table

import (
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/sqlcalc/calcerr"
)

func newIDTable(t *testing.T, n int) (*Table, *ScalarColumn[int64]) {
	t.Helper()
	tbl := New()
	id, err := DeclareScalar[int64](tbl, "id")
	if err != nil {
		t.Fatalf("DeclareScalar failed: %v", err)
	}
	for i, r := range tbl.AllocateRows(n) {
		id.Set(r, int64(i))
	}
	return tbl, id
}

func TestDispatchExhaustive(t *testing.T) {
	for _, vt := range ValueTypes() {
		k := kinds[vt]
		if k.newColumn == nil || k.clone == nil || k.fromArrow == nil || k.toArrow == nil || k.arrowType == nil {
			t.Fatalf("dispatch table has no entry for %s", vt)
		}
		if k.vt != vt {
			t.Errorf("dispatch entry %s tagged %s", vt, k.vt)
		}
	}

	_, err := lookup("test", numValueTypes)
	if !errors.Is(err, calcerr.ErrTypeDispatch) {
		t.Errorf("expected type dispatch error, got %v", err)
	}
}

func TestAllocateAndDeclare(t *testing.T) {
	tbl, _ := newIDTable(t, 3)

	name, err := DeclareScalar[string](tbl, "name")
	if err != nil {
		t.Fatalf("DeclareScalar failed: %v", err)
	}
	if name.Len() != 3 {
		t.Errorf("late-declared column should cover existing rows, got %d", name.Len())
	}

	rows := tbl.AllocateRows(2)
	if len(rows) != 2 || rows[0] != 3 {
		t.Fatalf("unexpected rows %v", rows)
	}
	if name.Len() != 5 {
		t.Errorf("columns should grow with allocation, got %d", name.Len())
	}

	if _, err := tbl.DeclareColumn("name", Single(String)); err == nil {
		t.Error("expected duplicate column error")
	}
	if _, err := tbl.DeclareColumn("bad", ColumnType{Value: numValueTypes}); !errors.Is(err, calcerr.ErrTypeDispatch) {
		t.Errorf("expected type dispatch error, got %v", err)
	}
}

func TestTwoPhaseDelete(t *testing.T) {
	tbl, id := newIDTable(t, 6)

	tbl.DeleteRange(0, 2)
	tbl.MarkDeleted(4)
	tbl.MarkDeleted(4)

	if tbl.PendingDeletes() != 3 {
		t.Fatalf("expected 3 pending deletes, got %d", tbl.PendingDeletes())
	}
	if tbl.RowCount() != 6 {
		t.Errorf("rows must stay until compaction, got %d", tbl.RowCount())
	}

	tbl.Compact()
	if tbl.RowCount() != 3 {
		t.Fatalf("expected 3 rows after compaction, got %d", tbl.RowCount())
	}

	want := []int64{2, 3, 5}
	for pos := 0; pos < tbl.RowCount(); pos++ {
		if got := id.Get(tbl.RowAt(pos)); got != want[pos] {
			t.Errorf("position %d: expected %d, got %d", pos, want[pos], got)
		}
	}
	if tbl.IsDense() {
		t.Error("compacted table with holes must not be dense")
	}
}

func TestCloneColumn(t *testing.T) {
	src, _ := newIDTable(t, 4)
	tags, err := DeclareMulti[string](src, "tags")
	if err != nil {
		t.Fatalf("DeclareMulti failed: %v", err)
	}
	for pos := 0; pos < 4; pos++ {
		tags.Set(src.RowAt(pos), []string{"a", "b"})
	}
	src.MarkDeleted(1)

	dst := New()
	dst.AllocateRows(3)
	if err := dst.CloneColumn(src, "id", "id"); err != nil {
		t.Fatalf("CloneColumn failed: %v", err)
	}
	if err := dst.CloneColumn(src, "tags", "labels"); err != nil {
		t.Fatalf("CloneColumn failed: %v", err)
	}

	id, ok := ScalarOf[int64](dst, "id")
	if !ok {
		t.Fatal("cloned id column has wrong storage")
	}
	want := []int64{0, 2, 3}
	for i, w := range want {
		if got := id.Get(Row(i)); got != w {
			t.Errorf("row %d: expected %d, got %d", i, w, got)
		}
	}

	labels, ok := MultiOfColumn[string](dst, "labels")
	if !ok {
		t.Fatal("cloned labels column has wrong storage")
	}
	labels.Get(0)[0] = "z"
	if tags.Get(0)[0] != "a" {
		t.Error("clone must not share multi-value storage")
	}

	if err := dst.CloneColumn(src, "missing", "missing"); err == nil {
		t.Error("expected error for missing column")
	}
}

func TestArrowRoundTrip(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	tbl, _ := newIDTable(t, 3)
	score, _ := DeclareScalar[float32](tbl, "score")
	tags, _ := DeclareMulti[uint16](tbl, "tags")
	for pos := 0; pos < 3; pos++ {
		r := tbl.RowAt(pos)
		score.Set(r, float32(pos)/2)
		tags.Set(r, []uint16{uint16(pos), uint16(pos + 1)})
	}
	tbl.MarkDeleted(0)

	rec, err := tbl.ToRecordBatch(mem)
	if err != nil {
		t.Fatalf("ToRecordBatch failed: %v", err)
	}
	defer rec.Release()

	if rec.NumRows() != 2 || rec.NumCols() != 3 {
		t.Fatalf("unexpected record shape %dx%d", rec.NumRows(), rec.NumCols())
	}

	back, err := FromRecordBatch(rec)
	if err != nil {
		t.Fatalf("FromRecordBatch failed: %v", err)
	}
	if !back.Schema().Equal(tbl.Schema()) {
		t.Fatalf("schema mismatch: %v vs %v", back.Schema(), tbl.Schema())
	}
	if !back.IsDense() {
		t.Error("imported table should be dense")
	}

	id, _ := ScalarOf[int64](back, "id")
	if id.Get(0) != 1 || id.Get(1) != 2 {
		t.Errorf("unexpected ids %d, %d", id.Get(0), id.Get(1))
	}
	backTags, _ := MultiOfColumn[uint16](back, "tags")
	if got := backTags.Get(1); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("unexpected tags %v", got)
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		name    string
		want    ColumnType
		wantErr bool
	}{
		{"BIGINT", Single(Int64), false},
		{"varchar(255)", Single(String), false},
		{"ARRAY(INTEGER)", MultiOf(Int32), false},
		{"multiset(double)", MultiOf(Double), false},
		{"UTINYINT", Single(Uint8), false},
		{"GEOMETRY", ColumnType{}, true},
		{"", ColumnType{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseType(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseType(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseType(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}
